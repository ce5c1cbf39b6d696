package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/recruitos/vendor-engine/internal/middleware"
	"github.com/recruitos/vendor-engine/internal/models"
)

func claimsFromContext(c *gin.Context) *models.TenantClaims {
	value, exists := c.Get(middleware.ContextClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.TenantClaims)
	if !ok {
		return nil
	}
	return claims
}

// tenantFromContext returns the tenant scope of the request, empty when the
// route is unauthenticated.
func tenantFromContext(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil {
		return ""
	}
	return claims.TenantID
}
