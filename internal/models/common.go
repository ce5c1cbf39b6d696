package models

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Pagination describes offset-based paging metadata.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// TenantClaims are the bearer-token claims the engine consumes. Tokens are
// issued by the identity service; the engine only validates and reads them.
type TenantClaims struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// FormatCents renders a minor-unit amount as a decimal string ("12000.00").
// All monetary amounts in the engine are int64 minor units so arithmetic is
// exact; formatting happens only at the API edge.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
