package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recruitos/vendor-engine/internal/models"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
	"github.com/recruitos/vendor-engine/pkg/response"
)

type ownershipService interface {
	CheckDuplicate(ctx context.Context, tenantID string, identity models.CandidateIdentity) (*models.OwnershipStatus, error)
	Release(ctx context.Context, tenantID, ownershipID, reason string) error
}

// OwnershipHandler exposes candidate ownership lookups and dispute release.
type OwnershipHandler struct {
	service ownershipService
}

// NewOwnershipHandler builds a new handler.
func NewOwnershipHandler(service ownershipService) *OwnershipHandler {
	return &OwnershipHandler{service: service}
}

type releaseOwnershipRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Check godoc
// @Summary Check whether a candidate identity is owned
// @Tags Ownership
// @Accept json
// @Produce json
// @Param payload body models.CandidateIdentity true "Candidate identity"
// @Success 200 {object} response.Envelope
// @Router /ownership/check [post]
func (h *OwnershipHandler) Check(c *gin.Context) {
	var identity models.CandidateIdentity
	if err := c.ShouldBindJSON(&identity); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid identity payload"))
		return
	}
	status, err := h.service.CheckDuplicate(c.Request.Context(), tenantFromContext(c), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Release godoc
// @Summary Release an ownership record after a dispute
// @Tags Ownership
// @Accept json
// @Produce json
// @Param id path string true "Ownership record ID"
// @Param payload body releaseOwnershipRequest true "Release reason"
// @Success 204
// @Router /ownership/{id}/release [post]
func (h *OwnershipHandler) Release(c *gin.Context) {
	var req releaseOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "release reason is required"))
		return
	}
	if err := h.service.Release(c.Request.Context(), tenantFromContext(c), c.Param("id"), req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
