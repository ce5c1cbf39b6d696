package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/internal/service"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
	"github.com/recruitos/vendor-engine/pkg/response"
)

type matchingService interface {
	Match(ctx context.Context, tenantID, jobID string, limit int) (*models.MatchResult, error)
	UpdateSpecializations(ctx context.Context, tenantID, agencyID string, specs []models.Specialization) error
	UpdateCoverage(ctx context.Context, tenantID, agencyID string, entries []models.GeographicCoverage) error
}

// MatchingHandler exposes agency matching and the specialization index.
type MatchingHandler struct {
	service matchingService
	metrics *service.MetricsService
}

// NewMatchingHandler builds a new handler.
func NewMatchingHandler(service matchingService, metrics *service.MetricsService) *MatchingHandler {
	return &MatchingHandler{service: service, metrics: metrics}
}

// Match godoc
// @Summary Rank agencies for a job
// @Tags Matching
// @Produce json
// @Param jobId path string true "Job ID"
// @Param limit query int false "Maximum agencies returned"
// @Success 200 {object} response.Envelope
// @Router /jobs/{jobId}/match [get]
func (h *MatchingHandler) Match(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	result, err := h.service.Match(c.Request.Context(), tenantFromContext(c), c.Param("jobId"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.IncMatchComputed()
	var meta map[string]interface{}
	if len(result.Warnings) > 0 {
		meta = map[string]interface{}{"warnings": result.Warnings}
	}
	response.JSON(c, http.StatusOK, result, nil, meta)
}

// UpdateSpecializations godoc
// @Summary Replace an agency's specializations
// @Tags Matching
// @Accept json
// @Produce json
// @Param agencyId path string true "Agency ID"
// @Param payload body []models.Specialization true "Specializations"
// @Success 200 {object} response.Envelope
// @Router /agencies/{agencyId}/specializations [put]
func (h *MatchingHandler) UpdateSpecializations(c *gin.Context) {
	var specs []models.Specialization
	if err := c.ShouldBindJSON(&specs); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid specializations payload"))
		return
	}
	if err := h.service.UpdateSpecializations(c.Request.Context(), tenantFromContext(c), c.Param("agencyId"), specs); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": len(specs)}, nil)
}

// UpdateCoverage godoc
// @Summary Replace an agency's geographic coverage
// @Tags Matching
// @Accept json
// @Produce json
// @Param agencyId path string true "Agency ID"
// @Param payload body []models.GeographicCoverage true "Coverage entries"
// @Success 200 {object} response.Envelope
// @Router /agencies/{agencyId}/coverage [put]
func (h *MatchingHandler) UpdateCoverage(c *gin.Context) {
	var entries []models.GeographicCoverage
	if err := c.ShouldBindJSON(&entries); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid coverage payload"))
		return
	}
	if err := h.service.UpdateCoverage(c.Request.Context(), tenantFromContext(c), c.Param("agencyId"), entries); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": len(entries)}, nil)
}
