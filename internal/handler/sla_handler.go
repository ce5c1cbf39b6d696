package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/internal/service"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
	"github.com/recruitos/vendor-engine/pkg/response"
)

type slaService interface {
	UpsertConfig(ctx context.Context, tenantID, agencyID string, input service.UpsertSLAConfigInput) (*models.SLAConfig, error)
	CheckBreach(ctx context.Context, tenantID, agencyID string, metric models.SLAMetric, actualValue float64) (*service.BreachCheck, error)
	Status(ctx context.Context, tenantID, agencyID string) ([]models.BreachStatus, error)
}

// SLAHandler exposes SLA configuration, breach checks and status.
type SLAHandler struct {
	service slaService
	metrics *service.MetricsService
}

// NewSLAHandler builds a new handler.
func NewSLAHandler(svc slaService, metrics *service.MetricsService) *SLAHandler {
	return &SLAHandler{service: svc, metrics: metrics}
}

// UpsertConfig godoc
// @Summary Set SLA thresholds for an agency metric
// @Tags SLA
// @Accept json
// @Produce json
// @Param agencyId path string true "Agency ID"
// @Param payload body service.UpsertSLAConfigInput true "Thresholds"
// @Success 200 {object} response.Envelope
// @Router /agencies/{agencyId}/sla/config [put]
func (h *SLAHandler) UpsertConfig(c *gin.Context) {
	var input service.UpsertSLAConfigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sla config payload"))
		return
	}
	cfg, err := h.service.UpsertConfig(c.Request.Context(), tenantFromContext(c), c.Param("agencyId"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

type checkBreachRequest struct {
	Metric      models.SLAMetric `json:"metric" binding:"required"`
	ActualValue float64          `json:"actual_value"`
}

// CheckBreach godoc
// @Summary Evaluate a metric value against the agency's thresholds
// @Tags SLA
// @Accept json
// @Produce json
// @Param agencyId path string true "Agency ID"
// @Param payload body checkBreachRequest true "Metric value"
// @Success 200 {object} response.Envelope
// @Router /agencies/{agencyId}/sla/check [post]
func (h *SLAHandler) CheckBreach(c *gin.Context) {
	var req checkBreachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid breach check payload"))
		return
	}
	check, err := h.service.CheckBreach(c.Request.Context(), tenantFromContext(c), c.Param("agencyId"), req.Metric, req.ActualValue)
	if err != nil {
		response.Error(c, err)
		return
	}
	if check.Breached {
		h.metrics.IncSLABreach(string(check.Severity))
	}
	response.JSON(c, http.StatusOK, check, nil)
}

// Status godoc
// @Summary Get the per-metric breach status of an agency
// @Tags SLA
// @Produce json
// @Param agencyId path string true "Agency ID"
// @Success 200 {object} response.Envelope
// @Router /agencies/{agencyId}/sla/status [get]
func (h *SLAHandler) Status(c *gin.Context) {
	statuses, err := h.service.Status(c.Request.Context(), tenantFromContext(c), c.Param("agencyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statuses, nil)
}
