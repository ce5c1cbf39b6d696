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

type feeService interface {
	Calculate(ctx context.Context, tenantID string, input service.CalculateFeeInput) (*models.PlacementFee, error)
	Get(ctx context.Context, tenantID, id string) (*models.PlacementFee, error)
	Post(ctx context.Context, tenantID, feeID, budgetID string) (*models.BudgetTransaction, error)
}

// FeeHandler exposes placement fee calculation and posting.
type FeeHandler struct {
	service feeService
	metrics *service.MetricsService
}

// NewFeeHandler builds a new handler.
func NewFeeHandler(svc feeService, metrics *service.MetricsService) *FeeHandler {
	return &FeeHandler{service: svc, metrics: metrics}
}

// Calculate godoc
// @Summary Calculate a placement fee
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body service.CalculateFeeInput true "Fee inputs"
// @Success 201 {object} response.Envelope
// @Router /fees/calculate [post]
func (h *FeeHandler) Calculate(c *gin.Context) {
	var input service.CalculateFeeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid fee payload"))
		return
	}
	fee, err := h.service.Calculate(c.Request.Context(), tenantFromContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.IncFeeCalculated()
	response.Created(c, fee)
}

// Get godoc
// @Summary Get a placement fee
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id} [get]
func (h *FeeHandler) Get(c *gin.Context) {
	fee, err := h.service.Get(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

type postFeeRequest struct {
	BudgetID string `json:"budget_id" binding:"required"`
}

// Post godoc
// @Summary Deduct a calculated fee from a budget
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body postFeeRequest true "Target budget"
// @Success 201 {object} response.Envelope
// @Router /fees/{id}/post [post]
func (h *FeeHandler) Post(c *gin.Context) {
	var req postFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "budget_id is required"))
		return
	}
	txn, err := h.service.Post(c.Request.Context(), tenantFromContext(c), c.Param("id"), req.BudgetID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, txn)
}
