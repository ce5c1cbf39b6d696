package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/internal/service"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
	"github.com/recruitos/vendor-engine/pkg/response"
)

type budgetService interface {
	Create(ctx context.Context, tenantID string, input service.CreateBudgetInput) (*models.Budget, error)
	Get(ctx context.Context, tenantID, id string) (*models.Budget, error)
	PostTransaction(ctx context.Context, tenantID, budgetID string, input service.PostTransactionInput) (*models.BudgetTransaction, error)
	Allocate(ctx context.Context, tenantID, budgetID string, input service.AllocateInput) (*models.BudgetAllocation, error)
	ListTransactions(ctx context.Context, tenantID, budgetID string, limit int) ([]models.BudgetTransaction, error)
	Utilization(ctx context.Context, tenantID, budgetID string) (*models.BudgetUtilization, error)
	CreateAlert(ctx context.Context, tenantID, budgetID string, input service.CreateBudgetAlertInput) (*models.BudgetAlert, error)
	ListAlerts(ctx context.Context, tenantID, budgetID string) ([]models.BudgetAlert, error)
	ResolveAlert(ctx context.Context, tenantID, alertID string) error
}

type forecastService interface {
	Forecast(ctx context.Context, tenantID, budgetID string, horizonDays int) (*models.BudgetForecast, error)
	Latest(ctx context.Context, tenantID, budgetID string) (*models.BudgetForecast, error)
}

type statementService interface {
	Generate(ctx context.Context, tenantID, budgetID string, format service.StatementFormat) (*service.Statement, error)
}

// BudgetHandler exposes the budget ledger, forecasting and statements.
type BudgetHandler struct {
	budgets    budgetService
	forecasts  forecastService
	statements statementService
	metrics    *service.MetricsService
}

// NewBudgetHandler builds a new handler.
func NewBudgetHandler(budgets budgetService, forecasts forecastService, statements statementService, metrics *service.MetricsService) *BudgetHandler {
	return &BudgetHandler{budgets: budgets, forecasts: forecasts, statements: statements, metrics: metrics}
}

// Create godoc
// @Summary Create a budget node
// @Tags Budgets
// @Accept json
// @Produce json
// @Param payload body service.CreateBudgetInput true "Budget"
// @Success 201 {object} response.Envelope
// @Router /budgets [post]
func (h *BudgetHandler) Create(c *gin.Context) {
	var input service.CreateBudgetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid budget payload"))
		return
	}
	budget, err := h.budgets.Create(c.Request.Context(), tenantFromContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, budget)
}

// Get godoc
// @Summary Get a budget node
// @Tags Budgets
// @Produce json
// @Param id path string true "Budget ID"
// @Success 200 {object} response.Envelope
// @Router /budgets/{id} [get]
func (h *BudgetHandler) Get(c *gin.Context) {
	budget, err := h.budgets.Get(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, budget, nil)
}

// PostTransaction godoc
// @Summary Post a ledger transaction
// @Tags Budgets
// @Accept json
// @Produce json
// @Param id path string true "Budget ID"
// @Param payload body service.PostTransactionInput true "Transaction"
// @Success 201 {object} response.Envelope
// @Router /budgets/{id}/transactions [post]
func (h *BudgetHandler) PostTransaction(c *gin.Context) {
	var input service.PostTransactionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transaction payload"))
		return
	}
	txn, err := h.budgets.PostTransaction(c.Request.Context(), tenantFromContext(c), c.Param("id"), input)
	if err != nil {
		switch {
		case errors.Is(err, appErrors.ErrBudgetExceeded):
			h.metrics.IncBudgetRejection("exceeded")
		case errors.Is(err, appErrors.ErrBudgetLocked):
			h.metrics.IncBudgetRejection("locked")
		}
		response.Error(c, err)
		return
	}
	response.Created(c, txn)
}

// ListTransactions godoc
// @Summary List ledger transactions
// @Tags Budgets
// @Produce json
// @Param id path string true "Budget ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /budgets/{id}/transactions [get]
func (h *BudgetHandler) ListTransactions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	txns, err := h.budgets.ListTransactions(c.Request.Context(), tenantFromContext(c), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, txns, nil)
}

// Allocate godoc
// @Summary Earmark budget capacity for a target
// @Tags Budgets
// @Accept json
// @Produce json
// @Param id path string true "Budget ID"
// @Param payload body service.AllocateInput true "Allocation"
// @Success 201 {object} response.Envelope
// @Router /budgets/{id}/allocations [post]
func (h *BudgetHandler) Allocate(c *gin.Context) {
	var input service.AllocateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid allocation payload"))
		return
	}
	alloc, err := h.budgets.Allocate(c.Request.Context(), tenantFromContext(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, alloc)
}

// Utilization godoc
// @Summary Get budget utilization
// @Tags Budgets
// @Produce json
// @Param id path string true "Budget ID"
// @Success 200 {object} response.Envelope
// @Router /budgets/{id}/utilization [get]
func (h *BudgetHandler) Utilization(c *gin.Context) {
	util, err := h.budgets.Utilization(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, util, nil)
}

type forecastRequest struct {
	HorizonDays int `json:"horizon_days" binding:"omitempty,gt=0"`
}

// Forecast godoc
// @Summary Compute a spend forecast
// @Tags Budgets
// @Accept json
// @Produce json
// @Param id path string true "Budget ID"
// @Param payload body forecastRequest false "Forecast options"
// @Success 201 {object} response.Envelope
// @Router /budgets/{id}/forecast [post]
func (h *BudgetHandler) Forecast(c *gin.Context) {
	var req forecastRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid forecast payload"))
			return
		}
	}
	forecast, err := h.forecasts.Forecast(c.Request.Context(), tenantFromContext(c), c.Param("id"), req.HorizonDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, forecast)
}

// LatestForecast godoc
// @Summary Get the latest stored forecast
// @Tags Budgets
// @Produce json
// @Param id path string true "Budget ID"
// @Success 200 {object} response.Envelope
// @Router /budgets/{id}/forecast [get]
func (h *BudgetHandler) LatestForecast(c *gin.Context) {
	forecast, err := h.forecasts.Latest(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, forecast, nil)
}

// CreateAlert godoc
// @Summary Register a utilization alert threshold
// @Tags Budgets
// @Accept json
// @Produce json
// @Param id path string true "Budget ID"
// @Param payload body service.CreateBudgetAlertInput true "Alert threshold"
// @Success 201 {object} response.Envelope
// @Router /budgets/{id}/alerts [post]
func (h *BudgetHandler) CreateAlert(c *gin.Context) {
	var input service.CreateBudgetAlertInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid alert payload"))
		return
	}
	alert, err := h.budgets.CreateAlert(c.Request.Context(), tenantFromContext(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, alert)
}

// ListAlerts godoc
// @Summary List alert thresholds of a budget
// @Tags Budgets
// @Produce json
// @Param id path string true "Budget ID"
// @Success 200 {object} response.Envelope
// @Router /budgets/{id}/alerts [get]
func (h *BudgetHandler) ListAlerts(c *gin.Context) {
	alerts, err := h.budgets.ListAlerts(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// ResolveAlert godoc
// @Summary Resolve a triggered alert
// @Tags Budgets
// @Produce json
// @Param alertId path string true "Alert ID"
// @Success 204
// @Router /budget-alerts/{alertId}/resolve [post]
func (h *BudgetHandler) ResolveAlert(c *gin.Context) {
	if err := h.budgets.ResolveAlert(c.Request.Context(), tenantFromContext(c), c.Param("alertId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Statement godoc
// @Summary Download the budget ledger as CSV or PDF
// @Tags Budgets
// @Produce octet-stream
// @Param id path string true "Budget ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200
// @Router /budgets/{id}/statement [get]
func (h *BudgetHandler) Statement(c *gin.Context) {
	format := service.StatementFormat(c.DefaultQuery("format", "csv"))
	stmt, err := h.statements.Generate(c.Request.Context(), tenantFromContext(c), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+stmt.Filename+`"`)
	c.Data(http.StatusOK, stmt.ContentType, stmt.Payload)
}
