package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/internal/repository"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
	"github.com/recruitos/vendor-engine/pkg/jobs"
)

type budgetRepository interface {
	Create(ctx context.Context, budget *models.Budget) error
	FindByID(ctx context.Context, tenantID, id string) (*models.Budget, error)
	ListActive(ctx context.Context, tenantID string) ([]models.Budget, error)
	PostDeduction(ctx context.Context, tenantID, budgetID string, amountCents int64, sourceType, sourceID, note string) (*models.BudgetTransaction, error)
	PostRefund(ctx context.Context, tenantID, budgetID string, amountCents int64, sourceType, sourceID, note string) (*models.BudgetTransaction, error)
	PostAdjustment(ctx context.Context, tenantID, budgetID string, amountCents int64, sourceType, sourceID, note string) (*models.BudgetTransaction, error)
	Transfer(ctx context.Context, tenantID, fromID, toID string, amountCents int64, sourceType, sourceID, note string) (*models.BudgetTransaction, error)
	CreateAllocation(ctx context.Context, alloc *models.BudgetAllocation) (*models.BudgetTransaction, error)
	ListTransactions(ctx context.Context, tenantID, budgetID string, limit int) ([]models.BudgetTransaction, error)
	DailyDeductionTotals(ctx context.Context, tenantID, budgetID string, since time.Time) ([]models.DailySpend, error)
	CreateAlert(ctx context.Context, alert *models.BudgetAlert) error
	ListAlerts(ctx context.Context, tenantID, budgetID string) ([]models.BudgetAlert, error)
	TriggerCrossedAlerts(ctx context.Context, tenantID, budgetID string, utilizationPct float64, spentCents int64) ([]models.BudgetAlert, error)
	ResolveAlert(ctx context.Context, tenantID, alertID string) error
}

type alertDispatcher interface {
	Enqueue(job jobs.Job) error
}

// burnRateWindowDays is the trailing window used for the utilization burn
// rate, independent of the forecaster's configurable window.
const burnRateWindowDays = 30

// CreateBudgetInput creates a budget node, optionally under a parent.
type CreateBudgetInput struct {
	ParentID    *string   `json:"parent_id" validate:"omitempty,uuid"`
	Name        string    `json:"name" validate:"required"`
	Currency    string    `json:"currency" validate:"required,len=3"`
	TotalCents  int64     `json:"total_cents" validate:"required,gt=0"`
	PeriodStart time.Time `json:"period_start" validate:"required"`
	PeriodEnd   time.Time `json:"period_end" validate:"required,gtfield=PeriodStart"`
}

// PostTransactionInput posts one ledger entry. CounterpartyBudgetID is
// required for TRANSFER and forbidden otherwise.
type PostTransactionInput struct {
	Type                 models.TransactionType `json:"type" validate:"required,oneof=DEDUCTION REFUND ADJUSTMENT TRANSFER"`
	AmountCents          int64                  `json:"amount_cents" validate:"required"`
	SourceType           string                 `json:"source_type" validate:"required"`
	SourceID             string                 `json:"source_id"`
	Note                 string                 `json:"note"`
	CounterpartyBudgetID string                 `json:"counterparty_budget_id" validate:"omitempty,uuid"`
}

// AllocateInput earmarks budget capacity for a target.
type AllocateInput struct {
	TargetType     string `json:"target_type" validate:"required,oneof=AGREEMENT CONTRACT DEPARTMENT PROJECT"`
	TargetID       string `json:"target_id" validate:"required"`
	AllocatedCents int64  `json:"allocated_cents" validate:"required,gt=0"`
}

// CreateBudgetAlertInput registers a utilization threshold on a budget.
type CreateBudgetAlertInput struct {
	ThresholdPercent *float64             `json:"threshold_percent" validate:"omitempty,gt=0,lte=100"`
	ThresholdCents   *int64               `json:"threshold_cents" validate:"omitempty,gt=0"`
	Severity         models.AlertSeverity `json:"severity" validate:"required,oneof=INFO WARNING CRITICAL"`
}

// BudgetService fronts the hierarchical budget ledger. The overdraw and lock
// guards live in the repository's SQL; this layer validates, maps guard
// failures onto the business error taxonomy and fans out alert evaluation.
type BudgetService struct {
	budgets  budgetRepository
	alerts   alertDispatcher
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewBudgetService constructs the service. alerts may be nil to disable
// asynchronous alert dispatch.
func NewBudgetService(budgets budgetRepository, alerts alertDispatcher, logger *zap.Logger) *BudgetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BudgetService{
		budgets:  budgets,
		alerts:   alerts,
		validate: validator.New(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a budget node to the hierarchy.
func (s *BudgetService) Create(ctx context.Context, tenantID string, input CreateBudgetInput) (*models.Budget, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid budget request")
	}
	budget := &models.Budget{
		TenantID:    tenantID,
		ParentID:    input.ParentID,
		Name:        input.Name,
		Currency:    input.Currency,
		TotalCents:  input.TotalCents,
		PeriodStart: input.PeriodStart,
		PeriodEnd:   input.PeriodEnd,
		Status:      models.BudgetActive,
	}
	if err := s.budgets.Create(ctx, budget); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent budget not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "budget create failed")
	}
	s.logger.Info("budget created",
		zap.String("budget_id", budget.ID),
		zap.String("path", budget.Path),
		zap.String("total", models.FormatCents(budget.TotalCents)))
	return budget, nil
}

// Get returns one budget node.
func (s *BudgetService) Get(ctx context.Context, tenantID, id string) (*models.Budget, error) {
	budget, err := s.budgets.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "budget not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "budget lookup failed")
	}
	return budget, nil
}

// PostTransaction appends one ledger entry and applies its balance effect
// atomically. Guard failures come back as BudgetExceeded or BudgetLocked.
func (s *BudgetService) PostTransaction(ctx context.Context, tenantID, budgetID string, input PostTransactionInput) (*models.BudgetTransaction, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transaction request")
	}
	if input.Type != models.TxnAdjustment && input.AmountCents <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount_cents must be positive")
	}
	if (input.Type == models.TxnTransfer) != (input.CounterpartyBudgetID != "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "counterparty_budget_id is required for TRANSFER and forbidden otherwise")
	}

	var txn *models.BudgetTransaction
	var err error
	switch input.Type {
	case models.TxnDeduction:
		txn, err = s.budgets.PostDeduction(ctx, tenantID, budgetID, input.AmountCents, input.SourceType, input.SourceID, input.Note)
	case models.TxnRefund:
		txn, err = s.budgets.PostRefund(ctx, tenantID, budgetID, input.AmountCents, input.SourceType, input.SourceID, input.Note)
	case models.TxnAdjustment:
		txn, err = s.budgets.PostAdjustment(ctx, tenantID, budgetID, input.AmountCents, input.SourceType, input.SourceID, input.Note)
	case models.TxnTransfer:
		if input.CounterpartyBudgetID == budgetID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "cannot transfer a budget to itself")
		}
		txn, err = s.budgets.Transfer(ctx, tenantID, budgetID, input.CounterpartyBudgetID, input.AmountCents, input.SourceType, input.SourceID, input.Note)
	}
	if err != nil {
		return nil, s.mapLedgerError(err)
	}

	s.logger.Info("budget transaction posted",
		zap.String("transaction_id", txn.ID),
		zap.String("budget_id", budgetID),
		zap.String("type", string(input.Type)),
		zap.String("amount", models.FormatCents(input.AmountCents)),
		zap.String("balance", models.FormatCents(txn.BalanceCents)))

	if input.Type == models.TxnDeduction {
		s.evaluateAlerts(ctx, tenantID, budgetID)
	}
	return txn, nil
}

// PostDeduction is the ledger entry point used by fee posting.
func (s *BudgetService) PostDeduction(ctx context.Context, tenantID, budgetID string, amountCents int64, source string) (*models.BudgetTransaction, error) {
	return s.PostTransaction(ctx, tenantID, budgetID, PostTransactionInput{
		Type:        models.TxnDeduction,
		AmountCents: amountCents,
		SourceType:  "PLACEMENT_FEE",
		SourceID:    source,
	})
}

// PostRefund reverses a fee deduction whose posting failed after the money
// moved.
func (s *BudgetService) PostRefund(ctx context.Context, tenantID, budgetID string, amountCents int64, source string) (*models.BudgetTransaction, error) {
	return s.PostTransaction(ctx, tenantID, budgetID, PostTransactionInput{
		Type:        models.TxnRefund,
		AmountCents: amountCents,
		SourceType:  "PLACEMENT_FEE",
		SourceID:    source,
	})
}

func (s *BudgetService) mapLedgerError(err error) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientFunds):
		return appErrors.ErrBudgetExceeded
	case errors.Is(err, repository.ErrBudgetUnavailable):
		return appErrors.ErrBudgetLocked
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "budget not found")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ledger operation failed")
	}
}

// Allocate earmarks capacity against the budget's current remaining amount.
func (s *BudgetService) Allocate(ctx context.Context, tenantID, budgetID string, input AllocateInput) (*models.BudgetAllocation, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation request")
	}
	alloc := &models.BudgetAllocation{
		TenantID:       tenantID,
		BudgetID:       budgetID,
		TargetType:     input.TargetType,
		TargetID:       input.TargetID,
		AllocatedCents: input.AllocatedCents,
	}
	if _, err := s.budgets.CreateAllocation(ctx, alloc); err != nil {
		return nil, s.mapLedgerError(err)
	}
	s.logger.Info("budget allocation created",
		zap.String("allocation_id", alloc.ID),
		zap.String("budget_id", budgetID),
		zap.String("target_type", input.TargetType),
		zap.String("amount", models.FormatCents(input.AllocatedCents)))
	return alloc, nil
}

// ListTransactions returns the ledger of one budget, newest first.
func (s *BudgetService) ListTransactions(ctx context.Context, tenantID, budgetID string, limit int) ([]models.BudgetTransaction, error) {
	txns, err := s.budgets.ListTransactions(ctx, tenantID, budgetID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "transaction list failed")
	}
	return txns, nil
}

// Utilization summarizes spend against capacity with a trailing burn rate.
func (s *BudgetService) Utilization(ctx context.Context, tenantID, budgetID string) (*models.BudgetUtilization, error) {
	budget, err := s.Get(ctx, tenantID, budgetID)
	if err != nil {
		return nil, err
	}

	util := &models.BudgetUtilization{
		BudgetID:       budget.ID,
		RemainingCents: budget.RemainingCents,
		SpentCents:     budget.SpentCents,
		TotalCents:     budget.TotalCents,
		IsOverBudget:   budget.RemainingCents <= 0,
	}
	if budget.TotalCents > 0 {
		util.Percentage = float64(budget.SpentCents) / float64(budget.TotalCents) * 100
	}

	since := s.now().AddDate(0, 0, -burnRateWindowDays)
	series, err := s.budgets.DailyDeductionTotals(ctx, tenantID, budgetID, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "burn rate computation failed")
	}
	if len(series) > 0 {
		var total int64
		for _, day := range series {
			total += day.TotalCents
		}
		util.BurnRateCents = total / burnRateWindowDays
	}
	return util, nil
}

// CreateAlert registers a utilization threshold on a budget.
func (s *BudgetService) CreateAlert(ctx context.Context, tenantID, budgetID string, input CreateBudgetAlertInput) (*models.BudgetAlert, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid alert request")
	}
	if input.ThresholdPercent == nil && input.ThresholdCents == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either threshold_percent or threshold_cents is required")
	}
	if _, err := s.Get(ctx, tenantID, budgetID); err != nil {
		return nil, err
	}
	alert := &models.BudgetAlert{
		TenantID:         tenantID,
		BudgetID:         budgetID,
		ThresholdPercent: input.ThresholdPercent,
		ThresholdCents:   input.ThresholdCents,
		Severity:         input.Severity,
	}
	if err := s.budgets.CreateAlert(ctx, alert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "alert create failed")
	}
	return alert, nil
}

// ListAlerts returns the alerts configured on one budget.
func (s *BudgetService) ListAlerts(ctx context.Context, tenantID, budgetID string) ([]models.BudgetAlert, error) {
	alerts, err := s.budgets.ListAlerts(ctx, tenantID, budgetID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "alert list failed")
	}
	return alerts, nil
}

// ResolveAlert clears a triggered alert so it can fire again.
func (s *BudgetService) ResolveAlert(ctx context.Context, tenantID, alertID string) error {
	if err := s.budgets.ResolveAlert(ctx, tenantID, alertID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "alert not found or not triggered")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "alert resolve failed")
	}
	return nil
}

// ListActive returns the tenant's ACTIVE budgets, used by the forecast sweep.
func (s *BudgetService) ListActive(ctx context.Context, tenantID string) ([]models.Budget, error) {
	budgets, err := s.budgets.ListActive(ctx, tenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "budget list failed")
	}
	return budgets, nil
}

// evaluateAlerts flips newly crossed thresholds and hands them to the
// dispatcher. Dispatch failures never affect the posted transaction.
func (s *BudgetService) evaluateAlerts(ctx context.Context, tenantID, budgetID string) {
	budget, err := s.budgets.FindByID(ctx, tenantID, budgetID)
	if err != nil {
		s.logger.Warn("alert evaluation skipped", zap.String("budget_id", budgetID), zap.Error(err))
		return
	}
	var pct float64
	if budget.TotalCents > 0 {
		pct = float64(budget.SpentCents) / float64(budget.TotalCents) * 100
	}
	triggered, err := s.budgets.TriggerCrossedAlerts(ctx, tenantID, budgetID, pct, budget.SpentCents)
	if err != nil {
		s.logger.Warn("alert trigger check failed", zap.String("budget_id", budgetID), zap.Error(err))
		return
	}
	for _, alert := range triggered {
		s.logger.Info("budget alert triggered",
			zap.String("alert_id", alert.ID),
			zap.String("budget_id", budgetID),
			zap.String("severity", string(alert.Severity)))
		if s.alerts == nil {
			continue
		}
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    "budget_alert",
			Payload: alert,
		}
		if err := s.alerts.Enqueue(job); err != nil {
			s.logger.Warn("budget alert dispatch failed", zap.String("alert_id", alert.ID), zap.Error(err))
		}
	}
}
