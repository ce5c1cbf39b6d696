package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/internal/repository"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
	"github.com/recruitos/vendor-engine/pkg/jobs"
)

type budgetRepoStub struct {
	budget    *models.Budget
	deductErr error
	daily     []models.DailySpend
	triggered []models.BudgetAlert

	deductions []int64
	transfers  []int64
}

func (s *budgetRepoStub) Create(ctx context.Context, budget *models.Budget) error {
	budget.ID = "budget-1"
	budget.Path = "/budget-1"
	return nil
}

func (s *budgetRepoStub) FindByID(ctx context.Context, tenantID, id string) (*models.Budget, error) {
	if s.budget == nil {
		return nil, sql.ErrNoRows
	}
	found := *s.budget
	return &found, nil
}

func (s *budgetRepoStub) ListActive(ctx context.Context, tenantID string) ([]models.Budget, error) {
	if s.budget == nil {
		return nil, nil
	}
	return []models.Budget{*s.budget}, nil
}

func (s *budgetRepoStub) apply(amount int64) (*models.BudgetTransaction, error) {
	if s.deductErr != nil {
		return nil, s.deductErr
	}
	s.budget.SpentCents += amount
	s.budget.RemainingCents -= amount
	s.deductions = append(s.deductions, amount)
	return &models.BudgetTransaction{
		ID:           "txn-1",
		BudgetID:     s.budget.ID,
		AmountCents:  amount,
		BalanceCents: s.budget.RemainingCents,
	}, nil
}

func (s *budgetRepoStub) PostDeduction(ctx context.Context, tenantID, budgetID string, amountCents int64, sourceType, sourceID, note string) (*models.BudgetTransaction, error) {
	return s.apply(amountCents)
}

func (s *budgetRepoStub) PostRefund(ctx context.Context, tenantID, budgetID string, amountCents int64, sourceType, sourceID, note string) (*models.BudgetTransaction, error) {
	return s.apply(-amountCents)
}

func (s *budgetRepoStub) PostAdjustment(ctx context.Context, tenantID, budgetID string, amountCents int64, sourceType, sourceID, note string) (*models.BudgetTransaction, error) {
	return s.apply(0)
}

func (s *budgetRepoStub) Transfer(ctx context.Context, tenantID, fromID, toID string, amountCents int64, sourceType, sourceID, note string) (*models.BudgetTransaction, error) {
	if s.deductErr != nil {
		return nil, s.deductErr
	}
	s.transfers = append(s.transfers, amountCents)
	return &models.BudgetTransaction{ID: "txn-transfer", AmountCents: amountCents}, nil
}

func (s *budgetRepoStub) CreateAllocation(ctx context.Context, alloc *models.BudgetAllocation) (*models.BudgetTransaction, error) {
	if s.deductErr != nil {
		return nil, s.deductErr
	}
	alloc.ID = "alloc-1"
	return &models.BudgetTransaction{ID: "txn-alloc"}, nil
}

func (s *budgetRepoStub) ListTransactions(ctx context.Context, tenantID, budgetID string, limit int) ([]models.BudgetTransaction, error) {
	return nil, nil
}

func (s *budgetRepoStub) DailyDeductionTotals(ctx context.Context, tenantID, budgetID string, since time.Time) ([]models.DailySpend, error) {
	return s.daily, nil
}

func (s *budgetRepoStub) CreateAlert(ctx context.Context, alert *models.BudgetAlert) error {
	alert.ID = "alert-1"
	return nil
}

func (s *budgetRepoStub) ListAlerts(ctx context.Context, tenantID, budgetID string) ([]models.BudgetAlert, error) {
	return nil, nil
}

func (s *budgetRepoStub) TriggerCrossedAlerts(ctx context.Context, tenantID, budgetID string, utilizationPct float64, spentCents int64) ([]models.BudgetAlert, error) {
	out := s.triggered
	s.triggered = nil
	return out, nil
}

func (s *budgetRepoStub) ResolveAlert(ctx context.Context, tenantID, alertID string) error {
	return nil
}

type dispatcherStub struct {
	enqueued []jobs.Job
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	d.enqueued = append(d.enqueued, job)
	return nil
}

func testBudget(totalCents, spentCents int64) *models.Budget {
	return &models.Budget{
		ID:             "budget-1",
		TenantID:       "t1",
		Path:           "/budget-1",
		Currency:       "EUR",
		TotalCents:     totalCents,
		SpentCents:     spentCents,
		RemainingCents: totalCents - spentCents,
		Status:         models.BudgetActive,
	}
}

func deductionInput(amount int64) PostTransactionInput {
	return PostTransactionInput{
		Type:        models.TxnDeduction,
		AmountCents: amount,
		SourceType:  "PLACEMENT_FEE",
		SourceID:    "fee-1",
	}
}

func TestPostTransactionOverdrawMapsToBudgetExceeded(t *testing.T) {
	repo := &budgetRepoStub{budget: testBudget(1000000, 950000), deductErr: repository.ErrInsufficientFunds}
	svc := NewBudgetService(repo, nil, nil)

	_, err := svc.PostTransaction(context.Background(), "t1", "budget-1", deductionInput(60000))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBudgetExceeded.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deductions)
}

func TestPostTransactionWithinRemaining(t *testing.T) {
	repo := &budgetRepoStub{budget: testBudget(1000000, 950000)}
	svc := NewBudgetService(repo, nil, nil)

	txn, err := svc.PostTransaction(context.Background(), "t1", "budget-1", deductionInput(40000))
	require.NoError(t, err)
	assert.EqualValues(t, 10000, txn.BalanceCents)
}

func TestPostTransactionLockedBudget(t *testing.T) {
	repo := &budgetRepoStub{budget: testBudget(1000000, 0), deductErr: repository.ErrBudgetUnavailable}
	svc := NewBudgetService(repo, nil, nil)

	_, err := svc.PostTransaction(context.Background(), "t1", "budget-1", deductionInput(100))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBudgetLocked.Code, appErrors.FromError(err).Code)
}

func TestPostTransactionTransferRequiresCounterparty(t *testing.T) {
	svc := NewBudgetService(&budgetRepoStub{budget: testBudget(1000, 0)}, nil, nil)

	_, err := svc.PostTransaction(context.Background(), "t1", "budget-1", PostTransactionInput{
		Type:        models.TxnTransfer,
		AmountCents: 100,
		SourceType:  "MANUAL",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPostTransactionCounterpartyForbiddenOutsideTransfer(t *testing.T) {
	svc := NewBudgetService(&budgetRepoStub{budget: testBudget(1000, 0)}, nil, nil)

	input := deductionInput(100)
	input.CounterpartyBudgetID = "6b4f6a1e-0000-4000-8000-000000000030"
	_, err := svc.PostTransaction(context.Background(), "t1", "budget-1", input)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPostTransactionSelfTransferRejected(t *testing.T) {
	svc := NewBudgetService(&budgetRepoStub{budget: testBudget(1000, 0)}, nil, nil)

	_, err := svc.PostTransaction(context.Background(), "t1", "6b4f6a1e-0000-4000-8000-000000000031", PostTransactionInput{
		Type:                 models.TxnTransfer,
		AmountCents:          100,
		SourceType:           "MANUAL",
		CounterpartyBudgetID: "6b4f6a1e-0000-4000-8000-000000000031",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPostTransactionNonPositiveAmount(t *testing.T) {
	svc := NewBudgetService(&budgetRepoStub{budget: testBudget(1000, 0)}, nil, nil)
	_, err := svc.PostTransaction(context.Background(), "t1", "budget-1", deductionInput(-5))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeductionTriggersCrossedAlerts(t *testing.T) {
	repo := &budgetRepoStub{
		budget: testBudget(1000000, 740000),
		triggered: []models.BudgetAlert{
			{ID: "alert-1", BudgetID: "budget-1", Severity: models.SeverityWarning, IsTriggered: true},
		},
	}
	dispatcher := &dispatcherStub{}
	svc := NewBudgetService(repo, dispatcher, nil)

	_, err := svc.PostTransaction(context.Background(), "t1", "budget-1", deductionInput(20000))
	require.NoError(t, err)
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, "budget_alert", dispatcher.enqueued[0].Type)
}

func TestRefundDoesNotTriggerAlerts(t *testing.T) {
	repo := &budgetRepoStub{
		budget:    testBudget(1000000, 800000),
		triggered: []models.BudgetAlert{{ID: "alert-1"}},
	}
	dispatcher := &dispatcherStub{}
	svc := NewBudgetService(repo, dispatcher, nil)

	_, err := svc.PostTransaction(context.Background(), "t1", "budget-1", PostTransactionInput{
		Type:        models.TxnRefund,
		AmountCents: 5000,
		SourceType:  "MANUAL",
	})
	require.NoError(t, err)
	assert.Empty(t, dispatcher.enqueued)
}

func TestUtilizationSummary(t *testing.T) {
	repo := &budgetRepoStub{
		budget: testBudget(1000000, 750000),
		daily: []models.DailySpend{
			{TotalCents: 30000},
			{TotalCents: 30000},
			{TotalCents: 30000},
		},
	}
	svc := NewBudgetService(repo, nil, nil)

	util, err := svc.Utilization(context.Background(), "t1", "budget-1")
	require.NoError(t, err)
	assert.InDelta(t, 75.0, util.Percentage, 1e-9)
	assert.EqualValues(t, 250000, util.RemainingCents)
	assert.False(t, util.IsOverBudget)
	// 90,000 over the 30-day window.
	assert.EqualValues(t, 3000, util.BurnRateCents)
}

func TestCreateAlertRequiresAThreshold(t *testing.T) {
	svc := NewBudgetService(&budgetRepoStub{budget: testBudget(1000, 0)}, nil, nil)
	_, err := svc.CreateAlert(context.Background(), "t1", "budget-1", CreateBudgetAlertInput{
		Severity: models.SeverityWarning,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateBudgetValidatesPeriod(t *testing.T) {
	svc := NewBudgetService(&budgetRepoStub{}, nil, nil)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), "t1", CreateBudgetInput{
		Name:        "Q3 hiring",
		Currency:    "EUR",
		TotalCents:  5000000,
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 0, -1),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
