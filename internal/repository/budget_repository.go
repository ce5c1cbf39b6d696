package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/recruitos/vendor-engine/internal/models"
)

// Guard failures the budget service maps onto the business taxonomy.
var (
	ErrInsufficientFunds = errors.New("insufficient remaining budget")
	ErrBudgetUnavailable = errors.New("budget locked or closed")
)

// BudgetRepository owns the hierarchical budget tree and its append-only
// transaction log. Every mutation is a guarded single-statement
// check-and-update inside one database transaction; remaining amounts are
// never computed in application code and written back.
type BudgetRepository struct {
	db *sqlx.DB
}

// NewBudgetRepository creates a new budget repository.
func NewBudgetRepository(db *sqlx.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

const budgetColumns = `id, tenant_id, parent_id, level, path, name, currency, total_cents,
        allocated_cents, spent_cents, remaining_cents, period_start, period_end, status, locked,
        version, created_at, updated_at`

// Create inserts a budget node, deriving level and materialized path from the
// parent inside one transaction so a concurrent parent move cannot produce a
// dangling path.
func (r *BudgetRepository) Create(ctx context.Context, budget *models.Budget) error {
	if budget.ID == "" {
		budget.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	budget.CreatedAt = now
	budget.UpdatedAt = now
	budget.RemainingCents = budget.TotalCents - budget.SpentCents

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create budget: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if budget.ParentID != nil {
		var parent models.Budget
		query := fmt.Sprintf(`SELECT %s FROM budgets WHERE tenant_id = $1 AND id = $2`, budgetColumns)
		if err := tx.GetContext(ctx, &parent, query, budget.TenantID, *budget.ParentID); err != nil {
			if err == sql.ErrNoRows {
				return err
			}
			return fmt.Errorf("load parent budget: %w", err)
		}
		budget.Level = parent.Level + 1
		budget.Path = parent.Path + "/" + budget.ID
	} else {
		budget.Level = 0
		budget.Path = "/" + budget.ID
	}

	const insert = `INSERT INTO budgets (id, tenant_id, parent_id, level, path, name, currency, total_cents,
                allocated_cents, spent_cents, remaining_cents, period_start, period_end, status, locked,
                version, created_at, updated_at)
        VALUES (:id, :tenant_id, :parent_id, :level, :path, :name, :currency, :total_cents,
                :allocated_cents, :spent_cents, :remaining_cents, :period_start, :period_end, :status, :locked,
                0, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, budget); err != nil {
		return fmt.Errorf("create budget: %w", translateConstraint(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create budget: %w", err)
	}
	return nil
}

// FindByID returns one budget node.
func (r *BudgetRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Budget, error) {
	query := fmt.Sprintf(`SELECT %s FROM budgets WHERE tenant_id = $1 AND id = $2`, budgetColumns)
	var budget models.Budget
	if err := r.db.GetContext(ctx, &budget, query, tenantID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find budget: %w", err)
	}
	return &budget, nil
}

// ListActive returns the ACTIVE budgets of a tenant, used by the forecast
// sweep.
func (r *BudgetRepository) ListActive(ctx context.Context, tenantID string) ([]models.Budget, error) {
	query := fmt.Sprintf(`SELECT %s FROM budgets WHERE tenant_id = $1 AND status = 'ACTIVE' ORDER BY path`, budgetColumns)
	var budgets []models.Budget
	if err := r.db.SelectContext(ctx, &budgets, query, tenantID); err != nil {
		return nil, fmt.Errorf("list active budgets: %w", err)
	}
	return budgets, nil
}

// chainUnavailable reports whether the budget or any ancestor on its path is
// locked or CLOSED. The materialized path turns the ancestor walk into one
// indexed IN query.
func chainUnavailable(ctx context.Context, q sqlx.QueryerContext, tenantID, path string) (bool, error) {
	ids := strings.Split(strings.Trim(path, "/"), "/")
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids)+1)
	args[0] = tenantID
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args[i+1] = id
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM budgets
        WHERE tenant_id = $1 AND id IN (%s) AND (locked OR status = 'CLOSED')`, strings.Join(placeholders, ","))
	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, args...); err != nil {
		return false, fmt.Errorf("check budget chain: %w", err)
	}
	return count > 0, nil
}

// PostDeduction atomically spends against a budget. The remaining-amount
// guard lives in the UPDATE itself, so two concurrent deductions can never
// both pass the check and jointly overdraw. Returns ErrBudgetUnavailable when
// the node or an ancestor is locked/CLOSED and ErrInsufficientFunds when the
// guard rejects the amount.
func (r *BudgetRepository) PostDeduction(ctx context.Context, tenantID, budgetID string, amountCents int64, sourceType, sourceID, note string) (*models.BudgetTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin deduction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var path string
	if err := tx.GetContext(ctx, &path, `SELECT path FROM budgets WHERE tenant_id = $1 AND id = $2`, tenantID, budgetID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("load budget path: %w", err)
	}
	unavailable, err := chainUnavailable(ctx, tx, tenantID, path)
	if err != nil {
		return nil, err
	}
	if unavailable {
		return nil, ErrBudgetUnavailable
	}

	const update = `UPDATE budgets
        SET spent_cents = spent_cents + $1,
            remaining_cents = remaining_cents - $1,
            status = CASE WHEN remaining_cents - $1 = 0 THEN 'DEPLETED' ELSE status END,
            version = version + 1,
            updated_at = $2
        WHERE tenant_id = $3 AND id = $4 AND status = 'ACTIVE' AND NOT locked AND remaining_cents >= $1
        RETURNING remaining_cents`
	var balance int64
	if err := tx.GetContext(ctx, &balance, update, amountCents, time.Now().UTC(), tenantID, budgetID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("apply deduction: %w", err)
	}

	txn := &models.BudgetTransaction{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		BudgetID:     budgetID,
		Type:         models.TxnDeduction,
		AmountCents:  amountCents,
		BalanceCents: balance,
		SourceType:   sourceType,
		SourceID:     sourceID,
		Note:         note,
		CreatedAt:    time.Now().UTC(),
	}
	if err := insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit deduction: %w", err)
	}
	return txn, nil
}

// PostRefund reverses spend. Guarded so spent never goes negative; a refund
// on a DEPLETED budget reactivates it.
func (r *BudgetRepository) PostRefund(ctx context.Context, tenantID, budgetID string, amountCents int64, sourceType, sourceID, note string) (*models.BudgetTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin refund: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE budgets
        SET spent_cents = spent_cents - $1,
            remaining_cents = remaining_cents + $1,
            status = CASE WHEN status = 'DEPLETED' THEN 'ACTIVE' ELSE status END,
            version = version + 1,
            updated_at = $2
        WHERE tenant_id = $3 AND id = $4 AND status IN ('ACTIVE', 'DEPLETED') AND NOT locked AND spent_cents >= $1
        RETURNING remaining_cents`
	var balance int64
	if err := tx.GetContext(ctx, &balance, update, amountCents, time.Now().UTC(), tenantID, budgetID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("apply refund: %w", err)
	}

	txn := &models.BudgetTransaction{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		BudgetID:     budgetID,
		Type:         models.TxnRefund,
		AmountCents:  amountCents,
		BalanceCents: balance,
		SourceType:   sourceType,
		SourceID:     sourceID,
		Note:         note,
		CreatedAt:    time.Now().UTC(),
	}
	if err := insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit refund: %w", err)
	}
	return txn, nil
}

// PostAdjustment moves total_cents up or down. The guard keeps remaining
// non-negative: an adjustment can never cut total below what is already
// spent.
func (r *BudgetRepository) PostAdjustment(ctx context.Context, tenantID, budgetID string, amountCents int64, sourceType, sourceID, note string) (*models.BudgetTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin adjustment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE budgets
        SET total_cents = total_cents + $1,
            remaining_cents = remaining_cents + $1,
            version = version + 1,
            updated_at = $2
        WHERE tenant_id = $3 AND id = $4 AND NOT locked AND status NOT IN ('CLOSED')
          AND total_cents + $1 >= spent_cents
        RETURNING remaining_cents`
	var balance int64
	if err := tx.GetContext(ctx, &balance, update, amountCents, time.Now().UTC(), tenantID, budgetID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("apply adjustment: %w", err)
	}

	txn := &models.BudgetTransaction{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		BudgetID:     budgetID,
		Type:         models.TxnAdjustment,
		AmountCents:  amountCents,
		BalanceCents: balance,
		SourceType:   sourceType,
		SourceID:     sourceID,
		Note:         note,
		CreatedAt:    time.Now().UTC(),
	}
	if err := insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit adjustment: %w", err)
	}
	return txn, nil
}

// Transfer debits one budget and credits another as a single database
// transaction; either both legs apply or neither. Rows are updated in id
// order to keep concurrent opposing transfers deadlock-free.
func (r *BudgetRepository) Transfer(ctx context.Context, tenantID, fromID, toID string, amountCents int64, sourceType, sourceID, note string) (*models.BudgetTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	for _, id := range []string{first, second} {
		var path string
		if err := tx.GetContext(ctx, &path, `SELECT path FROM budgets WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id); err != nil {
			if err == sql.ErrNoRows {
				return nil, err
			}
			return nil, fmt.Errorf("lock budget %s: %w", id, err)
		}
		unavailable, err := chainUnavailable(ctx, tx, tenantID, path)
		if err != nil {
			return nil, err
		}
		if unavailable {
			return nil, ErrBudgetUnavailable
		}
	}

	const debit = `UPDATE budgets
        SET total_cents = total_cents - $1, remaining_cents = remaining_cents - $1,
            version = version + 1, updated_at = $2
        WHERE tenant_id = $3 AND id = $4 AND remaining_cents >= $1
        RETURNING remaining_cents`
	var fromBalance int64
	if err := tx.GetContext(ctx, &fromBalance, debit, amountCents, time.Now().UTC(), tenantID, fromID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("debit transfer: %w", err)
	}

	const credit = `UPDATE budgets
        SET total_cents = total_cents + $1, remaining_cents = remaining_cents + $1,
            version = version + 1, updated_at = $2
        WHERE tenant_id = $3 AND id = $4
        RETURNING remaining_cents`
	var toBalance int64
	if err := tx.GetContext(ctx, &toBalance, credit, amountCents, time.Now().UTC(), tenantID, toID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("credit transfer: %w", err)
	}

	now := time.Now().UTC()
	out := &models.BudgetTransaction{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		BudgetID:       fromID,
		Type:           models.TxnTransfer,
		AmountCents:    -amountCents,
		BalanceCents:   fromBalance,
		SourceType:     sourceType,
		SourceID:       sourceID,
		CounterpartyID: &toID,
		Note:           note,
		CreatedAt:      now,
	}
	in := &models.BudgetTransaction{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		BudgetID:       toID,
		Type:           models.TxnTransfer,
		AmountCents:    amountCents,
		BalanceCents:   toBalance,
		SourceType:     sourceType,
		SourceID:       sourceID,
		CounterpartyID: &fromID,
		Note:           note,
		CreatedAt:      now,
	}
	if err := insertTransaction(ctx, tx, out); err != nil {
		return nil, err
	}
	if err := insertTransaction(ctx, tx, in); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transfer: %w", err)
	}
	return out, nil
}

// CreateAllocation earmarks budget capacity for a target. The guard compares
// against the budget's remaining capacity at allocation time only; existing
// allocations are not re-validated later (see DESIGN.md).
func (r *BudgetRepository) CreateAllocation(ctx context.Context, alloc *models.BudgetAllocation) (*models.BudgetTransaction, error) {
	if alloc.ID == "" {
		alloc.ID = uuid.NewString()
	}
	alloc.RemainingCents = alloc.AllocatedCents - alloc.SpentCents
	alloc.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin allocation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE budgets
        SET allocated_cents = allocated_cents + $1, version = version + 1, updated_at = $2
        WHERE tenant_id = $3 AND id = $4 AND status = 'ACTIVE' AND NOT locked
          AND remaining_cents - allocated_cents >= $1
        RETURNING remaining_cents`
	var balance int64
	if err := tx.GetContext(ctx, &balance, update, alloc.AllocatedCents, time.Now().UTC(), alloc.TenantID, alloc.BudgetID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("reserve allocation: %w", err)
	}

	const insert = `INSERT INTO budget_allocations (id, tenant_id, budget_id, target_type, target_id,
                allocated_cents, spent_cents, remaining_cents, created_at)
        VALUES (:id, :tenant_id, :budget_id, :target_type, :target_id,
                :allocated_cents, :spent_cents, :remaining_cents, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, alloc); err != nil {
		return nil, fmt.Errorf("create allocation: %w", translateConstraint(err))
	}

	txn := &models.BudgetTransaction{
		ID:           uuid.NewString(),
		TenantID:     alloc.TenantID,
		BudgetID:     alloc.BudgetID,
		Type:         models.TxnAllocation,
		AmountCents:  alloc.AllocatedCents,
		BalanceCents: balance,
		SourceType:   alloc.TargetType,
		SourceID:     alloc.TargetID,
		Note:         "allocation earmark",
		CreatedAt:    alloc.CreatedAt,
	}
	if err := insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit allocation: %w", err)
	}
	return txn, nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, txn *models.BudgetTransaction) error {
	const query = `INSERT INTO budget_transactions (id, tenant_id, budget_id, type, amount_cents,
                balance_cents, source_type, source_id, counterparty_budget_id, note, created_at)
        VALUES (:id, :tenant_id, :budget_id, :type, :amount_cents,
                :balance_cents, :source_type, :source_id, :counterparty_budget_id, :note, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, txn); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the ledger entries of one budget, newest first.
func (r *BudgetRepository) ListTransactions(ctx context.Context, tenantID, budgetID string, limit int) ([]models.BudgetTransaction, error) {
	query := `SELECT id, tenant_id, budget_id, type, amount_cents, balance_cents, source_type,
                source_id, counterparty_budget_id, note, created_at
        FROM budget_transactions WHERE tenant_id = $1 AND budget_id = $2 ORDER BY created_at DESC`
	args := []interface{}{tenantID, budgetID}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}
	var txns []models.BudgetTransaction
	if err := r.db.SelectContext(ctx, &txns, query, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// DailyDeductionTotals sums DEDUCTION amounts per day since the given time,
// the input series for burn rate and forecasting.
func (r *BudgetRepository) DailyDeductionTotals(ctx context.Context, tenantID, budgetID string, since time.Time) ([]models.DailySpend, error) {
	const query = `SELECT date_trunc('day', created_at) AS day, SUM(amount_cents) AS total_cents
        FROM budget_transactions
        WHERE tenant_id = $1 AND budget_id = $2 AND type = 'DEDUCTION' AND created_at >= $3
        GROUP BY 1 ORDER BY 1`
	var series []models.DailySpend
	if err := r.db.SelectContext(ctx, &series, query, tenantID, budgetID, since); err != nil {
		return nil, fmt.Errorf("daily deduction totals: %w", err)
	}
	return series, nil
}

// CreateAlert registers a utilization threshold.
func (r *BudgetRepository) CreateAlert(ctx context.Context, alert *models.BudgetAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	alert.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO budget_alerts (id, tenant_id, budget_id, threshold_percent, threshold_cents,
                severity, is_triggered, created_at)
        VALUES (:id, :tenant_id, :budget_id, :threshold_percent, :threshold_cents,
                :severity, false, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("create budget alert: %w", translateConstraint(err))
	}
	return nil
}

// ListAlerts returns the alerts configured on one budget.
func (r *BudgetRepository) ListAlerts(ctx context.Context, tenantID, budgetID string) ([]models.BudgetAlert, error) {
	const query = `SELECT id, tenant_id, budget_id, threshold_percent, threshold_cents, severity,
                is_triggered, triggered_at, resolved_at, created_at
        FROM budget_alerts WHERE tenant_id = $1 AND budget_id = $2 ORDER BY created_at`
	var alerts []models.BudgetAlert
	if err := r.db.SelectContext(ctx, &alerts, query, tenantID, budgetID); err != nil {
		return nil, fmt.Errorf("list budget alerts: %w", err)
	}
	return alerts, nil
}

// TriggerCrossedAlerts flips untriggered alerts whose threshold the given
// utilization has now crossed, returning only the newly triggered rows. The
// is_triggered predicate makes this an upward-crossing edge, not a level
// check: an alert fires once and stays until explicitly resolved.
func (r *BudgetRepository) TriggerCrossedAlerts(ctx context.Context, tenantID, budgetID string, utilizationPct float64, spentCents int64) ([]models.BudgetAlert, error) {
	const query = `UPDATE budget_alerts
        SET is_triggered = true, triggered_at = $1
        WHERE tenant_id = $2 AND budget_id = $3 AND NOT is_triggered
          AND ((threshold_percent IS NOT NULL AND $4 >= threshold_percent)
            OR (threshold_cents IS NOT NULL AND $5 >= threshold_cents))
        RETURNING id, tenant_id, budget_id, threshold_percent, threshold_cents, severity,
                is_triggered, triggered_at, resolved_at, created_at`
	rows, err := r.db.QueryxContext(ctx, query, time.Now().UTC(), tenantID, budgetID, utilizationPct, spentCents)
	if err != nil {
		return nil, fmt.Errorf("trigger budget alerts: %w", err)
	}
	defer rows.Close()
	var alerts []models.BudgetAlert
	for rows.Next() {
		var alert models.BudgetAlert
		if err := rows.StructScan(&alert); err != nil {
			return nil, fmt.Errorf("scan triggered alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// ResolveAlert clears a triggered alert so it can fire again on the next
// upward crossing.
func (r *BudgetRepository) ResolveAlert(ctx context.Context, tenantID, alertID string) error {
	const query = `UPDATE budget_alerts SET is_triggered = false, resolved_at = $1, triggered_at = NULL
        WHERE tenant_id = $2 AND id = $3 AND is_triggered`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), tenantID, alertID)
	if err != nil {
		return fmt.Errorf("resolve budget alert: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve budget alert rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
