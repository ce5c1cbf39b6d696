package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/recruitos/vendor-engine/internal/models"
)

// FeeRepository persists immutable placement fee records.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository creates a new fee repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// Create inserts a placement fee record. Rows are never updated apart from
// linking the budget transaction produced by posting the fee.
func (r *FeeRepository) Create(ctx context.Context, fee *models.PlacementFee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	if fee.CalculatedAt.IsZero() {
		fee.CalculatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO placement_fees (id, tenant_id, agency_id, job_id, placement_id, rate_line_id,
                fee_type, compensation_cents, contract_type, fee_cents, currency, volume_discount_cents,
                budget_transaction_id, calculated_at)
        VALUES (:id, :tenant_id, :agency_id, :job_id, :placement_id, :rate_line_id,
                :fee_type, :compensation_cents, :contract_type, :fee_cents, :currency, :volume_discount_cents,
                :budget_transaction_id, :calculated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("create placement fee: %w", translateConstraint(err))
	}
	return nil
}

// FindByID returns one placement fee.
func (r *FeeRepository) FindByID(ctx context.Context, tenantID, id string) (*models.PlacementFee, error) {
	const query = `SELECT id, tenant_id, agency_id, job_id, placement_id, rate_line_id, fee_type,
                compensation_cents, contract_type, fee_cents, currency, volume_discount_cents,
                budget_transaction_id, calculated_at
        FROM placement_fees WHERE tenant_id = $1 AND id = $2`
	var fee models.PlacementFee
	if err := r.db.GetContext(ctx, &fee, query, tenantID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find placement fee: %w", err)
	}
	return &fee, nil
}

// LinkBudgetTransaction records the ledger entry a fee deduction produced.
func (r *FeeRepository) LinkBudgetTransaction(ctx context.Context, tenantID, feeID, transactionID string) error {
	const query = `UPDATE placement_fees SET budget_transaction_id = $1
        WHERE tenant_id = $2 AND id = $3 AND budget_transaction_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, transactionID, tenantID, feeID)
	if err != nil {
		return fmt.Errorf("link budget transaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("link budget transaction rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountPlacementsSince counts an agency's fees in the period, used for the
// volume discount threshold.
func (r *FeeRepository) CountPlacementsSince(ctx context.Context, tenantID, agencyID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM placement_fees
        WHERE tenant_id = $1 AND agency_id = $2 AND calculated_at >= $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, tenantID, agencyID, since); err != nil {
		return 0, fmt.Errorf("count placements: %w", err)
	}
	return count, nil
}
