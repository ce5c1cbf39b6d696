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

// OwnershipRepository persists candidate ownership records.
type OwnershipRepository struct {
	db *sqlx.DB
}

// NewOwnershipRepository creates a new ownership repository.
func NewOwnershipRepository(db *sqlx.DB) *OwnershipRepository {
	return &OwnershipRepository{db: db}
}

const ownershipColumns = `id, tenant_id, agency_id, candidate_id, originating_job_id,
        first_submitted_at, expires_at, active, released_at, release_reason`

// FindActiveByCandidate returns the unexpired active ownership record for a
// candidate, if any. Expiry is part of the predicate: a stale active flag on
// an expired row never counts.
func (r *OwnershipRepository) FindActiveByCandidate(ctx context.Context, tenantID, candidateID string, now time.Time) (*models.OwnershipRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM ownership_records
        WHERE tenant_id = $1 AND candidate_id = $2 AND active AND expires_at > $3`, ownershipColumns)
	var record models.OwnershipRecord
	if err := r.db.GetContext(ctx, &record, query, tenantID, candidateID, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active ownership: %w", err)
	}
	return &record, nil
}

// Claim atomically creates an ownership record. Within one transaction it
// first retires any expired-but-flagged record for the candidate, then
// inserts; the partial unique index on (tenant_id, candidate_id) WHERE active
// makes a concurrent claim surface as ErrUniqueViolation instead of a silent
// overwrite.
func (r *OwnershipRepository) Claim(ctx context.Context, record *models.OwnershipRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const retire = `UPDATE ownership_records SET active = false, released_at = $1, release_reason = 'EXPIRED'
        WHERE tenant_id = $2 AND candidate_id = $3 AND active AND expires_at <= $1`
	if _, err := tx.ExecContext(ctx, retire, record.FirstSubmittedAt, record.TenantID, record.CandidateID); err != nil {
		return fmt.Errorf("retire expired ownership: %w", err)
	}

	const insert = `INSERT INTO ownership_records (id, tenant_id, agency_id, candidate_id, originating_job_id,
                first_submitted_at, expires_at, active)
        VALUES (:id, :tenant_id, :agency_id, :candidate_id, :originating_job_id,
                :first_submitted_at, :expires_at, :active)`
	if _, err := tx.NamedExecContext(ctx, insert, record); err != nil {
		return fmt.Errorf("claim ownership: %w", translateConstraint(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit claim: %w", err)
	}
	return nil
}

// Release deactivates an ownership record after an explicit dispute
// resolution.
func (r *OwnershipRepository) Release(ctx context.Context, tenantID, id, reason string) error {
	const query = `UPDATE ownership_records SET active = false, released_at = $1, release_reason = $2
        WHERE tenant_id = $3 AND id = $4 AND active`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), reason, tenantID, id)
	if err != nil {
		return fmt.Errorf("release ownership: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release ownership rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeactivateExpired retires records past their expiry. Hygiene only: reads
// already exclude expired rows, so this sweep never gates correctness.
func (r *OwnershipRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE ownership_records SET active = false, released_at = $1, release_reason = 'EXPIRED'
        WHERE active AND expires_at <= $1`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired ownership: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate expired rows: %w", err)
	}
	return rows, nil
}
