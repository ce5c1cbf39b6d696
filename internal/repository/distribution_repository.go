package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/recruitos/vendor-engine/internal/models"
)

// ErrExclusiveHeld marks a create rejected because the job already has a live
// exclusive distribution.
var ErrExclusiveHeld = fmt.Errorf("exclusive distribution already held")

// DistributionRepository persists job distributions and their submissions.
type DistributionRepository struct {
	db *sqlx.DB
}

// NewDistributionRepository creates a new distribution repository.
func NewDistributionRepository(db *sqlx.DB) *DistributionRepository {
	return &DistributionRepository{db: db}
}

const distributionColumns = `id, tenant_id, job_id, agency_id, tier, status, exclusive_until,
        max_candidates, submitted_count, accepted_count, rejected_count, created_at, updated_at`

// distributionsLiveExclusiveIdx is the partial unique index on
// (tenant_id, job_id) WHERE tier = 'EXCLUSIVE' AND status IN ('PENDING',
// 'ACTIVE'). It is the authoritative guard on one live exclusive per job.
const distributionsLiveExclusiveIdx = "distributions_live_exclusive_idx"

// Create inserts a distribution. The NOT EXISTS on live exclusive rows
// rejects a second EXCLUSIVE for the job cheaply, but under READ COMMITTED two
// racing creates can both pass it; the partial unique index catches the loser
// and its violation comes back as ErrExclusiveHeld. The unique index on
// (tenant_id, job_id, agency_id) rejects duplicate pairs as ErrUniqueViolation.
func (r *DistributionRepository) Create(ctx context.Context, dist *models.Distribution) error {
	if dist.ID == "" {
		dist.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	dist.CreatedAt = now
	dist.UpdatedAt = now

	const query = `INSERT INTO distributions (id, tenant_id, job_id, agency_id, tier, status, exclusive_until,
                max_candidates, submitted_count, accepted_count, rejected_count, created_at, updated_at)
        SELECT $1, $2, $3, $4, $5, $6, $7, $8, 0, 0, 0, $9, $9
        WHERE $5 <> 'EXCLUSIVE' OR NOT EXISTS (
                SELECT 1 FROM distributions
                WHERE tenant_id = $2 AND job_id = $3 AND tier = 'EXCLUSIVE' AND status IN ('PENDING', 'ACTIVE')
        )`
	result, err := r.db.ExecContext(ctx, query,
		dist.ID, dist.TenantID, dist.JobID, dist.AgencyID, dist.Tier, dist.Status,
		dist.ExclusiveUntil, dist.MaxCandidates, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation && pqErr.Constraint == distributionsLiveExclusiveIdx {
			return ErrExclusiveHeld
		}
		return fmt.Errorf("create distribution: %w", translateConstraint(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create distribution rows: %w", err)
	}
	if rows == 0 {
		return ErrExclusiveHeld
	}
	return nil
}

// FindByID returns one distribution.
func (r *DistributionRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Distribution, error) {
	query := fmt.Sprintf(`SELECT %s FROM distributions WHERE tenant_id = $1 AND id = $2`, distributionColumns)
	var dist models.Distribution
	if err := r.db.GetContext(ctx, &dist, query, tenantID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find distribution: %w", err)
	}
	return &dist, nil
}

// List returns distributions matching the filter.
func (r *DistributionRepository) List(ctx context.Context, tenantID string, filter models.DistributionFilter) ([]models.Distribution, error) {
	query := fmt.Sprintf(`SELECT %s FROM distributions WHERE tenant_id = $1`, distributionColumns)
	args := []interface{}{tenantID}
	if filter.JobID != "" {
		query += fmt.Sprintf(" AND job_id = $%d", len(args)+1)
		args = append(args, filter.JobID)
	}
	if filter.AgencyID != "" {
		query += fmt.Sprintf(" AND agency_id = $%d", len(args)+1)
		args = append(args, filter.AgencyID)
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	query += " ORDER BY created_at DESC"
	var dists []models.Distribution
	if err := r.db.SelectContext(ctx, &dists, query, args...); err != nil {
		return nil, fmt.Errorf("list distributions: %w", err)
	}
	return dists, nil
}

// UpdateStatus moves a distribution to next, guarded by the expected current
// status so concurrent transitions cannot interleave. Zero rows means the
// distribution moved on since it was read.
func (r *DistributionRepository) UpdateStatus(ctx context.Context, tenantID, id string, current, next models.DistributionStatus) error {
	const query = `UPDATE distributions SET status = $1, updated_at = $2
        WHERE tenant_id = $3 AND id = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, next, time.Now().UTC(), tenantID, id, current)
	if err != nil {
		return fmt.Errorf("update distribution status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update distribution status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReserveSubmission increments submitted_count while the cap still has room,
// auto-completing the distribution when the increment fills it. The guard and
// increment are a single statement: two racing submissions cannot both take
// the last slot. Zero rows means no reservation was made.
func (r *DistributionRepository) ReserveSubmission(ctx context.Context, tenantID, id string) (*models.Distribution, error) {
	query := fmt.Sprintf(`UPDATE distributions
        SET submitted_count = submitted_count + 1,
            status = CASE WHEN max_candidates IS NOT NULL AND submitted_count + 1 >= max_candidates
                     THEN 'COMPLETED' ELSE status END,
            updated_at = $1
        WHERE tenant_id = $2 AND id = $3 AND status = 'ACTIVE'
          AND (max_candidates IS NULL OR submitted_count < max_candidates)
        RETURNING %s`, distributionColumns)
	var dist models.Distribution
	if err := r.db.GetContext(ctx, &dist, query, time.Now().UTC(), tenantID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("reserve submission: %w", err)
	}
	return &dist, nil
}

// ReleaseReservation hands back a cap slot taken by ReserveSubmission when a
// later step of the submission fails. An auto-completion caused by that
// reservation is reverted to ACTIVE; a manually completed distribution is
// left alone because its count sits at or above the cap after the decrement.
func (r *DistributionRepository) ReleaseReservation(ctx context.Context, tenantID, id string) error {
	const query = `UPDATE distributions
        SET submitted_count = submitted_count - 1,
            status = CASE WHEN status = 'COMPLETED' AND max_candidates IS NOT NULL
                     AND submitted_count - 1 < max_candidates THEN 'ACTIVE' ELSE status END,
            updated_at = $1
        WHERE tenant_id = $2 AND id = $3 AND submitted_count > 0`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), tenantID, id)
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release reservation rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateSubmission records a candidate submission row.
func (r *DistributionRepository) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, tenant_id, distribution_id, candidate_id, agency_id, job_id, submitted_at)
        VALUES (:id, :tenant_id, :distribution_id, :candidate_id, :agency_id, :job_id, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("create submission: %w", translateConstraint(err))
	}
	return nil
}

// CloseForJob completes every live distribution of a closed job.
func (r *DistributionRepository) CloseForJob(ctx context.Context, tenantID, jobID string) (int64, error) {
	const query = `UPDATE distributions SET status = 'COMPLETED', updated_at = $1
        WHERE tenant_id = $2 AND job_id = $3 AND status IN ('PENDING', 'ACTIVE', 'PAUSED')`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), tenantID, jobID)
	if err != nil {
		return 0, fmt.Errorf("close distributions for job: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("close distributions rows: %w", err)
	}
	return rows, nil
}
