package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/recruitos/vendor-engine/internal/models"
)

// JobRepository reads the job projection maintained by the posting subsystem.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// FindByID returns the job projection for matching and pricing.
func (r *JobRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Job, error) {
	const query = `SELECT id, tenant_id, title, category, seniority_level, country, region, city,
                compensation_cents, employment_type, status
        FROM jobs WHERE tenant_id = $1 AND id = $2`
	var job models.Job
	if err := r.db.GetContext(ctx, &job, query, tenantID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find job: %w", err)
	}
	return &job, nil
}
