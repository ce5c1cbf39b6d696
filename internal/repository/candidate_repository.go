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

// CandidateRepository handles candidate persistence and identity lookups.
type CandidateRepository struct {
	db *sqlx.DB
}

// NewCandidateRepository creates a new candidate repository.
func NewCandidateRepository(db *sqlx.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

const candidateColumns = `id, tenant_id, email, normalized_email, phone, normalized_phone,
        linkedin_url, normalized_linkedin, full_name, normalized_name, skills,
        years_experience, availability_date, created_at, updated_at`

// FindByNormalizedField looks up a candidate by one normalized identity
// column. Field must be one of the fixed column names below; it is never
// caller-supplied text.
func (r *CandidateRepository) FindByNormalizedField(ctx context.Context, tenantID, field, value string) (*models.Candidate, error) {
	switch field {
	case "normalized_email", "normalized_phone", "normalized_linkedin", "normalized_name":
	default:
		return nil, fmt.Errorf("unsupported identity field %q", field)
	}
	if value == "" {
		return nil, sql.ErrNoRows
	}
	query := fmt.Sprintf(`SELECT %s FROM candidates WHERE tenant_id = $1 AND %s = $2`, candidateColumns, field)
	var candidate models.Candidate
	if err := r.db.GetContext(ctx, &candidate, query, tenantID, value); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find candidate by %s: %w", field, err)
	}
	return &candidate, nil
}

// FindByID returns a candidate by primary key.
func (r *CandidateRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Candidate, error) {
	query := fmt.Sprintf(`SELECT %s FROM candidates WHERE tenant_id = $1 AND id = $2`, candidateColumns)
	var candidate models.Candidate
	if err := r.db.GetContext(ctx, &candidate, query, tenantID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find candidate: %w", err)
	}
	return &candidate, nil
}

// Create inserts a new candidate.
func (r *CandidateRepository) Create(ctx context.Context, candidate *models.Candidate) error {
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	candidate.CreatedAt = now
	candidate.UpdatedAt = now
	const query = `INSERT INTO candidates (id, tenant_id, email, normalized_email, phone, normalized_phone,
                linkedin_url, normalized_linkedin, full_name, normalized_name, skills,
                years_experience, availability_date, created_at, updated_at)
        VALUES (:id, :tenant_id, :email, :normalized_email, :phone, :normalized_phone,
                :linkedin_url, :normalized_linkedin, :full_name, :normalized_name, :skills,
                :years_experience, :availability_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, candidate); err != nil {
		return fmt.Errorf("create candidate: %w", translateConstraint(err))
	}
	return nil
}

// Enrich updates mutable profile fields. Identity columns are deliberately
// excluded: once a candidate is owned they never change.
func (r *CandidateRepository) Enrich(ctx context.Context, tenantID, id, skills string, yearsExperience int, availability *time.Time) error {
	const query = `UPDATE candidates
        SET skills = $1, years_experience = $2, availability_date = $3, updated_at = $4
        WHERE tenant_id = $5 AND id = $6`
	if _, err := r.db.ExecContext(ctx, query, skills, yearsExperience, availability, time.Now().UTC(), tenantID, id); err != nil {
		return fmt.Errorf("enrich candidate: %w", err)
	}
	return nil
}
