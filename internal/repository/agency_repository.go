package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/recruitos/vendor-engine/internal/models"
)

// AgencyRepository exposes the specialization and coverage index plus the
// latest performance snapshots. Writes come from the agency-profile
// subsystem; the matching engine only reads.
type AgencyRepository struct {
	db *sqlx.DB
}

// NewAgencyRepository creates a new agency repository.
func NewAgencyRepository(db *sqlx.DB) *AgencyRepository {
	return &AgencyRepository{db: db}
}

// ListSpecializationsByCategory returns specializations overlapping a job
// category and seniority level, across all agencies of the tenant.
func (r *AgencyRepository) ListSpecializationsByCategory(ctx context.Context, tenantID, category string, seniorityLevel int) ([]models.Specialization, error) {
	const query = `SELECT id, tenant_id, agency_id, category, subcategory, seniority_min, seniority_max,
                years_experience, match_priority_weight, successful_placements, updated_at
        FROM agency_specializations
        WHERE tenant_id = $1 AND category = $2 AND seniority_min <= $3 AND seniority_max >= $3
        ORDER BY agency_id`
	var specs []models.Specialization
	if err := r.db.SelectContext(ctx, &specs, query, tenantID, category, seniorityLevel); err != nil {
		return nil, fmt.Errorf("list specializations: %w", err)
	}
	return specs, nil
}

// ListCoverageByAgencies returns geographic coverage keyed by agency.
func (r *AgencyRepository) ListCoverageByAgencies(ctx context.Context, tenantID string, agencyIDs []string) (map[string][]models.GeographicCoverage, error) {
	if len(agencyIDs) == 0 {
		return map[string][]models.GeographicCoverage{}, nil
	}
	placeholders := make([]string, len(agencyIDs))
	args := make([]interface{}, len(agencyIDs)+1)
	args[0] = tenantID
	for i, id := range agencyIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args[i+1] = id
	}
	query := fmt.Sprintf(`SELECT id, tenant_id, agency_id, country, region, city, radius_km, priority
        FROM agency_coverage WHERE tenant_id = $1 AND agency_id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list coverage: %w", err)
	}
	defer rows.Close()
	result := make(map[string][]models.GeographicCoverage, len(agencyIDs))
	for rows.Next() {
		var cov models.GeographicCoverage
		if err := rows.StructScan(&cov); err != nil {
			return nil, fmt.Errorf("scan coverage: %w", err)
		}
		result[cov.AgencyID] = append(result[cov.AgencyID], cov)
	}
	return result, nil
}

// LatestSnapshots returns the newest performance snapshot per agency.
func (r *AgencyRepository) LatestSnapshots(ctx context.Context, tenantID string, agencyIDs []string) (map[string]models.PerformanceSnapshot, error) {
	if len(agencyIDs) == 0 {
		return map[string]models.PerformanceSnapshot{}, nil
	}
	placeholders := make([]string, len(agencyIDs))
	args := make([]interface{}, len(agencyIDs)+1)
	args[0] = tenantID
	for i, id := range agencyIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args[i+1] = id
	}
	query := fmt.Sprintf(`SELECT DISTINCT ON (agency_id) id, tenant_id, agency_id, period, fill_rate,
                response_time_avg_hours, placement_rate, performance_score, performance_tier, captured_at
        FROM performance_snapshots
        WHERE tenant_id = $1 AND agency_id IN (%s)
        ORDER BY agency_id, captured_at DESC`, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("latest snapshots: %w", err)
	}
	defer rows.Close()
	result := make(map[string]models.PerformanceSnapshot, len(agencyIDs))
	for rows.Next() {
		var snap models.PerformanceSnapshot
		if err := rows.StructScan(&snap); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		result[snap.AgencyID] = snap
	}
	return result, nil
}

// ReplaceSpecializations swaps an agency's declared specializations in one
// transaction, used by the profile-sync endpoint.
func (r *AgencyRepository) ReplaceSpecializations(ctx context.Context, tenantID, agencyID string, specs []models.Specialization) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace specializations: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM agency_specializations WHERE tenant_id = $1 AND agency_id = $2`, tenantID, agencyID); err != nil {
		return fmt.Errorf("clear specializations: %w", err)
	}
	now := time.Now().UTC()
	for i := range specs {
		specs[i].ID = uuid.NewString()
		specs[i].TenantID = tenantID
		specs[i].AgencyID = agencyID
		specs[i].UpdatedAt = now
		const insert = `INSERT INTO agency_specializations (id, tenant_id, agency_id, category, subcategory,
                        seniority_min, seniority_max, years_experience, match_priority_weight, successful_placements, updated_at)
                VALUES (:id, :tenant_id, :agency_id, :category, :subcategory,
                        :seniority_min, :seniority_max, :years_experience, :match_priority_weight, :successful_placements, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insert, specs[i]); err != nil {
			return fmt.Errorf("insert specialization: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace specializations: %w", err)
	}
	return nil
}

// ReplaceCoverage swaps an agency's geographic coverage entries.
func (r *AgencyRepository) ReplaceCoverage(ctx context.Context, tenantID, agencyID string, entries []models.GeographicCoverage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace coverage: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM agency_coverage WHERE tenant_id = $1 AND agency_id = $2`, tenantID, agencyID); err != nil {
		return fmt.Errorf("clear coverage: %w", err)
	}
	for i := range entries {
		entries[i].ID = uuid.NewString()
		entries[i].TenantID = tenantID
		entries[i].AgencyID = agencyID
		const insert = `INSERT INTO agency_coverage (id, tenant_id, agency_id, country, region, city, radius_km, priority)
                VALUES (:id, :tenant_id, :agency_id, :country, :region, :city, :radius_km, :priority)`
		if _, err := tx.NamedExecContext(ctx, insert, entries[i]); err != nil {
			return fmt.Errorf("insert coverage: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace coverage: %w", err)
	}
	return nil
}
