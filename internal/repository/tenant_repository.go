package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TenantRepository enumerates sweep targets for the background jobs.
type TenantRepository struct {
	db *sqlx.DB
}

// NewTenantRepository creates a new tenant repository.
func NewTenantRepository(db *sqlx.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// ListBudgetTenants returns tenants with at least one ACTIVE budget.
func (r *TenantRepository) ListBudgetTenants(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT tenant_id FROM budgets WHERE status = 'ACTIVE' ORDER BY tenant_id`
	var tenants []string
	if err := r.db.SelectContext(ctx, &tenants, query); err != nil {
		return nil, fmt.Errorf("list budget tenants: %w", err)
	}
	return tenants, nil
}

// SLATarget is one agency with SLA thresholds configured.
type SLATarget struct {
	TenantID string `db:"tenant_id"`
	AgencyID string `db:"agency_id"`
}

// ListSLATargets returns every agency with at least one SLA configuration.
func (r *TenantRepository) ListSLATargets(ctx context.Context) ([]SLATarget, error) {
	const query = `SELECT DISTINCT tenant_id, agency_id FROM sla_configs ORDER BY tenant_id, agency_id`
	var targets []SLATarget
	if err := r.db.SelectContext(ctx, &targets, query); err != nil {
		return nil, fmt.Errorf("list sla targets: %w", err)
	}
	return targets, nil
}
