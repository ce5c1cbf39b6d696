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

// SLARepository persists SLA configurations, breaches and alert attempts.
type SLARepository struct {
	db *sqlx.DB
}

// NewSLARepository creates a new SLA repository.
func NewSLARepository(db *sqlx.DB) *SLARepository {
	return &SLARepository{db: db}
}

// FindConfig returns the thresholds for one agency metric.
func (r *SLARepository) FindConfig(ctx context.Context, tenantID, agencyID string, metric models.SLAMetric) (*models.SLAConfig, error) {
	const query = `SELECT id, tenant_id, agency_id, metric, warning_threshold, critical_threshold, updated_at
        FROM sla_configs WHERE tenant_id = $1 AND agency_id = $2 AND metric = $3`
	var cfg models.SLAConfig
	if err := r.db.GetContext(ctx, &cfg, query, tenantID, agencyID, metric); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find sla config: %w", err)
	}
	return &cfg, nil
}

// ListConfigs returns every metric configuration for an agency.
func (r *SLARepository) ListConfigs(ctx context.Context, tenantID, agencyID string) ([]models.SLAConfig, error) {
	const query = `SELECT id, tenant_id, agency_id, metric, warning_threshold, critical_threshold, updated_at
        FROM sla_configs WHERE tenant_id = $1 AND agency_id = $2 ORDER BY metric`
	var configs []models.SLAConfig
	if err := r.db.SelectContext(ctx, &configs, query, tenantID, agencyID); err != nil {
		return nil, fmt.Errorf("list sla configs: %w", err)
	}
	return configs, nil
}

// UpsertConfig creates or replaces the thresholds for one agency metric.
func (r *SLARepository) UpsertConfig(ctx context.Context, cfg *models.SLAConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	cfg.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO sla_configs (id, tenant_id, agency_id, metric, warning_threshold, critical_threshold, updated_at)
        VALUES (:id, :tenant_id, :agency_id, :metric, :warning_threshold, :critical_threshold, :updated_at)
        ON CONFLICT (tenant_id, agency_id, metric)
        DO UPDATE SET warning_threshold = EXCLUDED.warning_threshold,
                      critical_threshold = EXCLUDED.critical_threshold,
                      updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, cfg); err != nil {
		return fmt.Errorf("upsert sla config: %w", err)
	}
	return nil
}

// FindOpenBreach returns the unresolved breach for an agency metric, if any.
func (r *SLARepository) FindOpenBreach(ctx context.Context, tenantID, agencyID string, metric models.SLAMetric) (*models.SLABreach, error) {
	const query = `SELECT id, tenant_id, agency_id, metric, severity, actual_value, threshold,
                opened_at, escalated_at, resolved_at
        FROM sla_breaches
        WHERE tenant_id = $1 AND agency_id = $2 AND metric = $3 AND resolved_at IS NULL`
	var breach models.SLABreach
	if err := r.db.GetContext(ctx, &breach, query, tenantID, agencyID, metric); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find open breach: %w", err)
	}
	return &breach, nil
}

// ListOpenBreaches returns every unresolved breach for an agency.
func (r *SLARepository) ListOpenBreaches(ctx context.Context, tenantID, agencyID string) ([]models.SLABreach, error) {
	const query = `SELECT id, tenant_id, agency_id, metric, severity, actual_value, threshold,
                opened_at, escalated_at, resolved_at
        FROM sla_breaches
        WHERE tenant_id = $1 AND agency_id = $2 AND resolved_at IS NULL ORDER BY opened_at`
	var breaches []models.SLABreach
	if err := r.db.SelectContext(ctx, &breaches, query, tenantID, agencyID); err != nil {
		return nil, fmt.Errorf("list open breaches: %w", err)
	}
	return breaches, nil
}

// OpenBreach records a new threshold crossing. The partial unique index on
// (tenant_id, agency_id, metric) WHERE resolved_at IS NULL guarantees at most
// one open breach per metric even under concurrent sweeps.
func (r *SLARepository) OpenBreach(ctx context.Context, breach *models.SLABreach) error {
	if breach.ID == "" {
		breach.ID = uuid.NewString()
	}
	if breach.OpenedAt.IsZero() {
		breach.OpenedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sla_breaches (id, tenant_id, agency_id, metric, severity, actual_value, threshold, opened_at)
        VALUES (:id, :tenant_id, :agency_id, :metric, :severity, :actual_value, :threshold, :opened_at)`
	if _, err := r.db.NamedExecContext(ctx, query, breach); err != nil {
		return fmt.Errorf("open breach: %w", translateConstraint(err))
	}
	return nil
}

// EscalateBreach raises an open WARNING breach to CRITICAL. Guarded on the
// current severity so repeated sweeps do not touch the row twice.
func (r *SLARepository) EscalateBreach(ctx context.Context, tenantID, breachID string, actualValue, threshold float64) error {
	const query = `UPDATE sla_breaches
        SET severity = 'CRITICAL', actual_value = $1, threshold = $2, escalated_at = $3
        WHERE tenant_id = $4 AND id = $5 AND severity = 'WARNING' AND resolved_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, actualValue, threshold, time.Now().UTC(), tenantID, breachID)
	if err != nil {
		return fmt.Errorf("escalate breach: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("escalate breach rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ResolveBreach closes an open breach.
func (r *SLARepository) ResolveBreach(ctx context.Context, tenantID, breachID string) error {
	const query = `UPDATE sla_breaches SET resolved_at = $1
        WHERE tenant_id = $2 AND id = $3 AND resolved_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), tenantID, breachID)
	if err != nil {
		return fmt.Errorf("resolve breach: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve breach rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateAlert records a delivery attempt for a breach.
func (r *SLARepository) CreateAlert(ctx context.Context, alert *models.SLAAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	alert.CreatedAt = now
	alert.UpdatedAt = now
	const query = `INSERT INTO sla_alerts (id, tenant_id, breach_id, channel, status, last_error, created_at, updated_at)
        VALUES (:id, :tenant_id, :breach_id, :channel, :status, :last_error, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("create sla alert: %w", err)
	}
	return nil
}

// UpdateAlertStatus advances an alert through its delivery lifecycle.
// Breach rows are never touched here: delivery failure must not affect
// breach state.
func (r *SLARepository) UpdateAlertStatus(ctx context.Context, tenantID, alertID string, status models.SLAAlertStatus, lastError *string) error {
	const query = `UPDATE sla_alerts SET status = $1, last_error = $2, updated_at = $3
        WHERE tenant_id = $4 AND id = $5`
	if _, err := r.db.ExecContext(ctx, query, status, lastError, time.Now().UTC(), tenantID, alertID); err != nil {
		return fmt.Errorf("update sla alert status: %w", err)
	}
	return nil
}
