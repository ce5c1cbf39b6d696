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

// ForecastRepository stores immutable budget forecast snapshots.
type ForecastRepository struct {
	db *sqlx.DB
}

// NewForecastRepository creates a new forecast repository.
func NewForecastRepository(db *sqlx.DB) *ForecastRepository {
	return &ForecastRepository{db: db}
}

// Create appends a forecast snapshot. Rows are never updated; a newer
// forecast supersedes this one.
func (r *ForecastRepository) Create(ctx context.Context, forecast *models.BudgetForecast) error {
	if forecast.ID == "" {
		forecast.ID = uuid.NewString()
	}
	if forecast.ComputedAt.IsZero() {
		forecast.ComputedAt = time.Now().UTC()
	}
	const query = `INSERT INTO budget_forecasts (id, tenant_id, budget_id, horizon_days, window_days,
                daily_spend_cents, predicted_spend_cents, lower_bound_cents, upper_bound_cents,
                depletion_date, computed_at)
        VALUES (:id, :tenant_id, :budget_id, :horizon_days, :window_days,
                :daily_spend_cents, :predicted_spend_cents, :lower_bound_cents, :upper_bound_cents,
                :depletion_date, :computed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, forecast); err != nil {
		return fmt.Errorf("create forecast: %w", err)
	}
	return nil
}

// Latest returns the most recent forecast for a budget.
func (r *ForecastRepository) Latest(ctx context.Context, tenantID, budgetID string) (*models.BudgetForecast, error) {
	const query = `SELECT id, tenant_id, budget_id, horizon_days, window_days, daily_spend_cents,
                predicted_spend_cents, lower_bound_cents, upper_bound_cents, depletion_date, computed_at
        FROM budget_forecasts WHERE tenant_id = $1 AND budget_id = $2
        ORDER BY computed_at DESC LIMIT 1`
	var forecast models.BudgetForecast
	if err := r.db.GetContext(ctx, &forecast, query, tenantID, budgetID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("latest forecast: %w", err)
	}
	return &forecast, nil
}
