package models

import "time"

// BudgetForecast is a point-in-time spend projection. Rows are immutable;
// a newer forecast supersedes an older one, nothing is updated in place.
type BudgetForecast struct {
	ID                  string     `db:"id" json:"id"`
	TenantID            string     `db:"tenant_id" json:"tenant_id"`
	BudgetID            string     `db:"budget_id" json:"budget_id"`
	HorizonDays         int        `db:"horizon_days" json:"horizon_days"`
	WindowDays          int        `db:"window_days" json:"window_days"`
	DailySpendCents     int64      `db:"daily_spend_cents" json:"daily_spend_cents"`
	PredictedSpendCents int64      `db:"predicted_spend_cents" json:"predicted_spend_cents"`
	LowerBoundCents     int64      `db:"lower_bound_cents" json:"lower_bound_cents"`
	UpperBoundCents     int64      `db:"upper_bound_cents" json:"upper_bound_cents"`
	DepletionDate       *time.Time `db:"depletion_date" json:"depletion_date,omitempty"`
	ComputedAt          time.Time  `db:"computed_at" json:"computed_at"`
}

// DailySpend is one day's summed deductions, the forecaster's input series.
type DailySpend struct {
	Day        time.Time `db:"day" json:"day"`
	TotalCents int64     `db:"total_cents" json:"total_cents"`
}
