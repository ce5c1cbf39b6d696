package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/pkg/config"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
)

type forecastRepository interface {
	Create(ctx context.Context, forecast *models.BudgetForecast) error
	Latest(ctx context.Context, tenantID, budgetID string) (*models.BudgetForecast, error)
}

type forecastBudgetReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Budget, error)
	ListActive(ctx context.Context, tenantID string) ([]models.Budget, error)
	DailyDeductionTotals(ctx context.Context, tenantID, budgetID string, since time.Time) ([]models.DailySpend, error)
}

// ForecastService projects budget spend from the trailing deduction history.
// Every run appends an immutable snapshot; the budget itself is never touched.
type ForecastService struct {
	forecasts      forecastRepository
	budgets        forecastBudgetReader
	windowDays     int
	defaultHorizon int
	logger         *zap.Logger
	now            func() time.Time
}

// NewForecastService constructs the forecaster.
func NewForecastService(forecasts forecastRepository, budgets forecastBudgetReader, cfg config.ForecastConfig, logger *zap.Logger) *ForecastService {
	if logger == nil {
		logger = zap.NewNop()
	}
	windowDays := cfg.TrailingWindowDays
	if windowDays <= 0 {
		windowDays = 60
	}
	defaultHorizon := cfg.DefaultHorizonDays
	if defaultHorizon <= 0 {
		defaultHorizon = 30
	}
	return &ForecastService{
		forecasts:      forecasts,
		budgets:        budgets,
		windowDays:     windowDays,
		defaultHorizon: defaultHorizon,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Forecast computes and stores a spend projection for the budget.
func (s *ForecastService) Forecast(ctx context.Context, tenantID, budgetID string, horizonDays int) (*models.BudgetForecast, error) {
	if horizonDays <= 0 {
		horizonDays = s.defaultHorizon
	}

	budget, err := s.budgets.FindByID(ctx, tenantID, budgetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "budget not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "budget lookup failed")
	}

	now := s.now()
	since := now.AddDate(0, 0, -s.windowDays)
	series, err := s.budgets.DailyDeductionTotals(ctx, tenantID, budgetID, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "spend history read failed")
	}

	// Moving average over the whole trailing window, counting zero-spend
	// days: a budget that spent nothing for half the window burns slower
	// than one that spent daily.
	var totalSpend int64
	for _, day := range series {
		totalSpend += day.TotalCents
	}
	dailyAvg := totalSpend / int64(s.windowDays)
	predicted := dailyAvg * int64(horizonDays)

	// Confidence band from the per-day standard deviation, scaled to the
	// horizon assuming independent days.
	variance := 0.0
	mean := float64(totalSpend) / float64(s.windowDays)
	observed := make(map[string]int64, len(series))
	for _, day := range series {
		observed[day.Day.Format("2006-01-02")] = day.TotalCents
	}
	for i := 0; i < s.windowDays; i++ {
		day := since.AddDate(0, 0, i).Format("2006-01-02")
		diff := float64(observed[day]) - mean
		variance += diff * diff
	}
	variance /= float64(s.windowDays)
	band := int64(math.Sqrt(variance) * math.Sqrt(float64(horizonDays)))

	lower := predicted - band
	if lower < 0 {
		lower = 0
	}

	forecast := &models.BudgetForecast{
		TenantID:            tenantID,
		BudgetID:            budgetID,
		HorizonDays:         horizonDays,
		WindowDays:          s.windowDays,
		DailySpendCents:     dailyAvg,
		PredictedSpendCents: predicted,
		LowerBoundCents:     lower,
		UpperBoundCents:     predicted + band,
		ComputedAt:          now,
	}

	// Depletion date only when the projection outruns the remaining amount
	// inside the horizon.
	if dailyAvg > 0 && predicted > budget.RemainingCents {
		daysToDepletion := int(budget.RemainingCents / dailyAvg)
		depletion := now.AddDate(0, 0, daysToDepletion)
		forecast.DepletionDate = &depletion
	}

	if err := s.forecasts.Create(ctx, forecast); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "forecast persist failed")
	}

	s.logger.Info("budget forecast computed",
		zap.String("budget_id", budgetID),
		zap.Int("horizon_days", horizonDays),
		zap.String("predicted", models.FormatCents(predicted)),
		zap.Bool("depletes", forecast.DepletionDate != nil))
	return forecast, nil
}

// Latest returns the most recent stored forecast for a budget.
func (s *ForecastService) Latest(ctx context.Context, tenantID, budgetID string) (*models.BudgetForecast, error) {
	forecast, err := s.forecasts.Latest(ctx, tenantID, budgetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no forecast for budget")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "forecast lookup failed")
	}
	return forecast, nil
}

// SweepTenant refreshes forecasts for every ACTIVE budget of a tenant,
// used by the scheduled background run. Per-budget failures are logged and
// skipped so one bad budget cannot stall the sweep.
func (s *ForecastService) SweepTenant(ctx context.Context, tenantID string) (int, error) {
	budgets, err := s.budgets.ListActive(ctx, tenantID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "budget list failed")
	}
	refreshed := 0
	for _, budget := range budgets {
		if _, err := s.Forecast(ctx, tenantID, budget.ID, s.defaultHorizon); err != nil {
			s.logger.Warn("forecast sweep skipped budget",
				zap.String("budget_id", budget.ID), zap.Error(err))
			continue
		}
		refreshed++
	}
	return refreshed, nil
}
