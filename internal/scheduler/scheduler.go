package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/recruitos/vendor-engine/internal/repository"
	"github.com/recruitos/vendor-engine/internal/service"
	"github.com/recruitos/vendor-engine/pkg/config"
)

type sweepTargets interface {
	ListBudgetTenants(ctx context.Context) ([]string, error)
	ListSLATargets(ctx context.Context) ([]repository.SLATarget, error)
}

// Scheduler runs the periodic background jobs: forecast refresh, ownership
// expiry sweep and SLA evaluation. All three are read-mostly and tolerate
// stale snapshots; they never gate request-path decisions.
type Scheduler struct {
	cron      *cron.Cron
	targets   sweepTargets
	forecasts *service.ForecastService
	ownership *service.OwnershipService
	slas      *service.SLAService
	cfg       config.SchedulerConfig
	slaOn     bool
	logger    *zap.Logger
}

// New constructs the scheduler.
func New(targets sweepTargets, forecasts *service.ForecastService, ownership *service.OwnershipService, slas *service.SLAService, cfg config.SchedulerConfig, slaEnabled bool, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:      cron.New(),
		targets:   targets,
		forecasts: forecasts,
		ownership: ownership,
		slas:      slas,
		cfg:       cfg,
		slaOn:     slaEnabled,
		logger:    logger,
	}
}

// Start registers the cron entries and begins execution.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.ForecastSpec, func() { s.runForecastSweep(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.OwnershipSpec, func() { s.runOwnershipSweep(ctx) }); err != nil {
		return err
	}
	if s.slaOn {
		if _, err := s.cron.AddFunc(s.cfg.SLASpec, func() { s.runSLASweep(ctx) }); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("forecast_spec", s.cfg.ForecastSpec),
		zap.String("ownership_spec", s.cfg.OwnershipSpec),
		zap.String("sla_spec", s.cfg.SLASpec),
		zap.Bool("sla_enabled", s.slaOn))
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runForecastSweep(ctx context.Context) {
	tenants, err := s.targets.ListBudgetTenants(ctx)
	if err != nil {
		s.logger.Error("forecast sweep failed to list tenants", zap.Error(err))
		return
	}
	for _, tenantID := range tenants {
		refreshed, err := s.forecasts.SweepTenant(ctx, tenantID)
		if err != nil {
			s.logger.Error("forecast sweep failed", zap.String("tenant_id", tenantID), zap.Error(err))
			continue
		}
		s.logger.Debug("forecast sweep done",
			zap.String("tenant_id", tenantID),
			zap.Int("refreshed", refreshed))
	}
}

func (s *Scheduler) runOwnershipSweep(ctx context.Context) {
	retired, err := s.ownership.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("ownership sweep failed", zap.Error(err))
		return
	}
	if retired > 0 {
		s.logger.Debug("ownership sweep done", zap.Int64("retired", retired))
	}
}

func (s *Scheduler) runSLASweep(ctx context.Context) {
	targets, err := s.targets.ListSLATargets(ctx)
	if err != nil {
		s.logger.Error("sla sweep failed to list targets", zap.Error(err))
		return
	}
	for _, target := range targets {
		if err := s.slas.SweepAgency(ctx, target.TenantID, target.AgencyID); err != nil {
			s.logger.Error("sla sweep failed",
				zap.String("tenant_id", target.TenantID),
				zap.String("agency_id", target.AgencyID),
				zap.Error(err))
		}
	}
}
