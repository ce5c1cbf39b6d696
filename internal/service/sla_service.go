package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/internal/repository"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
	"github.com/recruitos/vendor-engine/pkg/jobs"
)

type slaRepository interface {
	FindConfig(ctx context.Context, tenantID, agencyID string, metric models.SLAMetric) (*models.SLAConfig, error)
	ListConfigs(ctx context.Context, tenantID, agencyID string) ([]models.SLAConfig, error)
	UpsertConfig(ctx context.Context, cfg *models.SLAConfig) error
	FindOpenBreach(ctx context.Context, tenantID, agencyID string, metric models.SLAMetric) (*models.SLABreach, error)
	ListOpenBreaches(ctx context.Context, tenantID, agencyID string) ([]models.SLABreach, error)
	OpenBreach(ctx context.Context, breach *models.SLABreach) error
	EscalateBreach(ctx context.Context, tenantID, breachID string, actualValue, threshold float64) error
	ResolveBreach(ctx context.Context, tenantID, breachID string) error
	CreateAlert(ctx context.Context, alert *models.SLAAlert) error
	UpdateAlertStatus(ctx context.Context, tenantID, alertID string, status models.SLAAlertStatus, lastError *string) error
}

type slaSnapshotReader interface {
	LatestSnapshots(ctx context.Context, tenantID string, agencyIDs []string) (map[string]models.PerformanceSnapshot, error)
}

// UpsertSLAConfigInput sets the thresholds for one agency metric.
type UpsertSLAConfigInput struct {
	Metric            models.SLAMetric `json:"metric" validate:"required,oneof=RESPONSE_TIME FILL_RATE PLACEMENT_RATE"`
	WarningThreshold  float64          `json:"warning_threshold" validate:"required,gt=0"`
	CriticalThreshold float64          `json:"critical_threshold" validate:"required,gt=0"`
}

// BreachCheck is the outcome of evaluating one metric value.
type BreachCheck struct {
	Breached  bool                 `json:"breached"`
	Severity  models.AlertSeverity `json:"severity,omitempty"`
	Threshold float64              `json:"threshold,omitempty"`
	Breach    *models.SLABreach    `json:"breach,omitempty"`
}

// SLAService evaluates agency metrics against configured thresholds. Breach
// recording is synchronous and idempotent; alert delivery runs through the
// dispatcher and its failures never alter breach state.
type SLAService struct {
	slas     slaRepository
	agencies slaSnapshotReader
	alerts   alertDispatcher
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSLAService constructs the monitor. alerts may be nil to disable
// asynchronous delivery.
func NewSLAService(slas slaRepository, agencies slaSnapshotReader, alerts alertDispatcher, logger *zap.Logger) *SLAService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAService{
		slas:     slas,
		agencies: agencies,
		alerts:   alerts,
		validate: validator.New(),
		logger:   logger,
	}
}

// UpsertConfig sets thresholds for one agency metric. Threshold ordering
// follows the metric's direction: for lower-is-better metrics the critical
// threshold sits above the warning one, otherwise below.
func (s *SLAService) UpsertConfig(ctx context.Context, tenantID, agencyID string, input UpsertSLAConfigInput) (*models.SLAConfig, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sla config")
	}
	if input.Metric.LowerIsBetter() {
		if input.CriticalThreshold < input.WarningThreshold {
			return nil, appErrors.Clone(appErrors.ErrValidation, "critical threshold must be at or above warning for "+string(input.Metric))
		}
	} else if input.CriticalThreshold > input.WarningThreshold {
		return nil, appErrors.Clone(appErrors.ErrValidation, "critical threshold must be at or below warning for "+string(input.Metric))
	}

	cfg := &models.SLAConfig{
		TenantID:          tenantID,
		AgencyID:          agencyID,
		Metric:            input.Metric,
		WarningThreshold:  input.WarningThreshold,
		CriticalThreshold: input.CriticalThreshold,
	}
	if err := s.slas.UpsertConfig(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sla config upsert failed")
	}
	return cfg, nil
}

// severityFor grades a value against the config, honoring the metric's
// direction. Empty severity means no breach.
func severityFor(cfg *models.SLAConfig, value float64) (models.AlertSeverity, float64) {
	if cfg.Metric.LowerIsBetter() {
		switch {
		case value >= cfg.CriticalThreshold:
			return models.SeverityCritical, cfg.CriticalThreshold
		case value >= cfg.WarningThreshold:
			return models.SeverityWarning, cfg.WarningThreshold
		}
		return "", 0
	}
	switch {
	case value <= cfg.CriticalThreshold:
		return models.SeverityCritical, cfg.CriticalThreshold
	case value <= cfg.WarningThreshold:
		return models.SeverityWarning, cfg.WarningThreshold
	}
	return "", 0
}

// CheckBreach evaluates one metric value. An already open breach at the same
// severity is returned untouched; only escalation or resolution changes
// state. Missing configuration is an explicit error.
func (s *SLAService) CheckBreach(ctx context.Context, tenantID, agencyID string, metric models.SLAMetric, actualValue float64) (*BreachCheck, error) {
	cfg, err := s.slas.FindConfig(ctx, tenantID, agencyID, metric)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSLAConfigMissing
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sla config lookup failed")
	}

	severity, threshold := severityFor(cfg, actualValue)

	open, err := s.slas.FindOpenBreach(ctx, tenantID, agencyID, metric)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "breach lookup failed")
	}

	if severity == "" {
		// Back within thresholds: resolve any open breach.
		if open != nil {
			if err := s.slas.ResolveBreach(ctx, tenantID, open.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "breach resolve failed")
			}
			s.logger.Info("sla breach resolved",
				zap.String("agency_id", agencyID),
				zap.String("metric", string(metric)))
		}
		return &BreachCheck{Breached: false}, nil
	}

	switch {
	case open == nil:
		breach := &models.SLABreach{
			TenantID:    tenantID,
			AgencyID:    agencyID,
			Metric:      metric,
			Severity:    severity,
			ActualValue: actualValue,
			Threshold:   threshold,
		}
		if err := s.slas.OpenBreach(ctx, breach); err != nil {
			if errors.Is(err, repository.ErrUniqueViolation) {
				// A concurrent sweep opened it first; re-read instead of
				// duplicating.
				breach, err = s.slas.FindOpenBreach(ctx, tenantID, agencyID, metric)
				if err != nil {
					return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "breach reread failed")
				}
				return &BreachCheck{Breached: true, Severity: breach.Severity, Threshold: breach.Threshold, Breach: breach}, nil
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "breach open failed")
		}
		s.logger.Warn("sla breach opened",
			zap.String("agency_id", agencyID),
			zap.String("metric", string(metric)),
			zap.String("severity", string(severity)),
			zap.Float64("actual", actualValue))
		s.dispatch(ctx, breach)
		open = breach

	case severity == models.SeverityCritical && open.Severity == models.SeverityWarning:
		if err := s.slas.EscalateBreach(ctx, tenantID, open.ID, actualValue, threshold); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "breach escalation failed")
		}
		open.Severity = models.SeverityCritical
		open.ActualValue = actualValue
		open.Threshold = threshold
		s.logger.Warn("sla breach escalated",
			zap.String("agency_id", agencyID),
			zap.String("metric", string(metric)))
		s.dispatch(ctx, open)

	default:
		// Same or lower severity on an open breach: no new state.
	}

	return &BreachCheck{Breached: true, Severity: open.Severity, Threshold: open.Threshold, Breach: open}, nil
}

// dispatch records an alert attempt and hands it to the queue. Failures are
// logged only; breach state never depends on delivery.
func (s *SLAService) dispatch(ctx context.Context, breach *models.SLABreach) {
	alert := &models.SLAAlert{
		TenantID: breach.TenantID,
		BreachID: breach.ID,
		Channel:  "email",
		Status:   models.AlertPending,
	}
	if err := s.slas.CreateAlert(ctx, alert); err != nil {
		s.logger.Error("failed to record sla alert", zap.String("breach_id", breach.ID), zap.Error(err))
		return
	}
	if s.alerts == nil {
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "sla_alert",
		Payload: alert,
	}
	if err := s.alerts.Enqueue(job); err != nil {
		s.logger.Warn("sla alert dispatch failed", zap.String("alert_id", alert.ID), zap.Error(err))
	}
}

// MarkAlert advances an alert's delivery lifecycle, called by the delivery
// worker.
func (s *SLAService) MarkAlert(ctx context.Context, tenantID, alertID string, status models.SLAAlertStatus, lastError *string) error {
	if err := s.slas.UpdateAlertStatus(ctx, tenantID, alertID, status, lastError); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "alert status update failed")
	}
	return nil
}

// Status returns the per-metric breach view for one agency.
func (s *SLAService) Status(ctx context.Context, tenantID, agencyID string) ([]models.BreachStatus, error) {
	configs, err := s.slas.ListConfigs(ctx, tenantID, agencyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sla config list failed")
	}
	breaches, err := s.slas.ListOpenBreaches(ctx, tenantID, agencyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "breach list failed")
	}
	byMetric := make(map[models.SLAMetric]models.SLABreach, len(breaches))
	for _, breach := range breaches {
		byMetric[breach.Metric] = breach
	}

	statuses := make([]models.BreachStatus, 0, len(configs))
	for _, cfg := range configs {
		status := models.BreachStatus{Metric: cfg.Metric}
		if breach, ok := byMetric[cfg.Metric]; ok {
			status.Breached = true
			status.Severity = breach.Severity
			status.ActualValue = breach.ActualValue
			status.Threshold = breach.Threshold
			openedAt := breach.OpenedAt
			status.OpenedAt = &openedAt
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// SweepAgency re-evaluates every configured metric of an agency against its
// latest performance snapshot, used by the scheduled run.
func (s *SLAService) SweepAgency(ctx context.Context, tenantID, agencyID string) error {
	configs, err := s.slas.ListConfigs(ctx, tenantID, agencyID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sla config list failed")
	}
	if len(configs) == 0 {
		return nil
	}
	snapshots, err := s.agencies.LatestSnapshots(ctx, tenantID, []string{agencyID})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "snapshot read failed")
	}
	snap, ok := snapshots[agencyID]
	if !ok {
		return nil
	}
	for _, cfg := range configs {
		var value float64
		switch cfg.Metric {
		case models.MetricResponseTime:
			value = snap.ResponseTimeAvg
		case models.MetricFillRate:
			value = snap.FillRate
		case models.MetricPlacementRate:
			value = snap.PlacementRate
		default:
			continue
		}
		if _, err := s.CheckBreach(ctx, tenantID, agencyID, cfg.Metric, value); err != nil {
			s.logger.Warn("sla sweep check failed",
				zap.String("agency_id", agencyID),
				zap.String("metric", string(cfg.Metric)),
				zap.Error(err))
		}
	}
	return nil
}
