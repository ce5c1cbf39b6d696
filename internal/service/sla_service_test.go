package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/internal/repository"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
)

type slaRepoStub struct {
	configs   map[models.SLAMetric]models.SLAConfig
	open      map[models.SLAMetric]models.SLABreach
	openErr   error
	raceWith  *models.SLABreach
	opened    int
	escalated int
	resolved  int
	alerts    []*models.SLAAlert
	snapshots map[string]models.PerformanceSnapshot
}

func (s *slaRepoStub) FindConfig(ctx context.Context, tenantID, agencyID string, metric models.SLAMetric) (*models.SLAConfig, error) {
	if cfg, ok := s.configs[metric]; ok {
		found := cfg
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (s *slaRepoStub) ListConfigs(ctx context.Context, tenantID, agencyID string) ([]models.SLAConfig, error) {
	var out []models.SLAConfig
	for _, cfg := range s.configs {
		out = append(out, cfg)
	}
	return out, nil
}

func (s *slaRepoStub) UpsertConfig(ctx context.Context, cfg *models.SLAConfig) error {
	if s.configs == nil {
		s.configs = make(map[models.SLAMetric]models.SLAConfig)
	}
	cfg.ID = "cfg-" + string(cfg.Metric)
	s.configs[cfg.Metric] = *cfg
	return nil
}

func (s *slaRepoStub) FindOpenBreach(ctx context.Context, tenantID, agencyID string, metric models.SLAMetric) (*models.SLABreach, error) {
	if breach, ok := s.open[metric]; ok {
		found := breach
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (s *slaRepoStub) ListOpenBreaches(ctx context.Context, tenantID, agencyID string) ([]models.SLABreach, error) {
	var out []models.SLABreach
	for _, breach := range s.open {
		out = append(out, breach)
	}
	return out, nil
}

func (s *slaRepoStub) OpenBreach(ctx context.Context, breach *models.SLABreach) error {
	if s.openErr != nil {
		// Make the concurrently inserted row visible to the re-read.
		if s.raceWith != nil {
			if s.open == nil {
				s.open = make(map[models.SLAMetric]models.SLABreach)
			}
			s.open[s.raceWith.Metric] = *s.raceWith
		}
		return s.openErr
	}
	if s.open == nil {
		s.open = make(map[models.SLAMetric]models.SLABreach)
	}
	breach.ID = "breach-" + string(breach.Metric)
	breach.OpenedAt = time.Now().UTC()
	s.open[breach.Metric] = *breach
	s.opened++
	return nil
}

func (s *slaRepoStub) EscalateBreach(ctx context.Context, tenantID, breachID string, actualValue, threshold float64) error {
	for metric, breach := range s.open {
		if breach.ID == breachID {
			breach.Severity = models.SeverityCritical
			breach.ActualValue = actualValue
			breach.Threshold = threshold
			s.open[metric] = breach
			s.escalated++
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *slaRepoStub) ResolveBreach(ctx context.Context, tenantID, breachID string) error {
	for metric, breach := range s.open {
		if breach.ID == breachID {
			delete(s.open, metric)
			s.resolved++
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *slaRepoStub) CreateAlert(ctx context.Context, alert *models.SLAAlert) error {
	alert.ID = "alert-1"
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *slaRepoStub) UpdateAlertStatus(ctx context.Context, tenantID, alertID string, status models.SLAAlertStatus, lastError *string) error {
	return nil
}

func (s *slaRepoStub) LatestSnapshots(ctx context.Context, tenantID string, agencyIDs []string) (map[string]models.PerformanceSnapshot, error) {
	return s.snapshots, nil
}

func responseTimeConfig() map[models.SLAMetric]models.SLAConfig {
	return map[models.SLAMetric]models.SLAConfig{
		models.MetricResponseTime: {
			Metric:            models.MetricResponseTime,
			WarningThreshold:  24,
			CriticalThreshold: 48,
		},
	}
}

func fillRateConfig() map[models.SLAMetric]models.SLAConfig {
	return map[models.SLAMetric]models.SLAConfig{
		models.MetricFillRate: {
			Metric:            models.MetricFillRate,
			WarningThreshold:  0.6,
			CriticalThreshold: 0.4,
		},
	}
}

func TestSeverityForDirectionAware(t *testing.T) {
	responseCfg := &models.SLAConfig{Metric: models.MetricResponseTime, WarningThreshold: 24, CriticalThreshold: 48}
	severity, _ := severityFor(responseCfg, 12)
	assert.Empty(t, severity)
	severity, threshold := severityFor(responseCfg, 30)
	assert.Equal(t, models.SeverityWarning, severity)
	assert.Equal(t, 24.0, threshold)
	severity, threshold = severityFor(responseCfg, 48)
	assert.Equal(t, models.SeverityCritical, severity)
	assert.Equal(t, 48.0, threshold)

	fillCfg := &models.SLAConfig{Metric: models.MetricFillRate, WarningThreshold: 0.6, CriticalThreshold: 0.4}
	severity, _ = severityFor(fillCfg, 0.8)
	assert.Empty(t, severity)
	severity, _ = severityFor(fillCfg, 0.5)
	assert.Equal(t, models.SeverityWarning, severity)
	severity, _ = severityFor(fillCfg, 0.3)
	assert.Equal(t, models.SeverityCritical, severity)
}

func TestCheckBreachMissingConfig(t *testing.T) {
	svc := NewSLAService(&slaRepoStub{}, &slaRepoStub{}, nil, nil)
	_, err := svc.CheckBreach(context.Background(), "t1", "agency-a", models.MetricFillRate, 0.5)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSLAConfigMissing.Code, appErrors.FromError(err).Code)
}

func TestCheckBreachOpensAndDispatches(t *testing.T) {
	repo := &slaRepoStub{configs: responseTimeConfig()}
	dispatcher := &dispatcherStub{}
	svc := NewSLAService(repo, repo, dispatcher, nil)

	check, err := svc.CheckBreach(context.Background(), "t1", "agency-a", models.MetricResponseTime, 30)
	require.NoError(t, err)
	assert.True(t, check.Breached)
	assert.Equal(t, models.SeverityWarning, check.Severity)
	assert.Equal(t, 1, repo.opened)
	require.Len(t, repo.alerts, 1)
	assert.Equal(t, models.AlertPending, repo.alerts[0].Status)
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, "sla_alert", dispatcher.enqueued[0].Type)
}

func TestCheckBreachSameSeverityDoesNotDuplicate(t *testing.T) {
	repo := &slaRepoStub{configs: responseTimeConfig()}
	svc := NewSLAService(repo, repo, nil, nil)

	_, err := svc.CheckBreach(context.Background(), "t1", "agency-a", models.MetricResponseTime, 30)
	require.NoError(t, err)
	check, err := svc.CheckBreach(context.Background(), "t1", "agency-a", models.MetricResponseTime, 36)
	require.NoError(t, err)
	assert.True(t, check.Breached)
	assert.Equal(t, 1, repo.opened, "an open breach at the same severity must not be reopened")
	assert.Equal(t, 0, repo.escalated)
}

func TestCheckBreachEscalatesWarningToCritical(t *testing.T) {
	repo := &slaRepoStub{configs: responseTimeConfig()}
	dispatcher := &dispatcherStub{}
	svc := NewSLAService(repo, repo, dispatcher, nil)

	_, err := svc.CheckBreach(context.Background(), "t1", "agency-a", models.MetricResponseTime, 30)
	require.NoError(t, err)
	check, err := svc.CheckBreach(context.Background(), "t1", "agency-a", models.MetricResponseTime, 50)
	require.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, check.Severity)
	assert.Equal(t, 1, repo.opened)
	assert.Equal(t, 1, repo.escalated)
	assert.Len(t, dispatcher.enqueued, 2)
}

func TestCheckBreachNeverDeescalates(t *testing.T) {
	repo := &slaRepoStub{configs: responseTimeConfig()}
	svc := NewSLAService(repo, repo, nil, nil)

	_, err := svc.CheckBreach(context.Background(), "t1", "agency-a", models.MetricResponseTime, 50)
	require.NoError(t, err)
	check, err := svc.CheckBreach(context.Background(), "t1", "agency-a", models.MetricResponseTime, 30)
	require.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, check.Severity, "critical must not drop back to warning while open")
	assert.Equal(t, 0, repo.escalated)
}

func TestCheckBreachResolvesWhenBackInRange(t *testing.T) {
	repo := &slaRepoStub{configs: responseTimeConfig()}
	svc := NewSLAService(repo, repo, nil, nil)

	_, err := svc.CheckBreach(context.Background(), "t1", "agency-a", models.MetricResponseTime, 30)
	require.NoError(t, err)
	check, err := svc.CheckBreach(context.Background(), "t1", "agency-a", models.MetricResponseTime, 10)
	require.NoError(t, err)
	assert.False(t, check.Breached)
	assert.Equal(t, 1, repo.resolved)
	assert.Empty(t, repo.open)
}

func TestCheckBreachConcurrentOpenRereads(t *testing.T) {
	repo := &slaRepoStub{
		configs: fillRateConfig(),
		openErr: repository.ErrUniqueViolation,
		raceWith: &models.SLABreach{
			ID:       "breach-race",
			Metric:   models.MetricFillRate,
			Severity: models.SeverityWarning,
		},
	}
	svc := NewSLAService(repo, repo, nil, nil)

	check, err := svc.CheckBreach(context.Background(), "t1", "agency-a", models.MetricFillRate, 0.5)
	require.NoError(t, err)
	assert.True(t, check.Breached)
	assert.Equal(t, "breach-race", check.Breach.ID, "lost insert race must re-read the winner's row")
	assert.Equal(t, 0, repo.opened)
}

func TestUpsertConfigValidatesDirection(t *testing.T) {
	repo := &slaRepoStub{}
	svc := NewSLAService(repo, repo, nil, nil)

	// Response time is lower-is-better: critical must sit above warning.
	_, err := svc.UpsertConfig(context.Background(), "t1", "agency-a", UpsertSLAConfigInput{
		Metric:            models.MetricResponseTime,
		WarningThreshold:  48,
		CriticalThreshold: 24,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// Fill rate is higher-is-better: critical must sit below warning.
	_, err = svc.UpsertConfig(context.Background(), "t1", "agency-a", UpsertSLAConfigInput{
		Metric:            models.MetricFillRate,
		WarningThreshold:  0.4,
		CriticalThreshold: 0.6,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.UpsertConfig(context.Background(), "t1", "agency-a", UpsertSLAConfigInput{
		Metric:            models.MetricFillRate,
		WarningThreshold:  0.6,
		CriticalThreshold: 0.4,
	})
	require.NoError(t, err)
}

func TestStatusReportsPerMetric(t *testing.T) {
	repo := &slaRepoStub{configs: responseTimeConfig()}
	svc := NewSLAService(repo, repo, nil, nil)

	_, err := svc.CheckBreach(context.Background(), "t1", "agency-a", models.MetricResponseTime, 30)
	require.NoError(t, err)

	statuses, err := svc.Status(context.Background(), "t1", "agency-a")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Breached)
	assert.Equal(t, models.SeverityWarning, statuses[0].Severity)
}

func TestSweepAgencyUsesSnapshotValues(t *testing.T) {
	repo := &slaRepoStub{
		configs: fillRateConfig(),
		snapshots: map[string]models.PerformanceSnapshot{
			"agency-a": {FillRate: 0.3},
		},
	}
	svc := NewSLAService(repo, repo, nil, nil)

	require.NoError(t, svc.SweepAgency(context.Background(), "t1", "agency-a"))
	assert.Equal(t, 1, repo.opened)
	assert.Equal(t, models.SeverityCritical, repo.open[models.MetricFillRate].Severity)
}

func TestSweepAgencyNoConfigsIsNoop(t *testing.T) {
	repo := &slaRepoStub{snapshots: map[string]models.PerformanceSnapshot{"agency-a": {FillRate: 0.1}}}
	svc := NewSLAService(repo, repo, nil, nil)
	require.NoError(t, svc.SweepAgency(context.Background(), "t1", "agency-a"))
	assert.Equal(t, 0, repo.opened)
}
