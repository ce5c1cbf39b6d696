package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/pkg/config"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
)

type matchIndexRepository interface {
	ListSpecializationsByCategory(ctx context.Context, tenantID, category string, seniorityLevel int) ([]models.Specialization, error)
	ListCoverageByAgencies(ctx context.Context, tenantID string, agencyIDs []string) (map[string][]models.GeographicCoverage, error)
	LatestSnapshots(ctx context.Context, tenantID string, agencyIDs []string) (map[string]models.PerformanceSnapshot, error)
	ReplaceSpecializations(ctx context.Context, tenantID, agencyID string, specs []models.Specialization) error
	ReplaceCoverage(ctx context.Context, tenantID, agencyID string, entries []models.GeographicCoverage) error
}

type jobReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Job, error)
}

type matchCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Tier multipliers applied to the raw performance score. NEW sits at 0.6 so
// agencies without history still surface, just never above proven ones.
var tierMultipliers = map[models.PerformanceTier]float64{
	models.TierPlatinum: 1.0,
	models.TierGold:     0.9,
	models.TierSilver:   0.8,
	models.TierBronze:   0.7,
	models.TierNew:      0.6,
}

// neutralPerformance is used when no snapshot exists for an agency. The match
// degrades instead of failing, and the caller sees a warning.
const neutralPerformance = 0.5

// MatchingService scores and ranks agencies for a job using the
// specialization index, geographic coverage and performance snapshots.
type MatchingService struct {
	agencies     matchIndexRepository
	jobs         jobReader
	cache        matchCache
	metrics      *MetricsService
	weights      models.ScoreBreakdown
	defaultLimit int
	cacheTTL     time.Duration
	logger       *zap.Logger
}

// NewMatchingService constructs the matching engine. cache and metrics may be
// nil.
func NewMatchingService(agencies matchIndexRepository, jobs jobReader, cache matchCache, metrics *MetricsService, cfg config.MatchingConfig, logger *zap.Logger) *MatchingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &MatchingService{
		agencies: agencies,
		jobs:     jobs,
		cache:    cache,
		metrics:  metrics,
		weights: models.ScoreBreakdown{
			Specialization: cfg.SpecializationWeight,
			Geographic:     cfg.GeographicWeight,
			Performance:    cfg.PerformanceWeight,
		},
		defaultLimit: defaultLimit,
		cacheTTL:     cfg.CacheTTL,
		logger:       logger,
	}
}

// Match ranks agencies for the job. An empty list is a valid result when no
// agency has an overlapping specialization.
func (s *MatchingService) Match(ctx context.Context, tenantID, jobID string, limit int) (*models.MatchResult, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}

	cacheKey := fmt.Sprintf("match:%s:%s:%d", tenantID, jobID, limit)
	if s.cache != nil {
		var cached models.MatchResult
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	job, err := s.jobs.FindByID(ctx, tenantID, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "job lookup failed")
	}

	specs, err := s.agencies.ListSpecializationsByCategory(ctx, tenantID, job.Category, job.SeniorityLevel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "specialization index read failed")
	}
	if len(specs) == 0 {
		return &models.MatchResult{JobID: jobID, Agencies: []models.RankedAgency{}}, nil
	}

	// Best specialization entry per agency; monotone in years of experience.
	bestSpec := make(map[string]float64)
	var agencyIDs []string
	for _, spec := range specs {
		score := specializationScore(spec)
		if current, ok := bestSpec[spec.AgencyID]; !ok || score > current {
			if !ok {
				agencyIDs = append(agencyIDs, spec.AgencyID)
			}
			bestSpec[spec.AgencyID] = score
		}
	}

	coverage, err := s.agencies.ListCoverageByAgencies(ctx, tenantID, agencyIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "coverage index read failed")
	}

	result := &models.MatchResult{JobID: jobID}

	snapshots, err := s.agencies.LatestSnapshots(ctx, tenantID, agencyIDs)
	if err != nil {
		// Snapshot source being down degrades every agency to the neutral
		// prior; the match still goes out with an explicit warning.
		s.logger.Warn("performance snapshots unavailable, scoring neutral", zap.Error(err))
		snapshots = map[string]models.PerformanceSnapshot{}
		result.Warnings = append(result.Warnings, "performance snapshots unavailable; all agencies scored with neutral performance")
	}

	for _, agencyID := range agencyIDs {
		breakdown := models.ScoreBreakdown{
			Specialization: bestSpec[agencyID],
			Geographic:     geographicScore(job, coverage[agencyID]),
		}
		ranked := models.RankedAgency{AgencyID: agencyID}
		if snap, ok := snapshots[agencyID]; ok {
			breakdown.Performance = snap.PerformanceScore * tierMultipliers[snap.PerformanceTier]
			ranked.FillRate = snap.FillRate
			ranked.ResponseTimeAvg = snap.ResponseTimeAvg
		} else {
			breakdown.Performance = neutralPerformance
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("agency %s has no performance snapshot; scored with neutral performance", agencyID))
		}
		ranked.Breakdown = breakdown
		ranked.Score = round4(s.weights.Specialization*breakdown.Specialization +
			s.weights.Geographic*breakdown.Geographic +
			s.weights.Performance*breakdown.Performance)
		ranked.RecommendedTier = recommendTier(ranked.Score)
		result.Agencies = append(result.Agencies, ranked)
	}

	sort.Slice(result.Agencies, func(i, j int) bool {
		a, b := result.Agencies[i], result.Agencies[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.FillRate != b.FillRate {
			return a.FillRate > b.FillRate
		}
		if a.ResponseTimeAvg != b.ResponseTimeAvg {
			return a.ResponseTimeAvg < b.ResponseTimeAvg
		}
		return a.AgencyID < b.AgencyID
	})
	if len(result.Agencies) > limit {
		result.Agencies = result.Agencies[:limit]
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache match result", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	return result, nil
}

// UpdateSpecializations replaces an agency's declared specializations and
// invalidates cached match results for the tenant.
func (s *MatchingService) UpdateSpecializations(ctx context.Context, tenantID, agencyID string, specs []models.Specialization) error {
	for _, spec := range specs {
		if spec.SeniorityMin > spec.SeniorityMax {
			return appErrors.Clone(appErrors.ErrValidation, "seniority_min must not exceed seniority_max")
		}
	}
	if err := s.agencies.ReplaceSpecializations(ctx, tenantID, agencyID, specs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "specialization update failed")
	}
	s.invalidate(ctx, tenantID)
	return nil
}

// UpdateCoverage replaces an agency's geographic coverage entries.
func (s *MatchingService) UpdateCoverage(ctx context.Context, tenantID, agencyID string, entries []models.GeographicCoverage) error {
	if err := s.agencies.ReplaceCoverage(ctx, tenantID, agencyID, entries); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "coverage update failed")
	}
	s.invalidate(ctx, tenantID)
	return nil
}

func (s *MatchingService) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("match:%s:*", tenantID)); err != nil {
		s.logger.Warn("failed to invalidate match cache", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

// specializationScore blends the category match (already guaranteed by the
// index query), years of experience and the declared priority weight.
// Strictly non-decreasing in years of experience.
func specializationScore(spec models.Specialization) float64 {
	years := float64(spec.YearsExperience)
	if years > 10 {
		years = 10
	}
	weight := spec.MatchPriorityWeight
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}
	return 0.6 + 0.25*(years/10) + 0.15*weight
}

// geographicScore is locality-based: exact city 1.0, region 0.75, country
// 0.5, no overlap 0. A positive radius on a region-level entry counts as a
// city-level reach.
func geographicScore(job *models.Job, entries []models.GeographicCoverage) float64 {
	best := 0.0
	for _, cov := range entries {
		if cov.Country != job.Country {
			continue
		}
		switch {
		case cov.City != "" && cov.City == job.City:
			return 1.0
		case cov.Region != "" && cov.Region == job.Region:
			if cov.RadiusKm > 0 {
				return 1.0
			}
			best = math.Max(best, 0.75)
		case cov.Region == "" && cov.City == "":
			best = math.Max(best, 0.5)
		}
	}
	return best
}

func recommendTier(score float64) models.DistributionTier {
	switch {
	case score >= 0.85:
		return models.TierExclusive
	case score >= 0.70:
		return models.TierPriority
	case score >= 0.50:
		return models.TierStandard
	default:
		return models.TierOpen
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
