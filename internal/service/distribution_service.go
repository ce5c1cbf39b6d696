package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/internal/repository"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
)

type distributionRepository interface {
	Create(ctx context.Context, dist *models.Distribution) error
	FindByID(ctx context.Context, tenantID, id string) (*models.Distribution, error)
	List(ctx context.Context, tenantID string, filter models.DistributionFilter) ([]models.Distribution, error)
	UpdateStatus(ctx context.Context, tenantID, id string, current, next models.DistributionStatus) error
	ReserveSubmission(ctx context.Context, tenantID, id string) (*models.Distribution, error)
	ReleaseReservation(ctx context.Context, tenantID, id string) error
	CreateSubmission(ctx context.Context, sub *models.Submission) error
	CloseForJob(ctx context.Context, tenantID, jobID string) (int64, error)
}

// CreateDistributionInput is the request to offer a job to an agency.
type CreateDistributionInput struct {
	JobID          string                  `json:"job_id" validate:"required,uuid"`
	AgencyID       string                  `json:"agency_id" validate:"required,uuid"`
	Tier           models.DistributionTier `json:"tier" validate:"required,oneof=EXCLUSIVE PRIORITY STANDARD OPEN"`
	MaxCandidates  *int                    `json:"max_candidates" validate:"omitempty,gt=0"`
	ExclusiveUntil *time.Time              `json:"exclusive_until"`
	Activate       bool                    `json:"activate"`
}

// DistributionService manages the distribution lifecycle and its exclusivity
// and cap guarantees.
type DistributionService struct {
	distributions distributionRepository
	jobs          jobReader
	validate      *validator.Validate
	logger        *zap.Logger
}

// NewDistributionService constructs the service.
func NewDistributionService(distributions distributionRepository, jobs jobReader, logger *zap.Logger) *DistributionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DistributionService{
		distributions: distributions,
		jobs:          jobs,
		validate:      validator.New(),
		logger:        logger,
	}
}

// Create opens a distribution. An EXCLUSIVE request for a job that already
// has a live exclusive distribution is rejected.
func (s *DistributionService) Create(ctx context.Context, tenantID string, input CreateDistributionInput) (*models.Distribution, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid distribution request")
	}
	if input.Tier != models.TierExclusive && input.ExclusiveUntil != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exclusive_until only applies to the EXCLUSIVE tier")
	}

	if _, err := s.jobs.FindByID(ctx, tenantID, input.JobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "job lookup failed")
	}

	status := models.DistributionPending
	if input.Activate {
		status = models.DistributionActive
	}
	dist := &models.Distribution{
		TenantID:       tenantID,
		JobID:          input.JobID,
		AgencyID:       input.AgencyID,
		Tier:           input.Tier,
		Status:         status,
		ExclusiveUntil: input.ExclusiveUntil,
		MaxCandidates:  input.MaxCandidates,
	}
	if err := s.distributions.Create(ctx, dist); err != nil {
		switch {
		case errors.Is(err, repository.ErrExclusiveHeld):
			return nil, appErrors.ErrExclusivityConflict
		case errors.Is(err, repository.ErrUniqueViolation):
			return nil, appErrors.Clone(appErrors.ErrConflict, "a distribution for this job and agency already exists")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "distribution create failed")
		}
	}
	s.logger.Info("distribution created",
		zap.String("distribution_id", dist.ID),
		zap.String("job_id", dist.JobID),
		zap.String("agency_id", dist.AgencyID),
		zap.String("tier", string(dist.Tier)))
	return dist, nil
}

// Get returns one distribution.
func (s *DistributionService) Get(ctx context.Context, tenantID, id string) (*models.Distribution, error) {
	dist, err := s.distributions.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "distribution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "distribution lookup failed")
	}
	return dist, nil
}

// List returns distributions matching the filter.
func (s *DistributionService) List(ctx context.Context, tenantID string, filter models.DistributionFilter) ([]models.Distribution, error) {
	dists, err := s.distributions.List(ctx, tenantID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "distribution list failed")
	}
	return dists, nil
}

// Transition moves a distribution through its state machine. Invalid moves
// and races with concurrent transitions both come back as ErrInvalidTransition.
func (s *DistributionService) Transition(ctx context.Context, tenantID, id string, next models.DistributionStatus) (*models.Distribution, error) {
	dist, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !dist.CanTransition(next) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			"cannot transition distribution from "+string(dist.Status)+" to "+string(next))
	}
	if err := s.distributions.UpdateStatus(ctx, tenantID, id, dist.Status, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "distribution status changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "distribution transition failed")
	}
	dist.Status = next
	s.logger.Info("distribution transitioned",
		zap.String("distribution_id", id),
		zap.String("status", string(next)))
	return dist, nil
}

// CloseForJob completes all live distributions of a job, used when the
// posting subsystem reports the job closed.
func (s *DistributionService) CloseForJob(ctx context.Context, tenantID, jobID string) (int64, error) {
	closed, err := s.distributions.CloseForJob(ctx, tenantID, jobID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "job close failed")
	}
	if closed > 0 {
		s.logger.Info("distributions closed for job",
			zap.String("job_id", jobID),
			zap.Int64("count", closed))
	}
	return closed, nil
}
