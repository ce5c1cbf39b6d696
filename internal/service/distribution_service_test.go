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

type distributionRepoStub struct {
	dists      map[string]models.Distribution
	createErr  error
	updateErr  error
	reserveErr error

	submissions   []*models.Submission
	submissionErr error
	released      int
	closed        int64
}

func (s *distributionRepoStub) Create(ctx context.Context, dist *models.Distribution) error {
	if s.createErr != nil {
		return s.createErr
	}
	if s.dists == nil {
		s.dists = make(map[string]models.Distribution)
	}
	dist.ID = "dist-" + dist.JobID + "-" + dist.AgencyID
	s.dists[dist.ID] = *dist
	return nil
}

func (s *distributionRepoStub) FindByID(ctx context.Context, tenantID, id string) (*models.Distribution, error) {
	if dist, ok := s.dists[id]; ok {
		found := dist
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (s *distributionRepoStub) List(ctx context.Context, tenantID string, filter models.DistributionFilter) ([]models.Distribution, error) {
	var result []models.Distribution
	for _, dist := range s.dists {
		result = append(result, dist)
	}
	return result, nil
}

func (s *distributionRepoStub) UpdateStatus(ctx context.Context, tenantID, id string, current, next models.DistributionStatus) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	dist, ok := s.dists[id]
	if !ok || dist.Status != current {
		return sql.ErrNoRows
	}
	dist.Status = next
	s.dists[id] = dist
	return nil
}

func (s *distributionRepoStub) ReserveSubmission(ctx context.Context, tenantID, id string) (*models.Distribution, error) {
	if s.reserveErr != nil {
		return nil, s.reserveErr
	}
	dist, ok := s.dists[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if dist.MaxCandidates != nil && dist.SubmittedCount >= *dist.MaxCandidates {
		return nil, sql.ErrNoRows
	}
	dist.SubmittedCount++
	if dist.MaxCandidates != nil && dist.SubmittedCount >= *dist.MaxCandidates {
		dist.Status = models.DistributionCompleted
	}
	s.dists[id] = dist
	found := dist
	return &found, nil
}

func (s *distributionRepoStub) ReleaseReservation(ctx context.Context, tenantID, id string) error {
	dist, ok := s.dists[id]
	if !ok || dist.SubmittedCount == 0 {
		return sql.ErrNoRows
	}
	dist.SubmittedCount--
	if dist.Status == models.DistributionCompleted && dist.MaxCandidates != nil && dist.SubmittedCount < *dist.MaxCandidates {
		dist.Status = models.DistributionActive
	}
	s.dists[id] = dist
	s.released++
	return nil
}

func (s *distributionRepoStub) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if s.submissionErr != nil {
		return s.submissionErr
	}
	sub.ID = "sub-1"
	s.submissions = append(s.submissions, sub)
	return nil
}

func (s *distributionRepoStub) CloseForJob(ctx context.Context, tenantID, jobID string) (int64, error) {
	return s.closed, nil
}

func distTestJobs() *jobReaderStub {
	return &jobReaderStub{jobs: map[string]models.Job{
		"6b4f6a1e-0000-4000-8000-000000000001": {ID: "6b4f6a1e-0000-4000-8000-000000000001", Category: "ENGINEERING"},
	}}
}

const (
	distTestJobID    = "6b4f6a1e-0000-4000-8000-000000000001"
	distTestAgencyID = "6b4f6a1e-0000-4000-8000-000000000002"
)

func TestCreateDistributionExclusivityConflict(t *testing.T) {
	repo := &distributionRepoStub{createErr: repository.ErrExclusiveHeld}
	svc := NewDistributionService(repo, distTestJobs(), nil)

	_, err := svc.Create(context.Background(), "t1", CreateDistributionInput{
		JobID:    distTestJobID,
		AgencyID: distTestAgencyID,
		Tier:     models.TierExclusive,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExclusivityConflict.Code, appErrors.FromError(err).Code)
}

func TestCreateDistributionDuplicatePair(t *testing.T) {
	repo := &distributionRepoStub{createErr: repository.ErrUniqueViolation}
	svc := NewDistributionService(repo, distTestJobs(), nil)

	_, err := svc.Create(context.Background(), "t1", CreateDistributionInput{
		JobID:    distTestJobID,
		AgencyID: distTestAgencyID,
		Tier:     models.TierStandard,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCreateDistributionExclusiveUntilRequiresExclusiveTier(t *testing.T) {
	svc := NewDistributionService(&distributionRepoStub{}, distTestJobs(), nil)
	until := time.Now().UTC().Add(48 * time.Hour)
	_, err := svc.Create(context.Background(), "t1", CreateDistributionInput{
		JobID:          distTestJobID,
		AgencyID:       distTestAgencyID,
		Tier:           models.TierStandard,
		ExclusiveUntil: &until,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateDistributionUnknownJob(t *testing.T) {
	svc := NewDistributionService(&distributionRepoStub{}, &jobReaderStub{}, nil)
	_, err := svc.Create(context.Background(), "t1", CreateDistributionInput{
		JobID:    distTestJobID,
		AgencyID: distTestAgencyID,
		Tier:     models.TierOpen,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTransitionFollowsStateMachine(t *testing.T) {
	repo := &distributionRepoStub{dists: map[string]models.Distribution{
		"dist-1": {ID: "dist-1", Status: models.DistributionPending},
	}}
	svc := NewDistributionService(repo, distTestJobs(), nil)

	dist, err := svc.Transition(context.Background(), "t1", "dist-1", models.DistributionActive)
	require.NoError(t, err)
	assert.Equal(t, models.DistributionActive, dist.Status)

	dist, err = svc.Transition(context.Background(), "t1", "dist-1", models.DistributionPaused)
	require.NoError(t, err)
	assert.Equal(t, models.DistributionPaused, dist.Status)

	dist, err = svc.Transition(context.Background(), "t1", "dist-1", models.DistributionActive)
	require.NoError(t, err)
	assert.Equal(t, models.DistributionActive, dist.Status)
}

func TestTransitionRejectsInvalidMove(t *testing.T) {
	repo := &distributionRepoStub{dists: map[string]models.Distribution{
		"dist-1": {ID: "dist-1", Status: models.DistributionPending},
	}}
	svc := NewDistributionService(repo, distTestJobs(), nil)

	_, err := svc.Transition(context.Background(), "t1", "dist-1", models.DistributionPaused)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestTransitionTerminalStatesAreFinal(t *testing.T) {
	repo := &distributionRepoStub{dists: map[string]models.Distribution{
		"dist-done":      {ID: "dist-done", Status: models.DistributionCompleted},
		"dist-cancelled": {ID: "dist-cancelled", Status: models.DistributionCancelled},
	}}
	svc := NewDistributionService(repo, distTestJobs(), nil)

	for _, id := range []string{"dist-done", "dist-cancelled"} {
		_, err := svc.Transition(context.Background(), "t1", id, models.DistributionActive)
		require.Error(t, err, id)
		assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	}
}

func TestTransitionConcurrentChange(t *testing.T) {
	repo := &distributionRepoStub{
		dists: map[string]models.Distribution{
			"dist-1": {ID: "dist-1", Status: models.DistributionActive},
		},
		updateErr: sql.ErrNoRows,
	}
	svc := NewDistributionService(repo, distTestJobs(), nil)

	_, err := svc.Transition(context.Background(), "t1", "dist-1", models.DistributionPaused)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}
