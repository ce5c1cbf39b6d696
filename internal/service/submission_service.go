package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/internal/repository"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
)

// SubmitCandidateInput carries the identity an agency puts forward under a
// distribution. At least one identity field must be present.
type SubmitCandidateInput struct {
	DistributionID string `json:"distribution_id" validate:"required,uuid"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone"`
	LinkedInURL    string `json:"linkedin_url" validate:"omitempty,url"`
	FullName       string `json:"full_name"`
}

func (in SubmitCandidateInput) identity() models.CandidateIdentity {
	return models.CandidateIdentity{
		Email:       in.Email,
		Phone:       in.Phone,
		LinkedInURL: in.LinkedInURL,
		FullName:    in.FullName,
	}
}

// SubmissionResult is the outcome of a successful candidate submission.
type SubmissionResult struct {
	CandidateID  string                  `json:"candidate_id"`
	Submission   *models.Submission      `json:"submission"`
	Ownership    *models.OwnershipRecord `json:"ownership,omitempty"`
	Distribution *models.Distribution    `json:"distribution"`
}

// SubmissionService orchestrates candidate submission: identity resolution,
// the ownership claim, the distribution cap reservation and the submission
// record. A failed step compensates the previous one so a rejected
// submission leaves no partial state behind.
type SubmissionService struct {
	distributions distributionRepository
	candidates    candidateRepository
	ownership     *OwnershipService
	validate      *validator.Validate
	logger        *zap.Logger
}

// NewSubmissionService constructs the service.
func NewSubmissionService(distributions distributionRepository, candidates candidateRepository, ownership *OwnershipService, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		distributions: distributions,
		candidates:    candidates,
		ownership:     ownership,
		validate:      validator.New(),
		logger:        logger,
	}
}

// Submit puts a candidate forward under a distribution.
func (s *SubmissionService) Submit(ctx context.Context, tenantID, agencyID string, input SubmitCandidateInput) (*SubmissionResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission request")
	}
	identity := input.identity()
	if NormalizeEmail(identity.Email) == "" && NormalizePhone(identity.Phone) == "" &&
		NormalizeLinkedIn(identity.LinkedInURL) == "" && NormalizeName(identity.FullName) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one candidate identity field is required")
	}

	dist, err := s.distributions.FindByID(ctx, tenantID, input.DistributionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "distribution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "distribution lookup failed")
	}
	if dist.AgencyID != agencyID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "distribution belongs to another agency")
	}
	if dist.Status != models.DistributionActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			"distribution is "+string(dist.Status)+"; submissions require ACTIVE")
	}

	candidate, err := s.resolveCandidate(ctx, tenantID, identity)
	if err != nil {
		return nil, err
	}

	// Ownership first: an identity owned by another agency fails fast before
	// the cap slot is touched.
	status, err := s.ownership.CheckDuplicate(ctx, tenantID, identity)
	if err != nil {
		return nil, err
	}
	var claimed *models.OwnershipRecord
	switch {
	case status.Owned && status.OwnerAgencyID != agencyID:
		return nil, appErrors.ErrOwnershipConflict
	case status.Owned:
		// Already owned by the submitting agency; no new claim needed.
	default:
		claimed, err = s.ownership.Claim(ctx, tenantID, candidate.ID, agencyID, dist.JobID)
		if err != nil {
			return nil, err
		}
	}

	reserved, err := s.distributions.ReserveSubmission(ctx, tenantID, dist.ID)
	if err != nil {
		// Undo a claim made for this submission so the rejection leaves no
		// dangling protection.
		s.releaseClaim(ctx, tenantID, claimed)
		claimed = nil
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrDistributionCapReached
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "submission reservation failed")
	}

	sub := &models.Submission{
		TenantID:       tenantID,
		DistributionID: dist.ID,
		CandidateID:    candidate.ID,
		AgencyID:       agencyID,
		JobID:          dist.JobID,
	}
	if err := s.distributions.CreateSubmission(ctx, sub); err != nil {
		// Hand the cap slot back and undo the claim; a rejected submission
		// must leave neither a consumed slot nor dangling protection.
		if relErr := s.distributions.ReleaseReservation(ctx, tenantID, dist.ID); relErr != nil {
			s.logger.Error("failed to release cap reservation after rejected submission",
				zap.String("distribution_id", dist.ID), zap.Error(relErr))
		}
		s.releaseClaim(ctx, tenantID, claimed)
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "candidate already submitted under this distribution")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "submission create failed")
	}

	s.logger.Info("candidate submitted",
		zap.String("submission_id", sub.ID),
		zap.String("distribution_id", dist.ID),
		zap.String("candidate_id", candidate.ID),
		zap.String("agency_id", agencyID))

	return &SubmissionResult{
		CandidateID:  candidate.ID,
		Submission:   sub,
		Ownership:    claimed,
		Distribution: reserved,
	}, nil
}

// releaseClaim undoes an ownership claim made for a submission that was
// rejected later in the sequence. Nil records are ignored.
func (s *SubmissionService) releaseClaim(ctx context.Context, tenantID string, claimed *models.OwnershipRecord) {
	if claimed == nil {
		return
	}
	if err := s.ownership.Release(ctx, tenantID, claimed.ID, "submission rejected"); err != nil {
		s.logger.Error("failed to release ownership after rejected submission",
			zap.String("ownership_id", claimed.ID), zap.Error(err))
	}
}

// resolveCandidate finds an existing candidate by identity or registers a
// new one with its normalized identity columns.
func (s *SubmissionService) resolveCandidate(ctx context.Context, tenantID string, identity models.CandidateIdentity) (*models.Candidate, error) {
	candidate, _, err := s.ownership.FindCandidate(ctx, tenantID, identity)
	if err == nil {
		return candidate, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	candidate = &models.Candidate{
		TenantID:           tenantID,
		Email:              identity.Email,
		Phone:              identity.Phone,
		LinkedInURL:        identity.LinkedInURL,
		FullName:           identity.FullName,
		NormalizedEmail:    NormalizeEmail(identity.Email),
		NormalizedPhone:    NormalizePhone(identity.Phone),
		NormalizedLinkedIn: NormalizeLinkedIn(identity.LinkedInURL),
		NormalizedName:     NormalizeName(identity.FullName),
	}
	if err := s.candidates.Create(ctx, candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "candidate create failed")
	}
	return candidate, nil
}
