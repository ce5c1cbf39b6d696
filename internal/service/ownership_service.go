package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/internal/repository"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
)

type ownershipRepository interface {
	FindActiveByCandidate(ctx context.Context, tenantID, candidateID string, now time.Time) (*models.OwnershipRecord, error)
	Claim(ctx context.Context, record *models.OwnershipRecord) error
	Release(ctx context.Context, tenantID, id, reason string) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type candidateRepository interface {
	FindByNormalizedField(ctx context.Context, tenantID, field, value string) (*models.Candidate, error)
	FindByID(ctx context.Context, tenantID, id string) (*models.Candidate, error)
	Create(ctx context.Context, candidate *models.Candidate) error
	Enrich(ctx context.Context, tenantID, id, skills string, yearsExperience int, availability *time.Time) error
}

// OwnershipService enforces the first-submitter-owns-the-fee rule.
type OwnershipService struct {
	ownership        ownershipRepository
	candidates       candidateRepository
	protectionPeriod time.Duration
	logger           *zap.Logger
	now              func() time.Time
}

// NewOwnershipService constructs the service. protectionPeriod defaults to
// 365 days when zero.
func NewOwnershipService(ownership ownershipRepository, candidates candidateRepository, protectionPeriod time.Duration, logger *zap.Logger) *OwnershipService {
	if protectionPeriod <= 0 {
		protectionPeriod = 365 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OwnershipService{
		ownership:        ownership,
		candidates:       candidates,
		protectionPeriod: protectionPeriod,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// identity lookup priority: email, then phone, then LinkedIn, then name.
// The name match is last because it is the weakest signal.
var identityFields = []struct {
	column    string
	matchedOn string
	normalize func(models.CandidateIdentity) string
}{
	{"normalized_email", "email", func(i models.CandidateIdentity) string { return NormalizeEmail(i.Email) }},
	{"normalized_phone", "phone", func(i models.CandidateIdentity) string { return NormalizePhone(i.Phone) }},
	{"normalized_linkedin", "linkedin", func(i models.CandidateIdentity) string { return NormalizeLinkedIn(i.LinkedInURL) }},
	{"normalized_name", "name", func(i models.CandidateIdentity) string { return NormalizeName(i.FullName) }},
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips everything but digits, keeping a leading plus.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range phone {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeLinkedIn reduces a profile URL to its lowercase host+path form.
func NormalizeLinkedIn(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	return strings.TrimPrefix(u.Host, "www.") + strings.TrimRight(u.Path, "/")
}

// NormalizeName folds case and collapses interior whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// FindCandidate resolves a candidate by identity, trying each normalized
// field in priority order. Returns the candidate and which field matched,
// or sql.ErrNoRows when unknown.
func (s *OwnershipService) FindCandidate(ctx context.Context, tenantID string, identity models.CandidateIdentity) (*models.Candidate, string, error) {
	for _, field := range identityFields {
		value := field.normalize(identity)
		if value == "" {
			continue
		}
		candidate, err := s.candidates.FindByNormalizedField(ctx, tenantID, field.column, value)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "candidate lookup failed")
		}
		return candidate, field.matchedOn, nil
	}
	return nil, "", sql.ErrNoRows
}

// CheckDuplicate reports whether the identity is already owned and by whom.
// Expired records count as absent regardless of the cleanup sweep.
func (s *OwnershipService) CheckDuplicate(ctx context.Context, tenantID string, identity models.CandidateIdentity) (*models.OwnershipStatus, error) {
	candidate, matchedOn, err := s.FindCandidate(ctx, tenantID, identity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.OwnershipStatus{Owned: false}, nil
		}
		return nil, err
	}
	record, err := s.ownership.FindActiveByCandidate(ctx, tenantID, candidate.ID, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.OwnershipStatus{Owned: false}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ownership lookup failed")
	}
	return &models.OwnershipStatus{
		Owned:         true,
		OwnerAgencyID: record.AgencyID,
		ExpiresAt:     record.ExpiresAt,
		MatchedOn:     matchedOn,
	}, nil
}

// Claim atomically grants ownership of the candidate to the agency. A racing
// claim surfaces as ErrOwnershipConflict; nothing is ever overwritten.
func (s *OwnershipService) Claim(ctx context.Context, tenantID, candidateID, agencyID, jobID string) (*models.OwnershipRecord, error) {
	now := s.now()
	record := &models.OwnershipRecord{
		TenantID:         tenantID,
		AgencyID:         agencyID,
		CandidateID:      candidateID,
		OriginatingJobID: jobID,
		FirstSubmittedAt: now,
		ExpiresAt:        now.Add(s.protectionPeriod),
	}
	if err := s.ownership.Claim(ctx, record); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			s.logger.Info("ownership claim lost race",
				zap.String("candidate_id", candidateID),
				zap.String("agency_id", agencyID))
			return nil, appErrors.ErrOwnershipConflict
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ownership claim failed")
	}
	return record, nil
}

// Release resolves a dispute by deactivating the record.
func (s *OwnershipService) Release(ctx context.Context, tenantID, ownershipID, reason string) error {
	if err := s.ownership.Release(ctx, tenantID, ownershipID, reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "ownership record not found or already released")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ownership release failed")
	}
	return nil
}

// SweepExpired retires expired records. Reads never depend on this; it keeps
// the active partial index small.
func (s *OwnershipService) SweepExpired(ctx context.Context) (int64, error) {
	retired, err := s.ownership.DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ownership sweep failed")
	}
	if retired > 0 {
		s.logger.Info("ownership sweep retired records", zap.Int64("count", retired))
	}
	return retired, nil
}
