package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/recruitos/vendor-engine/internal/models"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
)

type rateCardRepository interface {
	FindValidCards(ctx context.Context, tenantID, agencyID string, companyID, agreementID *string, at time.Time) ([]models.RateCard, error)
	ListLines(ctx context.Context, cardID string) ([]models.RateLine, error)
}

type feeRepository interface {
	Create(ctx context.Context, fee *models.PlacementFee) error
	FindByID(ctx context.Context, tenantID, id string) (*models.PlacementFee, error)
	LinkBudgetTransaction(ctx context.Context, tenantID, feeID, transactionID string) error
	CountPlacementsSince(ctx context.Context, tenantID, agencyID string, since time.Time) (int, error)
}

type feeBudgetLedger interface {
	PostDeduction(ctx context.Context, tenantID, budgetID string, amountCents int64, source string) (*models.BudgetTransaction, error)
	PostRefund(ctx context.Context, tenantID, budgetID string, amountCents int64, source string) (*models.BudgetTransaction, error)
}

// CalculateFeeInput prices one placement.
type CalculateFeeInput struct {
	AgencyID          string  `json:"agency_id" validate:"required,uuid"`
	JobID             string  `json:"job_id" validate:"required,uuid"`
	CompanyID         *string `json:"company_id" validate:"omitempty,uuid"`
	AgreementID       *string `json:"agreement_id" validate:"omitempty,uuid"`
	PlacementID       *string `json:"placement_id" validate:"omitempty,uuid"`
	ContractType      string  `json:"contract_type" validate:"required,oneof=PERMANENT CONTRACT TEMP"`
	CompensationCents int64   `json:"compensation_cents" validate:"omitempty,gt=0"`
	BilledHours       int64   `json:"billed_hours" validate:"omitempty,gt=0"`
}

// FeeService resolves rate cards and computes placement fees. All money is in
// integer minor units; percentages are basis points.
type FeeService struct {
	rateCards rateCardRepository
	fees      feeRepository
	jobs      jobReader
	ledger    feeBudgetLedger
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFeeService constructs the service. ledger may be nil when fee posting is
// handled elsewhere.
func NewFeeService(rateCards rateCardRepository, fees feeRepository, jobs jobReader, ledger feeBudgetLedger, logger *zap.Logger) *FeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{
		rateCards: rateCards,
		fees:      fees,
		jobs:      jobs,
		ledger:    ledger,
		validate:  validator.New(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// roundHalfUpBps applies a basis-point percentage to an amount in minor units,
// rounding half-up. amount and bps are non-negative.
func roundHalfUpBps(amountCents, bps int64) int64 {
	return (amountCents*bps + 5000) / 10000
}

// seniorityBand maps the numeric job seniority level onto the labels rate
// lines are keyed by.
func seniorityBand(level int) string {
	switch {
	case level <= 2:
		return "JUNIOR"
	case level <= 4:
		return "MID"
	case level <= 6:
		return "SENIOR"
	default:
		return "EXECUTIVE"
	}
}

// ResolveCard picks the applicable rate card at the pricing instant:
// agreement-scoped beats company-scoped beats agency default. Two cards at
// the same specificity are a configuration error, never a silent pick.
func (s *FeeService) ResolveCard(ctx context.Context, tenantID, agencyID string, companyID, agreementID *string, at time.Time) (*models.RateCard, error) {
	cards, err := s.rateCards.FindValidCards(ctx, tenantID, agencyID, companyID, agreementID, at)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rate card lookup failed")
	}
	if len(cards) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoApplicableRateLine, "no valid rate card for agency at pricing time")
	}

	best := -1
	var resolved *models.RateCard
	ambiguous := false
	for i := range cards {
		spec := cards[i].Specificity()
		switch {
		case spec > best:
			best = spec
			resolved = &cards[i]
			ambiguous = false
		case spec == best:
			ambiguous = true
		}
	}
	if ambiguous {
		return nil, appErrors.ErrAmbiguousRateCard
	}
	return resolved, nil
}

// SelectLine filters the card's lines by category, seniority band and
// compensation range. More than one surviving line is ambiguous.
func (s *FeeService) SelectLine(ctx context.Context, card *models.RateCard, category, seniority string, compensationCents int64) (*models.RateLine, error) {
	lines, err := s.rateCards.ListLines(ctx, card.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rate line lookup failed")
	}
	var matched []models.RateLine
	for _, line := range lines {
		if line.Category != category || line.SeniorityLevel != seniority {
			continue
		}
		if !line.CoversCompensation(compensationCents) {
			continue
		}
		matched = append(matched, line)
	}
	switch len(matched) {
	case 0:
		return nil, appErrors.ErrNoApplicableRateLine
	case 1:
		return &matched[0], nil
	default:
		return nil, appErrors.ErrAmbiguousRateLine
	}
}

// ComputeFee is a pure function of (line, compensation, billed hours): the
// same inputs always produce the same fee.
func ComputeFee(line *models.RateLine, compensationCents, billedHours int64) (int64, error) {
	switch line.FeeType {
	case models.FeePercentage:
		if line.Terms.Percentage == nil {
			return 0, appErrors.Clone(appErrors.ErrNoApplicableRateLine, "percentage line missing terms")
		}
		return roundHalfUpBps(compensationCents, line.Terms.Percentage.PercentageBps), nil

	case models.FeeFixed:
		if line.Terms.Fixed == nil {
			return 0, appErrors.Clone(appErrors.ErrNoApplicableRateLine, "fixed line missing terms")
		}
		return line.Terms.Fixed.AmountCents, nil

	case models.FeeHourlyMarkup:
		terms := line.Terms.HourlyMarkup
		if terms == nil {
			return 0, appErrors.Clone(appErrors.ErrNoApplicableRateLine, "hourly markup line missing terms")
		}
		var perHour int64
		if terms.MarkupBps > 0 {
			perHour = roundHalfUpBps(terms.HourlyRateCents, terms.MarkupBps)
		} else {
			perHour = terms.MarkupCents
		}
		if billedHours > 0 {
			return perHour * billedHours, nil
		}
		return perHour, nil

	case models.FeeTiered:
		terms := line.Terms.Tiered
		if terms == nil || len(terms.Brackets) == 0 {
			return 0, appErrors.Clone(appErrors.ErrNoApplicableRateLine, "tiered line missing brackets")
		}
		for _, bracket := range terms.Brackets {
			upperOK := bracket.ToCents == 0 || compensationCents < bracket.ToCents
			if compensationCents >= bracket.FromCents && upperOK {
				return roundHalfUpBps(compensationCents, bracket.PercentageBps), nil
			}
		}
		return 0, appErrors.Clone(appErrors.ErrNoApplicableRateLine, "compensation outside all tiered brackets")

	default:
		return 0, appErrors.Clone(appErrors.ErrNoApplicableRateLine, "unknown fee type "+string(line.FeeType))
	}
}

// Calculate prices a placement and stores the immutable fee record.
func (s *FeeService) Calculate(ctx context.Context, tenantID string, input CalculateFeeInput) (*models.PlacementFee, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee request")
	}

	job, err := s.jobs.FindByID(ctx, tenantID, input.JobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "job lookup failed")
	}
	compensation := input.CompensationCents
	if compensation == 0 {
		compensation = job.CompensationCents
	}
	if compensation <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "compensation must be positive")
	}

	now := s.now()
	card, err := s.ResolveCard(ctx, tenantID, input.AgencyID, input.CompanyID, input.AgreementID, now)
	if err != nil {
		return nil, err
	}
	line, err := s.SelectLine(ctx, card, job.Category, seniorityBand(job.SeniorityLevel), compensation)
	if err != nil {
		return nil, err
	}

	feeCents, err := ComputeFee(line, compensation, input.BilledHours)
	if err != nil {
		return nil, err
	}

	// Volume discount applies as a final step when the agency's placement
	// count for the current calendar month meets the line's threshold.
	var discountCents int64
	if line.VolumeThreshold != nil && line.VolumeDiscountBps > 0 {
		periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		count, err := s.fees.CountPlacementsSince(ctx, tenantID, input.AgencyID, periodStart)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "placement count failed")
		}
		if count >= *line.VolumeThreshold {
			discountCents = roundHalfUpBps(feeCents, line.VolumeDiscountBps)
			feeCents -= discountCents
		}
	}

	fee := &models.PlacementFee{
		TenantID:            tenantID,
		AgencyID:            input.AgencyID,
		JobID:               input.JobID,
		PlacementID:         input.PlacementID,
		RateLineID:          line.ID,
		FeeType:             line.FeeType,
		CompensationCents:   compensation,
		ContractType:        input.ContractType,
		FeeCents:            feeCents,
		Currency:            card.Currency,
		VolumeDiscountCents: discountCents,
		CalculatedAt:        now,
	}
	if err := s.fees.Create(ctx, fee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "fee persist failed")
	}

	s.logger.Info("placement fee calculated",
		zap.String("fee_id", fee.ID),
		zap.String("agency_id", fee.AgencyID),
		zap.String("job_id", fee.JobID),
		zap.String("fee", models.FormatCents(fee.FeeCents)),
		zap.String("fee_type", string(fee.FeeType)))
	return fee, nil
}

// Get returns one placement fee.
func (s *FeeService) Get(ctx context.Context, tenantID, id string) (*models.PlacementFee, error) {
	fee, err := s.fees.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "placement fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "fee lookup failed")
	}
	return fee, nil
}

// Post deducts an already calculated fee from a budget and links the ledger
// entry to the fee. A fee can be posted once.
func (s *FeeService) Post(ctx context.Context, tenantID, feeID, budgetID string) (*models.BudgetTransaction, error) {
	if s.ledger == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "budget ledger not configured")
	}
	fee, err := s.Get(ctx, tenantID, feeID)
	if err != nil {
		return nil, err
	}
	if fee.BudgetTransactionID != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "placement fee already posted")
	}

	txn, err := s.ledger.PostDeduction(ctx, tenantID, budgetID, fee.FeeCents, "placement_fee:"+fee.ID)
	if err != nil {
		return nil, err
	}
	if err := s.fees.LinkBudgetTransaction(ctx, tenantID, feeID, txn.ID); err != nil {
		// The deduction above has no fee linked to it; refund it so the
		// budget is not charged for a posting that did not go through.
		if _, refundErr := s.ledger.PostRefund(ctx, tenantID, budgetID, fee.FeeCents, "placement_fee:"+fee.ID); refundErr != nil {
			s.logger.Error("failed to refund unlinked fee deduction",
				zap.String("fee_id", feeID),
				zap.String("budget_id", budgetID),
				zap.String("transaction_id", txn.ID),
				zap.Error(refundErr))
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "placement fee posted concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "fee link failed")
	}
	return txn, nil
}
