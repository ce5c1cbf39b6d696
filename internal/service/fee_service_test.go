package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitos/vendor-engine/internal/models"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
)

type rateCardRepoStub struct {
	cards []models.RateCard
	lines map[string][]models.RateLine
}

func (s *rateCardRepoStub) FindValidCards(ctx context.Context, tenantID, agencyID string, companyID, agreementID *string, at time.Time) ([]models.RateCard, error) {
	return s.cards, nil
}

func (s *rateCardRepoStub) ListLines(ctx context.Context, cardID string) ([]models.RateLine, error) {
	return s.lines[cardID], nil
}

type feeRepoStub struct {
	fees       map[string]models.PlacementFee
	placements int
	linkErr    error
	linked     [][2]string
}

func (s *feeRepoStub) Create(ctx context.Context, fee *models.PlacementFee) error {
	if s.fees == nil {
		s.fees = make(map[string]models.PlacementFee)
	}
	fee.ID = "fee-1"
	s.fees[fee.ID] = *fee
	return nil
}

func (s *feeRepoStub) FindByID(ctx context.Context, tenantID, id string) (*models.PlacementFee, error) {
	if fee, ok := s.fees[id]; ok {
		found := fee
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (s *feeRepoStub) LinkBudgetTransaction(ctx context.Context, tenantID, feeID, transactionID string) error {
	if s.linkErr != nil {
		return s.linkErr
	}
	s.linked = append(s.linked, [2]string{feeID, transactionID})
	return nil
}

func (s *feeRepoStub) CountPlacementsSince(ctx context.Context, tenantID, agencyID string, since time.Time) (int, error) {
	return s.placements, nil
}

type feeLedgerStub struct {
	txns    []*models.BudgetTransaction
	refunds []*models.BudgetTransaction
	postErr error
}

func (s *feeLedgerStub) PostDeduction(ctx context.Context, tenantID, budgetID string, amountCents int64, source string) (*models.BudgetTransaction, error) {
	if s.postErr != nil {
		return nil, s.postErr
	}
	txn := &models.BudgetTransaction{
		ID:          "txn-1",
		BudgetID:    budgetID,
		Type:        models.TxnDeduction,
		AmountCents: amountCents,
		SourceID:    source,
	}
	s.txns = append(s.txns, txn)
	return txn, nil
}

func (s *feeLedgerStub) PostRefund(ctx context.Context, tenantID, budgetID string, amountCents int64, source string) (*models.BudgetTransaction, error) {
	txn := &models.BudgetTransaction{
		ID:          "txn-refund",
		BudgetID:    budgetID,
		Type:        models.TxnRefund,
		AmountCents: amountCents,
		SourceID:    source,
	}
	s.refunds = append(s.refunds, txn)
	return txn, nil
}

func percentageLine(bps int64) *models.RateLine {
	return &models.RateLine{
		ID:      "line-pct",
		FeeType: models.FeePercentage,
		Terms:   models.FeeTerms{Percentage: &models.PercentageTerms{PercentageBps: bps}},
	}
}

func TestComputeFeePercentage(t *testing.T) {
	// 15% of 80,000.00 in minor units.
	fee, err := ComputeFee(percentageLine(1500), 8000000, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1200000, fee)
}

func TestComputeFeeRoundsHalfUp(t *testing.T) {
	// 0.15% of 333 cents = 0.4995, rounds down to 0.
	fee, err := ComputeFee(percentageLine(15), 333, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, fee)

	// 1% of 49 cents = 0.49, rounds down to 0.
	fee, err = ComputeFee(percentageLine(100), 49, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, fee)

	// 1% of 50 cents = 0.5, rounds up to 1.
	fee, err = ComputeFee(percentageLine(100), 50, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fee)
}

func TestComputeFeeDeterministic(t *testing.T) {
	line := percentageLine(1234)
	first, err := ComputeFee(line, 7654321, 0)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ComputeFee(line, 7654321, 0)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestComputeFeeFixed(t *testing.T) {
	line := &models.RateLine{
		FeeType: models.FeeFixed,
		Terms:   models.FeeTerms{Fixed: &models.FixedTerms{AmountCents: 500000}},
	}
	fee, err := ComputeFee(line, 9999999, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 500000, fee)
}

func TestComputeFeeHourlyMarkup(t *testing.T) {
	line := &models.RateLine{
		FeeType: models.FeeHourlyMarkup,
		Terms: models.FeeTerms{HourlyMarkup: &models.HourlyMarkupTerms{
			HourlyRateCents: 10000,
			MarkupBps:       2000,
		}},
	}
	// 20% of 100.00/h = 20.00/h.
	perHour, err := ComputeFee(line, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2000, perHour)

	total, err := ComputeFee(line, 0, 160)
	require.NoError(t, err)
	assert.EqualValues(t, 320000, total)
}

func TestComputeFeeHourlyMarkupFixedAmount(t *testing.T) {
	line := &models.RateLine{
		FeeType: models.FeeHourlyMarkup,
		Terms: models.FeeTerms{HourlyMarkup: &models.HourlyMarkupTerms{
			HourlyRateCents: 10000,
			MarkupCents:     1500,
		}},
	}
	total, err := ComputeFee(line, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 15000, total)
}

func TestComputeFeeTieredBrackets(t *testing.T) {
	line := &models.RateLine{
		FeeType: models.FeeTiered,
		Terms: models.FeeTerms{Tiered: &models.TieredTerms{Brackets: []models.TieredBracket{
			{FromCents: 0, ToCents: 5000000, PercentageBps: 2000},
			{FromCents: 5000000, ToCents: 10000000, PercentageBps: 1500},
			{FromCents: 10000000, ToCents: 0, PercentageBps: 1000},
		}}},
	}

	// Below the first boundary: 20%.
	fee, err := ComputeFee(line, 4000000, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 800000, fee)

	// Exactly on a boundary falls into the higher bracket: 15% of 50,000.00.
	fee, err = ComputeFee(line, 5000000, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 750000, fee)

	// Unbounded top bracket.
	fee, err = ComputeFee(line, 20000000, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2000000, fee)
}

func TestComputeFeeTieredOutsideBrackets(t *testing.T) {
	line := &models.RateLine{
		FeeType: models.FeeTiered,
		Terms: models.FeeTerms{Tiered: &models.TieredTerms{Brackets: []models.TieredBracket{
			{FromCents: 1000000, ToCents: 2000000, PercentageBps: 1500},
		}}},
	}
	_, err := ComputeFee(line, 500, 0)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoApplicableRateLine.Code, appErrors.FromError(err).Code)
}

func TestSeniorityBand(t *testing.T) {
	assert.Equal(t, "JUNIOR", seniorityBand(1))
	assert.Equal(t, "JUNIOR", seniorityBand(2))
	assert.Equal(t, "MID", seniorityBand(4))
	assert.Equal(t, "SENIOR", seniorityBand(6))
	assert.Equal(t, "EXECUTIVE", seniorityBand(7))
}

func TestResolveCardPrefersMostSpecific(t *testing.T) {
	companyID := "company-1"
	agreementID := "agreement-1"
	repo := &rateCardRepoStub{cards: []models.RateCard{
		{ID: "card-default"},
		{ID: "card-company", CompanyID: &companyID},
		{ID: "card-agreement", CompanyID: &companyID, AgreementID: &agreementID},
	}}
	svc := NewFeeService(repo, &feeRepoStub{}, &jobReaderStub{}, nil, nil)

	card, err := svc.ResolveCard(context.Background(), "t1", "agency-a", &companyID, &agreementID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "card-agreement", card.ID)
}

func TestResolveCardAmbiguousAtSameSpecificity(t *testing.T) {
	companyID := "company-1"
	repo := &rateCardRepoStub{cards: []models.RateCard{
		{ID: "card-a", CompanyID: &companyID},
		{ID: "card-b", CompanyID: &companyID},
	}}
	svc := NewFeeService(repo, &feeRepoStub{}, &jobReaderStub{}, nil, nil)

	_, err := svc.ResolveCard(context.Background(), "t1", "agency-a", &companyID, nil, time.Now())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAmbiguousRateCard.Code, appErrors.FromError(err).Code)
}

func TestResolveCardNoneValid(t *testing.T) {
	svc := NewFeeService(&rateCardRepoStub{}, &feeRepoStub{}, &jobReaderStub{}, nil, nil)
	_, err := svc.ResolveCard(context.Background(), "t1", "agency-a", nil, nil, time.Now())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoApplicableRateLine.Code, appErrors.FromError(err).Code)
}

func TestSelectLineAmbiguous(t *testing.T) {
	repo := &rateCardRepoStub{lines: map[string][]models.RateLine{
		"card-1": {
			{ID: "line-a", Category: "ENGINEERING", SeniorityLevel: "MID", FeeType: models.FeePercentage},
			{ID: "line-b", Category: "ENGINEERING", SeniorityLevel: "MID", FeeType: models.FeeFixed},
		},
	}}
	svc := NewFeeService(repo, &feeRepoStub{}, &jobReaderStub{}, nil, nil)

	_, err := svc.SelectLine(context.Background(), &models.RateCard{ID: "card-1"}, "ENGINEERING", "MID", 5000000)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAmbiguousRateLine.Code, appErrors.FromError(err).Code)
}

func TestSelectLineCompensationBandDisambiguates(t *testing.T) {
	low := int64(0)
	mid := int64(5000000)
	repo := &rateCardRepoStub{lines: map[string][]models.RateLine{
		"card-1": {
			{ID: "line-low", Category: "ENGINEERING", SeniorityLevel: "MID", CompensationMinCents: &low, CompensationMaxCents: &mid},
			{ID: "line-high", Category: "ENGINEERING", SeniorityLevel: "MID", CompensationMinCents: &mid},
		},
	}}
	svc := NewFeeService(repo, &feeRepoStub{}, &jobReaderStub{}, nil, nil)

	line, err := svc.SelectLine(context.Background(), &models.RateCard{ID: "card-1"}, "ENGINEERING", "MID", 7000000)
	require.NoError(t, err)
	assert.Equal(t, "line-high", line.ID)
}

func feeCalculateFixture(placements int, line models.RateLine) (*FeeService, *feeRepoStub) {
	cards := &rateCardRepoStub{
		cards: []models.RateCard{{ID: "card-1", Currency: "EUR"}},
		lines: map[string][]models.RateLine{"card-1": {line}},
	}
	fees := &feeRepoStub{placements: placements}
	jobs := &jobReaderStub{jobs: map[string]models.Job{
		"6b4f6a1e-0000-4000-8000-000000000020": {
			ID:                "6b4f6a1e-0000-4000-8000-000000000020",
			Category:          "ENGINEERING",
			SeniorityLevel:    4,
			CompensationCents: 8000000,
		},
	}}
	return NewFeeService(cards, fees, jobs, nil, nil), fees
}

func feeCalculateInput() CalculateFeeInput {
	return CalculateFeeInput{
		AgencyID:     "6b4f6a1e-0000-4000-8000-000000000021",
		JobID:        "6b4f6a1e-0000-4000-8000-000000000020",
		ContractType: "PERMANENT",
	}
}

func TestCalculateUsesJobCompensationDefault(t *testing.T) {
	line := *percentageLine(1500)
	line.Category = "ENGINEERING"
	line.SeniorityLevel = "MID"
	svc, _ := feeCalculateFixture(0, line)

	fee, err := svc.Calculate(context.Background(), "t1", feeCalculateInput())
	require.NoError(t, err)
	assert.EqualValues(t, 1200000, fee.FeeCents)
	assert.Equal(t, "EUR", fee.Currency)
	assert.EqualValues(t, 8000000, fee.CompensationCents)
	assert.EqualValues(t, 0, fee.VolumeDiscountCents)
}

func TestCalculateAppliesVolumeDiscount(t *testing.T) {
	threshold := 5
	line := *percentageLine(1500)
	line.Category = "ENGINEERING"
	line.SeniorityLevel = "MID"
	line.VolumeThreshold = &threshold
	line.VolumeDiscountBps = 1000
	svc, _ := feeCalculateFixture(6, line)

	fee, err := svc.Calculate(context.Background(), "t1", feeCalculateInput())
	require.NoError(t, err)
	// 10% off 12,000.00.
	assert.EqualValues(t, 120000, fee.VolumeDiscountCents)
	assert.EqualValues(t, 1080000, fee.FeeCents)
}

func TestCalculateBelowVolumeThresholdNoDiscount(t *testing.T) {
	threshold := 5
	line := *percentageLine(1500)
	line.Category = "ENGINEERING"
	line.SeniorityLevel = "MID"
	line.VolumeThreshold = &threshold
	line.VolumeDiscountBps = 1000
	svc, _ := feeCalculateFixture(4, line)

	fee, err := svc.Calculate(context.Background(), "t1", feeCalculateInput())
	require.NoError(t, err)
	assert.EqualValues(t, 0, fee.VolumeDiscountCents)
	assert.EqualValues(t, 1200000, fee.FeeCents)
}

func TestPostDeductsAndLinks(t *testing.T) {
	line := *percentageLine(1500)
	line.Category = "ENGINEERING"
	line.SeniorityLevel = "MID"
	svc, fees := feeCalculateFixture(0, line)
	ledger := &feeLedgerStub{}
	svc.ledger = ledger

	fee, err := svc.Calculate(context.Background(), "t1", feeCalculateInput())
	require.NoError(t, err)

	txn, err := svc.Post(context.Background(), "t1", fee.ID, "budget-1")
	require.NoError(t, err)
	assert.EqualValues(t, fee.FeeCents, txn.AmountCents)
	require.Len(t, fees.linked, 1)
	assert.Equal(t, [2]string{fee.ID, txn.ID}, fees.linked[0])
}

func TestPostAlreadyPostedFee(t *testing.T) {
	txnID := "txn-prev"
	fees := &feeRepoStub{fees: map[string]models.PlacementFee{
		"fee-1": {ID: "fee-1", FeeCents: 1000, BudgetTransactionID: &txnID},
	}}
	svc := NewFeeService(&rateCardRepoStub{}, fees, &jobReaderStub{}, &feeLedgerStub{}, nil)

	_, err := svc.Post(context.Background(), "t1", "fee-1", "budget-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPostConcurrentLinkRefundsDuplicateDeduction(t *testing.T) {
	fees := &feeRepoStub{
		fees:    map[string]models.PlacementFee{"fee-1": {ID: "fee-1", FeeCents: 1000}},
		linkErr: sql.ErrNoRows,
	}
	ledger := &feeLedgerStub{}
	svc := NewFeeService(&rateCardRepoStub{}, fees, &jobReaderStub{}, ledger, nil)

	_, err := svc.Post(context.Background(), "t1", "fee-1", "budget-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.Len(t, ledger.refunds, 1, "losing poster must hand its deduction back")
	assert.EqualValues(t, 1000, ledger.refunds[0].AmountCents)
	assert.Equal(t, "budget-1", ledger.refunds[0].BudgetID)
	assert.Equal(t, "placement_fee:fee-1", ledger.refunds[0].SourceID)
}

func TestPostBudgetExceededPassesThrough(t *testing.T) {
	fees := &feeRepoStub{fees: map[string]models.PlacementFee{"fee-1": {ID: "fee-1", FeeCents: 1000}}}
	svc := NewFeeService(&rateCardRepoStub{}, fees, &jobReaderStub{}, &feeLedgerStub{postErr: appErrors.ErrBudgetExceeded}, nil)

	_, err := svc.Post(context.Background(), "t1", "fee-1", "budget-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBudgetExceeded.Code, appErrors.FromError(err).Code)
}
