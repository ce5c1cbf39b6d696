package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/recruitos/vendor-engine/internal/models"
)

// RateCardRepository reads the versioned fee tables.
type RateCardRepository struct {
	db *sqlx.DB
}

// NewRateCardRepository creates a new rate card repository.
func NewRateCardRepository(db *sqlx.DB) *RateCardRepository {
	return &RateCardRepository{db: db}
}

// FindValidCards returns every card for the agency whose validity window
// contains at and whose company/agreement scope is compatible with the
// placement (unscoped, or scoped to the given company/agreement). Specificity
// ranking happens in the service so ties can fail loudly.
func (r *RateCardRepository) FindValidCards(ctx context.Context, tenantID, agencyID string, companyID, agreementID *string, at time.Time) ([]models.RateCard, error) {
	const query = `SELECT id, tenant_id, agency_id, company_id, agreement_id, currency, valid_from, valid_until, created_at
        FROM rate_cards
        WHERE tenant_id = $1 AND agency_id = $2
          AND valid_from <= $3 AND valid_until > $3
          AND (company_id IS NULL OR company_id = $4)
          AND (agreement_id IS NULL OR agreement_id = $5)
        ORDER BY created_at`
	var cards []models.RateCard
	if err := r.db.SelectContext(ctx, &cards, query, tenantID, agencyID, companyID, agreementID, at); err != nil {
		return nil, fmt.Errorf("find valid rate cards: %w", err)
	}
	return cards, nil
}

// ListLines returns the fee lines of one card.
func (r *RateCardRepository) ListLines(ctx context.Context, cardID string) ([]models.RateLine, error) {
	const query = `SELECT id, rate_card_id, category, seniority_level, fee_type, terms,
                compensation_min_cents, compensation_max_cents, volume_threshold, volume_discount_bps
        FROM rate_card_lines WHERE rate_card_id = $1 ORDER BY category, seniority_level`
	var lines []models.RateLine
	if err := r.db.SelectContext(ctx, &lines, query, cardID); err != nil {
		return nil, fmt.Errorf("list rate lines: %w", err)
	}
	return lines, nil
}
