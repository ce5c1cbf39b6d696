package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FeeType discriminates the fee calculation variant of a rate line.
type FeeType string

const (
	FeePercentage   FeeType = "PERCENTAGE"
	FeeFixed        FeeType = "FIXED"
	FeeHourlyMarkup FeeType = "HOURLY_MARKUP"
	FeeTiered       FeeType = "TIERED"
)

// PercentageTerms: fee = compensation × PercentageBps / 10000, round half-up.
type PercentageTerms struct {
	PercentageBps int64 `json:"percentage_bps"`
}

// FixedTerms: fee is the configured amount regardless of compensation.
type FixedTerms struct {
	AmountCents int64 `json:"amount_cents"`
}

// HourlyMarkupTerms: per-hour fee, either a percentage of the hourly rate or
// a fixed markup amount. Exactly one of the two should be set.
type HourlyMarkupTerms struct {
	HourlyRateCents int64 `json:"hourly_rate_cents"`
	MarkupBps       int64 `json:"markup_bps,omitempty"`
	MarkupCents     int64 `json:"markup_cents,omitempty"`
}

// TieredBracket covers compensations in [FromCents, ToCents); ToCents 0 means
// unbounded. The bracket's percentage applies to the whole compensation.
type TieredBracket struct {
	FromCents     int64 `json:"from_cents"`
	ToCents       int64 `json:"to_cents"`
	PercentageBps int64 `json:"percentage_bps"`
}

// TieredTerms holds brackets in ascending order of FromCents.
type TieredTerms struct {
	Brackets []TieredBracket `json:"brackets"`
}

// FeeTerms is a tagged variant: exactly one member matching the line's FeeType
// is non-nil, so invalid field combinations are unrepresentable. Stored as
// JSONB in the rate_card_lines table.
type FeeTerms struct {
	Percentage   *PercentageTerms   `json:"percentage,omitempty"`
	Fixed        *FixedTerms        `json:"fixed,omitempty"`
	HourlyMarkup *HourlyMarkupTerms `json:"hourly_markup,omitempty"`
	Tiered       *TieredTerms       `json:"tiered,omitempty"`
}

// Value implements driver.Valuer for JSONB storage.
func (t FeeTerms) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (t *FeeTerms) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	case nil:
		*t = FeeTerms{}
		return nil
	default:
		return fmt.Errorf("unsupported fee terms source %T", src)
	}
}

// RateCard scopes a versioned fee table to an agency and optionally to a
// company or master agreement. Resolution prefers the most specific card
// whose validity window contains the pricing instant.
type RateCard struct {
	ID          string    `db:"id" json:"id"`
	TenantID    string    `db:"tenant_id" json:"tenant_id"`
	AgencyID    string    `db:"agency_id" json:"agency_id"`
	CompanyID   *string   `db:"company_id" json:"company_id,omitempty"`
	AgreementID *string   `db:"agreement_id" json:"agreement_id,omitempty"`
	Currency    string    `db:"currency" json:"currency"`
	ValidFrom   time.Time `db:"valid_from" json:"valid_from"`
	ValidUntil  time.Time `db:"valid_until" json:"valid_until"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Lines       []RateLine `json:"lines,omitempty"`
}

// Specificity orders card resolution: agreement-scoped beats company-scoped
// beats agency default.
func (c RateCard) Specificity() int {
	switch {
	case c.AgreementID != nil:
		return 2
	case c.CompanyID != nil:
		return 1
	default:
		return 0
	}
}

// RateLine is one fee rule inside a card, keyed by job category and seniority
// with an optional compensation band and volume discount.
type RateLine struct {
	ID                      string   `db:"id" json:"id"`
	RateCardID              string   `db:"rate_card_id" json:"rate_card_id"`
	Category                string   `db:"category" json:"category"`
	SeniorityLevel          string   `db:"seniority_level" json:"seniority_level"`
	FeeType                 FeeType  `db:"fee_type" json:"fee_type"`
	Terms                   FeeTerms `db:"terms" json:"terms"`
	CompensationMinCents    *int64   `db:"compensation_min_cents" json:"compensation_min_cents,omitempty"`
	CompensationMaxCents    *int64   `db:"compensation_max_cents" json:"compensation_max_cents,omitempty"`
	VolumeThreshold         *int     `db:"volume_threshold" json:"volume_threshold,omitempty"`
	VolumeDiscountBps       int64    `db:"volume_discount_bps" json:"volume_discount_bps"`
}

// CoversCompensation reports whether the line's optional band contains amount.
func (l RateLine) CoversCompensation(amount int64) bool {
	if l.CompensationMinCents != nil && amount < *l.CompensationMinCents {
		return false
	}
	if l.CompensationMaxCents != nil && amount > *l.CompensationMaxCents {
		return false
	}
	return true
}
