package models

import "time"

// PlacementFee is the immutable result of one fee calculation, tied 1:1 to a
// placement. It records the inputs used, the rate line applied, and, once
// posted, the budget transaction the deduction produced.
type PlacementFee struct {
	ID                  string    `db:"id" json:"id"`
	TenantID            string    `db:"tenant_id" json:"tenant_id"`
	AgencyID            string    `db:"agency_id" json:"agency_id"`
	JobID               string    `db:"job_id" json:"job_id"`
	PlacementID         *string   `db:"placement_id" json:"placement_id,omitempty"`
	RateLineID          string    `db:"rate_line_id" json:"rate_line_id"`
	FeeType             FeeType   `db:"fee_type" json:"fee_type"`
	CompensationCents   int64     `db:"compensation_cents" json:"compensation_cents"`
	ContractType        string    `db:"contract_type" json:"contract_type"`
	FeeCents            int64     `db:"fee_cents" json:"fee_cents"`
	Currency            string    `db:"currency" json:"currency"`
	VolumeDiscountCents int64     `db:"volume_discount_cents" json:"volume_discount_cents"`
	BudgetTransactionID *string   `db:"budget_transaction_id" json:"budget_transaction_id,omitempty"`
	CalculatedAt        time.Time `db:"calculated_at" json:"calculated_at"`
}
