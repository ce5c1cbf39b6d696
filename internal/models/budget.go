package models

import (
	"strings"
	"time"
)

// BudgetStatus is the lifecycle state of a budget node.
type BudgetStatus string

const (
	BudgetDraft    BudgetStatus = "DRAFT"
	BudgetActive   BudgetStatus = "ACTIVE"
	BudgetPaused   BudgetStatus = "PAUSED"
	BudgetDepleted BudgetStatus = "DEPLETED"
	BudgetClosed   BudgetStatus = "CLOSED"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TxnAllocation TransactionType = "ALLOCATION"
	TxnDeduction  TransactionType = "DEDUCTION"
	TxnAdjustment TransactionType = "ADJUSTMENT"
	TxnRefund     TransactionType = "REFUND"
	TxnTransfer   TransactionType = "TRANSFER"
)

// Budget is one node in the budget hierarchy. Path is the materialized
// ancestor chain ("/<rootID>/<childID>/..."), which makes ancestor lock
// checks a single indexed lookup instead of a recursive walk.
// Amounts are int64 minor units; RemainingCents is always
// TotalCents - SpentCents and never negative.
type Budget struct {
	ID              string       `db:"id" json:"id"`
	TenantID        string       `db:"tenant_id" json:"tenant_id"`
	ParentID        *string      `db:"parent_id" json:"parent_id,omitempty"`
	Level           int          `db:"level" json:"level"`
	Path            string       `db:"path" json:"path"`
	Name            string       `db:"name" json:"name"`
	Currency        string       `db:"currency" json:"currency"`
	TotalCents      int64        `db:"total_cents" json:"total_cents"`
	AllocatedCents  int64        `db:"allocated_cents" json:"allocated_cents"`
	SpentCents      int64        `db:"spent_cents" json:"spent_cents"`
	RemainingCents  int64        `db:"remaining_cents" json:"remaining_cents"`
	PeriodStart     time.Time    `db:"period_start" json:"period_start"`
	PeriodEnd       time.Time    `db:"period_end" json:"period_end"`
	Status          BudgetStatus `db:"status" json:"status"`
	Locked          bool         `db:"locked" json:"locked"`
	Version         int64        `db:"version" json:"version"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// AncestorIDs extracts ancestor budget IDs (excluding the node itself) from
// the materialized path.
func (b Budget) AncestorIDs() []string {
	parts := strings.Split(strings.Trim(b.Path, "/"), "/")
	if len(parts) <= 1 {
		return nil
	}
	return parts[:len(parts)-1]
}

// BudgetAllocation earmarks part of a budget for a target (agreement,
// contract, department or project). Checked against the parent's remaining
// capacity at allocation time only.
type BudgetAllocation struct {
	ID             string    `db:"id" json:"id"`
	TenantID       string    `db:"tenant_id" json:"tenant_id"`
	BudgetID       string    `db:"budget_id" json:"budget_id"`
	TargetType     string    `db:"target_type" json:"target_type"`
	TargetID       string    `db:"target_id" json:"target_id"`
	AllocatedCents int64     `db:"allocated_cents" json:"allocated_cents"`
	SpentCents     int64     `db:"spent_cents" json:"spent_cents"`
	RemainingCents int64     `db:"remaining_cents" json:"remaining_cents"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// BudgetTransaction is an append-only, immutable ledger entry. BalanceCents
// is the budget's remaining balance after this entry was applied.
type BudgetTransaction struct {
	ID             string          `db:"id" json:"id"`
	TenantID       string          `db:"tenant_id" json:"tenant_id"`
	BudgetID       string          `db:"budget_id" json:"budget_id"`
	Type           TransactionType `db:"type" json:"type"`
	AmountCents    int64           `db:"amount_cents" json:"amount_cents"`
	BalanceCents   int64           `db:"balance_cents" json:"balance_cents"`
	SourceType     string          `db:"source_type" json:"source_type"`
	SourceID       string          `db:"source_id" json:"source_id"`
	CounterpartyID *string         `db:"counterparty_budget_id" json:"counterparty_budget_id,omitempty"`
	Note           string          `db:"note" json:"note"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// AlertSeverity grades budget and SLA alerts.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "INFO"
	SeverityWarning  AlertSeverity = "WARNING"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// BudgetAlert fires exactly when utilization crosses its threshold going
// upward. Once triggered it stays triggered until explicitly resolved.
type BudgetAlert struct {
	ID               string        `db:"id" json:"id"`
	TenantID         string        `db:"tenant_id" json:"tenant_id"`
	BudgetID         string        `db:"budget_id" json:"budget_id"`
	ThresholdPercent *float64      `db:"threshold_percent" json:"threshold_percent,omitempty"`
	ThresholdCents   *int64        `db:"threshold_cents" json:"threshold_cents,omitempty"`
	Severity         AlertSeverity `db:"severity" json:"severity"`
	IsTriggered      bool          `db:"is_triggered" json:"is_triggered"`
	TriggeredAt      *time.Time    `db:"triggered_at" json:"triggered_at,omitempty"`
	ResolvedAt       *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}

// BudgetUtilization is the read-side summary exposed to callers.
type BudgetUtilization struct {
	BudgetID       string  `json:"budget_id"`
	Percentage     float64 `json:"percentage"`
	RemainingCents int64   `json:"remaining_cents"`
	SpentCents     int64   `json:"spent_cents"`
	TotalCents     int64   `json:"total_cents"`
	IsOverBudget   bool    `json:"is_over_budget"`
	BurnRateCents  int64   `json:"burn_rate_cents_per_day"`
}
