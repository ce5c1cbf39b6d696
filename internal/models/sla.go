package models

import "time"

// SLAMetric identifies a monitored per-agency metric.
type SLAMetric string

const (
	MetricResponseTime  SLAMetric = "RESPONSE_TIME"
	MetricFillRate      SLAMetric = "FILL_RATE"
	MetricPlacementRate SLAMetric = "PLACEMENT_RATE"
)

// LowerIsBetter reports the breach direction for the metric: response time
// breaches when the value rises above a threshold, rates when it falls below.
func (m SLAMetric) LowerIsBetter() bool {
	return m == MetricResponseTime
}

// SLAConfig holds the warning/critical thresholds for one agency metric.
type SLAConfig struct {
	ID                string    `db:"id" json:"id"`
	TenantID          string    `db:"tenant_id" json:"tenant_id"`
	AgencyID          string    `db:"agency_id" json:"agency_id"`
	Metric            SLAMetric `db:"metric" json:"metric"`
	WarningThreshold  float64   `db:"warning_threshold" json:"warning_threshold"`
	CriticalThreshold float64   `db:"critical_threshold" json:"critical_threshold"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// SLABreach records a threshold crossing. It stays open until resolved; a
// repeated crossing at the same severity does not create a second row, only
// escalation (WARNING→CRITICAL) mutates an open breach.
type SLABreach struct {
	ID          string        `db:"id" json:"id"`
	TenantID    string        `db:"tenant_id" json:"tenant_id"`
	AgencyID    string        `db:"agency_id" json:"agency_id"`
	Metric      SLAMetric     `db:"metric" json:"metric"`
	Severity    AlertSeverity `db:"severity" json:"severity"`
	ActualValue float64       `db:"actual_value" json:"actual_value"`
	Threshold   float64       `db:"threshold" json:"threshold"`
	OpenedAt    time.Time     `db:"opened_at" json:"opened_at"`
	EscalatedAt *time.Time    `db:"escalated_at" json:"escalated_at,omitempty"`
	ResolvedAt  *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
}

// Open reports whether the breach is still unresolved.
func (b SLABreach) Open() bool {
	return b.ResolvedAt == nil
}

// SLAAlertStatus is the delivery lifecycle of one alert attempt.
type SLAAlertStatus string

const (
	AlertPending   SLAAlertStatus = "PENDING"
	AlertSent      SLAAlertStatus = "SENT"
	AlertDelivered SLAAlertStatus = "DELIVERED"
	AlertOpened    SLAAlertStatus = "OPENED"
	AlertFailed    SLAAlertStatus = "FAILED"
)

// SLAAlert is a delivery attempt referencing a breach. Delivery is decoupled
// from breach recording: a failed alert never alters breach state.
type SLAAlert struct {
	ID        string         `db:"id" json:"id"`
	TenantID  string         `db:"tenant_id" json:"tenant_id"`
	BreachID  string         `db:"breach_id" json:"breach_id"`
	Channel   string         `db:"channel" json:"channel"`
	Status    SLAAlertStatus `db:"status" json:"status"`
	LastError *string        `db:"last_error" json:"last_error,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// BreachStatus is the per-metric view returned by the SLA status endpoint.
type BreachStatus struct {
	Metric      SLAMetric     `json:"metric"`
	Breached    bool          `json:"breached"`
	Severity    AlertSeverity `json:"severity,omitempty"`
	ActualValue float64       `json:"actual_value,omitempty"`
	Threshold   float64       `json:"threshold,omitempty"`
	OpenedAt    *time.Time    `json:"opened_at,omitempty"`
}
