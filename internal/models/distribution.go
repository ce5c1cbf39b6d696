package models

import "time"

// DistributionTier ranks how preferentially a job is offered to an agency.
type DistributionTier string

const (
	TierExclusive DistributionTier = "EXCLUSIVE"
	TierPriority  DistributionTier = "PRIORITY"
	TierStandard  DistributionTier = "STANDARD"
	TierOpen      DistributionTier = "OPEN"
)

// DistributionStatus is the state machine position of a distribution.
type DistributionStatus string

const (
	DistributionPending   DistributionStatus = "PENDING"
	DistributionActive    DistributionStatus = "ACTIVE"
	DistributionPaused    DistributionStatus = "PAUSED"
	DistributionCompleted DistributionStatus = "COMPLETED"
	DistributionCancelled DistributionStatus = "CANCELLED"
)

// Distribution offers a specific job to a specific agency under a tier and
// caps. At most one distribution exists per (job, agency) pair, and at most
// one EXCLUSIVE distribution may be ACTIVE (or PENDING) per job.
type Distribution struct {
	ID             string             `db:"id" json:"id"`
	TenantID       string             `db:"tenant_id" json:"tenant_id"`
	JobID          string             `db:"job_id" json:"job_id"`
	AgencyID       string             `db:"agency_id" json:"agency_id"`
	Tier           DistributionTier   `db:"tier" json:"tier"`
	Status         DistributionStatus `db:"status" json:"status"`
	ExclusiveUntil *time.Time         `db:"exclusive_until" json:"exclusive_until,omitempty"`
	MaxCandidates  *int               `db:"max_candidates" json:"max_candidates,omitempty"`
	SubmittedCount int                `db:"submitted_count" json:"submitted_count"`
	AcceptedCount  int                `db:"accepted_count" json:"accepted_count"`
	RejectedCount  int                `db:"rejected_count" json:"rejected_count"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

// CanTransition reports whether the status machine allows moving to next.
// PENDING → ACTIVE|CANCELLED, ACTIVE → PAUSED|COMPLETED|CANCELLED,
// PAUSED → ACTIVE|CANCELLED. COMPLETED and CANCELLED are terminal.
func (d Distribution) CanTransition(next DistributionStatus) bool {
	switch d.Status {
	case DistributionPending:
		return next == DistributionActive || next == DistributionCancelled
	case DistributionActive:
		return next == DistributionPaused || next == DistributionCompleted || next == DistributionCancelled
	case DistributionPaused:
		return next == DistributionActive || next == DistributionCancelled
	default:
		return false
	}
}

// Submission records a candidate put forward under a distribution.
type Submission struct {
	ID             string    `db:"id" json:"id"`
	TenantID       string    `db:"tenant_id" json:"tenant_id"`
	DistributionID string    `db:"distribution_id" json:"distribution_id"`
	CandidateID    string    `db:"candidate_id" json:"candidate_id"`
	AgencyID       string    `db:"agency_id" json:"agency_id"`
	JobID          string    `db:"job_id" json:"job_id"`
	SubmittedAt    time.Time `db:"submitted_at" json:"submitted_at"`
}

// DistributionFilter scopes distribution listings.
type DistributionFilter struct {
	JobID    string
	AgencyID string
	Status   DistributionStatus
}
