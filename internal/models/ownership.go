package models

import "time"

// OwnershipRecord grants the first-submitting agency exclusive fee rights to a
// candidate for the protection period. At most one active record may exist per
// normalized candidate identity; expiry is computed at read time, so a record
// past ExpiresAt is treated as absent even before the cleanup sweep runs.
type OwnershipRecord struct {
	ID               string     `db:"id" json:"id"`
	TenantID         string     `db:"tenant_id" json:"tenant_id"`
	AgencyID         string     `db:"agency_id" json:"agency_id"`
	CandidateID      string     `db:"candidate_id" json:"candidate_id"`
	OriginatingJobID string     `db:"originating_job_id" json:"originating_job_id"`
	FirstSubmittedAt time.Time  `db:"first_submitted_at" json:"first_submitted_at"`
	ExpiresAt        time.Time  `db:"expires_at" json:"expires_at"`
	Active           bool       `db:"active" json:"active"`
	ReleasedAt       *time.Time `db:"released_at" json:"released_at,omitempty"`
	ReleaseReason    *string    `db:"release_reason" json:"release_reason,omitempty"`
}

// ActiveAt reports whether the record still protects the candidate at t.
func (o OwnershipRecord) ActiveAt(t time.Time) bool {
	return o.Active && t.Before(o.ExpiresAt)
}

// OwnershipStatus summarises the outcome of a duplicate check or claim.
type OwnershipStatus struct {
	Owned         bool      `json:"owned"`
	OwnerAgencyID string    `json:"owner_agency_id,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	MatchedOn     string    `json:"matched_on,omitempty"`
}
