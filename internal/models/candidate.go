package models

import "time"

// CandidateIdentity carries the raw identity fields supplied on submission.
// Normalized forms are derived by the ownership service before any comparison.
type CandidateIdentity struct {
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	LinkedInURL string `json:"linkedin_url"`
	FullName    string `json:"full_name"`
}

// Candidate is created on first submission by any agency. Later submissions
// may enrich the profile, but identity fields are immutable once owned.
type Candidate struct {
	ID                  string    `db:"id" json:"id"`
	TenantID            string    `db:"tenant_id" json:"tenant_id"`
	Email               string    `db:"email" json:"email"`
	NormalizedEmail     string    `db:"normalized_email" json:"-"`
	Phone               string    `db:"phone" json:"phone"`
	NormalizedPhone     string    `db:"normalized_phone" json:"-"`
	LinkedInURL         string    `db:"linkedin_url" json:"linkedin_url"`
	NormalizedLinkedIn  string    `db:"normalized_linkedin" json:"-"`
	FullName            string    `db:"full_name" json:"full_name"`
	NormalizedName      string    `db:"normalized_name" json:"-"`
	Skills              string    `db:"skills" json:"skills"`
	YearsExperience     int       `db:"years_experience" json:"years_experience"`
	AvailabilityDate    *time.Time `db:"availability_date" json:"availability_date,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}
