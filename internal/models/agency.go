package models

import "time"

// PerformanceTier buckets agencies by historical performance.
type PerformanceTier string

const (
	TierPlatinum PerformanceTier = "PLATINUM"
	TierGold     PerformanceTier = "GOLD"
	TierSilver   PerformanceTier = "SILVER"
	TierBronze   PerformanceTier = "BRONZE"
	// TierNew marks agencies without enough history; scoring treats it as a
	// neutral prior rather than zero so new agencies are not shut out.
	TierNew PerformanceTier = "NEW"
)

// Specialization declares an agency capability. Owned and mutated by the
// agency profile subsystem; read-only to the matching engine.
type Specialization struct {
	ID                   string    `db:"id" json:"id"`
	TenantID             string    `db:"tenant_id" json:"tenant_id"`
	AgencyID             string    `db:"agency_id" json:"agency_id"`
	Category             string    `db:"category" json:"category"`
	Subcategory          string    `db:"subcategory" json:"subcategory"`
	SeniorityMin         int       `db:"seniority_min" json:"seniority_min"`
	SeniorityMax         int       `db:"seniority_max" json:"seniority_max"`
	YearsExperience      int       `db:"years_experience" json:"years_experience"`
	MatchPriorityWeight  float64   `db:"match_priority_weight" json:"match_priority_weight"`
	SuccessfulPlacements int       `db:"successful_placements" json:"successful_placements"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// CoversSeniority reports whether the declared seniority span includes level.
func (s Specialization) CoversSeniority(level int) bool {
	return level >= s.SeniorityMin && level <= s.SeniorityMax
}

// GeographicCoverage declares where an agency recruits.
type GeographicCoverage struct {
	ID       string  `db:"id" json:"id"`
	TenantID string  `db:"tenant_id" json:"tenant_id"`
	AgencyID string  `db:"agency_id" json:"agency_id"`
	Country  string  `db:"country" json:"country"`
	Region   string  `db:"region" json:"region"`
	City     string  `db:"city" json:"city"`
	RadiusKm int     `db:"radius_km" json:"radius_km"`
	Priority int     `db:"priority" json:"priority"`
}

// PerformanceSnapshot is the latest periodic metrics row for an agency,
// recomputed by an external analytics job. The engine only reads it.
type PerformanceSnapshot struct {
	ID               string          `db:"id" json:"id"`
	TenantID         string          `db:"tenant_id" json:"tenant_id"`
	AgencyID         string          `db:"agency_id" json:"agency_id"`
	Period           string          `db:"period" json:"period"`
	FillRate         float64         `db:"fill_rate" json:"fill_rate"`
	ResponseTimeAvg  float64         `db:"response_time_avg_hours" json:"response_time_avg_hours"`
	PlacementRate    float64         `db:"placement_rate" json:"placement_rate"`
	PerformanceScore float64         `db:"performance_score" json:"performance_score"`
	PerformanceTier  PerformanceTier `db:"performance_tier" json:"performance_tier"`
	CapturedAt       time.Time       `db:"captured_at" json:"captured_at"`
}

// Job is the read-only projection of a job posting the engine matches and
// distributes. The posting lifecycle itself is owned by another subsystem.
type Job struct {
	ID                string `db:"id" json:"id"`
	TenantID          string `db:"tenant_id" json:"tenant_id"`
	Title             string `db:"title" json:"title"`
	Category          string `db:"category" json:"category"`
	SeniorityLevel    int    `db:"seniority_level" json:"seniority_level"`
	Country           string `db:"country" json:"country"`
	Region            string `db:"region" json:"region"`
	City              string `db:"city" json:"city"`
	CompensationCents int64  `db:"compensation_cents" json:"compensation_cents"`
	EmploymentType    string `db:"employment_type" json:"employment_type"`
	Status            string `db:"status" json:"status"`
}
