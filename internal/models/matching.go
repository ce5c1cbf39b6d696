package models

// ScoreBreakdown explains how one agency's match score was composed, kept for
// auditability of distribution decisions.
type ScoreBreakdown struct {
	Specialization float64 `json:"specialization"`
	Geographic     float64 `json:"geographic"`
	Performance    float64 `json:"performance"`
}

// RankedAgency is one entry of a match result, ordered by descending score.
type RankedAgency struct {
	AgencyID        string           `json:"agency_id"`
	Score           float64          `json:"score"`
	Breakdown       ScoreBreakdown   `json:"breakdown"`
	RecommendedTier DistributionTier `json:"recommended_tier"`
	FillRate        float64          `json:"fill_rate"`
	ResponseTimeAvg float64          `json:"response_time_avg_hours"`
}

// MatchResult carries the ranked agencies plus non-fatal degradation
// warnings (e.g. a missing performance snapshot scored as neutral).
type MatchResult struct {
	JobID    string         `json:"job_id"`
	Agencies []RankedAgency `json:"agencies"`
	Warnings []string       `json:"warnings,omitempty"`
}
