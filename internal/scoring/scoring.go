// Package scoring computes the experience knowledge score: a per-experience
// relevance number combining matched-attribute count, duration, and a linear
// recency decay.
package scoring

import (
	"math"
	"time"

	"github.com/provenhq/expertrank/internal/attribute"
	"github.com/provenhq/expertrank/internal/expert"
)

// Default scoring parameters.
const (
	DefaultBase              = 1.1
	DefaultRecencyDecay      = 0.25
	DefaultRecencyWindowDays = 365.0
)

const hoursPerDay = 24.0

// Params holds the tuning constants for the score formula.
//
// Formula: score = Base^n × durationDays × recencyFactor
// where n is the matched-attribute count and
// recencyFactor = 1 − RecencyDecay × daysSinceEnd / RecencyWindowDays.
type Params struct {
	// Base is the exponent base applied per matched attribute. Must exceed 1
	// for more matches to score strictly higher.
	Base float64 `json:"base"`

	// RecencyDecay scales how fast an experience's contribution decays per
	// recency window elapsed since it ended.
	RecencyDecay float64 `json:"recency_decay"`

	// RecencyWindowDays is the decay reference window.
	RecencyWindowDays float64 `json:"recency_window_days"`

	// FloorRecency clamps the recency factor at zero. Off by default: the
	// factor goes negative once an experience ended more than
	// RecencyWindowDays/RecencyDecay days ago, so very old experiences
	// subtract from an expert's total.
	FloorRecency bool `json:"floor_recency"`
}

// DefaultParams returns the default scoring parameters.
func DefaultParams() Params {
	return Params{
		Base:              DefaultBase,
		RecencyDecay:      DefaultRecencyDecay,
		RecencyWindowDays: DefaultRecencyWindowDays,
	}
}

// ExperienceScore is the scored form of one matched experience.
type ExperienceScore struct {
	ExperienceID int64      `json:"experience_id"`
	ExpertID     int64      `json:"expert_id"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Summary      string     `json:"summary,omitempty"`

	// Matched holds the attributes in the intersection with the request's
	// extracted set; MatchCount is always its cardinality.
	Matched    []attribute.Attribute `json:"matched"`
	MatchCount int                   `json:"match_count"`

	DurationDays  float64 `json:"duration_days"`
	RecencyFactor float64 `json:"recency_factor"`
	Score         float64 `json:"score"`
}

// DurationDays returns the experience length in days, treating today as the
// effective end for ongoing experiences.
func DurationDays(start time.Time, end *time.Time, today time.Time) float64 {
	effectiveEnd := today
	if end != nil {
		effectiveEnd = *end
	}
	return effectiveEnd.Sub(start).Hours() / hoursPerDay
}

// RecencyFactor returns the linear decay term for an experience that ended
// daysSinceEnd days ago. Ongoing or future-ending experiences are maximally
// recent (daysSinceEnd clamps at zero). Without the floor the factor keeps
// falling past zero.
func RecencyFactor(end *time.Time, today time.Time, p Params) float64 {
	daysSinceEnd := 0.0
	if end != nil {
		daysSinceEnd = today.Sub(*end).Hours() / hoursPerDay
		if daysSinceEnd < 0 {
			daysSinceEnd = 0
		}
	}
	factor := 1.0 - p.RecencyDecay*daysSinceEnd/p.RecencyWindowDays
	if p.FloorRecency && factor < 0 {
		return 0
	}
	return factor
}

// ScoreExperience computes the experience knowledge score for one matched
// experience as of today. Returns ok=false for an empty intersection: such
// experiences contribute nothing and are never returned, rather than scoring
// as duration × recency alone.
func ScoreExperience(m expert.ExperienceMatch, p Params, today time.Time) (ExperienceScore, bool) {
	n := len(m.Matched)
	if n == 0 {
		return ExperienceScore{}, false
	}

	duration := DurationDays(m.StartDate, m.EndDate, today)
	recency := RecencyFactor(m.EndDate, today, p)

	return ExperienceScore{
		ExperienceID:  m.ExperienceID,
		ExpertID:      m.ExpertID,
		StartDate:     m.StartDate,
		EndDate:       m.EndDate,
		Summary:       m.Summary,
		Matched:       m.Matched,
		MatchCount:    n,
		DurationDays:  duration,
		RecencyFactor: recency,
		Score:         math.Pow(p.Base, float64(n)) * duration * recency,
	}, true
}

// ScoreAll scores every match with a non-empty intersection, preserving the
// input order.
func ScoreAll(matches []expert.ExperienceMatch, p Params, today time.Time) []ExperienceScore {
	scores := make([]ExperienceScore, 0, len(matches))
	for _, m := range matches {
		if s, ok := ScoreExperience(m, p, today); ok {
			scores = append(scores, s)
		}
	}
	return scores
}
