package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/provenhq/expertrank/internal/attribute"
	"github.com/provenhq/expertrank/internal/expert"
)

var today = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func matchWith(n int, start time.Time, end *time.Time) expert.ExperienceMatch {
	attrs := make([]attribute.Attribute, n)
	for i := range attrs {
		attrs[i] = attribute.Attribute{ID: int64(i + 1), Type: "skill"}
	}
	return expert.ExperienceMatch{
		ExperienceID: 1,
		ExpertID:     1,
		StartDate:    start,
		EndDate:      end,
		Matched:      attrs,
	}
}

func TestDurationDays(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   *time.Time
		want  float64
	}{
		{
			name:  "closed range",
			start: date(2020, 1, 1),
			end:   datePtr(2020, 1, 31),
			want:  30,
		},
		{
			name:  "ongoing uses today as effective end",
			start: today.AddDate(0, 0, -100),
			end:   nil,
			want:  100,
		},
		{
			name:  "zero duration",
			start: date(2020, 1, 1),
			end:   datePtr(2020, 1, 1),
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DurationDays(tt.start, tt.end, today)
			if !floatEq(got, tt.want) {
				t.Errorf("DurationDays = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestRecencyFactor(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name string
		end  *time.Time
		p    Params
		want float64
	}{
		{
			name: "ongoing is maximally recent",
			end:  nil,
			p:    p,
			want: 1.0,
		},
		{
			name: "ended today",
			end:  &today,
			p:    p,
			want: 1.0,
		},
		{
			name: "future end clamps to today",
			end:  datePtr(2026, 1, 1),
			p:    p,
			want: 1.0,
		},
		{
			name: "one window ago decays by one decay step",
			end:  ptrTime(today.AddDate(0, 0, -365)),
			p:    p,
			want: 0.75,
		},
		{
			name: "far past goes negative without floor",
			end:  ptrTime(today.AddDate(0, 0, -2920)), // 8 windows
			p:    p,
			want: -1.0,
		},
		{
			name: "floor clamps at zero",
			end:  ptrTime(today.AddDate(0, 0, -2920)),
			p:    Params{Base: p.Base, RecencyDecay: p.RecencyDecay, RecencyWindowDays: p.RecencyWindowDays, FloorRecency: true},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecencyFactor(tt.end, today, tt.p)
			if !floatEq(got, tt.want) {
				t.Errorf("RecencyFactor = %f, want %f", got, tt.want)
			}
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestScoreExperience(t *testing.T) {
	p := DefaultParams()

	t.Run("empty intersection contributes nothing", func(t *testing.T) {
		_, ok := ScoreExperience(matchWith(0, date(2020, 1, 1), nil), p, today)
		if ok {
			t.Error("expected ok=false for zero matched attributes")
		}
	})

	t.Run("formula", func(t *testing.T) {
		// 1000 days of work that ended one recency window ago:
		// 1.1^2 * 1000 * 0.75
		end := today.AddDate(0, 0, -365)
		start := end.AddDate(0, 0, -1000)
		s, ok := ScoreExperience(matchWith(2, start, &end), p, today)
		if !ok {
			t.Fatal("expected a score")
		}
		want := math.Pow(1.1, 2) * 1000 * 0.75
		if !floatEq(s.Score, want) {
			t.Errorf("Score = %f, want %f", s.Score, want)
		}
		if s.MatchCount != 2 {
			t.Errorf("MatchCount = %d, want 2", s.MatchCount)
		}
		if !floatEq(s.DurationDays, 1000) {
			t.Errorf("DurationDays = %f, want 1000", s.DurationDays)
		}
		if !floatEq(s.RecencyFactor, 0.75) {
			t.Errorf("RecencyFactor = %f, want 0.75", s.RecencyFactor)
		}
	})

	t.Run("worked example", func(t *testing.T) {
		// Three years ending one window before the evaluation date:
		// 1095 days at recency 0.75.
		asOf := date(2023, 12, 31)
		start := date(2020, 1, 1)
		end := datePtr(2022, 12, 31)

		two, ok := ScoreExperience(matchWith(2, start, end), p, asOf)
		if !ok {
			t.Fatal("expected a score")
		}
		if !floatEq(two.DurationDays, 1095) {
			t.Errorf("DurationDays = %f, want 1095", two.DurationDays)
		}
		if !floatEq(two.RecencyFactor, 0.75) {
			t.Errorf("RecencyFactor = %f, want 0.75", two.RecencyFactor)
		}
		if !floatEq(two.Score, 993.7125) {
			t.Errorf("two-match Score = %f, want 993.7125", two.Score)
		}

		one, ok := ScoreExperience(matchWith(1, start, end), p, asOf)
		if !ok {
			t.Fatal("expected a score")
		}
		if !floatEq(one.Score, 903.375) {
			t.Errorf("one-match Score = %f, want 903.375", one.Score)
		}
		if one.Score >= two.Score {
			t.Errorf("one-match score %f not below two-match score %f", one.Score, two.Score)
		}
	})

	t.Run("zero duration scores zero", func(t *testing.T) {
		start := date(2024, 3, 1)
		s, ok := ScoreExperience(matchWith(1, start, &start), p, today)
		if !ok {
			t.Fatal("expected a score")
		}
		if s.Score != 0 {
			t.Errorf("Score = %f, want 0", s.Score)
		}
	})

	t.Run("more matches score strictly higher", func(t *testing.T) {
		end := today.AddDate(0, 0, -30)
		start := end.AddDate(0, 0, -500)
		one, _ := ScoreExperience(matchWith(1, start, &end), p, today)
		two, _ := ScoreExperience(matchWith(2, start, &end), p, today)
		if two.Score <= one.Score {
			t.Errorf("two-match score %f not above one-match score %f", two.Score, one.Score)
		}
	})

	t.Run("negative recency subtracts", func(t *testing.T) {
		end := today.AddDate(0, 0, -2920)
		start := end.AddDate(0, 0, -100)
		s, ok := ScoreExperience(matchWith(1, start, &end), p, today)
		if !ok {
			t.Fatal("expected a score")
		}
		if s.Score >= 0 {
			t.Errorf("Score = %f, want negative", s.Score)
		}
	})
}

func TestScoreAll(t *testing.T) {
	p := DefaultParams()
	end := today.AddDate(0, 0, -365)
	start := end.AddDate(0, 0, -1000)

	matches := []expert.ExperienceMatch{
		matchWith(1, start, &end),
		matchWith(0, start, &end), // dropped
		matchWith(3, start, &end),
	}
	matches[0].ExperienceID = 10
	matches[2].ExperienceID = 30

	scores := ScoreAll(matches, p, today)
	if len(scores) != 2 {
		t.Fatalf("scores = %d, want 2", len(scores))
	}
	// input order preserved
	if scores[0].ExperienceID != 10 || scores[1].ExperienceID != 30 {
		t.Errorf("order not preserved: %d then %d", scores[0].ExperienceID, scores[1].ExperienceID)
	}
}
