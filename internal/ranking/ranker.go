// Package ranking aggregates per-experience scores into a total-ordered
// expert ranking, with calibration support for the scoring constants.
package ranking

import (
	"sort"

	"github.com/provenhq/expertrank/internal/scoring"
)

// ExpertRanking is one ranked expert: the exact sum of its experience scores
// and the scores themselves, ordered by score descending.
type ExpertRanking struct {
	ExpertID    int64
	TotalScore  float64
	Experiences []scoring.ExperienceScore
}

// Rank groups experience scores by owning expert and orders experts by total
// score descending. The total is the exact sum of the contributing scores;
// no other terms enter it. Experts with no scored experiences never appear.
//
// Tie-breaks are deterministic: equal totals order by expert ID ascending,
// and within an expert, equal experience scores order by experience ID
// ascending.
func Rank(scores []scoring.ExperienceScore) []ExpertRanking {
	byExpert := make(map[int64]*ExpertRanking)
	var order []int64

	for _, s := range scores {
		r, ok := byExpert[s.ExpertID]
		if !ok {
			r = &ExpertRanking{ExpertID: s.ExpertID}
			byExpert[s.ExpertID] = r
			order = append(order, s.ExpertID)
		}
		r.TotalScore += s.Score
		r.Experiences = append(r.Experiences, s)
	}

	result := make([]ExpertRanking, 0, len(order))
	for _, id := range order {
		r := byExpert[id]
		sort.SliceStable(r.Experiences, func(i, j int) bool {
			if r.Experiences[i].Score != r.Experiences[j].Score {
				return r.Experiences[i].Score > r.Experiences[j].Score
			}
			return r.Experiences[i].ExperienceID < r.Experiences[j].ExperienceID
		})
		result = append(result, *r)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].TotalScore != result[j].TotalScore {
			return result[i].TotalScore > result[j].TotalScore
		}
		return result[i].ExpertID < result[j].ExpertID
	})
	return result
}
