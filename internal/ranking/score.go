package ranking

import (
	"sort"

	"github.com/smileynet/promptbeam/internal/candidate"
)

// ByScore orders candidates by TotalScore descending, ties broken by
// ascending candidate ID. Candidates without an evaluation sort last, also
// by ascending ID. Returns a new slice; the input is left unchanged.
func ByScore(pool []*candidate.Candidate) []*candidate.Candidate {
	out := make([]*candidate.Candidate, len(pool))
	copy(out, pool)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Evaluation != nil) != (b.Evaluation != nil) {
			return a.Evaluation != nil
		}
		if a.Evaluation != nil && a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return a.ID.Less(b.ID)
	})
	return out
}

// byID orders a copy of the pool by ascending candidate ID. Pair enumeration
// and tournament seeding both start from this order so runs are reproducible.
func byID(pool []*candidate.Candidate) []*candidate.Candidate {
	out := make([]*candidate.Candidate, len(pool))
	copy(out, pool)
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out
}
