package ranking

import (
	"sort"

	"github.com/smileynet/promptbeam/internal/candidate"
)

// AssignGlobalRanks stamps cross-iteration global ranks onto ranked, the
// iteration's pool in best-first order. parents are the surviving candidates
// from the previous iteration (nil or empty on the first).
//
// First-iteration pools rank sequentially. Later pools anchor on the
// worst-placed parent: everything at or above it, plus every parent, gets the
// next sequential rank; non-parents that finished strictly below the worst
// parent collapse into a tie at floorRank (the beam width), annotated so the
// collapse is visible. A parent beaten only by its own children keeps a
// meaningful rank instead of dragging new work to the floor.
//
// The assignment is idempotent: re-running it over the same order yields the
// same ranks. Returns ranked for chaining.
func AssignGlobalRanks(ranked, parents []*candidate.Candidate, floorRank, iteration int) []*candidate.Candidate {
	if iteration == 0 || len(parents) == 0 {
		return assignSequential(ranked)
	}

	parentIDs := make(map[string]bool, len(parents))
	for _, p := range parents {
		parentIDs[p.ID.String()] = true
	}

	worstParentPos := -1
	for i, c := range ranked {
		if parentIDs[c.ID.String()] {
			worstParentPos = i
		}
	}
	if worstParentPos == -1 {
		// Every parent was eliminated before ranking; nothing to anchor on.
		return assignSequential(ranked)
	}

	next := 1
	for i, c := range ranked {
		if i <= worstParentPos || parentIDs[c.ID.String()] {
			c.GlobalRank = next
			c.GlobalRankNote = ""
			next++
			continue
		}
		c.GlobalRank = floorRank
		c.GlobalRankNote = candidate.TiedAtFloor
	}
	return ranked
}

func assignSequential(ranked []*candidate.Candidate) []*candidate.Candidate {
	for i, c := range ranked {
		c.GlobalRank = i + 1
		c.GlobalRankNote = ""
	}
	return ranked
}

// MergeGlobal folds the latest iteration's globally ranked candidates into
// the accumulated run-wide list. Candidates re-ranked this iteration replace
// their earlier entries; the result is ordered by global rank ascending, ties
// by candidate ID. Returns a new slice.
func MergeGlobal(all, latest []*candidate.Candidate) []*candidate.Candidate {
	replaced := make(map[string]bool, len(latest))
	for _, c := range latest {
		replaced[c.ID.String()] = true
	}

	out := make([]*candidate.Candidate, 0, len(all)+len(latest))
	for _, c := range all {
		if !replaced[c.ID.String()] {
			out = append(out, c)
		}
	}
	out = append(out, latest...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].GlobalRank != out[j].GlobalRank {
			return out[i].GlobalRank < out[j].GlobalRank
		}
		return out[i].ID.Less(out[j].ID)
	})
	return out
}
