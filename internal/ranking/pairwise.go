package ranking

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/smileynet/promptbeam/internal/candidate"
	"github.com/smileynet/promptbeam/internal/events"
	"github.com/smileynet/promptbeam/internal/provider"
	"github.com/smileynet/promptbeam/internal/ratelimit"
)

// allPairsThreshold is the pool size above which the ranker switches from
// exhaustive pairwise comparison to a single-elimination tournament.
const allPairsThreshold = 8

// Config parameterizes one comparative-ranking pass.
type Config struct {
	// UserPrompt is the original request, passed through to the judge.
	UserPrompt string

	// EnsembleSize is the number of judge votes per undecided pair.
	// Values < 1 mean a single vote.
	EnsembleSize int

	// Graceful degrades per-pair judge failures to recorded errors instead
	// of aborting the pass. The failed pair contributes no comparison edge.
	Graceful bool

	// PreviousTop is the prior iteration's surviving candidates in rank
	// order. Their relative order seeds the comparison graph so the judge
	// is never re-asked about a pair it has already decided.
	PreviousTop []*candidate.Candidate
}

// PairError records one judge failure during a graceful pass.
type PairError struct {
	A, B string
	Err  error
}

func (e PairError) Error() string {
	return fmt.Sprintf("ranking: comparing %s vs %s: %v", e.A, e.B, e.Err)
}

func (e PairError) Unwrap() error { return e.Err }

// Meta summarizes the work a ranking pass performed.
type Meta struct {
	TokensUsed  int
	Comparisons int // judge calls actually made (ensemble votes counted once per pair)
	Inferred    int // pairs resolved from the graph without a judge call
	Errors      []PairError
}

// PairwiseRanker orders a candidate pool by asking a judge to compare images
// two at a time, reusing transitively known outcomes.
type PairwiseRanker struct {
	judge   provider.PairwiseJudge
	limiter *ratelimit.Limiter
	emit    events.Sink
	log     zerolog.Logger
}

// PairwiseOption configures a PairwiseRanker.
type PairwiseOption func(*PairwiseRanker)

// WithEventSink routes per-pair progress events to sink.
func WithEventSink(sink events.Sink) PairwiseOption {
	return func(r *PairwiseRanker) { r.emit = sink }
}

// WithLogger sets the ranker's logger.
func WithLogger(log zerolog.Logger) PairwiseOption {
	return func(r *PairwiseRanker) { r.log = log }
}

// NewPairwiseRanker creates a ranker. limiter may be nil, in which case judge
// calls run unthrottled.
func NewPairwiseRanker(judge provider.PairwiseJudge, limiter *ratelimit.Limiter, opts ...PairwiseOption) *PairwiseRanker {
	r := &PairwiseRanker{
		judge:   judge,
		limiter: limiter,
		emit:    events.Nop,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank orders pool best-first. Pools of allPairsThreshold or fewer are
// compared exhaustively; larger pools run a single-elimination tournament.
// Each ranked candidate gets a Ranking with its position and win count;
// unresolved orderings break by ascending candidate ID. Returns a new slice.
func (r *PairwiseRanker) Rank(ctx context.Context, pool []*candidate.Candidate, cfg Config) ([]*candidate.Candidate, Meta, error) {
	ordered := byID(pool)
	if len(ordered) < 2 {
		for i, c := range ordered {
			c.Ranking = &candidate.Ranking{Rank: i + 1}
		}
		return ordered, Meta{}, nil
	}

	g := NewGraph()
	if len(cfg.PreviousTop) > 1 {
		ids := make([]string, len(cfg.PreviousTop))
		for i, c := range cfg.PreviousTop {
			ids[i] = c.ID.String()
		}
		g.SeedOrdered(ids)
	}

	var (
		ranked []*candidate.Candidate
		meta   Meta
		err    error
	)
	if len(ordered) <= allPairsThreshold {
		ranked, meta, err = r.rankAllPairs(ctx, ordered, g, cfg)
	} else {
		ranked, meta, err = r.rankTournament(ctx, ordered, g, cfg)
	}
	if err != nil {
		return nil, meta, err
	}

	for i, c := range ranked {
		c.Ranking = &candidate.Ranking{Rank: i + 1, Wins: g.Wins(c.ID.String())}
	}
	return ranked, meta, nil
}

func (r *PairwiseRanker) rankAllPairs(ctx context.Context, ordered []*candidate.Candidate, g *Graph, cfg Config) ([]*candidate.Candidate, Meta, error) {
	var meta Meta
	total := len(ordered) * (len(ordered) - 1) / 2
	completed := 0

	r.emit(events.Event{Stage: events.StageRanking, Status: events.StatusStarting, Progress: &events.Progress{Total: total}})

	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			a, b := ordered[i], ordered[j]
			aID, bID := a.ID.String(), b.ID.String()

			if winner, known := g.Winner(aID, bID); known {
				completed++
				meta.Inferred++
				r.emitPair(a, b, winner, completed, total, true, nil)
				continue
			}

			winner, tokens, cmpErr := r.comparePair(ctx, a, b, cfg)
			meta.TokensUsed += tokens
			completed++
			if cmpErr != nil {
				if ctx.Err() != nil {
					return nil, meta, ctx.Err()
				}
				if !cfg.Graceful {
					return nil, meta, PairError{A: aID, B: bID, Err: cmpErr}
				}
				meta.Errors = append(meta.Errors, PairError{A: aID, B: bID, Err: cmpErr})
				r.emitPair(a, b, "", completed, total, false, cmpErr)
				continue
			}
			meta.Comparisons++
			loser := bID
			if winner == bID {
				loser = aID
			}
			g.Add(winner, loser)
			r.emitPair(a, b, winner, completed, total, false, nil)
		}
	}

	out := make([]*candidate.Candidate, len(ordered))
	copy(out, ordered)
	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := g.Wins(out[i].ID.String()), g.Wins(out[j].ID.String())
		if wi != wj {
			return wi > wj
		}
		return out[i].ID.Less(out[j].ID)
	})

	r.emit(events.Event{Stage: events.StageRanking, Status: events.StatusComplete, Progress: &events.Progress{Completed: completed, Total: total}})
	return out, meta, nil
}

func (r *PairwiseRanker) rankTournament(ctx context.Context, ordered []*candidate.Candidate, g *Graph, cfg Config) ([]*candidate.Candidate, Meta, error) {
	var meta Meta
	total := len(ordered) - 1 // single elimination: one match per elimination
	completed := 0

	r.emit(events.Event{Stage: events.StageRanking, Status: events.StatusStarting, Progress: &events.Progress{Total: total}})

	// exitRound[id] is the round a candidate lost in; survivors carry the
	// final round number so later rounds outrank earlier exits.
	exitRound := make(map[string]int)
	current := ordered
	round := 0

	for len(current) > 1 {
		round++
		var next []*candidate.Candidate
		for i := 0; i+1 < len(current); i += 2 {
			a, b := current[i], current[i+1]
			aID, bID := a.ID.String(), b.ID.String()

			winnerID, known := g.Winner(aID, bID)
			inferred := known
			if !known {
				var tokens int
				var cmpErr error
				winnerID, tokens, cmpErr = r.comparePair(ctx, a, b, cfg)
				meta.TokensUsed += tokens
				if cmpErr != nil {
					if ctx.Err() != nil {
						return nil, meta, ctx.Err()
					}
					if !cfg.Graceful {
						return nil, meta, PairError{A: aID, B: bID, Err: cmpErr}
					}
					// Degrade: the lower-ID side advances uncontested.
					meta.Errors = append(meta.Errors, PairError{A: aID, B: bID, Err: cmpErr})
					winnerID = aID
					completed++
					r.emitPair(a, b, "", completed, total, false, cmpErr)
					next = append(next, a)
					exitRound[bID] = round
					continue
				}
				meta.Comparisons++
			} else {
				meta.Inferred++
			}

			winner, loser := a, b
			if winnerID == bID {
				winner, loser = b, a
			}
			g.Add(winner.ID.String(), loser.ID.String())
			completed++
			r.emitPair(a, b, winnerID, completed, total, inferred, nil)
			next = append(next, winner)
			exitRound[loser.ID.String()] = round
		}
		if len(current)%2 == 1 {
			next = append(next, current[len(current)-1]) // bye
		}
		current = next
	}
	if len(current) == 1 {
		exitRound[current[0].ID.String()] = round + 1
	}

	out := make([]*candidate.Candidate, len(ordered))
	copy(out, ordered)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := exitRound[out[i].ID.String()], exitRound[out[j].ID.String()]
		if ri != rj {
			return ri > rj
		}
		wi, wj := g.Wins(out[i].ID.String()), g.Wins(out[j].ID.String())
		if wi != wj {
			return wi > wj
		}
		return out[i].ID.Less(out[j].ID)
	})

	r.emit(events.Event{Stage: events.StageRanking, Status: events.StatusComplete, Progress: &events.Progress{Completed: completed, Total: total}})
	return out, meta, nil
}

// comparePair asks the judge about one undecided pair. With an ensemble size
// above one the pair is judged that many times and the majority wins; an
// exact split favors the lower-ID side.
func (r *PairwiseRanker) comparePair(ctx context.Context, a, b *candidate.Candidate, cfg Config) (string, int, error) {
	votes := cfg.EnsembleSize
	if votes < 1 {
		votes = 1
	}

	votesA, tokens := 0, 0
	for v := 0; v < votes; v++ {
		var cmp provider.Comparison
		call := func(ctx context.Context) error {
			var err error
			cmp, err = r.judge.Compare(ctx, a.Image, b.Image, cfg.UserPrompt)
			return err
		}
		var err error
		if r.limiter != nil {
			err = r.limiter.Do(ctx, call)
		} else {
			err = call(ctx)
		}
		if err != nil {
			return "", tokens, err
		}
		tokens += cmp.TokensUsed
		switch cmp.Winner {
		case provider.SideA:
			votesA++
		case provider.SideB:
			// counted implicitly
		default:
			return "", tokens, fmt.Errorf("judge returned unknown side %q", cmp.Winner)
		}
	}

	if 2*votesA > votes || (2*votesA == votes && a.ID.Less(b.ID)) {
		return a.ID.String(), tokens, nil
	}
	return b.ID.String(), tokens, nil
}

func (r *PairwiseRanker) emitPair(a, b *candidate.Candidate, winner string, completed, total int, inferred bool, err error) {
	ev := events.Event{
		Stage:      events.StageRanking,
		Status:     events.StatusProgress,
		CandidateA: a.ID.String(),
		CandidateB: b.ID.String(),
		Inferred:   inferred,
		Progress:   &events.Progress{Completed: completed, Total: total},
	}
	if winner != "" {
		ev.Message = "winner " + winner
	}
	if err != nil {
		ev.Status = events.StatusFailed
		ev.Err = err.Error()
	}
	r.emit(ev)
	r.log.Debug().
		Str("a", ev.CandidateA).
		Str("b", ev.CandidateB).
		Str("winner", winner).
		Bool("inferred", inferred).
		Msg("pair resolved")
}
