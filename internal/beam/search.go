package beam

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/smileynet/promptbeam/internal/candidate"
	"github.com/smileynet/promptbeam/internal/events"
	"github.com/smileynet/promptbeam/internal/metadata"
	"github.com/smileynet/promptbeam/internal/pipeline"
	"github.com/smileynet/promptbeam/internal/provider"
	"github.com/smileynet/promptbeam/internal/ranking"
	"github.com/smileynet/promptbeam/internal/ratelimit"
)

// PostProcess reworks the winning candidate after the final ranking, for
// example by re-generating its image conditioned on the first result. A
// failure is logged and the unprocessed winner stands.
type PostProcess func(ctx context.Context, winner *candidate.Candidate) error

// IterationSummary is handed to the per-iteration callback.
type IterationSummary struct {
	Iteration int
	Ranked    []*candidate.Candidate // best-first, full pool
	Parents   []*candidate.Candidate // survivors carried forward
}

// Result is the outcome of a completed run.
type Result struct {
	Winner      *candidate.Candidate
	Finalists   []*candidate.Candidate // final survivors in rank order
	Leaderboard []*candidate.Candidate // every candidate, by global rank
	TokensUsed  int
}

// Search is a configured beam-search run. Construct with New; a Search is
// single-use.
type Search struct {
	params Params

	text   provider.TextProvider
	image  provider.ImageProvider
	eval   provider.Evaluator
	judge  provider.PairwiseJudge
	critic provider.CritiqueGenerator

	limits        *ratelimit.Set
	meta          metadata.Sink
	emit          events.Sink
	log           zerolog.Logger
	imageDefaults pipeline.ImageDefaults
	ensembleSize  int
	graceful      bool
	postProcess   PostProcess

	onCandidate func(*candidate.Candidate)
	onIteration func(IterationSummary)

	pipe   *pipeline.Pipeline
	tokens atomic.Int64
}

// Option configures a Search.
type Option func(*Search)

// WithEvaluator enables absolute scoring (mode A ranking unless a judge is
// also present).
func WithEvaluator(eval provider.Evaluator) Option {
	return func(s *Search) { s.eval = eval }
}

// WithJudge enables comparative ranking. When a judge is present the ranker
// compares images pairwise instead of sorting by score.
func WithJudge(judge provider.PairwiseJudge) Option {
	return func(s *Search) { s.judge = judge }
}

// WithCritic sets the critique generator driving refinement. Without one,
// children refine on the parent's raw feedback alone.
func WithCritic(critic provider.CritiqueGenerator) Option {
	return func(s *Search) { s.critic = critic }
}

// WithLimits replaces the process-wide limiter set.
func WithLimits(limits *ratelimit.Set) Option {
	return func(s *Search) { s.limits = limits }
}

// WithMetadataSink routes attempt records to sink.
func WithMetadataSink(sink metadata.Sink) Option {
	return func(s *Search) { s.meta = sink }
}

// WithEventSink routes progress events to sink.
func WithEventSink(sink events.Sink) Option {
	return func(s *Search) { s.emit = sink }
}

// WithLogger sets the run's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Search) { s.log = log }
}

// WithImageDefaults sets the options passed to every image generation.
func WithImageDefaults(d pipeline.ImageDefaults) Option {
	return func(s *Search) { s.imageDefaults = d }
}

// WithEnsemble sets the number of judge votes per undecided pair.
func WithEnsemble(size int) Option {
	return func(s *Search) { s.ensembleSize = size }
}

// WithGracefulDegradation tolerates per-pair judge failures during ranking.
func WithGracefulDegradation() Option {
	return func(s *Search) { s.graceful = true }
}

// WithPostProcess installs a winner post-processing hook. Off by default.
func WithPostProcess(fn PostProcess) Option {
	return func(s *Search) { s.postProcess = fn }
}

// OnCandidateProcessed registers a callback invoked as each candidate
// finishes its pipeline, not at the end of the batch. Called from worker
// goroutines.
func OnCandidateProcessed(fn func(*candidate.Candidate)) Option {
	return func(s *Search) { s.onCandidate = fn }
}

// OnIterationComplete registers a callback invoked after each iteration's
// ranking.
func OnIterationComplete(fn func(IterationSummary)) Option {
	return func(s *Search) { s.onIteration = fn }
}

// New validates params and assembles a Search around the required text and
// image providers.
func New(params Params, text provider.TextProvider, image provider.ImageProvider, opts ...Option) (*Search, error) {
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return nil, err
	}

	s := &Search{
		params: params,
		text:   text,
		image:  image,
		meta:   metadata.NopSink{},
		emit:   events.Nop,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limits == nil {
		s.limits = ratelimit.Default()
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithLimits(s.limits),
		pipeline.WithMetadataSink(s.meta),
		pipeline.WithEventSink(s.emit),
		pipeline.WithLogger(s.log),
		pipeline.WithAlpha(params.Alpha),
		pipeline.WithSession(params.SessionID),
		pipeline.WithImageDefaults(s.imageDefaults),
	}
	if s.eval != nil {
		pipeOpts = append(pipeOpts, pipeline.WithEvaluator(s.eval))
	}
	s.pipe = pipeline.New(text, image, pipeOpts...)
	return s, nil
}

// Run executes the search: one initial expansion plus Iterations-1
// refinement passes, ranking and pruning after each. Returns the winner,
// the final survivors, and the run-wide leaderboard.
func (s *Search) Run(ctx context.Context) (*Result, error) {
	var (
		parents     []*candidate.Candidate
		leaderboard []*candidate.Candidate
	)

	for it := 0; it < s.params.Iterations; it++ {
		var fresh []*candidate.Candidate
		var err error
		if it == 0 {
			fresh, err = s.expandInitial(ctx)
		} else {
			fresh, err = s.refine(ctx, it, parents)
		}
		if err != nil {
			return nil, err
		}

		// Parents stay eligible: the pool ranks survivors and children
		// together.
		pool := append(append([]*candidate.Candidate{}, parents...), fresh...)
		ranked, err := s.rankPool(ctx, pool, parents)
		if err != nil {
			return nil, err
		}

		ranking.AssignGlobalRanks(ranked, parents, s.params.BeamWidth, it)
		leaderboard = ranking.MergeGlobal(leaderboard, ranked)

		keep := s.params.KeepTop
		if keep > len(ranked) {
			keep = len(ranked)
		}
		parents = ranked[:keep]

		s.log.Info().
			Int("iteration", it).
			Int("pool", len(ranked)).
			Str("best", parents[0].ID.String()).
			Msg("iteration complete")
		if s.onIteration != nil {
			s.onIteration(IterationSummary{Iteration: it, Ranked: ranked, Parents: parents})
		}
	}

	winner := parents[0]
	if s.postProcess != nil {
		if err := s.postProcess(ctx, winner); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn().Err(err).Str("candidate", winner.ID.String()).Msg("post-processing failed, keeping original winner")
		}
	}

	w := metadata.Winner{ID: winner.ID.String()}
	if winner.Evaluation != nil {
		w.TotalScore = winner.TotalScore
	}
	if err := s.meta.MarkFinalWinner(ctx, w); err != nil {
		return nil, fmt.Errorf("marking winner: %w", err)
	}

	return &Result{
		Winner:      winner,
		Finalists:   parents,
		Leaderboard: leaderboard,
		TokensUsed:  int(s.tokens.Load()),
	}, nil
}

// expandInitial produces the iteration-0 beam: for each slot, two parallel
// expand calls (what and how) followed by the candidate pipeline. Individual
// failures leave the slot empty; the iteration fails only when every slot is
// empty.
func (s *Search) expandInitial(ctx context.Context) ([]*candidate.Candidate, error) {
	slots := make([]*candidate.Candidate, s.params.BeamWidth)

	var wg sync.WaitGroup
	for i := range slots {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := s.expandSeed(ctx, i)
			if err != nil {
				s.candidateFailed(candidate.ID{Iteration: 0, Local: i}, err)
				return
			}
			slots[i] = c
			if s.onCandidate != nil {
				s.onCandidate(c)
			}
		}(i)
	}
	wg.Wait()

	return s.collect(ctx, slots)
}

func (s *Search) expandSeed(ctx context.Context, local int) (*candidate.Candidate, error) {
	id := candidate.ID{Iteration: 0, Local: local}
	s.emit(events.Event{Stage: events.StageExpand, Status: events.StatusStarting, CandidateID: id.String()})

	var what, how provider.TextResult
	g, gctx := errgroup.WithContext(ctx)
	for _, dim := range []struct {
		dimension candidate.Dimension
		out       *provider.TextResult
	}{
		{candidate.DimWhat, &what},
		{candidate.DimHow, &how},
	} {
		dim := dim
		g.Go(func() error {
			return s.limits.Get(ratelimit.ClassLLM).Do(gctx, func(ctx context.Context) error {
				res, err := s.text.Expand(ctx, s.params.UserPrompt, provider.ExpandOptions{
					Dimension:   dim.dimension,
					Temperature: s.params.Temperature,
					SessionID:   s.params.SessionID,
				})
				if err != nil {
					return err
				}
				*dim.out = res
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("expanding %s: %w", id, err)
	}
	s.tokens.Add(int64(what.Metadata.TokensUsed + how.Metadata.TokensUsed))
	s.emit(events.Event{Stage: events.StageExpand, Status: events.StatusComplete, CandidateID: id.String()})

	c := &candidate.Candidate{
		ID:          id,
		ParentLocal: candidate.NoParent,
		What:        what.Text,
		How:         how.Text,
	}
	if err := s.pipe.Process(ctx, c); err != nil {
		return nil, err
	}
	s.accountCandidate(c)
	return c, nil
}

// refine produces iteration it's children: a critique per parent, then
// beamWidth/keepTop children per parent refining the iteration's dimension
// while inheriting the other verbatim.
func (s *Search) refine(ctx context.Context, it int, parents []*candidate.Candidate) ([]*candidate.Candidate, error) {
	dimension := candidate.DimensionFor(it)
	ratio := s.params.BeamWidth / s.params.KeepTop
	slots := make([]*candidate.Candidate, len(parents)*ratio)

	var wg sync.WaitGroup
	for pi, parent := range parents {
		wg.Add(1)
		go func(pi int, parent *candidate.Candidate) {
			defer wg.Done()

			critique := s.critiqueParent(ctx, parent, dimension, it)

			var cwg sync.WaitGroup
			for ci := 0; ci < ratio; ci++ {
				cwg.Add(1)
				go func(ci int) {
					defer cwg.Done()
					local := pi*ratio + ci
					c, err := s.refineChild(ctx, it, local, parent, dimension, critique)
					if err != nil {
						s.candidateFailed(candidate.ID{Iteration: it, Local: local}, err)
						return
					}
					slots[local] = c
					if s.onCandidate != nil {
						s.onCandidate(c)
					}
				}(ci)
			}
			cwg.Wait()
		}(pi, parent)
	}
	wg.Wait()

	return s.collect(ctx, slots)
}

// critiqueParent generates refinement guidance for one parent. A critique
// failure degrades to refining on the parent's raw feedback.
func (s *Search) critiqueParent(ctx context.Context, parent *candidate.Candidate, dimension candidate.Dimension, it int) string {
	feedback := parentFeedback(parent)
	if s.critic == nil {
		return feedback
	}

	var crit provider.Critique
	err := s.limits.Get(ratelimit.ClassLLM).Do(ctx, func(ctx context.Context) error {
		var err error
		crit, err = s.critic.Critique(ctx, provider.CritiqueRequest{
			Feedback:   feedback,
			What:       parent.What,
			How:        parent.How,
			Combined:   parent.Combined,
			UserPrompt: s.params.UserPrompt,
			Dimension:  dimension,
			Iteration:  it,
		})
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).Str("candidate", parent.ID.String()).Msg("critique failed, refining on raw feedback")
		return feedback
	}
	s.tokens.Add(int64(crit.Metadata.TokensUsed))
	return crit.Critique
}

func (s *Search) refineChild(ctx context.Context, it, local int, parent *candidate.Candidate, dimension candidate.Dimension, critique string) (*candidate.Candidate, error) {
	id := candidate.ID{Iteration: it, Local: local}
	current := parent.What
	if dimension == candidate.DimHow {
		current = parent.How
	}

	var refined provider.TextResult
	err := s.limits.Get(ratelimit.ClassLLM).Do(ctx, func(ctx context.Context) error {
		var err error
		refined, err = s.text.Refine(ctx, current, provider.RefineOptions{
			Dimension:  dimension,
			Critique:   critique,
			UserPrompt: s.params.UserPrompt,
			SessionID:  s.params.SessionID,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("refining %s: %w", id, err)
	}
	s.tokens.Add(int64(refined.Metadata.TokensUsed))

	c := &candidate.Candidate{
		ID:          id,
		ParentLocal: parent.ID.Local,
		Dimension:   dimension,
		What:        parent.What,
		How:         parent.How,
	}
	if dimension == candidate.DimWhat {
		c.What = refined.Text
	} else {
		c.How = refined.Text
	}
	if err := s.pipe.Process(ctx, c); err != nil {
		return nil, err
	}
	s.accountCandidate(c)
	return c, nil
}

// rankPool orders the iteration's pool best-first: comparatively when a
// judge is configured, by total score otherwise.
func (s *Search) rankPool(ctx context.Context, pool, parents []*candidate.Candidate) ([]*candidate.Candidate, error) {
	// Score mode leaves Ranking nil: a Ranking only exists when pairwise
	// comparison produced it, and the critic feedback path relies on that
	// to reach the vision analysis.
	if s.judge == nil {
		return ranking.ByScore(pool), nil
	}

	ranker := ranking.NewPairwiseRanker(s.judge, s.limits.Get(ratelimit.ClassVision),
		ranking.WithEventSink(s.emit),
		ranking.WithLogger(s.log),
	)
	ranked, meta, err := ranker.Rank(ctx, pool, ranking.Config{
		UserPrompt:   s.params.UserPrompt,
		EnsembleSize: s.ensembleSize,
		Graceful:     s.graceful,
		PreviousTop:  parents,
	})
	if err != nil {
		return nil, err
	}
	s.tokens.Add(int64(meta.TokensUsed))
	for _, pe := range meta.Errors {
		s.log.Warn().Str("a", pe.A).Str("b", pe.B).Err(pe.Err).Msg("pair comparison failed")
	}
	return ranked, nil
}

// collect filters the non-empty slots, failing the iteration when every
// slot is empty. Cancellation takes precedence over the all-failed error.
func (s *Search) collect(ctx context.Context, slots []*candidate.Candidate) ([]*candidate.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pool := make([]*candidate.Candidate, 0, len(slots))
	for _, c := range slots {
		if c != nil {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return nil, ErrAllCandidatesFailed
	}
	return pool, nil
}

func (s *Search) candidateFailed(id candidate.ID, err error) {
	s.log.Error().Err(err).Str("candidate", id.String()).Msg("candidate failed")
	s.emit(events.Event{
		Stage:       events.StageError,
		Status:      events.StatusFailed,
		CandidateID: id.String(),
		Iteration:   id.Iteration,
		Err:         err.Error(),
	})
}

func (s *Search) accountCandidate(c *candidate.Candidate) {
	if c.Evaluation != nil {
		s.tokens.Add(int64(c.Evaluation.TokensUsed))
	}
}

// parentFeedback summarizes what is known about a parent for the critic.
func parentFeedback(p *candidate.Candidate) string {
	if p.Ranking != nil {
		if p.Ranking.Reason != "" {
			return p.Ranking.Reason
		}
		return fmt.Sprintf("ranked #%d with %d comparison wins", p.Ranking.Rank, p.Ranking.Wins)
	}
	if p.Evaluation != nil {
		if p.Evaluation.Analysis != "" {
			return p.Evaluation.Analysis
		}
		return fmt.Sprintf("alignment %.0f/100, aesthetics %.1f/10", p.Evaluation.AlignmentScore, p.Evaluation.AestheticScore)
	}
	return ""
}
