// Package pipeline turns one (what, how) prompt pair into a fully populated
// candidate: combine the halves, record the attempt, generate the image with
// a one-shot safety retry, and optionally score the result.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/smileynet/promptbeam/internal/candidate"
	"github.com/smileynet/promptbeam/internal/events"
	"github.com/smileynet/promptbeam/internal/metadata"
	"github.com/smileynet/promptbeam/internal/provider"
	"github.com/smileynet/promptbeam/internal/ratelimit"
)

// Rephrase-call parameters for the safety retry.
const (
	rephraseTemperature = 0.7
	rephraseMaxTokens   = 500
)

const rephraseSystemPrompt = "You rewrite image-generation prompts that were rejected by a content filter. Preserve the artistic intent while removing anything that could trigger the filter. Respond with only the rewritten prompt."

// ImageDefaults are the image-provider options applied to every generation.
type ImageDefaults struct {
	Model   string
	Size    string
	Quality string
	Seed    int64
}

// Pipeline processes candidates one at a time; a Pipeline itself is safe for
// concurrent use, the driver runs many Process calls in parallel.
type Pipeline struct {
	text  provider.TextProvider
	image provider.ImageProvider
	eval  provider.Evaluator // nil when comparative ranking is active

	limits    *ratelimit.Set
	meta      metadata.Sink
	emit      events.Sink
	log       zerolog.Logger
	alpha     float64
	sessionID string
	imageOpts ImageDefaults
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEvaluator enables absolute scoring after image generation.
func WithEvaluator(eval provider.Evaluator) Option {
	return func(p *Pipeline) { p.eval = eval }
}

// WithLimits replaces the process-wide limiter set.
func WithLimits(limits *ratelimit.Set) Option {
	return func(p *Pipeline) { p.limits = limits }
}

// WithMetadataSink routes attempt records to sink.
func WithMetadataSink(sink metadata.Sink) Option {
	return func(p *Pipeline) { p.meta = sink }
}

// WithEventSink routes stage progress events to sink.
func WithEventSink(sink events.Sink) Option {
	return func(p *Pipeline) { p.emit = sink }
}

// WithLogger sets the pipeline's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithAlpha sets the alignment weight of the total-score formula.
func WithAlpha(alpha float64) Option {
	return func(p *Pipeline) { p.alpha = alpha }
}

// WithSession tags provider calls and metadata with a session ID.
func WithSession(id string) Option {
	return func(p *Pipeline) { p.sessionID = id }
}

// WithImageDefaults sets the options passed to every image generation.
func WithImageDefaults(d ImageDefaults) Option {
	return func(p *Pipeline) { p.imageOpts = d }
}

// New creates a Pipeline around the required text and image providers.
func New(text provider.TextProvider, image provider.ImageProvider, opts ...Option) *Pipeline {
	p := &Pipeline{
		text:  text,
		image: image,
		meta:  metadata.NopSink{},
		emit:  events.Nop,
		log:   zerolog.Nop(),
		alpha: candidate.DefaultAlpha,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.limits == nil {
		p.limits = ratelimit.Default()
	}
	return p
}

// Process populates c in place: Combined, Image, and (with an evaluator)
// Evaluation and TotalScore. The candidate must arrive with ID, Dimension,
// What, and How set. Any stage error is returned unwrapped enough for the
// caller to classify; the attempt record persists even when a later stage
// fails.
func (p *Pipeline) Process(ctx context.Context, c *candidate.Candidate) error {
	id := c.ID.String()

	// Stage 1: combine the prompt halves.
	p.stage(c, events.StageCombine, events.StatusStarting, nil)
	var combined provider.TextResult
	err := p.limits.Get(ratelimit.ClassLLM).Do(ctx, func(ctx context.Context) error {
		var err error
		combined, err = p.text.Combine(ctx, c.What, c.How)
		return err
	})
	if err != nil {
		p.stageFailed(c, events.StageCombine, err)
		return fmt.Errorf("combining prompts for %s: %w", id, err)
	}
	c.Combined = combined.Text
	p.stage(c, events.StageCombine, events.StatusComplete, nil)

	// Stage 2: defensive attempt record, before any image call.
	attempt := metadata.Attempt{
		ID:          id,
		Iteration:   c.ID.Iteration,
		Local:       c.ID.Local,
		ParentLocal: c.ParentLocal,
		Dimension:   string(c.Dimension),
		What:        c.What,
		How:         c.How,
	}
	if err := p.meta.RecordAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("recording attempt %s: %w", id, err)
	}

	// Stage 3: image generation with one-shot safety retry.
	img, err := p.generateWithSafetyRetry(ctx, c)
	if err != nil {
		p.stageFailed(c, events.StageImageGen, err)
		return err
	}
	c.Image = img
	p.emit(events.Event{
		Stage:       events.StageImageGen,
		Status:      events.StatusComplete,
		CandidateID: id,
		Iteration:   c.ID.Iteration,
		ImageURL:    img.Ref(),
	})

	// Stage 4: optional absolute scoring.
	if p.eval != nil {
		if err := p.evaluate(ctx, c); err != nil {
			p.stageFailed(c, events.StageVision, err)
			return err
		}
	}

	// Stage 5: merge results into the attempt record.
	res := metadata.Results{
		Combined:   c.Combined,
		Image:      c.Image,
		Evaluation: c.Evaluation,
	}
	if c.Evaluation != nil {
		score := c.TotalScore
		res.TotalScore = &score
	}
	if err := p.meta.UpdateAttemptWithResults(ctx, id, res); err != nil {
		return fmt.Errorf("updating attempt %s: %w", id, err)
	}

	p.log.Debug().Str("candidate", id).Msg("pipeline complete")
	return nil
}

// generateWithSafetyRetry calls the image provider once, and on a safety
// rejection rephrases the prompt and retries exactly once. Non-safety errors
// propagate untouched; if the rephrase fails, returns empty, or the retry is
// rejected again, the original violation surfaces.
func (p *Pipeline) generateWithSafetyRetry(ctx context.Context, c *candidate.Candidate) (candidate.Image, error) {
	id := c.ID.String()
	opts := provider.ImageOptions{
		CandidateID: id,
		Dimension:   c.Dimension,
		SessionID:   p.sessionID,
		Model:       p.imageOpts.Model,
		Size:        p.imageOpts.Size,
		Quality:     p.imageOpts.Quality,
		Seed:        p.imageOpts.Seed,
	}

	p.stage(c, events.StageImageGen, events.StatusStarting, nil)
	img, genErr := p.generate(ctx, c.Combined, opts)
	if genErr == nil {
		return img, nil
	}
	if ctx.Err() != nil {
		return candidate.Image{}, ctx.Err()
	}
	if !provider.IsSafetyViolation(genErr) {
		return candidate.Image{}, fmt.Errorf("generating image for %s: %w", id, genErr)
	}

	category := provider.SafetyCategory(genErr)
	violation := &provider.SafetyViolationError{Category: category, Err: genErr}
	p.log.Warn().Str("candidate", id).Str("category", category).Msg("image rejected by content filter")
	p.stage(c, events.StageSafety, events.StatusRephrasing, func(ev *events.Event) {
		ev.Message = category
	})

	rephrased, err := p.rephrase(ctx, c.Combined, category)
	if err != nil || strings.TrimSpace(rephrased) == "" {
		if ctx.Err() != nil {
			return candidate.Image{}, ctx.Err()
		}
		p.stage(c, events.StageSafety, events.StatusFailed, func(ev *events.Event) {
			ev.Err = violation.Error()
		})
		return candidate.Image{}, violation
	}

	p.stage(c, events.StageSafety, events.StatusRetrying, nil)
	img, err = p.generate(ctx, rephrased, opts)
	if err != nil {
		if ctx.Err() != nil {
			return candidate.Image{}, ctx.Err()
		}
		p.stage(c, events.StageSafety, events.StatusFailed, func(ev *events.Event) {
			ev.Err = violation.Error()
		})
		return candidate.Image{}, violation
	}

	img.Metadata.SafetyRephrased = true
	img.Metadata.OriginalPrompt = c.Combined
	img.Metadata.RephrasedPrompt = rephrased
	p.stage(c, events.StageSafety, events.StatusSuccess, nil)
	return img, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string, opts provider.ImageOptions) (candidate.Image, error) {
	var img candidate.Image
	err := p.limits.Get(ratelimit.ClassImageGen).Do(ctx, func(ctx context.Context) error {
		var err error
		img, err = p.image.Generate(ctx, prompt, opts)
		return err
	})
	return img, err
}

func (p *Pipeline) rephrase(ctx context.Context, combined, category string) (string, error) {
	msg := "This image prompt was rejected by a content filter"
	if category != "" {
		msg += " (" + category + ")"
	}
	msg += ":\n\n" + combined

	var out string
	err := p.limits.Get(ratelimit.ClassLLM).Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = p.text.GenerateText(ctx, msg, provider.GenerateTextOptions{
			SystemPrompt: rephraseSystemPrompt,
			Temperature:  rephraseTemperature,
			MaxTokens:    rephraseMaxTokens,
		})
		return err
	})
	return out, err
}

func (p *Pipeline) evaluate(ctx context.Context, c *candidate.Candidate) error {
	p.stage(c, events.StageVision, events.StatusStarting, nil)
	var eval candidate.Evaluation
	err := p.limits.Get(ratelimit.ClassVision).Do(ctx, func(ctx context.Context) error {
		var err error
		eval, err = p.eval.Analyze(ctx, c.Image, c.Combined)
		return err
	})
	if err != nil {
		return fmt.Errorf("analyzing image for %s: %w", c.ID, err)
	}

	c.Evaluation = &eval
	c.TotalScore = candidate.TotalScore(eval.AlignmentScore, eval.AestheticScore, p.alpha)
	p.stage(c, events.StageVision, events.StatusComplete, func(ev *events.Event) {
		ev.Alignment = events.Float(eval.AlignmentScore)
		ev.Aesthetic = events.Float(eval.AestheticScore)
		ev.TotalScore = events.Float(c.TotalScore)
	})
	return nil
}

func (p *Pipeline) stage(c *candidate.Candidate, stage events.Stage, status events.Status, fill func(*events.Event)) {
	ev := events.Event{
		Stage:       stage,
		Status:      status,
		CandidateID: c.ID.String(),
		Iteration:   c.ID.Iteration,
	}
	if fill != nil {
		fill(&ev)
	}
	p.emit(ev)
}

func (p *Pipeline) stageFailed(c *candidate.Candidate, stage events.Stage, err error) {
	p.stage(c, stage, events.StatusFailed, func(ev *events.Event) {
		ev.Err = err.Error()
	})
}
