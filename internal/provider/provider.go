// Package provider abstracts the external model backends a beam-search run
// coordinates: text generation, image generation, image evaluation, pairwise
// judging, and critique generation. Interfaces are defined here; concrete
// cloud or local backends register factories with the Registry.
package provider

import (
	"context"

	"github.com/smileynet/promptbeam/internal/candidate"
)

// Metadata carries model attribution and token accounting for one call.
type Metadata struct {
	Model      string
	TokensUsed int
}

// TextResult is the output of a text-provider operation.
type TextResult struct {
	Text     string
	Metadata Metadata
}

// ExpandOptions parameterizes an initial prompt expansion.
type ExpandOptions struct {
	Dimension   candidate.Dimension
	Temperature float64
	SessionID   string
}

// RefineOptions parameterizes a refinement of one prompt dimension.
type RefineOptions struct {
	Dimension  candidate.Dimension
	Critique   string
	UserPrompt string
	SessionID  string
}

// GenerateTextOptions parameterizes a raw completion call.
type GenerateTextOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// TextProvider generates and transforms prompts.
type TextProvider interface {
	// Expand grows a terse user prompt along one dimension.
	Expand(ctx context.Context, userPrompt string, opts ExpandOptions) (TextResult, error)
	// Refine rewrites the current value of one dimension guided by a critique.
	Refine(ctx context.Context, current string, opts RefineOptions) (TextResult, error)
	// Combine synthesizes a WHAT/HOW pair into a single image prompt.
	Combine(ctx context.Context, what, how string) (TextResult, error)
	// GenerateText runs a raw completion. Used by the safety-rephrase path.
	GenerateText(ctx context.Context, userMessage string, opts GenerateTextOptions) (string, error)
}

// ImageOptions is the enumerated option set passed through to image backends.
type ImageOptions struct {
	CandidateID string
	Dimension   candidate.Dimension
	SessionID   string
	Model       string
	Size        string
	Quality     string
	Seed        int64

	// Two-stage refinement: re-run generation conditioned on a prior image.
	InputImage      string
	DenoiseStrength float64
}

// ImageProvider turns a combined prompt into an image artifact. Safety
// rejections are reported as errors recognizable by IsSafetyViolation.
type ImageProvider interface {
	Generate(ctx context.Context, prompt string, opts ImageOptions) (candidate.Image, error)
}

// Evaluator scores an image against its prompt (absolute scoring mode).
type Evaluator interface {
	Analyze(ctx context.Context, image candidate.Image, combinedPrompt string) (candidate.Evaluation, error)
}

// Side identifies the winner of a pairwise comparison.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Comparison is the verdict of one pairwise judge call.
type Comparison struct {
	Winner     Side
	Reason     string
	Confidence float64
	TokensUsed int
}

// PairwiseJudge decides which of two images better serves the user prompt
// (comparative ranking mode).
type PairwiseJudge interface {
	Compare(ctx context.Context, a, b candidate.Image, userPrompt string) (Comparison, error)
}

// CritiqueRequest bundles the inputs for critique generation: the parent's
// latest feedback, its prompts, and the refinement context.
type CritiqueRequest struct {
	Feedback   string
	What       string
	How        string
	Combined   string
	UserPrompt string
	Dimension  candidate.Dimension
	Iteration  int
}

// Critique is the structured output of a critique generator.
type Critique struct {
	Critique       string
	Recommendation string
	Reason         string
	Metadata       Metadata
}

// CritiqueGenerator produces refinement guidance for one parent candidate.
type CritiqueGenerator interface {
	Critique(ctx context.Context, req CritiqueRequest) (Critique, error)
}
