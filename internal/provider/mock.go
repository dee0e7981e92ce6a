package provider

import (
	"context"
	"fmt"

	"github.com/smileynet/promptbeam/internal/candidate"
)

// Compile-time interface checks for the mock doubles.
var (
	_ TextProvider      = (*MockText)(nil)
	_ ImageProvider     = (*MockImage)(nil)
	_ Evaluator         = (*MockEvaluator)(nil)
	_ PairwiseJudge     = (*MockJudge)(nil)
	_ CritiqueGenerator = (*MockCritic)(nil)
)

// MockText is a test double for TextProvider. Nil funcs fall back to
// deterministic echo behavior.
type MockText struct {
	ExpandFunc       func(ctx context.Context, userPrompt string, opts ExpandOptions) (TextResult, error)
	RefineFunc       func(ctx context.Context, current string, opts RefineOptions) (TextResult, error)
	CombineFunc      func(ctx context.Context, what, how string) (TextResult, error)
	GenerateTextFunc func(ctx context.Context, userMessage string, opts GenerateTextOptions) (string, error)
}

func (m *MockText) Expand(ctx context.Context, userPrompt string, opts ExpandOptions) (TextResult, error) {
	if m.ExpandFunc != nil {
		return m.ExpandFunc(ctx, userPrompt, opts)
	}
	return TextResult{Text: fmt.Sprintf("%s (%s)", userPrompt, opts.Dimension)}, nil
}

func (m *MockText) Refine(ctx context.Context, current string, opts RefineOptions) (TextResult, error) {
	if m.RefineFunc != nil {
		return m.RefineFunc(ctx, current, opts)
	}
	return TextResult{Text: current + " refined"}, nil
}

func (m *MockText) Combine(ctx context.Context, what, how string) (TextResult, error) {
	if m.CombineFunc != nil {
		return m.CombineFunc(ctx, what, how)
	}
	return TextResult{Text: what + ", " + how}, nil
}

func (m *MockText) GenerateText(ctx context.Context, userMessage string, opts GenerateTextOptions) (string, error) {
	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, userMessage, opts)
	}
	return userMessage, nil
}

// MockImage is a test double for ImageProvider.
type MockImage struct {
	GenerateFunc func(ctx context.Context, prompt string, opts ImageOptions) (candidate.Image, error)
}

func (m *MockImage) Generate(ctx context.Context, prompt string, opts ImageOptions) (candidate.Image, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts)
	}
	return candidate.Image{
		URL:      "mock://" + opts.CandidateID,
		Metadata: candidate.ImageMetadata{Model: "mock"},
	}, nil
}

// MockEvaluator is a test double for Evaluator.
type MockEvaluator struct {
	AnalyzeFunc func(ctx context.Context, image candidate.Image, combinedPrompt string) (candidate.Evaluation, error)
}

func (m *MockEvaluator) Analyze(ctx context.Context, image candidate.Image, combinedPrompt string) (candidate.Evaluation, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, image, combinedPrompt)
	}
	return candidate.Evaluation{AlignmentScore: 50, AestheticScore: 5}, nil
}

// MockJudge is a test double for PairwiseJudge.
type MockJudge struct {
	CompareFunc func(ctx context.Context, a, b candidate.Image, userPrompt string) (Comparison, error)
}

func (m *MockJudge) Compare(ctx context.Context, a, b candidate.Image, userPrompt string) (Comparison, error) {
	if m.CompareFunc != nil {
		return m.CompareFunc(ctx, a, b, userPrompt)
	}
	return Comparison{Winner: SideA, Confidence: 0.5}, nil
}

// MockCritic is a test double for CritiqueGenerator.
type MockCritic struct {
	CritiqueFunc func(ctx context.Context, req CritiqueRequest) (Critique, error)
}

func (m *MockCritic) Critique(ctx context.Context, req CritiqueRequest) (Critique, error) {
	if m.CritiqueFunc != nil {
		return m.CritiqueFunc(ctx, req)
	}
	return Critique{Critique: "vary the " + string(req.Dimension)}, nil
}
