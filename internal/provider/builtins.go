package provider

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/smileynet/promptbeam/internal/candidate"
)

// MockBundle returns a deterministic offline bundle. Scores derive from a
// hash of the combined prompt, so repeated runs produce identical results.
// Useful for demos and smoke tests without any backend configured.
func MockBundle() Bundle {
	return Bundle{
		Text: &MockText{},
		Image: &MockImage{
			GenerateFunc: func(_ context.Context, prompt string, opts ImageOptions) (candidate.Image, error) {
				return candidate.Image{
					URL: fmt.Sprintf("mock://%s/%08x", opts.CandidateID, hash32(prompt)),
					Metadata: candidate.ImageMetadata{
						Model: "mock-image",
						Seed:  opts.Seed,
					},
				}, nil
			},
		},
		Evaluator: &MockEvaluator{
			AnalyzeFunc: func(_ context.Context, _ candidate.Image, combined string) (candidate.Evaluation, error) {
				h := hash32(combined)
				return candidate.Evaluation{
					AlignmentScore: float64(h % 101),
					AestheticScore: float64(h/101%101) / 10,
					Analysis:       "mock analysis",
				}, nil
			},
		},
		Critic: &MockCritic{},
	}
}

// RegisterBuiltins registers the built-in provider bundles on the given registry.
func RegisterBuiltins(reg *Registry) {
	reg.Register("mock", func() (Bundle, error) {
		return MockBundle(), nil
	})
}

// hash32 returns a stable FNV-1a hash of s.
func hash32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
