package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// --- Safety detection tests ---

func TestIsSafetyViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"plain failure", errors.New("connection refused"), false},
		{"safety keyword", errors.New("request blocked: safety system"), true},
		{"safety_violations shape", errors.New("safety_violations=[violence]"), true},
		{"content policy", errors.New("Your request violates our Content Policy"), true},
		{"rejected", errors.New("prompt was REJECTED by the filter"), true},
		{"wrapped violation", fmt.Errorf("generate: %w", errors.New("content policy breach")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSafetyViolation(tt.err); got != tt.want {
				t.Errorf("IsSafetyViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSafetyCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, ""},
		{"no category", errors.New("safety system engaged"), ""},
		{"single category", errors.New("blocked: safety_violations=[violence]"), "violence"},
		{"category with spaces", errors.New("safety_violations=[graphic content]"), "graphic content"},
		{"empty brackets", errors.New("safety_violations=[]"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafetyCategory(tt.err); got != tt.want {
				t.Errorf("SafetyCategory(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestSafetyViolationError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("safety_violations=[violence]")
	err := &SafetyViolationError{Category: "violence", Err: cause}

	if !strings.Contains(err.Error(), "violence") {
		t.Errorf("Error() = %q, want category included", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is failed to find the wrapped cause")
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &ProviderError{Provider: "image", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is failed to find the wrapped cause")
	}
	want := "provider: image: boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// --- Registry tests ---

func TestRegistry_NewBundle_Unknown(t *testing.T) {
	reg := NewRegistry()
	reg.Register("mock", func() (Bundle, error) { return MockBundle(), nil })

	_, err := reg.NewBundle("gpt-image")

	var unknown *UnknownProviderError
	if !errors.As(err, &unknown) {
		t.Fatalf("NewBundle() error = %v, want UnknownProviderError", err)
	}
	if unknown.Name != "gpt-image" {
		t.Errorf("Name = %q, want %q", unknown.Name, "gpt-image")
	}
	if len(unknown.Available) != 1 || unknown.Available[0] != "mock" {
		t.Errorf("Available = %v, want [mock]", unknown.Available)
	}
}

func TestRegistry_Register_PanicsOnEmptyName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Register with empty name did not panic")
		}
	}()
	NewRegistry().Register("", func() (Bundle, error) { return Bundle{}, nil })
}

func TestMockBundle_Deterministic(t *testing.T) {
	b := MockBundle()
	ctx := context.Background()

	img1, err := b.Image.Generate(ctx, "a red fox", ImageOptions{CandidateID: "i0c0"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	img2, _ := b.Image.Generate(ctx, "a red fox", ImageOptions{CandidateID: "i0c0"})
	if img1.URL != img2.URL {
		t.Errorf("mock image URLs differ across identical calls: %q vs %q", img1.URL, img2.URL)
	}

	ev1, _ := b.Evaluator.Analyze(ctx, img1, "a red fox")
	ev2, _ := b.Evaluator.Analyze(ctx, img1, "a red fox")
	if ev1 != ev2 {
		t.Errorf("mock evaluations differ across identical calls: %+v vs %+v", ev1, ev2)
	}
	if ev1.AlignmentScore < 0 || ev1.AlignmentScore > 100 {
		t.Errorf("AlignmentScore = %v, want [0,100]", ev1.AlignmentScore)
	}
	if ev1.AestheticScore < 0 || ev1.AestheticScore > 10 {
		t.Errorf("AestheticScore = %v, want [0,10]", ev1.AestheticScore)
	}
}
