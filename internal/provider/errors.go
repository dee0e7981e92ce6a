package provider

import (
	"fmt"
	"regexp"
	"strings"
)

// ProviderError wraps a transient failure from a specific provider role.
type ProviderError struct {
	Provider string // Role name ("text", "image", "vision", "judge", "critic").
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider: %s: %s", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// SafetyViolationError marks an image generation rejected by the backend's
// content filter. Category is the parsed violation category, if present.
type SafetyViolationError struct {
	Category string
	Err      error
}

func (e *SafetyViolationError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("provider: safety violation (%s): %s", e.Category, e.Err)
	}
	return fmt.Sprintf("provider: safety violation: %s", e.Err)
}

func (e *SafetyViolationError) Unwrap() error {
	return e.Err
}

// safetyMarkers are the message fragments that identify a content-filter
// rejection regardless of which backend produced it.
var safetyMarkers = []string{
	"safety",
	"safety_violations",
	"content policy",
	"rejected",
}

// IsSafetyViolation reports whether err looks like a content-filter rejection.
// Backends surface these as plain errors, so detection is by message shape.
func IsSafetyViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range safetyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// categoryPattern extracts the violation category from messages shaped like
// "safety_violations=[violence]".
var categoryPattern = regexp.MustCompile(`safety_violations=\[([^\]]*)\]`)

// SafetyCategory parses the violation category out of a safety error message.
// Returns "" when no category is present.
func SafetyCategory(err error) string {
	if err == nil {
		return ""
	}
	m := categoryPattern.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
