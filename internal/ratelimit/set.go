package ratelimit

import "sync"

// Class identifies a provider class sharing one limiter.
type Class string

const (
	ClassLLM      Class = "llm"
	ClassImageGen Class = "imageGen"
	ClassVision   Class = "vision"
)

// Classes lists all provider classes in stable order.
func Classes() []Class {
	return []Class{ClassLLM, ClassImageGen, ClassVision}
}

// Limits configures per-class concurrency bounds. Zero fields take defaults.
type Limits struct {
	LLM      int
	ImageGen int
	Vision   int
}

// DefaultLimits returns the stock per-class bounds.
func DefaultLimits() Limits {
	return Limits{LLM: 8, ImageGen: 4, Vision: 6}
}

// Set holds one limiter per provider class. A Set is shared across all
// concurrent runs in a process so metrics reflect global load.
type Set struct {
	limiters map[Class]*Limiter
}

// NewSet creates a Set from the given limits, filling zero fields from
// DefaultLimits.
func NewSet(limits Limits) *Set {
	defaults := DefaultLimits()
	if limits.LLM < 1 {
		limits.LLM = defaults.LLM
	}
	if limits.ImageGen < 1 {
		limits.ImageGen = defaults.ImageGen
	}
	if limits.Vision < 1 {
		limits.Vision = defaults.Vision
	}
	return &Set{limiters: map[Class]*Limiter{
		ClassLLM:      New(limits.LLM),
		ClassImageGen: New(limits.ImageGen),
		ClassVision:   New(limits.Vision),
	}}
}

// Get returns the limiter for a class. Panics on an unknown class
// (programmer error).
func (s *Set) Get(class Class) *Limiter {
	l, ok := s.limiters[class]
	if !ok {
		panic("ratelimit: unknown class " + string(class))
	}
	return l
}

var (
	defaultSet  *Set
	defaultOnce sync.Once
)

// Default returns the process-wide limiter set, created on first use with
// DefaultLimits. Runs that need custom bounds construct their own Set.
func Default() *Set {
	defaultOnce.Do(func() {
		defaultSet = NewSet(DefaultLimits())
	})
	return defaultSet
}
