package search

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

type Option func(a *Agent)

// ExhaustionPolicy decides what a ply above the horizon yields when the
// board has filled up and there is nothing left to fold.
type ExhaustionPolicy int

const (
	// FailOnExhausted aborts the search with ErrExhaustedMoves.
	FailOnExhausted ExhaustionPolicy = iota
	// SentinelOnExhausted returns the untouched fold accumulator:
	// MaxSentinel on a Maximize ply, MinSentinel on a Minimize ply.
	SentinelOnExhausted
)

func (p ExhaustionPolicy) String() string {
	switch p {
	case SentinelOnExhausted:
		return "sentinel"
	default:
		return "fail"
	}
}

func ParseExhaustionPolicy(s string) (ExhaustionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return FailOnExhausted, nil
	case "sentinel":
		return SentinelOnExhausted, nil
	}
	return FailOnExhausted, fmt.Errorf("unknown exhaustion policy %q", s)
}

// WithParallel evaluates the root's candidate moves on up to workers
// goroutines.
func WithParallel(workers int) Option {
	return func(a *Agent) {
		if workers > 0 {
			a.workers = workers
		}
	}
}

func WithExhaustion(policy ExhaustionPolicy) Option {
	return func(a *Agent) {
		a.exhaustion = policy
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

func WithObserver(observer Observer) Option {
	return func(a *Agent) {
		if observer != nil {
			a.observer = observer
		}
	}
}
