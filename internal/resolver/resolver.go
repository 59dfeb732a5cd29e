// Package resolver turns a classified topic into an answer set by trying a
// fixed list of data sources in order: hand-verified datasets, a live stats
// site, then generative providers.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/statquiz/internal/answer"
	"github.com/p-n-ai/statquiz/internal/intent"
)

var (
	// ErrNotApplicable is returned by a strategy that does not handle the
	// query. It does not count as a failure.
	ErrNotApplicable = errors.New("strategy not applicable")
	// ErrSourceUnavailable means every strategy that ran failed.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrEmptyResult means a source answered but produced no records.
	ErrEmptyResult = errors.New("empty result")
)

// Query is what a strategy is asked to answer.
type Query struct {
	Topic     string
	Intent    intent.Intent
	// MaxItems caps the answers of any result; 0 means no cap.
	MaxItems  int
	TimeLimit int // seconds, 0 when the caller has no preference
}

// Result is a non-empty answer set and its presentation.
type Result struct {
	Title       string
	Description string
	Answers     answer.Set
	TimeLimit   int
	// Source is the name of the strategy that produced the result.
	Source string
	// Provider names the generative provider, when one was used.
	Provider string
}

// Strategy is one way of acquiring answer data.
type Strategy interface {
	Name() string
	// Attempt returns a non-empty result, ErrNotApplicable, an error wrapping
	// ErrEmptyResult, or any other error for a technical failure.
	Attempt(ctx context.Context, q Query) (*Result, error)
}

// Reason classifies a terminal resolver failure.
type Reason string

const (
	ReasonSourceUnavailable Reason = "source_unavailable"
	ReasonEmptyResult       Reason = "empty_result"
)

// StrategyError records why one strategy did not produce a result.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e StrategyError) Error() string {
	return e.Strategy + ": " + e.Err.Error()
}

// Failure is returned when no strategy produced answers.
type Failure struct {
	Reason   Reason
	Attempts []StrategyError
}

func (f *Failure) Error() string {
	if len(f.Attempts) == 0 {
		return fmt.Sprintf("resolve topic: %s: no applicable source", f.Reason)
	}
	return fmt.Sprintf("resolve topic: %s: %s", f.Reason, f.Details())
}

// Unwrap lets errors.Is match ErrSourceUnavailable or ErrEmptyResult.
func (f *Failure) Unwrap() error {
	if f.Reason == ReasonEmptyResult {
		return ErrEmptyResult
	}
	return ErrSourceUnavailable
}

// Details summarizes each attempt for operators.
func (f *Failure) Details() string {
	parts := make([]string, len(f.Attempts))
	for i, a := range f.Attempts {
		parts[i] = a.Error()
	}
	return strings.Join(parts, "; ")
}

// Resolver iterates strategies strictly in order.
type Resolver struct {
	strategies []Strategy
}

// New creates a resolver over the given strategies.
func New(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// Strategies returns the strategy names in order.
func (r *Resolver) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve returns the first non-empty result. When every strategy defers or
// fails it returns a *Failure; context cancellation is returned as is.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*Result, error) {
	var attempts []StrategyError
	sawEmpty := false

	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := s.Attempt(ctx, q)
		switch {
		case errors.Is(err, ErrNotApplicable):
			slog.Debug("strategy not applicable", "strategy", s.Name(), "topic", q.Topic)
			continue
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, ErrEmptyResult):
			sawEmpty = true
		case err == nil && (res == nil || res.Answers.Len() == 0):
			sawEmpty = true
			err = ErrEmptyResult
		}
		if err != nil {
			slog.Warn("strategy failed, trying next",
				"strategy", s.Name(),
				"topic", q.Topic,
				"error", err,
			)
			attempts = append(attempts, StrategyError{Strategy: s.Name(), Err: err})
			continue
		}

		res.Source = s.Name()
		if q.MaxItems > 0 && res.Answers.Len() > q.MaxItems {
			slog.Debug("capping answers", "strategy", s.Name(), "answers", res.Answers.Len(), "max", q.MaxItems)
			res.Answers = truncate(res.Answers, q.MaxItems)
		}
		slog.Info("topic resolved",
			"strategy", s.Name(),
			"provider", res.Provider,
			"topic", q.Topic,
			"answers", res.Answers.Len(),
		)
		return res, nil
	}

	reason := ReasonSourceUnavailable
	if sawEmpty {
		reason = ReasonEmptyResult
	}
	return nil, &Failure{Reason: reason, Attempts: attempts}
}

// truncate keeps the first n answers, which are the most recent seasons.
func truncate(set answer.Set, n int) answer.Set {
	return answer.NewSet(set.Records()[:n])
}
