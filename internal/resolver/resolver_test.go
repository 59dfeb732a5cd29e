package resolver_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/p-n-ai/statquiz/internal/answer"
	"github.com/p-n-ai/statquiz/internal/resolver"
)

type stubStrategy struct {
	name   string
	result *resolver.Result
	err    error
	calls  int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Attempt(context.Context, resolver.Query) (*resolver.Result, error) {
	s.calls++
	return s.result, s.err
}

func oneAnswer(player string) *resolver.Result {
	return &resolver.Result{
		Title:   "t",
		Answers: answer.NewSet([]answer.Record{{Player: player, Year: "2020", Team: "2020-NBA"}}),
	}
}

func TestResolver_FirstSuccessWins(t *testing.T) {
	skip := &stubStrategy{name: "skip", err: resolver.ErrNotApplicable}
	broken := &stubStrategy{name: "broken", err: errors.New("boom")}
	good := &stubStrategy{name: "good", result: oneAnswer("Tim Duncan")}
	after := &stubStrategy{name: "after", result: oneAnswer("Never Called")}

	r := resolver.New(skip, broken, good, after)
	res, err := r.Resolve(context.Background(), resolver.Query{Topic: "x"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Source != "good" {
		t.Errorf("Source = %q, want good", res.Source)
	}
	if after.calls != 0 {
		t.Errorf("strategy after success called %d times", after.calls)
	}
	if skip.calls != 1 || broken.calls != 1 {
		t.Errorf("calls skip=%d broken=%d, want 1 each", skip.calls, broken.calls)
	}
}

func TestResolver_CapsAnswersAtMaxItems(t *testing.T) {
	var records []answer.Record
	for year := 1995; year <= 2024; year++ {
		y := fmt.Sprint(year)
		records = append(records, answer.Record{Player: "Player " + y, Year: y, Team: y + "-NBA"})
	}
	newStub := func() *stubStrategy {
		return &stubStrategy{name: "live", result: &resolver.Result{Answers: answer.NewSet(records)}}
	}

	tests := []struct {
		name     string
		maxItems int
		want     int
	}{
		{"capped", 20, 20},
		{"under cap", 50, 30},
		{"no cap", 0, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := resolver.New(newStub()).Resolve(context.Background(), resolver.Query{Topic: "x", MaxItems: tt.maxItems})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if res.Answers.Len() != tt.want {
				t.Fatalf("answers = %d, want %d", res.Answers.Len(), tt.want)
			}
			if res.Answers.At(0).Year != "2024" {
				t.Errorf("first answer year = %s, want most recent season", res.Answers.At(0).Year)
			}
		})
	}
}

func TestResolver_FailureReasons(t *testing.T) {
	tests := []struct {
		name       string
		strategies []resolver.Strategy
		reason     resolver.Reason
		sentinel   error
	}{
		{
			name: "all failed",
			strategies: []resolver.Strategy{
				&stubStrategy{name: "a", err: errors.New("timeout")},
				&stubStrategy{name: "b", err: errors.New("503")},
			},
			reason:   resolver.ReasonSourceUnavailable,
			sentinel: resolver.ErrSourceUnavailable,
		},
		{
			name: "none applicable",
			strategies: []resolver.Strategy{
				&stubStrategy{name: "a", err: resolver.ErrNotApplicable},
			},
			reason:   resolver.ReasonSourceUnavailable,
			sentinel: resolver.ErrSourceUnavailable,
		},
		{
			name: "one empty",
			strategies: []resolver.Strategy{
				&stubStrategy{name: "a", err: errors.New("timeout")},
				&stubStrategy{name: "b", result: &resolver.Result{}},
			},
			reason:   resolver.ReasonEmptyResult,
			sentinel: resolver.ErrEmptyResult,
		},
		{
			name: "wrapped empty",
			strategies: []resolver.Strategy{
				&stubStrategy{name: "a", err: errors.Join(resolver.ErrEmptyResult, errors.New("zero rows"))},
			},
			reason:   resolver.ReasonEmptyResult,
			sentinel: resolver.ErrEmptyResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.New(tt.strategies...).Resolve(context.Background(), resolver.Query{Topic: "x"})

			var failure *resolver.Failure
			if !errors.As(err, &failure) {
				t.Fatalf("Resolve() error = %v, want *Failure", err)
			}
			if failure.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", failure.Reason, tt.reason)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
		})
	}
}

func TestResolver_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &stubStrategy{name: "a", result: oneAnswer("x")}
	_, err := resolver.New(s).Resolve(ctx, resolver.Query{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolve() error = %v, want context.Canceled", err)
	}
	if s.calls != 0 {
		t.Errorf("strategy called after cancellation")
	}
}

func TestFailure_Details(t *testing.T) {
	_, err := resolver.New(
		&stubStrategy{name: "live", err: errors.New("status 429")},
		&stubStrategy{name: "generative", err: errors.New("all AI providers failed")},
	).Resolve(context.Background(), resolver.Query{})

	var failure *resolver.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := "live: status 429; generative: all AI providers failed"
	if got := failure.Details(); got != want {
		t.Errorf("Details() = %q, want %q", got, want)
	}
}
