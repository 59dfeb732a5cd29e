package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNoProviders is returned when a router has nothing registered.
var ErrNoProviders = errors.New("no AI providers registered")

// Router tries registered providers strictly in registration order.
type Router struct {
	providers   map[string]Provider
	fallback    []string // ordered fallback chain
	callTimeout time.Duration
	budget      BudgetChecker
	mu          sync.RWMutex
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithCallTimeout bounds every provider call. A timed-out call counts as a
// failure and the next provider is tried.
func WithCallTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		r.callTimeout = d
	}
}

// WithBudget skips providers whose token budget is exhausted and records
// usage after each successful call.
func WithBudget(b BudgetChecker) RouterOption {
	return func(r *Router) {
		r.budget = b
	}
}

// NewRouter creates a new AI router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		providers: make(map[string]Provider),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a provider to the end of the fallback chain.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.fallback = append(r.fallback, name)
	}
	r.providers[name] = provider
}

// Complete returns the first successful provider response.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var resp CompletionResponse
	_, err := r.CompleteWith(ctx, req, func(_ string, c CompletionResponse) error {
		resp = c
		return nil
	})
	return resp, err
}

// CompleteWith walks the fallback chain and hands each response to accept.
// A provider error or a non-nil error from accept moves on to the next
// provider. It returns the name of the provider whose response was accepted.
func (r *Router) CompleteWith(ctx context.Context, req CompletionRequest, accept func(provider string, resp CompletionResponse) error) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.fallback) == 0 {
		return "", ErrNoProviders
	}

	var errs []error
	for _, name := range r.fallback {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if r.budget != nil {
			ok, err := r.budget.Check(name)
			if err != nil || !ok {
				slog.Warn("AI provider over budget, skipping", "provider", name, "error", err)
				errs = append(errs, fmt.Errorf("%s: over budget", name))
				continue
			}
		}

		resp, err := r.call(ctx, name, req)
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		if r.budget != nil {
			if err := r.budget.Record(name, resp.TotalTokens()); err != nil {
				slog.Warn("recording AI usage failed", "provider", name, "error", err)
			}
		}

		if err := accept(name, resp); err != nil {
			slog.Warn("AI provider response rejected, trying next",
				"provider", name,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		slog.Debug("AI request completed",
			"provider", name,
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return name, nil
	}

	return "", fmt.Errorf("all AI providers failed: %w", errors.Join(errs...))
}

func (r *Router) call(ctx context.Context, name string, req CompletionRequest) (CompletionResponse, error) {
	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}
	return r.providers[name].Complete(ctx, req)
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// Providers returns the registered provider names in fallback order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.fallback...)
}

// HealthCheck checks every provider and returns the failures keyed by name.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	failures := make(map[string]error)
	for _, name := range r.fallback {
		if err := r.providers[name].HealthCheck(ctx); err != nil {
			failures[name] = err
		}
	}
	return failures
}
