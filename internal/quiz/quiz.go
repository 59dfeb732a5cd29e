// Package quiz turns a topic request into a playable quiz: it classifies the
// topic, consults the cache, runs the resolver and derives the time limit.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/statquiz/internal/answer"
	"github.com/p-n-ai/statquiz/internal/intent"
	"github.com/p-n-ai/statquiz/internal/match"
	"github.com/p-n-ai/statquiz/internal/resolver"
)

// ErrMissingTopic is returned for a blank topic.
var ErrMissingTopic = errors.New("topic is required")

const (
	// SecondsPerAnswer is the time budget granted per answer.
	SecondsPerAnswer = 15
	// MinTimeLimit and MaxTimeLimit clamp derived time limits, in seconds.
	MinTimeLimit = 60
	MaxTimeLimit = 600
	// MaxQuestionsCap bounds what a caller may ask for.
	MaxQuestionsCap = 100
)

// TimeLimitFor derives a time limit in seconds for n answers.
func TimeLimitFor(n int) int {
	return min(max(n*SecondsPerAnswer, MinTimeLimit), MaxTimeLimit)
}

// Request is a quiz generation request.
type Request struct {
	Topic        string `json:"topic"`
	MaxQuestions int    `json:"maxQuestions,omitempty"`
	// TimeLimit overrides the derived limit when positive.
	TimeLimit int `json:"timeLimit,omitempty"`
}

// Quiz is a resolved answer set ready to be played.
type Quiz struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Answers     []answer.Record `json:"answers"`
	TimeLimit   int             `json:"timeLimit"`
	Source      string          `json:"source"`
	Provider    string          `json:"provider,omitempty"`
	Intent      intent.Intent   `json:"intent"`
	Cached      bool            `json:"cached,omitempty"`
}

// Set returns the answers as an ordered answer set.
func (q *Quiz) Set() answer.Set {
	return answer.NewSet(q.Answers)
}

// Resolver is the part of resolver.Resolver the service needs.
type Resolver interface {
	Resolve(ctx context.Context, q resolver.Query) (*resolver.Result, error)
}

// Service generates quizzes.
type Service struct {
	resolver     Resolver
	cache        Cache
	cacheTTL     time.Duration
	classifier   intent.Classifier
	maxQuestions int
}

// Option configures a Service.
type Option func(*Service)

// WithCache caches resolved quizzes for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithClassifier sets the topic classifier.
func WithClassifier(c intent.Classifier) Option {
	return func(s *Service) {
		s.classifier = c
	}
}

// WithDefaultMaxQuestions sets the answer cap used when a request has none.
func WithDefaultMaxQuestions(n int) Option {
	return func(s *Service) {
		s.maxQuestions = n
	}
}

// NewService creates a quiz service over r.
func NewService(r Resolver, opts ...Option) *Service {
	s := &Service{
		resolver:     r,
		cache:        NopCache{},
		maxQuestions: resolver.DefaultMaxItems,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate resolves req into a quiz. Resolver failures are returned as is so
// callers can match resolver.ErrEmptyResult and resolver.ErrSourceUnavailable.
func (s *Service) Generate(ctx context.Context, req Request) (*Quiz, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, ErrMissingTopic
	}
	maxItems := req.MaxQuestions
	if maxItems <= 0 {
		maxItems = s.maxQuestions
	}
	maxItems = min(maxItems, MaxQuestionsCap)

	key := CacheKey(topic, maxItems)
	var cached Quiz
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		slog.Warn("quiz cache read failed", "key", key, "error", err)
	} else if ok {
		cached.ID = uuid.NewString()
		cached.Cached = true
		cached.TimeLimit = timeLimit(req.TimeLimit, cached.TimeLimit, len(cached.Answers))
		slog.Debug("quiz cache hit", "key", key)
		return &cached, nil
	}

	in := s.classifier.Classify(topic)
	slog.Info("topic classified",
		"topic", topic,
		"category", in.Category.String(),
		"start", in.Years.Start,
		"end", in.Years.End,
		"limit", in.Limit,
		"defaulted", in.Defaulted,
	)

	res, err := s.resolver.Resolve(ctx, resolver.Query{
		Topic:     topic,
		Intent:    in,
		MaxItems:  maxItems,
		TimeLimit: req.TimeLimit,
	})
	if err != nil {
		return nil, err
	}

	// Strategies echo the request's limit back, so only a limit the source
	// chose on its own is kept as a suggestion.
	suggested := res.TimeLimit
	if req.TimeLimit > 0 {
		suggested = 0
	}
	q := &Quiz{
		ID:          uuid.NewString(),
		Topic:       topic,
		Title:       res.Title,
		Description: res.Description,
		Answers:     res.Answers.Records(),
		TimeLimit:   timeLimit(0, suggested, res.Answers.Len()),
		Source:      res.Source,
		Provider:    res.Provider,
		Intent:      in,
	}
	if q.Title == "" {
		q.Title = topic
	}

	if err := s.cache.Set(ctx, key, q, s.cacheTTL); err != nil {
		slog.Warn("quiz cache write failed", "key", key, "error", err)
	}
	q.TimeLimit = timeLimit(req.TimeLimit, q.TimeLimit, len(q.Answers))
	return q, nil
}

// timeLimit prefers the request's limit, then the source's suggestion clamped
// to [MinTimeLimit, MaxTimeLimit], then one derived from the answer count.
func timeLimit(requested, suggested, answers int) int {
	switch {
	case requested > 0:
		return requested
	case suggested > 0:
		return min(max(suggested, MinTimeLimit), MaxTimeLimit)
	}
	return TimeLimitFor(answers)
}

// CacheKey builds the cache key for a topic and answer cap.
func CacheKey(topic string, maxItems int) string {
	return fmt.Sprintf("quiz:%s:%d", match.Normalize(topic), maxItems)
}
