package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"

	"github.com/p-n-ai/statquiz/internal/ai"
	"github.com/p-n-ai/statquiz/internal/extract"
)

const systemPrompt = "You are an NBA statistics expert who writes quiz answer keys. " +
	"You respond with a single JSON object and nothing else."

var promptTemplate = template.Must(template.New("quiz").Parse(
	`Create a basketball quiz answer key for the topic: "{{.Topic}}".

Respond with JSON in exactly this shape:
{
  "title": "short quiz title",
  "description": "one sentence telling the player what to name",
  "answers": [
    {"points": 0, "player": "Full Name", "team": "YYYY-TTT", "year": "YYYY"}
  ],
  "timeLimit": {{.TimeLimit}}
}

Rules:
- Include at most {{.MaxItems}} answers.
- "year" is the season END year as a 4-digit string: the 2022-23 season is "2023".
- "team" is the season end year, a hyphen and the fixed 3-letter team code, e.g. "2016-GSW", "2021-BKN", "2019-PHX".
- If the team is unknown or the player played for several teams that season, use "NBA" as the code, e.g. "2019-NBA". Never write "unknown" or "N/A".
- "points" holds the statistic the topic asks about (points, rebounds, made threes, ...). Use 0 when no single number is relevant.
- List each player-season once. A player may appear once per qualifying season.
- Only include real, verifiable NBA data.
`))

type promptData struct {
	Topic     string
	TimeLimit int
	MaxItems  int
}

// BuildPrompt renders the quiz prompt for a query.
func BuildPrompt(q Query) (string, error) {
	data := promptData{Topic: q.Topic, TimeLimit: q.TimeLimit, MaxItems: q.MaxItems}
	if data.MaxItems <= 0 {
		data.MaxItems = DefaultMaxItems
	}
	if data.TimeLimit <= 0 {
		data.TimeLimit = DefaultPromptTimeLimit
	}
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

const (
	// DefaultMaxItems caps generated answer lists when the caller sets no limit.
	DefaultMaxItems = 25
	// DefaultPromptTimeLimit is suggested to the model when the caller has none.
	DefaultPromptTimeLimit = 120
)

// Completer is the part of ai.Router the generative strategy needs.
type Completer interface {
	CompleteWith(ctx context.Context, req ai.CompletionRequest, accept func(provider string, resp ai.CompletionResponse) error) (string, error)
}

// GenerativeStrategy asks generative providers in order and accepts the
// first response that extracts into a non-empty answer set.
type GenerativeStrategy struct {
	completer   Completer
	maxTokens   int
	temperature float64
}

// GenerativeOption configures a GenerativeStrategy.
type GenerativeOption func(*GenerativeStrategy)

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) GenerativeOption {
	return func(s *GenerativeStrategy) {
		s.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GenerativeOption {
	return func(s *GenerativeStrategy) {
		s.temperature = t
	}
}

// NewGenerativeStrategy creates the generative fallback over completer.
func NewGenerativeStrategy(completer Completer, opts ...GenerativeOption) *GenerativeStrategy {
	s := &GenerativeStrategy{
		completer:   completer,
		maxTokens:   4096,
		temperature: 0.2,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GenerativeStrategy) Name() string { return "generative" }

var errNoAnswers = errors.New("no answers in payload")

func (s *GenerativeStrategy) Attempt(ctx context.Context, q Query) (*Result, error) {
	if s.completer == nil {
		return nil, ErrNotApplicable
	}

	prompt, err := BuildPrompt(q)
	if err != nil {
		return nil, err
	}
	req := ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		JSONMode:    true,
	}

	var payload extract.Payload
	provider, err := s.completer.CompleteWith(ctx, req, func(_ string, resp ai.CompletionResponse) error {
		p, err := extract.Extract(resp.Content)
		if err != nil {
			return err
		}
		if p.Answers.Len() == 0 {
			return errNoAnswers
		}
		payload = p
		return nil
	})
	if err != nil {
		if errors.Is(err, ai.ErrNoProviders) {
			return nil, ErrNotApplicable
		}
		if onlyEmptyAnswers(err) {
			return nil, fmt.Errorf("%w: %v", ErrEmptyResult, err)
		}
		return nil, err
	}

	answers := payload.Answers
	if q.MaxItems > 0 && answers.Len() > q.MaxItems {
		answers = truncate(answers, q.MaxItems)
	}

	timeLimit := q.TimeLimit
	if timeLimit <= 0 {
		timeLimit = payload.TimeLimit
	}
	return &Result{
		Title:       payload.Title,
		Description: payload.Description,
		Answers:     answers,
		TimeLimit:   timeLimit,
		Provider:    provider,
	}, nil
}

// onlyEmptyAnswers reports whether every provider in a router failure answered
// with an empty payload. Any outage, rejection or skipped provider keeps the
// failure technical.
func onlyEmptyAnswers(err error) bool {
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return false
	}
	errs := joined.Unwrap()
	for _, e := range errs {
		if !errors.Is(e, errNoAnswers) {
			return false
		}
	}
	return len(errs) > 0
}
