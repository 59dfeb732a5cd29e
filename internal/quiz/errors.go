package quiz

import (
	"context"
	"errors"

	"github.com/p-n-ai/statquiz/internal/resolver"
)

// Error codes reported to clients.
const (
	CodeMissingTopic      = "missing_topic"
	CodeEmptyResult       = "empty_result"
	CodeSourceUnavailable = "source_unavailable"
	CodeInternal          = "internal_error"
)

// ErrorCode maps a Generate error to a client-facing code.
func ErrorCode(err error) string {
	var failure *resolver.Failure
	switch {
	case errors.Is(err, ErrMissingTopic):
		return CodeMissingTopic
	case errors.Is(err, resolver.ErrEmptyResult):
		return CodeEmptyResult
	case errors.As(err, &failure), errors.Is(err, resolver.ErrSourceUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return CodeSourceUnavailable
	}
	return CodeInternal
}

// ErrorMessage is a short user-facing explanation for a code.
func ErrorMessage(code string) string {
	switch code {
	case CodeMissingTopic:
		return "Enter a topic to build a quiz from."
	case CodeEmptyResult:
		return `No players matched that topic. Try naming a stat and a range of seasons, e.g. "Top 5 leaders in rebounds each year from 2015 to 2020".`
	case CodeSourceUnavailable:
		return "Every data source failed. Please try again shortly."
	}
	return "Something went wrong."
}
