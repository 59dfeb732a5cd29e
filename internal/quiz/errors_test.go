package quiz_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/p-n-ai/statquiz/internal/quiz"
	"github.com/p-n-ai/statquiz/internal/resolver"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing topic", quiz.ErrMissingTopic, quiz.CodeMissingTopic},
		{"wrapped missing topic", fmt.Errorf("generate: %w", quiz.ErrMissingTopic), quiz.CodeMissingTopic},
		{"empty result", &resolver.Failure{Reason: resolver.ReasonEmptyResult}, quiz.CodeEmptyResult},
		{"source unavailable", &resolver.Failure{Reason: resolver.ReasonSourceUnavailable}, quiz.CodeSourceUnavailable},
		{"deadline", fmt.Errorf("resolve: %w", context.DeadlineExceeded), quiz.CodeSourceUnavailable},
		{"other", errors.New("boom"), quiz.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := quiz.ErrorCode(tt.err)
			if got != tt.want {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.want)
			}
			if quiz.ErrorMessage(got) == "" {
				t.Errorf("ErrorMessage(%q) is empty", got)
			}
		})
	}
}
