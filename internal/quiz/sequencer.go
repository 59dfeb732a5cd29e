package quiz

import (
	"context"
	"sync"
)

// Sequencer hands out generation tokens for in-flight quiz requests. Starting
// a new generation cancels the previous one, and only the latest token is
// current, so a slow response that arrives after a newer request is dropped.
type Sequencer struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// Begin starts a new generation derived from parent and cancels the previous
// one. Callers must call the returned cancel func when done.
func (s *Sequencer) Begin(parent context.Context) (context.Context, uint64, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	gen := s.gen
	s.mu.Unlock()

	return ctx, gen, cancel
}

// Current reports whether gen is still the latest generation.
func (s *Sequencer) Current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

// Invalidate makes every outstanding generation stale.
func (s *Sequencer) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}
