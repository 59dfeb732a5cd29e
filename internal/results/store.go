// Package results persists finished quiz sessions.
package results

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/statquiz/internal/answer"
	"github.com/p-n-ai/statquiz/internal/session"
)

// ErrNotFound is returned when a result does not exist.
var ErrNotFound = errors.New("result not found")

// Record is one finished quiz session.
type Record struct {
	ID        string            `json:"id"`
	SessionID string            `json:"sessionId"`
	Topic     string            `json:"topic"`
	Title     string            `json:"title"`
	Source    string            `json:"source"`
	Provider  string            `json:"provider,omitempty"`
	Reason    session.EndReason `json:"reason"`
	Score     int               `json:"score"`
	Total     int               `json:"total"`
	TimeLimit int               `json:"timeLimit"`
	Remaining int               `json:"remaining"`
	Missed    []string          `json:"missed"`
	StartedAt time.Time         `json:"startedAt"`
	EndedAt   time.Time         `json:"endedAt"`
}

// Quiz describes what was played.
type Quiz struct {
	Topic    string
	Title    string
	Source   string
	Provider string
}

// FromSession builds a record from a completed session snapshot. Missed lists
// "Player (YYYY)" for every answer that was not found.
func FromSession(q Quiz, snap session.Snapshot, answers answer.Set) Record {
	found := make(map[int]bool, len(snap.Found))
	for _, i := range snap.Found {
		found[i] = true
	}
	missed := []string{}
	for i, r := range answers.Records() {
		if !found[i] {
			missed = append(missed, r.Player+" ("+r.Year+")")
		}
	}
	return Record{
		SessionID: snap.ID,
		Topic:     q.Topic,
		Title:     q.Title,
		Source:    q.Source,
		Provider:  q.Provider,
		Reason:    snap.Reason,
		Score:     snap.Score,
		Total:     snap.Total,
		TimeLimit: snap.TimeLimit,
		Remaining: snap.Remaining,
		Missed:    missed,
		StartedAt: snap.StartedAt,
		EndedAt:   snap.EndedAt,
	}
}

// Store persists results.
type Store interface {
	Save(ctx context.Context, r Record) (string, error)
	Get(ctx context.Context, id string) (*Record, error)
	// Recent returns up to limit results, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// DefaultMemoryCapacity is how many results a MemoryStore keeps by default.
const DefaultMemoryCapacity = 1000

// MemoryStore is an in-memory implementation of Store that keeps only the
// most recently saved results.
type MemoryStore struct {
	records  map[string]Record
	order    []string // IDs, oldest first
	capacity int
	mu       sync.RWMutex
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCapacity sets how many results are kept; older ones are evicted.
func WithCapacity(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// NewMemoryStore creates a new in-memory result store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records:  make(map[string]Record),
		capacity: DefaultMemoryCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Save(_ context.Context, r Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.EndedAt.IsZero() {
		r.EndedAt = time.Now()
	}
	r.Missed = slices.Clone(r.Missed)
	if _, exists := s.records[r.ID]; !exists {
		s.order = append(s.order, r.ID)
	}
	s.records[r.ID] = r

	if over := len(s.order) - s.capacity; over > 0 {
		for _, id := range s.order[:over] {
			delete(s.records, id)
		}
		s.order = slices.Delete(s.order, 0, over)
	}
	return r.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Record) int {
		return b.EndedAt.Compare(a.EndedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
