// Package session runs one quiz attempt: guesses are matched until every
// answer is found, the clock runs out, or the player gives up.
//
// A Session is not safe for concurrent use. The connection loop that owns it
// also owns its ticker and calls Tick once per second.
package session

import (
	"time"

	"github.com/p-n-ai/statquiz/internal/answer"
	"github.com/p-n-ai/statquiz/internal/match"
)

// Status of a session.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusComplete Status = "COMPLETE"
)

// EndReason records why a session completed.
type EndReason string

const (
	ReasonSolved    EndReason = "SOLVED"
	ReasonTimedOut  EndReason = "TIMED_OUT"
	ReasonForfeited EndReason = "FORFEITED"
)

// Session is the state machine for one quiz attempt.
type Session struct {
	id        string
	answers   answer.Set
	engine    *match.Engine
	state     *match.State
	timeLimit int
	remaining int
	status    Status
	reason    EndReason
	score     int
	startedAt time.Time
	endedAt   time.Time
	now       func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the wall clock used for start and end timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// New starts an ACTIVE session over answers with timeLimit seconds on the
// clock. A timeLimit of zero or less leaves the session untimed.
func New(id string, answers answer.Set, timeLimit int, opts ...Option) *Session {
	s := &Session{
		id:        id,
		answers:   answers,
		engine:    match.NewEngine(answers),
		state:     match.NewState(),
		timeLimit: timeLimit,
		remaining: timeLimit,
		status:    StatusActive,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.now()
	if answers.Len() == 0 {
		s.complete(ReasonSolved)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Answers returns the answer set being played.
func (s *Session) Answers() answer.Set { return s.answers }

// Done reports whether the session has completed.
func (s *Session) Done() bool { return s.status == StatusComplete }

// Submit matches one guess. It reports whether this guess completed the
// session. Guesses after completion have no effect.
func (s *Session) Submit(input string) (match.Result, bool) {
	if s.Done() {
		return match.Result{Input: input}, false
	}
	res := s.engine.Match(s.state, input)
	if res.Changed && s.engine.Complete(s.state) {
		s.complete(ReasonSolved)
		return res, true
	}
	return res, false
}

// Tick advances the clock by one second and reports whether the session
// timed out on this tick.
func (s *Session) Tick() bool {
	if s.Done() || s.timeLimit <= 0 {
		return false
	}
	s.remaining--
	if s.remaining <= 0 {
		s.remaining = 0
		s.complete(ReasonTimedOut)
		return true
	}
	return false
}

// Forfeit ends an active session. It reports whether the session was still
// active.
func (s *Session) Forfeit() bool {
	if s.Done() {
		return false
	}
	s.complete(ReasonForfeited)
	return true
}

func (s *Session) complete(reason EndReason) {
	s.status = StatusComplete
	s.reason = reason
	s.score = s.state.Len()
	s.endedAt = s.now()
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Reason    EndReason `json:"reason,omitempty"`
	Score     int       `json:"score"`
	Found     []int     `json:"found"`
	Total     int       `json:"total"`
	TimeLimit int       `json:"timeLimit"`
	Remaining int       `json:"remaining"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt,omitzero"`
}

// Snapshot returns the current view. Score is the live count while active
// and the frozen score once complete.
func (s *Session) Snapshot() Snapshot {
	score := s.score
	if !s.Done() {
		score = s.state.Len()
	}
	return Snapshot{
		ID:        s.id,
		Status:    s.status,
		Reason:    s.reason,
		Score:     score,
		Found:     s.state.Indices(),
		Total:     s.answers.Len(),
		TimeLimit: s.timeLimit,
		Remaining: s.remaining,
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
	}
}
