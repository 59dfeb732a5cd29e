// Package ws runs live quiz sessions over a WebSocket.
//
// Each connection is served by one loop that owns the session and its
// ticker. Quiz generation runs in the background and is tagged with a
// generation token so a response for a superseded request is dropped.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/statquiz/internal/quiz"
	"github.com/p-n-ai/statquiz/internal/results"
	"github.com/p-n-ai/statquiz/internal/session"
)

const (
	writeTimeout   = 10 * time.Second
	persistTimeout = 5 * time.Second
	maxMessageSize = 4096
)

// Generator produces quizzes.
type Generator interface {
	Generate(ctx context.Context, req quiz.Request) (*quiz.Quiz, error)
}

// Handler upgrades requests and plays quizzes.
type Handler struct {
	quizzes        Generator
	results        results.Store
	tick           time.Duration
	originPatterns []string
	now            func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithTickInterval sets how often the session clock advances by one second.
func WithTickInterval(d time.Duration) Option {
	return func(h *Handler) {
		h.tick = d
	}
}

// WithOriginPatterns allows cross-origin connections from matching hosts.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) {
		h.originPatterns = patterns
	}
}

// WithClock sets the clock used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler creates a WebSocket quiz handler. store may be nil.
func NewHandler(quizzes Generator, store results.Store, opts ...Option) *Handler {
	h := &Handler{
		quizzes: quizzes,
		results: store,
		tick:    time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = c.CloseNow() }()
	c.SetReadLimit(maxMessageSize)

	conn := &connection{
		h:       h,
		c:       c,
		in:      make(chan ClientMessage),
		ready:   make(chan generated),
		readErr: make(chan error, 1),
	}
	err = conn.run(r.Context())

	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		_ = c.Close(websocket.StatusNormalClosure, "")
	case errors.Is(err, context.Canceled):
	default:
		slog.Warn("websocket connection closed", "error", err)
		_ = c.Close(websocket.StatusInternalError, "")
	}
}

type generated struct {
	gen  uint64
	quiz *quiz.Quiz
	err  error
}

type connection struct {
	h       *Handler
	c       *websocket.Conn
	in      chan ClientMessage
	ready   chan generated
	readErr chan error

	seq     quiz.Sequencer
	quiz    *quiz.Quiz
	session *session.Session
	ticker  *time.Ticker
}

func (conn *connection) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.seq.Invalidate()
	defer conn.stopTicker()

	go conn.readLoop(ctx)

	for {
		var tick <-chan time.Time
		if conn.ticker != nil {
			tick = conn.ticker.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-conn.readErr:
			return err
		case msg := <-conn.in:
			if err := conn.handle(ctx, msg); err != nil {
				return err
			}
		case g := <-conn.ready:
			if err := conn.deliver(ctx, g); err != nil {
				return err
			}
		case <-tick:
			if err := conn.onTick(ctx); err != nil {
				return err
			}
		}
	}
}

func (conn *connection) readLoop(ctx context.Context) {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn.c, &msg); err != nil {
			conn.readErr <- err
			return
		}
		select {
		case conn.in <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (conn *connection) handle(ctx context.Context, msg ClientMessage) error {
	switch msg.Type {
	case TypeStart:
		return conn.start(ctx, msg)
	case TypeGuess:
		if conn.session == nil || conn.session.Done() {
			return conn.sendError(ctx, "no_active_quiz", "Start a quiz before guessing.")
		}
		res, completed := conn.session.Submit(msg.Text)
		snap := conn.session.Snapshot()
		answers := conn.session.Answers()
		view := StateView{
			Input:     res.Input,
			Changed:   res.Changed,
			Matched:   make([]Reveal, 0, len(res.Matched)),
			Score:     snap.Score,
			Total:     snap.Total,
			Remaining: snap.Remaining,
		}
		for _, i := range res.Matched {
			view.Matched = append(view.Matched, Reveal{Index: i, Record: answers.At(i)})
		}
		if err := conn.send(ctx, TypeState, view); err != nil {
			return err
		}
		if completed {
			return conn.finish(ctx)
		}
		return nil
	case TypeForfeit:
		if conn.session == nil || !conn.session.Forfeit() {
			return conn.sendError(ctx, "no_active_quiz", "There is no quiz to give up on.")
		}
		return conn.finish(ctx)
	}
	return conn.sendError(ctx, "unknown_type", "Unknown message type "+msg.Type+".")
}

// start abandons any active quiz and begins generating a new one.
func (conn *connection) start(ctx context.Context, msg ClientMessage) error {
	if conn.session != nil && conn.session.Forfeit() {
		if err := conn.finish(ctx); err != nil {
			return err
		}
	}
	conn.session = nil
	conn.quiz = nil

	genCtx, gen, cancel := conn.seq.Begin(ctx)
	req := quiz.Request{Topic: msg.Topic, MaxQuestions: msg.MaxQuestions, TimeLimit: msg.TimeLimit}
	go func() {
		defer cancel()
		q, err := conn.h.quizzes.Generate(genCtx, req)
		select {
		case conn.ready <- generated{gen: gen, quiz: q, err: err}:
		case <-ctx.Done():
		}
	}()
	return nil
}

func (conn *connection) deliver(ctx context.Context, g generated) error {
	if !conn.seq.Current(g.gen) {
		slog.Debug("dropping stale quiz response", "generation", g.gen)
		return nil
	}
	if g.err != nil {
		code := quiz.ErrorCode(g.err)
		if code == quiz.CodeInternal || code == quiz.CodeSourceUnavailable {
			slog.Error("quiz generation failed", "error", g.err)
		}
		return conn.sendError(ctx, code, quiz.ErrorMessage(code))
	}

	conn.quiz = g.quiz
	conn.session = session.New(g.quiz.ID, g.quiz.Set(), g.quiz.TimeLimit, session.WithClock(conn.h.now))
	if err := conn.send(ctx, TypeQuiz, quizView(g.quiz)); err != nil {
		return err
	}
	if conn.session.Done() {
		return conn.finish(ctx)
	}
	if g.quiz.TimeLimit > 0 {
		conn.ticker = time.NewTicker(conn.h.tick)
	}
	return nil
}

func (conn *connection) onTick(ctx context.Context) error {
	if conn.session == nil {
		conn.stopTicker()
		return nil
	}
	timedOut := conn.session.Tick()
	if err := conn.send(ctx, TypeTick, TickView{Remaining: conn.session.Snapshot().Remaining}); err != nil {
		return err
	}
	if timedOut {
		return conn.finish(ctx)
	}
	return nil
}

// finish stops the clock, persists the result and reveals the answers.
func (conn *connection) finish(ctx context.Context) error {
	conn.stopTicker()
	snap := conn.session.Snapshot()
	answers := conn.session.Answers()

	view := CompleteView{
		Reason:  snap.Reason,
		Score:   snap.Score,
		Total:   snap.Total,
		Found:   snap.Found,
		Answers: answers.Records(),
	}
	if conn.h.results != nil && conn.quiz != nil {
		rec := results.FromSession(results.Quiz{
			Topic:    conn.quiz.Topic,
			Title:    conn.quiz.Title,
			Source:   conn.quiz.Source,
			Provider: conn.quiz.Provider,
		}, snap, answers)

		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		id, err := conn.h.results.Save(saveCtx, rec)
		cancel()
		if err != nil {
			slog.Error("save quiz result failed", "session_id", snap.ID, "error", err)
		} else {
			view.ResultID = id
		}
	}
	slog.Info("quiz finished",
		"session_id", snap.ID,
		"reason", snap.Reason,
		"score", snap.Score,
		"total", snap.Total,
	)
	return conn.send(ctx, TypeComplete, view)
}

func (conn *connection) stopTicker() {
	if conn.ticker != nil {
		conn.ticker.Stop()
		conn.ticker = nil
	}
}

func (conn *connection) send(ctx context.Context, typ string, data any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn.c, Envelope{Type: typ, Data: data})
}

func (conn *connection) sendError(ctx context.Context, code, message string) error {
	return conn.send(ctx, TypeError, ErrorView{Error: code, Message: message})
}
