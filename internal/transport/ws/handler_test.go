package ws_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/statquiz/internal/answer"
	"github.com/p-n-ai/statquiz/internal/quiz"
	"github.com/p-n-ai/statquiz/internal/resolver"
	"github.com/p-n-ai/statquiz/internal/results"
	"github.com/p-n-ai/statquiz/internal/session"
	"github.com/p-n-ai/statquiz/internal/transport/ws"
)

type generatorFunc func(ctx context.Context, req quiz.Request) (*quiz.Quiz, error)

func (f generatorFunc) Generate(ctx context.Context, req quiz.Request) (*quiz.Quiz, error) {
	return f(ctx, req)
}

func scorersQuiz(topic string, timeLimit int) *quiz.Quiz {
	return &quiz.Quiz{
		ID:    "quiz-" + topic,
		Topic: topic,
		Title: "Scorers",
		Answers: []answer.Record{
			{Player: "Joel Embiid", Team: "2022-PHI", Year: "2022", StatValue: 30.6},
			{Player: "Stephen Curry", Team: "2021-GSW", Year: "2021", StatValue: 32.0},
			{Player: "James Harden", Team: "2020-HOU", Year: "2020", StatValue: 34.3},
		},
		TimeLimit: timeLimit,
		Source:    "live",
	}
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type client struct {
	t   *testing.T
	ctx context.Context
	c   *websocket.Conn
}

func dial(t *testing.T, h *ws.Handler) *client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = c.CloseNow() })
	return &client{t: t, ctx: ctx, c: c}
}

func (cl *client) send(msg ws.ClientMessage) {
	cl.t.Helper()
	if err := wsjson.Write(cl.ctx, cl.c, msg); err != nil {
		cl.t.Fatalf("write %s: %v", msg.Type, err)
	}
}

func (cl *client) expect(typ string, data any) {
	cl.t.Helper()
	var env envelope
	if err := wsjson.Read(cl.ctx, cl.c, &env); err != nil {
		cl.t.Fatalf("read (want %s): %v", typ, err)
	}
	if env.Type != typ {
		cl.t.Fatalf("message type = %s (%s), want %s", env.Type, env.Data, typ)
	}
	if data != nil {
		if err := json.Unmarshal(env.Data, data); err != nil {
			cl.t.Fatalf("decode %s: %v", typ, err)
		}
	}
}

func TestPlay_SolveQuiz(t *testing.T) {
	store := results.NewMemoryStore()
	gen := generatorFunc(func(_ context.Context, req quiz.Request) (*quiz.Quiz, error) {
		return scorersQuiz(req.Topic, 60), nil
	})
	cl := dial(t, ws.NewHandler(gen, store, ws.WithTickInterval(time.Hour)))

	cl.send(ws.ClientMessage{Type: ws.TypeStart, Topic: "scorers"})
	var qv ws.QuizView
	cl.expect(ws.TypeQuiz, &qv)
	if len(qv.Slots) != 3 || qv.Slots[0].Year != "2022" || qv.TimeLimit != 60 {
		t.Fatalf("quiz = %+v", qv)
	}

	cl.send(ws.ClientMessage{Type: ws.TypeGuess, Text: "Embiid"})
	var st ws.StateView
	cl.expect(ws.TypeState, &st)
	if !st.Changed || st.Score != 1 || len(st.Matched) != 1 || st.Matched[0].Player != "Joel Embiid" {
		t.Fatalf("state = %+v", st)
	}

	cl.send(ws.ClientMessage{Type: ws.TypeGuess, Text: "nobody"})
	cl.expect(ws.TypeState, &st)
	if st.Changed || st.Score != 1 {
		t.Fatalf("miss state = %+v", st)
	}

	cl.send(ws.ClientMessage{Type: ws.TypeGuess, Text: "stephen curry"})
	cl.expect(ws.TypeState, nil)
	cl.send(ws.ClientMessage{Type: ws.TypeGuess, Text: "harden"})
	cl.expect(ws.TypeState, nil)

	var done ws.CompleteView
	cl.expect(ws.TypeComplete, &done)
	if done.Reason != session.ReasonSolved || done.Score != 3 || done.ResultID == "" {
		t.Fatalf("complete = %+v", done)
	}

	rec, err := store.Get(context.Background(), done.ResultID)
	if err != nil {
		t.Fatalf("stored result: %v", err)
	}
	if rec.Topic != "scorers" || rec.Score != 3 || len(rec.Missed) != 0 {
		t.Errorf("stored result = %+v", rec)
	}

	cl.send(ws.ClientMessage{Type: ws.TypeGuess, Text: "embiid"})
	var ev ws.ErrorView
	cl.expect(ws.TypeError, &ev)
	if ev.Error != "no_active_quiz" {
		t.Errorf("error = %+v", ev)
	}
}

func TestPlay_TimesOut(t *testing.T) {
	gen := generatorFunc(func(_ context.Context, req quiz.Request) (*quiz.Quiz, error) {
		return scorersQuiz(req.Topic, 3), nil
	})
	cl := dial(t, ws.NewHandler(gen, nil, ws.WithTickInterval(5*time.Millisecond)))

	cl.send(ws.ClientMessage{Type: ws.TypeStart, Topic: "scorers"})
	cl.expect(ws.TypeQuiz, nil)

	for want := 2; want >= 0; want-- {
		var tick ws.TickView
		cl.expect(ws.TypeTick, &tick)
		if tick.Remaining != want {
			t.Fatalf("remaining = %d, want %d", tick.Remaining, want)
		}
	}
	var done ws.CompleteView
	cl.expect(ws.TypeComplete, &done)
	if done.Reason != session.ReasonTimedOut || done.Score != 0 || len(done.Answers) != 3 {
		t.Fatalf("complete = %+v", done)
	}
}

func TestPlay_Forfeit(t *testing.T) {
	store := results.NewMemoryStore()
	gen := generatorFunc(func(_ context.Context, req quiz.Request) (*quiz.Quiz, error) {
		return scorersQuiz(req.Topic, 0), nil
	})
	cl := dial(t, ws.NewHandler(gen, store))

	cl.send(ws.ClientMessage{Type: ws.TypeForfeit})
	cl.expect(ws.TypeError, nil)

	cl.send(ws.ClientMessage{Type: ws.TypeStart, Topic: "scorers"})
	cl.expect(ws.TypeQuiz, nil)
	cl.send(ws.ClientMessage{Type: ws.TypeGuess, Text: "curry"})
	cl.expect(ws.TypeState, nil)
	cl.send(ws.ClientMessage{Type: ws.TypeForfeit})

	var done ws.CompleteView
	cl.expect(ws.TypeComplete, &done)
	if done.Reason != session.ReasonForfeited || done.Score != 1 {
		t.Fatalf("complete = %+v", done)
	}
	rec, err := store.Get(context.Background(), done.ResultID)
	if err != nil {
		t.Fatalf("stored result: %v", err)
	}
	if len(rec.Missed) != 2 {
		t.Errorf("missed = %v, want 2 entries", rec.Missed)
	}
}

func TestPlay_StaleResponseDropped(t *testing.T) {
	release := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, req quiz.Request) (*quiz.Quiz, error) {
		if req.Topic == "slow" {
			<-release
			return scorersQuiz("slow", 60), nil
		}
		return scorersQuiz(req.Topic, 60), nil
	})
	cl := dial(t, ws.NewHandler(gen, nil, ws.WithTickInterval(time.Hour)))

	cl.send(ws.ClientMessage{Type: ws.TypeStart, Topic: "slow"})
	cl.send(ws.ClientMessage{Type: ws.TypeStart, Topic: "fast"})

	var qv ws.QuizView
	cl.expect(ws.TypeQuiz, &qv)
	if qv.ID != "quiz-fast" {
		t.Fatalf("quiz = %s, want quiz-fast", qv.ID)
	}

	close(release)
	cl.send(ws.ClientMessage{Type: ws.TypeForfeit})
	var done ws.CompleteView
	cl.expect(ws.TypeComplete, &done)

	cl.send(ws.ClientMessage{Type: ws.TypeGuess, Text: "curry"})
	var ev ws.ErrorView
	cl.expect(ws.TypeError, &ev)
	if ev.Error != "no_active_quiz" {
		t.Errorf("error = %+v, want no_active_quiz (stale quiz must not start)", ev)
	}
}

func TestPlay_GenerationErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing topic", quiz.ErrMissingTopic, quiz.CodeMissingTopic},
		{"empty", &resolver.Failure{Reason: resolver.ReasonEmptyResult}, quiz.CodeEmptyResult},
		{"unavailable", &resolver.Failure{Reason: resolver.ReasonSourceUnavailable}, quiz.CodeSourceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := generatorFunc(func(context.Context, quiz.Request) (*quiz.Quiz, error) {
				return nil, tt.err
			})
			cl := dial(t, ws.NewHandler(gen, nil))

			cl.send(ws.ClientMessage{Type: ws.TypeStart, Topic: "x"})
			var ev ws.ErrorView
			cl.expect(ws.TypeError, &ev)
			if ev.Error != tt.want || ev.Message == "" {
				t.Errorf("error = %+v, want %s", ev, tt.want)
			}
		})
	}
}

func TestPlay_UnknownType(t *testing.T) {
	cl := dial(t, ws.NewHandler(generatorFunc(func(context.Context, quiz.Request) (*quiz.Quiz, error) {
		return nil, nil
	}), nil))

	cl.send(ws.ClientMessage{Type: "dance"})
	var ev ws.ErrorView
	cl.expect(ws.TypeError, &ev)
	if ev.Error != "unknown_type" {
		t.Errorf("error = %+v", ev)
	}
}
