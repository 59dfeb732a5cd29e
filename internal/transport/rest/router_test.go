package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/statquiz/internal/answer"
	"github.com/p-n-ai/statquiz/internal/quiz"
	"github.com/p-n-ai/statquiz/internal/resolver"
	"github.com/p-n-ai/statquiz/internal/results"
	"github.com/p-n-ai/statquiz/internal/session"
	"github.com/p-n-ai/statquiz/internal/transport/rest"
)

type stubGenerator struct {
	quiz *quiz.Quiz
	err  error
	last quiz.Request
}

func (g *stubGenerator) Generate(_ context.Context, req quiz.Request) (*quiz.Quiz, error) {
	g.last = req
	return g.quiz, g.err
}

func newServer(t *testing.T, cfg rest.Config) *httptest.Server {
	t.Helper()
	if cfg.Quizzes == nil {
		cfg.Quizzes = &stubGenerator{}
	}
	if cfg.Results == nil {
		cfg.Results = results.NewMemoryStore()
	}
	srv := httptest.NewServer(rest.NewRouter(cfg))
	t.Cleanup(srv.Close)
	return srv
}

func postQuiz(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/quiz", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/quiz error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestGenerateQuiz_OK(t *testing.T) {
	gen := &stubGenerator{quiz: &quiz.Quiz{
		ID:          "q1",
		Title:       "Scorers",
		Description: "Name them.",
		Answers: []answer.Record{
			{Player: "Joel Embiid", Team: "2022-PHI", Year: "2022", StatValue: 30.6},
		},
		TimeLimit: 60,
		Source:    "live",
	}}
	srv := newServer(t, rest.Config{Quizzes: gen})

	resp, body := postQuiz(t, srv, `{"topic": "scorers", "maxQuestions": 5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%v)", resp.StatusCode, body)
	}
	if gen.last.Topic != "scorers" || gen.last.MaxQuestions != 5 {
		t.Errorf("request = %+v", gen.last)
	}
	if body["title"] != "Scorers" || body["timeLimit"] != float64(60) {
		t.Errorf("body = %v", body)
	}
	answers, _ := body["answers"].([]any)
	if len(answers) != 1 {
		t.Fatalf("answers = %v", body["answers"])
	}
	first := answers[0].(map[string]any)
	if first["points"] != 30.6 || first["team"] != "2022-PHI" || first["year"] != "2022" {
		t.Errorf("answer = %v", first)
	}
}

func TestGenerateQuiz_Errors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails string
	}{
		{
			name:       "malformed body",
			body:       `{"topic": `,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "missing topic",
			body:       `{"topic": ""}`,
			err:        quiz.ErrMissingTopic,
			wantStatus: http.StatusBadRequest,
			wantCode:   "missing_topic",
		},
		{
			name:       "empty result",
			body:       `{"topic": "x"}`,
			err:        &resolver.Failure{Reason: resolver.ReasonEmptyResult},
			wantStatus: http.StatusNotFound,
			wantCode:   "empty_result",
		},
		{
			name: "source unavailable",
			body: `{"topic": "x"}`,
			err: &resolver.Failure{
				Reason: resolver.ReasonSourceUnavailable,
				Attempts: []resolver.StrategyError{
					{Strategy: "live", Err: errors.New("status 429")},
				},
			},
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    "source_unavailable",
			wantDetails: "live: status 429",
		},
		{
			name:       "deadline",
			body:       `{"topic": "x"}`,
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "source_unavailable",
		},
		{
			name:       "unexpected",
			body:       `{"topic": "x"}`,
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, rest.Config{Quizzes: &stubGenerator{err: tt.err}})
			resp, body := postQuiz(t, srv, tt.body)

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if body["error"] != tt.wantCode {
				t.Errorf("error = %v, want %s", body["error"], tt.wantCode)
			}
			if msg, _ := body["message"].(string); msg == "" {
				t.Error("message is empty")
			}
			if tt.wantDetails != "" && body["details"] != tt.wantDetails {
				t.Errorf("details = %v, want %s", body["details"], tt.wantDetails)
			}
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]rest.Check
		path       string
		wantStatus int
		wantState  string
	}{
		{
			name:       "healthz",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantState:  "ok",
		},
		{
			name:       "ready without dependencies",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantState:  "ready",
		},
		{
			name: "ready",
			checks: map[string]rest.Check{
				"database": func(context.Context) error { return nil },
				"cache":    func(context.Context) error { return nil },
			},
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantState:  "ready",
		},
		{
			name: "cache down",
			checks: map[string]rest.Check{
				"database": func(context.Context) error { return nil },
				"cache":    func(context.Context) error { return errors.New("connection refused") },
			},
			path:       "/readyz",
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, rest.Config{Checks: tt.checks})
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s error = %v", tt.path, err)
			}
			defer func() { _ = resp.Body.Close() }()

			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if body["status"] != tt.wantState {
				t.Errorf("status field = %v, want %s", body["status"], tt.wantState)
			}
			if checks, ok := body["checks"].(map[string]any); ok && tt.name == "cache down" {
				if checks["cache"] != "connection refused" || checks["database"] != "ok" {
					t.Errorf("checks = %v", checks)
				}
			}
		})
	}
}

func seedResults(t *testing.T, store results.Store, n int) {
	t.Helper()
	base := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	for i := range n {
		if _, err := store.Save(context.Background(), results.Record{
			Topic:   "topic",
			Title:   "Title",
			Source:  "curated",
			Reason:  session.ReasonSolved,
			Score:   i,
			Total:   n,
			EndedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
}

func TestResults(t *testing.T) {
	store := results.NewMemoryStore()
	seedResults(t, store, 3)
	srv := newServer(t, rest.Config{Results: store})

	resp, err := http.Get(srv.URL + "/api/results?limit=2")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Results []results.Record `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) != 2 || body.Results[0].Score != 2 {
		t.Fatalf("results = %+v", body.Results)
	}

	one, err := http.Get(srv.URL + "/api/results/" + body.Results[1].ID)
	if err != nil {
		t.Fatalf("GET one error = %v", err)
	}
	_ = one.Body.Close()
	if one.StatusCode != http.StatusOK {
		t.Errorf("GET one status = %d", one.StatusCode)
	}

	for path, want := range map[string]int{
		"/api/results/missing":  http.StatusNotFound,
		"/api/results?limit=-1": http.StatusBadRequest,
		"/api/results?limit=x":  http.StatusBadRequest,
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("GET %s status = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestExportResults(t *testing.T) {
	store := results.NewMemoryStore()
	seedResults(t, store, 2)
	srv := newServer(t, rest.Config{Results: store})

	resp, err := http.Get(srv.URL + "/api/results/export.xlsx")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), ".xlsx") {
		t.Errorf("Content-Disposition = %q", resp.Header.Get("Content-Disposition"))
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(results.SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newServer(t, rest.Config{AllowedOrigins: []string{"https://play.example.com"}})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/quiz", nil)
	req.Header.Set("Origin", "https://play.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS error = %v", err)
	}
	_ = resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://play.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
