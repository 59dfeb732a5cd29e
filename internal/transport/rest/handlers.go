package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/p-n-ai/statquiz/internal/quiz"
	"github.com/p-n-ai/statquiz/internal/resolver"
	"github.com/p-n-ai/statquiz/internal/results"
)

const (
	defaultResultsLimit = 50
	maxResultsLimit     = 500
	readyCheckTimeout   = 3 * time.Second
	maxBodyBytes        = 1 << 16
)

type handler struct {
	quizzes         Generator
	results         results.Store
	checks          map[string]Check
	generateTimeout time.Duration
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		status = http.StatusOK
		checks = make(map[string]string, len(h.checks))
	)
	for name, check := range h.checks {
		wg.Go(func() {
			result := "ok"
			if err := check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			checks[name] = result
			if result != "ok" {
				status = http.StatusServiceUnavailable
			}
		})
	}
	wg.Wait()

	body := map[string]any{"status": "ready", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "not_ready"
		slog.Warn("readiness check failed", "checks", checks)
	}
	respondJSON(w, status, body)
}

func (h *handler) generateQuiz(w http.ResponseWriter, r *http.Request) {
	var req quiz.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Request body must be JSON like {\"topic\": \"...\"}.",
		})
		return
	}

	ctx := r.Context()
	if h.generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.generateTimeout)
		defer cancel()
	}

	q, err := h.quizzes.Generate(ctx, req)
	if err != nil {
		status, body := quizError(err)
		if status >= http.StatusInternalServerError {
			slog.Error("quiz generation failed",
				"topic", req.Topic,
				"request_id", middleware.GetReqID(r.Context()),
				"error", err,
			)
		}
		respondError(w, status, body)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// quizError maps a generation error to a status and body.
func quizError(err error) (int, ErrorResponse) {
	code := quiz.ErrorCode(err)
	body := ErrorResponse{Error: code, Message: quiz.ErrorMessage(code)}

	var failure *resolver.Failure
	switch code {
	case quiz.CodeMissingTopic:
		return http.StatusBadRequest, body
	case quiz.CodeEmptyResult:
		return http.StatusNotFound, body
	case quiz.CodeSourceUnavailable:
		if errors.As(err, &failure) {
			body.Details = failure.Details()
		} else {
			body.Details = err.Error()
		}
		return http.StatusServiceUnavailable, body
	}
	return http.StatusInternalServerError, body
}

func (h *handler) listResults(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_limit", Message: err.Error()})
		return
	}
	records, err := h.results.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("list results failed", "error", err)
		respondError(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Could not load results."})
		return
	}
	if records == nil {
		records = []results.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": records})
}

func (h *handler) getResult(w http.ResponseWriter, r *http.Request) {
	rec, err := h.results.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, results.ErrNotFound) {
		respondError(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "No such result."})
		return
	}
	if err != nil {
		slog.Error("get result failed", "error", err)
		respondError(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Could not load result."})
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *handler) exportResults(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_limit", Message: err.Error()})
		return
	}
	records, err := h.results.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("export results failed", "error", err)
		respondError(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Could not load results."})
		return
	}

	filename := fmt.Sprintf("statquiz-results-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := results.WriteXLSX(w, records); err != nil {
		slog.Error("write results workbook failed", "error", err)
	}
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultResultsLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return min(n, maxResultsLimit), nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, body ErrorResponse) {
	respondJSON(w, status, body)
}

// requestLogger logs each request once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
