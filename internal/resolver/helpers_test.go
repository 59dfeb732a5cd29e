package resolver_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/p-n-ai/statquiz/internal/intent"
)

var fixedNow = func() time.Time { return time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC) }

func classify(topic string) intent.Intent {
	return intent.Classifier{Now: fixedNow}.Classify(topic)
}

type pageRow struct {
	player string
	team   string
	ppg    string
}

// perGamePage renders a minimal per-game stats table.
func perGamePage(rows ...pageRow) string {
	var b strings.Builder
	b.WriteString(`<html><body><table id="per_game_stats"><thead><tr><th>Rk</th></tr></thead><tbody>`)
	for i, r := range rows {
		if i == 2 {
			b.WriteString(`<tr class="thead"><th data-stat="ranker">Rk</th><td data-stat="name_display">Player</td></tr>`)
		}
		fmt.Fprintf(&b, `<tr><th data-stat="ranker">%d</th><td data-stat="name_display"><a href="#">%s</a></td>`+
			`<td data-stat="team_name_abbr">%s</td><td data-stat="pts_per_g">%s</td></tr>`,
			i+1, r.player, r.team, r.ppg)
	}
	b.WriteString(`</tbody></table></body></html>`)
	return b.String()
}

// statsTransport serves canned pages and records every request.
type statsTransport struct {
	mu        sync.Mutex
	paths     []string
	deadlines []time.Duration
	pages     map[string]string
	fail      bool
}

func (t *statsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.paths = append(t.paths, req.URL.Path)
	if dl, ok := req.Context().Deadline(); ok {
		t.deadlines = append(t.deadlines, time.Until(dl))
	}
	t.mu.Unlock()

	if t.fail {
		return nil, errors.New("connection refused")
	}
	page, ok := t.pages[req.URL.Path]
	if !ok {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader("not found")),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(page)),
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Request:    req,
	}, nil
}

func (t *statsTransport) requests() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.paths...)
}

// recordWait records requested delays without sleeping.
type recordWait struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (w *recordWait) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.delays = append(w.delays, d)
	w.mu.Unlock()
	return ctx.Err()
}
