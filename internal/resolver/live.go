package resolver

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/p-n-ai/statquiz/internal/answer"
	"github.com/p-n-ai/statquiz/internal/intent"
)

const (
	defaultLiveBaseURL = "https://www.basketball-reference.com"
	liveUserAgent      = "StatQuiz/1.0 (+https://github.com/p-n-ai/statquiz)"

	// LiveRequestTimeout bounds each per-season request.
	LiveRequestTimeout = 10 * time.Second
	// LiveRequestDelay is the pause between consecutive requests.
	LiveRequestDelay = 500 * time.Millisecond
)

// LiveStrategy scrapes per-game scoring tables, one request per season.
type LiveStrategy struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	delay   time.Duration
	now     func() time.Time
	wait    func(ctx context.Context, d time.Duration) error
}

// LiveOption configures a LiveStrategy.
type LiveOption func(*LiveStrategy)

// WithLiveBaseURL sets the stats site base URL (for testing).
func WithLiveBaseURL(url string) LiveOption {
	return func(s *LiveStrategy) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithLiveHTTPClient sets a custom HTTP client.
func WithLiveHTTPClient(client *http.Client) LiveOption {
	return func(s *LiveStrategy) {
		s.client = client
	}
}

// WithLiveClock sets the clock used to clamp seasons to the current year.
func WithLiveClock(now func() time.Time) LiveOption {
	return func(s *LiveStrategy) {
		s.now = now
	}
}

// WithLiveWait replaces the inter-request sleep.
func WithLiveWait(wait func(ctx context.Context, d time.Duration) error) LiveOption {
	return func(s *LiveStrategy) {
		s.wait = wait
	}
}

// NewLiveStrategy creates the live scoring-leaders strategy.
func NewLiveStrategy(opts ...LiveOption) *LiveStrategy {
	s := &LiveStrategy{
		baseURL: defaultLiveBaseURL,
		client:  http.DefaultClient,
		timeout: LiveRequestTimeout,
		delay:   LiveRequestDelay,
		now:     time.Now,
		wait:    sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *LiveStrategy) Name() string { return "live" }

// Attempt fetches every season in the intent's range. Any failed season
// fails the whole attempt.
func (s *LiveStrategy) Attempt(ctx context.Context, q Query) (*Result, error) {
	if q.Intent.Category != intent.Points {
		return nil, ErrNotApplicable
	}
	seasons := q.Intent.Years.Seasons(s.now().Year())
	if len(seasons) == 0 {
		return nil, ErrNotApplicable
	}

	var records []answer.Record
	for i, season := range seasons {
		if i > 0 {
			if err := s.wait(ctx, s.delay); err != nil {
				return nil, err
			}
		}
		rows, err := s.fetchSeason(ctx, season)
		if err != nil {
			return nil, fmt.Errorf("season %d: %w", season, err)
		}
		records = append(records, topScorers(rows, season, q.Intent.Limit)...)
	}

	first, last := seasons[0], seasons[len(seasons)-1]
	return &Result{
		Title: fmt.Sprintf("Top %d Scorers, %d-%d", q.Intent.Limit, first, last),
		Description: fmt.Sprintf("Name the top %d players in points per game for each season from %d to %d.",
			q.Intent.Limit, first, last),
		Answers:   answer.NewSet(records),
		TimeLimit: q.TimeLimit,
	}, nil
}

type scoringRow struct {
	player string
	team   string
	ppg    float64
}

func (s *LiveStrategy) fetchSeason(ctx context.Context, season int) ([]scoringRow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/leagues/NBA_%d_per_game.html", s.baseURL, season)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", liveUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stats site returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return parsePerGameTable(doc)
}

// parsePerGameTable reads the per-game table. Traded players appear once per
// team after a combined row; only the first row per player is kept.
func parsePerGameTable(doc *goquery.Document) ([]scoringRow, error) {
	table := doc.Find("table#per_game_stats")
	if table.Length() == 0 {
		return nil, fmt.Errorf("per-game table not found")
	}

	seen := make(map[string]bool)
	var rows []scoringRow
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.HasClass("thead") {
			return
		}
		player := cellText(tr, "name_display", "player")
		ppg, err := strconv.ParseFloat(cellText(tr, "pts_per_g"), 64)
		if player == "" || err != nil || seen[player] {
			return
		}
		seen[player] = true
		rows = append(rows, scoringRow{
			player: player,
			team:   cellText(tr, "team_name_abbr", "team_id"),
			ppg:    ppg,
		})
	})
	if len(rows) == 0 {
		return nil, fmt.Errorf("per-game table has no rows")
	}
	return rows, nil
}

func cellText(tr *goquery.Selection, stats ...string) string {
	for _, stat := range stats {
		cell := tr.Find(fmt.Sprintf(`[data-stat=%q]`, stat))
		if cell.Length() > 0 {
			return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(cell.First().Text()), "*"))
		}
	}
	return ""
}

func topScorers(rows []scoringRow, season, limit int) []answer.Record {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b scoringRow) int {
		switch {
		case a.ppg > b.ppg:
			return -1
		case a.ppg < b.ppg:
			return 1
		}
		return 0
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	records := make([]answer.Record, len(sorted))
	for i, r := range sorted {
		records[i] = answer.Record{
			StatValue: r.ppg,
			Player:    r.player,
			Team:      answer.TeamCode(season, answer.CanonicalTeam(r.team)),
			Year:      strconv.Itoa(season),
		}
	}
	return records
}
