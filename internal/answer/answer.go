// Package answer defines the quiz answer records shared by the resolver,
// the matching engine, and the session.
package answer

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// PlaceholderTeam is used when a record's team is unknown or spans several teams.
const PlaceholderTeam = "NBA"

var (
	yearPattern = regexp.MustCompile(`^\d{4}$`)
	teamPattern = regexp.MustCompile(`^(\d{4})-([A-Z0-9]{2,3})$`)
)

// Record is a single answer the user has to name.
type Record struct {
	StatValue float64 `json:"points"`
	Player    string  `json:"player"`
	Team      string  `json:"team"` // "YYYY-TTT"
	Year      string  `json:"year"` // season end year
}

// Validate checks the record invariants.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Player) == "" {
		return fmt.Errorf("player is required")
	}
	if !yearPattern.MatchString(r.Year) {
		return fmt.Errorf("year %q is not a 4-digit season", r.Year)
	}
	if !teamPattern.MatchString(r.Team) {
		return fmt.Errorf("team %q does not follow YYYY-TTT", r.Team)
	}
	return nil
}

// Season returns the season end year as an integer.
func (r Record) Season() int {
	n, _ := strconv.Atoi(r.Year)
	return n
}

// TeamCode builds the "YYYY-TTT" team encoding. An empty or unknown code
// becomes the NBA placeholder.
func TeamCode(season int, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	switch code {
	case "", "UNKNOWN", "N/A", "NA", "UNAVAILABLE", "TOT", "2TM", "3TM", "4TM", "5TM":
		code = PlaceholderTeam
	}
	return fmt.Sprintf("%04d-%s", season, code)
}

// Set is an ordered, read-only collection of records sorted by season,
// most recent first.
type Set struct {
	records []Record
}

// NewSet copies records and orders them by descending season. Records that
// share a season keep their input order.
func NewSet(records []Record) Set {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Record) int {
		return b.Season() - a.Season()
	})
	return Set{records: sorted}
}

// Len returns the number of records.
func (s Set) Len() int {
	return len(s.records)
}

// At returns the record at index i.
func (s Set) At(i int) Record {
	return s.records[i]
}

// Records returns a copy of the ordered records.
func (s Set) Records() []Record {
	return slices.Clone(s.records)
}
