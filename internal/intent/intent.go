// Package intent classifies a free-text quiz topic into a structured query.
//
// Classification is a fixed, ordered table of pattern rules; the first rule
// that matches wins. Input that no rule recognises falls back to a generic
// intent with default year bounds, so Classify never fails.
package intent

import (
	"fmt"
	"time"
)

// Category is the statistic a topic asks about.
type Category int

const (
	Generic Category = iota
	Points
	Rebounds
	Assists
	Blocks
	Steals
	ThreePointMakes
	TripleDoubleSeason
)

func (c Category) String() string {
	switch c {
	case Points:
		return "points"
	case Rebounds:
		return "rebounds"
	case Assists:
		return "assists"
	case Blocks:
		return "blocks"
	case Steals:
		return "steals"
	case ThreePointMakes:
		return "three_point_makes"
	case TripleDoubleSeason:
		return "triple_double_season"
	default:
		return "generic"
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	for c := Generic; c <= TripleDoubleSeason; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return Generic, fmt.Errorf("unknown category %q", s)
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

const (
	// DefaultStartYear is used when a topic names no year at all.
	DefaultStartYear = 2010
	// DefaultLimit is the number of rows per season when a topic names none.
	DefaultLimit = 10
	// DefaultThreshold is the made-threes threshold when a topic names none.
	DefaultThreshold = 10
	// genericSpan is the width of the year range when only one year is named.
	genericSpan = 10
)

// YearRange is an inclusive range of season end years.
type YearRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Seasons returns every season in the range, clamped so it never exceeds maxYear.
func (r YearRange) Seasons(maxYear int) []int {
	end := min(r.End, maxYear)
	if end < r.Start {
		return nil
	}
	seasons := make([]int, 0, end-r.Start+1)
	for y := r.Start; y <= end; y++ {
		seasons = append(seasons, y)
	}
	return seasons
}

// Contains reports whether year falls inside the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.Start && year <= r.End
}

// Intent is the structured form of a topic.
type Intent struct {
	Category  Category  `json:"category"`
	Years     YearRange `json:"years"`
	Limit     int       `json:"limit"`
	Threshold int       `json:"threshold,omitempty"`
	Team      string    `json:"team,omitempty"`
	// Defaulted marks that no rule matched and generic defaults were used.
	Defaulted bool `json:"defaulted,omitempty"`
}

// Classifier turns topics into intents. Now supplies the current date and
// defaults to time.Now.
type Classifier struct {
	Now func() time.Time
}

// Classify classifies topic using the wall clock.
func Classify(topic string) Intent {
	return Classifier{}.Classify(topic)
}

// Classify runs the rule table against topic and always returns an intent.
func (c Classifier) Classify(topic string) Intent {
	year := c.currentYear()
	for _, r := range rules {
		if in, ok := r.build(topic, year); ok {
			in.Team = extractTeam(topic)
			return in.normalized()
		}
	}
	return genericIntent(topic, year).normalized()
}

func (c Classifier) currentYear() int {
	if c.Now != nil {
		return c.Now().Year()
	}
	return time.Now().Year()
}

// normalized enforces Start <= End and Limit > 0.
func (in Intent) normalized() Intent {
	if in.Years.Start > in.Years.End {
		in.Years.Start, in.Years.End = in.Years.End, in.Years.Start
	}
	if in.Limit <= 0 {
		in.Limit = DefaultLimit
	}
	return in
}
