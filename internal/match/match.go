// Package match resolves free-typed guesses against a quiz answer set.
//
// A guess matches a record when its normalized form equals the record's full
// player name, the last name token, or the first name token when no other
// record in the set shares that first name. Every unmatched record that
// satisfies a rule is claimed by the same guess, so one "curry" resolves all
// of a player's seasons at once.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/p-n-ai/statquiz/internal/answer"
)

// Normalize lowercases s, strips diacritics, punctuation and symbols, and
// collapses whitespace. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ToLower(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err == nil {
		s = folded
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

type names struct {
	full  string
	first string
	last  string
}

// Engine holds the precomputed name forms of one answer set.
type Engine struct {
	names      []names
	firstCount map[string]int
}

// NewEngine prepares set for matching.
func NewEngine(set answer.Set) *Engine {
	e := &Engine{
		names:      make([]names, set.Len()),
		firstCount: make(map[string]int),
	}
	for i := range set.Len() {
		full := Normalize(set.At(i).Player)
		tokens := strings.Fields(full)
		n := names{full: full}
		if len(tokens) > 0 {
			n.first = tokens[0]
			n.last = tokens[len(tokens)-1]
		}
		e.names[i] = n
		if n.first != "" {
			e.firstCount[n.first]++
		}
	}
	return e
}

// Len returns the number of records the engine matches against.
func (e *Engine) Len() int {
	return len(e.names)
}

// Result describes what one guess did.
type Result struct {
	// Matched lists the indices newly added to the state, ascending.
	Matched []int
	// Changed reports whether the state grew.
	Changed bool
	// Input is what the caller should keep showing: the raw guess when nothing
	// matched, empty otherwise.
	Input string
}

// Match evaluates input against every record not yet in state and adds all
// that match.
func (e *Engine) Match(state *State, input string) Result {
	guess := Normalize(input)
	if guess == "" {
		return Result{Input: input}
	}

	var matched []int
	for i, n := range e.names {
		if state.Has(i) {
			continue
		}
		if e.matches(n, guess) {
			matched = append(matched, i)
		}
	}
	if len(matched) == 0 {
		return Result{Input: input}
	}

	for _, i := range matched {
		state.add(i)
	}
	return Result{Matched: matched, Changed: true}
}

func (e *Engine) matches(n names, guess string) bool {
	switch guess {
	case n.full, n.last:
		return true
	case n.first:
		// A first name shared by another record never matches on its own.
		return e.firstCount[n.first] == 1
	}
	return false
}

// Complete reports whether every record is in state.
func (e *Engine) Complete(state *State) bool {
	return state.Len() == len(e.names)
}
