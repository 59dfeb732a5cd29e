// Package extract pulls a quiz payload out of free-form generated text.
//
// Generated text is unreliable: it may wrap JSON in prose or code fences, and
// the JSON itself may be slightly malformed. Extract locates the most likely
// JSON span, runs a fixed chain of repairs until the span parses, and then
// validates and coerces the result into answer records.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/p-n-ai/statquiz/internal/answer"
)

var (
	// ErrExtractionFailed means no parseable JSON was found, even after repairs.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrValidationFailed means the JSON parsed but does not have the payload shape.
	ErrValidationFailed = errors.New("validation failed")
)

// Payload is the validated result of an extraction.
type Payload struct {
	Title       string
	Description string
	Answers     answer.Set
	TimeLimit   int
	// Dropped counts answer items discarded for missing or malformed fields.
	Dropped int
	// Repairs lists the repair stages that were needed, in order.
	Repairs []string
}

var fencedBlockRe = regexp.MustCompile("(?s)```[a-zA-Z]*[ \\t]*\\n?(.*?)```")

// Locate returns the candidate JSON text. A fenced code block wins; otherwise
// the span from the first '{' to the last '}' is used.
//
// The brace span is not depth aware: prose after the JSON that itself
// contains a '}' will be swallowed into the candidate.
func Locate(raw string) string {
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		if block := strings.TrimSpace(m[1]); block != "" {
			return block
		}
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

// Extract locates, repairs, parses and validates a payload from raw text.
func Extract(raw string) (Payload, error) {
	candidate := Locate(raw)
	if candidate == "" {
		return Payload{}, fmt.Errorf("%w: empty input", ErrExtractionFailed)
	}

	doc, repairs, err := Parse(candidate)
	if err != nil {
		return Payload{}, err
	}

	p, err := toPayload(doc)
	if err != nil {
		return Payload{}, err
	}
	p.Repairs = repairs
	return p, nil
}

// Parse parses candidate as JSON, applying the repair stages one at a time
// and stopping at the first successful parse. It returns the parsed value and
// the names of the stages that were applied.
func Parse(candidate string) (any, []string, error) {
	var v any
	err := json.Unmarshal([]byte(candidate), &v)
	if err == nil {
		return v, nil, nil
	}

	lastErr := err
	applied := make([]string, 0, len(repairStages))
	current := candidate
	for _, stage := range repairStages {
		current = stage.apply(current)
		applied = append(applied, stage.name)
		var repaired any
		err := json.Unmarshal([]byte(current), &repaired)
		if err == nil {
			return repaired, applied, nil
		}
		lastErr = err
	}
	return nil, nil, fmt.Errorf("%w: %v", ErrExtractionFailed, lastErr)
}
