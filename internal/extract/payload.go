package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/statquiz/internal/answer"
)

const payloadSchemaJSON = `{
  "type": "object",
  "required": ["title", "description", "answers"],
  "properties": {
    "title":       {"type": "string"},
    "description": {"type": "string"},
    "answers":     {"type": "array"},
    "timeLimit":   {"type": ["number", "string", "null"]}
  }
}`

var payloadSchema = mustSchema(payloadSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile payload schema: %v", err))
	}
	return s
}

var (
	seasonSpanRe = regexp.MustCompile(`^(\d{4})\s*[-/]\s*(\d{2}|\d{4})$`)
	teamCodeRe   = regexp.MustCompile(`^(\d{4})\s*-\s*(.+)$`)
)

// toPayload applies defaults to missing top-level fields, checks the shape
// against the payload schema and coerces the answer items.
func toPayload(v any) (Payload, error) {
	doc, ok := v.(map[string]any)
	if !ok {
		return Payload{}, fmt.Errorf("%w: top-level value is %T, want object", ErrValidationFailed, v)
	}

	for key, def := range map[string]any{"title": "", "description": "", "answers": []any{}} {
		if doc[key] == nil {
			doc[key] = def
		}
	}

	result, err := payloadSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Payload{}, fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(msgs, "; "))
	}

	items, _ := doc["answers"].([]any)
	records := make([]answer.Record, 0, len(items))
	dropped := 0
	for _, item := range items {
		rec, ok := toRecord(item)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}

	return Payload{
		Title:       strings.TrimSpace(doc["title"].(string)),
		Description: strings.TrimSpace(doc["description"].(string)),
		Answers:     answer.NewSet(records),
		TimeLimit:   toInt(doc["timeLimit"]),
		Dropped:     dropped,
	}, nil
}

func toRecord(item any) (answer.Record, bool) {
	m, ok := item.(map[string]any)
	if !ok {
		return answer.Record{}, false
	}

	player := strings.TrimSpace(firstString(m, "player", "name"))
	if player == "" {
		return answer.Record{}, false
	}

	season := toSeason(m["year"])
	team := strings.TrimSpace(toString(m["team"]))
	code := team
	if tm := teamCodeRe.FindStringSubmatch(team); tm != nil {
		if season == 0 {
			season, _ = strconv.Atoi(tm[1])
		}
		code = tm[2]
	}
	if season == 0 {
		return answer.Record{}, false
	}

	rec := answer.Record{
		StatValue: toFloat(firstValue(m, "points", "value", "stat")),
		Player:    player,
		Team:      answer.TeamCode(season, answer.CanonicalTeam(code)),
		Year:      strconv.Itoa(season),
	}
	if err := rec.Validate(); err != nil {
		return answer.Record{}, false
	}
	return rec, true
}

// toSeason reads a season end year from a number, "2023" or a span like
// "2022-23".
func toSeason(v any) int {
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return 0
	}
	if m := seasonSpanRe.FindStringSubmatch(s); m != nil {
		start, _ := strconv.Atoi(m[1])
		if len(m[2]) == 4 {
			end, _ := strconv.Atoi(m[2])
			return end
		}
		suffix, _ := strconv.Atoi(m[2])
		end := start/100*100 + suffix
		if end <= start {
			end += 100
		}
		return end
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1000 || n > 9999 {
		return 0
	}
	return n
}

func firstString(m map[string]any, keys ...string) string {
	return toString(firstValue(m, keys...))
}

func firstValue(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func toInt(v any) int {
	f := toFloat(v)
	if f <= 0 {
		return 0
	}
	return int(f)
}
