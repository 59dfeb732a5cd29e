package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// rule is one (predicate, builder) entry of the classification table.
type rule struct {
	name  string
	build func(topic string, currentYear int) (Intent, bool)
}

// rules is evaluated in order; earlier rules take priority.
var rules = []rule{
	{name: "three_point_game", build: threePointGame},
	{name: "triple_double_season", build: tripleDoubleSeason},
	{name: "top_leaders_by_year", build: topLeadersByYear},
}

var (
	threePointGameRe = regexp.MustCompile(
		`(?i)(?:(\d+)\s*\+?\s*)?(?:three[- ]?pointers?|threes|3[- ]?pointers?|3s)\s+(?:made\s+)?in\s+a\s+(?:single\s+)?game`)

	tripleDoubleSeasonRe = regexp.MustCompile(
		`(?i)averag\w*\s+(?:an?\s+)?triple[- ]doubles?|triple[- ]doubles?\s+(?:for|over|across|in)\s+(?:a|an|the)\s+(?:entire\s+|whole\s+|full\s+)?season`)

	topLeadersRe = regexp.MustCompile(
		`(?i)\btop\s+(\d+)\s+(?:[a-z]+\s+){0,3}?leaders?\s+in\s+(.+?)\s+(?:each|every|per)\s+(?:year|season)\s+(?:from|since)\s+(\d{4})(?:\s*(?:to|through|thru|until|-)\s*(\d{4}))?`)

	yearRe = regexp.MustCompile(`\b(\d{4})\b`)

	teamPrepositionRe = regexp.MustCompile(
		`(?i)\b(?:for|with|on)\s+the\s+([a-z0-9][a-z0-9 .'-]*?)(?:\s+(?:in|from|since|during|between|who|that|each|every|to|and|with)\b|[,.?!]|$)`)
	teamSuffixRe = regexp.MustCompile(`(?i)\b([a-z0-9][a-z0-9.'-]*)\s+(?:team|franchise)\b`)
)

// categoryKeywords maps stat phrases to categories. Order matters: "three"
// must be checked before "point" so three-point phrasing is not read as points.
var categoryKeywords = []struct {
	keyword  string
	category Category
}{
	{"three", ThreePointMakes},
	{"3pt", ThreePointMakes},
	{"3-point", ThreePointMakes},
	{"points", Points},
	{"ppg", Points},
	{"rebounds", Rebounds},
	{"rpg", Rebounds},
	{"assists", Assists},
	{"apg", Assists},
	{"blocks", Blocks},
	{"bpg", Blocks},
	{"steals", Steals},
	{"spg", Steals},
}

func threePointGame(topic string, currentYear int) (Intent, bool) {
	m := threePointGameRe.FindStringSubmatch(topic)
	if m == nil {
		return Intent{}, false
	}
	threshold := DefaultThreshold
	if m[1] != "" {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			threshold = n
		}
	}
	return Intent{
		Category:  ThreePointMakes,
		Years:     YearRange{Start: DefaultStartYear, End: currentYear},
		Limit:     DefaultLimit,
		Threshold: threshold,
	}, true
}

func tripleDoubleSeason(topic string, currentYear int) (Intent, bool) {
	if !tripleDoubleSeasonRe.MatchString(topic) {
		return Intent{}, false
	}
	return Intent{
		Category: TripleDoubleSeason,
		Years:    YearRange{Start: DefaultStartYear, End: currentYear},
		Limit:    DefaultLimit,
	}, true
}

func topLeadersByYear(topic string, currentYear int) (Intent, bool) {
	m := topLeadersRe.FindStringSubmatch(topic)
	if m == nil {
		return Intent{}, false
	}
	limit, err := strconv.Atoi(m[1])
	if err != nil || limit <= 0 {
		return Intent{}, false
	}
	category, ok := categoryFor(m[2])
	if !ok {
		return Intent{}, false
	}
	start, _ := strconv.Atoi(m[3])
	end := currentYear
	if m[4] != "" {
		end, _ = strconv.Atoi(m[4])
	}
	return Intent{
		Category: category,
		Years:    YearRange{Start: start, End: end},
		Limit:    limit,
	}, true
}

func categoryFor(phrase string) (Category, bool) {
	phrase = strings.ToLower(phrase)
	for _, kw := range categoryKeywords {
		if strings.Contains(phrase, kw.keyword) {
			return kw.category, true
		}
	}
	return Generic, false
}

func genericIntent(topic string, currentYear int) Intent {
	in := Intent{
		Category: Generic,
		Limit:    DefaultLimit,
		Team:     extractTeam(topic),
	}

	years := yearRe.FindAllStringSubmatch(topic, -1)
	switch {
	case len(years) == 0:
		in.Years = YearRange{Start: DefaultStartYear, End: currentYear}
		in.Defaulted = true
	case len(years) == 1:
		start, _ := strconv.Atoi(years[0][1])
		in.Years = YearRange{Start: start, End: start + genericSpan}
	default:
		start, _ := strconv.Atoi(years[0][1])
		end, _ := strconv.Atoi(years[1][1])
		in.Years = YearRange{Start: start, End: end}
	}
	return in
}

var teamStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "that": true, "this": true,
	"same": true, "one": true, "any": true, "every": true, "each": true,
	"his": true, "their": true, "national": true,
}

// extractTeam makes a best-effort guess at a team named in the topic.
func extractTeam(topic string) string {
	if m := teamPrepositionRe.FindStringSubmatch(topic); m != nil {
		if team := strings.TrimSpace(m[1]); team != "" && !teamStopWords[strings.ToLower(team)] {
			return team
		}
	}
	if m := teamSuffixRe.FindStringSubmatch(topic); m != nil {
		if team := strings.TrimSpace(m[1]); !teamStopWords[strings.ToLower(team)] {
			return team
		}
	}
	return ""
}
