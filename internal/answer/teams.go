package answer

import (
	"regexp"
	"strings"
)

// teamAbbreviations maps full franchise names to the fixed three-letter codes
// used in the "YYYY-TTT" encoding.
var teamAbbreviations = map[string]string{
	"atlanta hawks":          "ATL",
	"boston celtics":         "BOS",
	"brooklyn nets":          "BKN",
	"charlotte hornets":      "CHA",
	"chicago bulls":          "CHI",
	"cleveland cavaliers":    "CLE",
	"dallas mavericks":       "DAL",
	"denver nuggets":         "DEN",
	"detroit pistons":        "DET",
	"golden state warriors":  "GSW",
	"houston rockets":        "HOU",
	"indiana pacers":         "IND",
	"los angeles clippers":   "LAC",
	"la clippers":            "LAC",
	"los angeles lakers":     "LAL",
	"memphis grizzlies":      "MEM",
	"miami heat":             "MIA",
	"milwaukee bucks":        "MIL",
	"minnesota timberwolves": "MIN",
	"new orleans pelicans":   "NOP",
	"new york knicks":        "NYK",
	"oklahoma city thunder":  "OKC",
	"orlando magic":          "ORL",
	"philadelphia 76ers":     "PHI",
	"phoenix suns":           "PHX",
	"portland trail blazers": "POR",
	"sacramento kings":       "SAC",
	"san antonio spurs":      "SAS",
	"toronto raptors":        "TOR",
	"utah jazz":              "UTA",
	"washington wizards":     "WAS",
	"seattle supersonics":    "SEA",
	"new jersey nets":        "NJN",
	"vancouver grizzlies":    "VAN",
	"cincinnati royals":      "CIN",
}

// codeAliases folds alternate abbreviations (mostly basketball-reference's)
// onto the fixed codes.
var codeAliases = map[string]string{
	"BRK": "BKN",
	"PHO": "PHX",
	"CHO": "CHA",
	"GS":  "GSW",
	"NY":  "NYK",
	"SA":  "SAS",
	"NO":  "NOP",
	"UTH": "UTA",
	"WSH": "WAS",
}

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]{2,3}$`)

// CanonicalTeam maps a code or full team name to a fixed code. Anything it
// cannot recognise becomes the placeholder.
func CanonicalTeam(team string) string {
	team = strings.TrimSpace(team)
	if name, ok := teamAbbreviations[strings.ToLower(team)]; ok {
		return name
	}
	if !codePattern.MatchString(team) {
		return PlaceholderTeam
	}
	code := strings.ToUpper(team)
	if alias, ok := codeAliases[code]; ok {
		return alias
	}
	switch code {
	case "TOT", "NA", "2TM", "3TM", "4TM", "5TM":
		return PlaceholderTeam
	}
	return code
}
