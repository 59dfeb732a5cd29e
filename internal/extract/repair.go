package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type repairStage struct {
	name  string
	apply func(string) string
}

// repairStages run in this order. Every stage only rewrites text that sits
// outside string literals, single-quoted ones included, so JSON that already
// parses comes out of each stage unchanged.
var repairStages = []repairStage{
	{name: "trailing_commas", apply: stripTrailingCommas},
	{name: "bare_keys", apply: quoteBareKeys},
	{name: "single_quotes", apply: normalizeSingleQuotes},
	{name: "bare_values", apply: quoteBareValues},
	{name: "shorthand_tokens", apply: quoteShorthandTokens},
}

var (
	trailingCommaRe  = regexp.MustCompile(`,(\s*[}\]])`)
	bareKeyRe        = regexp.MustCompile(`([{,]\s*)([A-Za-z_$][\w$-]*)(\s*:)`)
	bareValueRe      = regexp.MustCompile(`(:\s*)([A-Za-z][^,}\]\n]*?)(\s*(?:[,}\]\n]|$))`)
	shorthandTokenRe = regexp.MustCompile(`([:\[,]\s*)(\d{4}-(?:\d{2,4}|[A-Za-z]{2,3}))\b`)
)

func stripTrailingCommas(s string) string {
	return rewriteOutsideStrings(s, func(seg string) string {
		return trailingCommaRe.ReplaceAllString(seg, "$1")
	})
}

func quoteBareKeys(s string) string {
	return rewriteOutsideStrings(s, func(seg string) string {
		return bareKeyRe.ReplaceAllString(seg, `$1"$2"$3`)
	})
}

func quoteBareValues(s string) string {
	return rewriteOutsideStrings(s, func(seg string) string {
		return bareValueRe.ReplaceAllStringFunc(seg, func(m string) string {
			parts := bareValueRe.FindStringSubmatch(m)
			value := strings.TrimSpace(parts[2])
			switch value {
			case "true", "false", "null":
				return m
			}
			return parts[1] + `"` + escapeQuotes(value) + `"` + parts[3]
		})
	})
}

func quoteShorthandTokens(s string) string {
	return rewriteOutsideStrings(s, func(seg string) string {
		return shorthandTokenRe.ReplaceAllString(seg, `$1"$2"`)
	})
}

// normalizeSingleQuotes turns single-quoted strings that sit outside
// double-quoted strings into double-quoted ones. Apostrophes and quotes with
// no closing partner are left alone.
func normalizeSingleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inDouble := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inDouble {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inDouble = false
			}
			continue
		}

		switch c {
		case '"':
			inDouble = true
			b.WriteByte(c)
		case '\'':
			end, ok := singleQuoteSpan(s, i)
			if !ok {
				b.WriteByte(c)
				continue
			}
			inner := strings.ReplaceAll(s[i+1:end], `\'`, `'`)
			b.WriteByte('"')
			b.WriteString(escapeQuotes(inner))
			b.WriteByte('"')
			i = end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// singleQuoteSpan returns the index of the quote that closes a single-quoted
// string opened at s[i]. A quote between two letters is an apostrophe, and a
// span never crosses a double quote.
func singleQuoteSpan(s string, i int) (int, bool) {
	if isApostrophe(s, i) {
		return 0, false
	}
	escaped := false
	for j := i + 1; j < len(s); j++ {
		switch {
		case escaped:
			escaped = false
		case s[j] == '\\':
			escaped = true
		case s[j] == '"':
			return 0, false
		case s[j] == '\'' && !isApostrophe(s, j):
			return j, true
		}
	}
	return 0, false
}

func isApostrophe(s string, i int) bool {
	before, _ := utf8.DecodeLastRuneInString(s[:i])
	after, _ := utf8.DecodeRuneInString(s[i+1:])
	return unicode.IsLetter(before) && unicode.IsLetter(after)
}

// escapeQuotes escapes double quotes that are not already escaped.
func escapeQuotes(s string) string {
	var b strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' && !escaped {
			b.WriteByte('\\')
		}
		escaped = c == '\\' && !escaped
		b.WriteByte(c)
	}
	return b.String()
}

// rewriteOutsideStrings applies fn to every run of text that is not inside a
// string literal and copies double- and single-quoted literals through
// untouched.
func rewriteOutsideStrings(s string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(s))

	start := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				b.WriteString(s[start : i+1])
				start = i + 1
			}
			continue
		}
		switch c {
		case '"':
			b.WriteString(fn(s[start:i]))
			start = i
			inString = true
		case '\'':
			if end, ok := singleQuoteSpan(s, i); ok {
				b.WriteString(fn(s[start:i]))
				b.WriteString(s[i : end+1])
				start = end + 1
				i = end
			}
		}
	}
	if inString {
		b.WriteString(s[start:])
	} else {
		b.WriteString(fn(s[start:]))
	}
	return b.String()
}
