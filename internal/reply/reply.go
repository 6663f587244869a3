// Package reply turns raw completion text into candidate replies.
package reply

import (
	"regexp"
	"strings"
)

// Parser splits backend output into candidates. It exists as an interface so
// the line heuristic can be swapped for structured output later.
type Parser interface {
	Parse(raw string) []string
}

// LineParser treats each non-empty line as one candidate after removing list
// markers. It never pads the result when the backend produced fewer lines
// than requested.
type LineParser struct{}

// listMarkerRe matches "- ", "* ", "・ ", "•", "1.", "1)", "１．", "(1)", "【1】" and
// circled "①" style prefixes. "-", "*" and "・" need whitespace or the end of
// the line after them so "-5℃" keeps its sign.
var listMarkerRe = regexp.MustCompile(`^(?:[-*・](?:[\s\x{3000}]|$)|•|[0-9０-９]{1,2}[.)．）]|[(（][0-9０-９]{1,2}[)）]|【[0-9０-９]{1,2}】|[\x{2460}-\x{2473}\x{2776}-\x{277F}])`)

// Parse implements Parser.
func (LineParser) Parse(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = stripMarker(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// stripMarker removes one leading list marker. "1.5km" is a number, not a
// marker, so a dot followed by a digit is left alone.
func stripMarker(line string) string {
	loc := listMarkerRe.FindStringIndex(line)
	if loc == nil {
		return line
	}
	rest := line[loc[1]:]
	if strings.HasSuffix(line[:loc[1]], ".") && rest != "" && rest[0] >= '0' && rest[0] <= '9' {
		return line
	}
	return strings.TrimSpace(rest)
}

// Parse uses the default LineParser.
func Parse(raw string) []string { return LineParser{}.Parse(raw) }
