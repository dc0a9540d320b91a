package topics

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var enumPrefix = regexp.MustCompile(`^\d+[.)]`)

// ExtractTitles turns a raw completion into at most count usable topic titles.
// One title per line; enumerated lines are discarded outright (the prompt
// forbids numbering, so a numbered line means the model ignored the format),
// as are lines too short or too long to be article titles.
func ExtractTitles(raw string, count int) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		title := strings.TrimSpace(line)
		if enumPrefix.MatchString(title) {
			continue
		}
		n := utf8.RuneCountInString(title)
		if n <= 10 || n >= 200 {
			continue
		}
		out = append(out, title)
		if len(out) == count {
			break
		}
	}
	return out
}
