package fetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NodeText returns the text of every node in sel, one text node per line,
// with each line trimmed and blank lines dropped. Comments are skipped.
func NodeText(sel *goquery.Selection) string {
	var lines []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			switch goquery.NodeName(child) {
			case "#text":
				if line := strings.TrimSpace(child.Text()); line != "" {
					lines = append(lines, line)
				}
			case "#comment", "script", "style", "noscript", "template":
			default:
				walk(child)
			}
		})
	}
	walk(sel)
	return strings.Join(lines, "\n")
}

// CleanLines collapses whitespace inside each line and drops blank lines.
func CleanLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
