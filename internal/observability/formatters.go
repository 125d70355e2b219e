// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/cv-optimizer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// previewLines is how many lines of extracted text are shown
	previewLines = 6
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stderr; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(line))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// pad truncates or right-pads line to the box's inner width in runes.
func pad(line string) string {
	width := boxWidth - 4
	if utf8.RuneCountInString(line) > width {
		runes := []rune(line)
		line = string(runes[:width-3]) + "..."
	}
	return line + strings.Repeat(" ", width-utf8.RuneCountInString(line))
}

// preview returns the first non-blank lines of text.
func preview(text string, n int) (string, int) {
	var lines []string
	total := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if len(lines) < n {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	return strings.Join(lines, "\n"), total
}

// PrintExtraction outputs how a document was extracted and the start of its text.
func (p *Printer) PrintExtraction(result *types.ExtractionResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Strategy:   %s\n", result.StrategyUsed))
	sb.WriteString(fmt.Sprintf("Pages:      %d\n", result.Pages))
	sb.WriteString(fmt.Sprintf("Characters: %d\n", utf8.RuneCountInString(result.Text)))

	switch {
	case result.Restricted:
		sb.WriteString("\nText extraction is not permitted for this document.")
	case result.IsEmpty:
		sb.WriteString("\nNo text found. The document may be scanned.")
	default:
		text, total := preview(result.Text, previewLines)
		sb.WriteString("\n" + text)
		if total > previewLines {
			sb.WriteString(fmt.Sprintf("\n... and %d more lines", total-previewLines))
		}
	}

	p.printBox("EXTRACTED DOCUMENT", sb.String())
}

// PrintPosting outputs the source and start of an extracted job posting.
func (p *Printer) PrintPosting(posting *types.PagePosting) {
	if posting == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Source:     %s\n", posting.SourceURL))
	if posting.Title != "" {
		sb.WriteString(fmt.Sprintf("Title:      %s\n", posting.Title))
	}
	sb.WriteString(fmt.Sprintf("Adapter:    %s\n", posting.Adapter))
	if posting.Language != "" {
		sb.WriteString(fmt.Sprintf("Language:   %s\n", posting.Language))
	}
	sb.WriteString(fmt.Sprintf("Raw chars:  %d\n", utf8.RuneCountInString(posting.RawText)))
	if posting.WasSummarized {
		sb.WriteString(fmt.Sprintf("Summarized: %d chars\n", utf8.RuneCountInString(posting.FinalText)))
	}

	text, total := preview(posting.FinalText, previewLines)
	sb.WriteString("\n" + text)
	if total > previewLines {
		sb.WriteString(fmt.Sprintf("\n... and %d more lines", total-previewLines))
	}

	p.printBox("JOB POSTING", sb.String())
}

// PrintKeywords outputs the keywords of every non-empty category, heaviest first.
func (p *Printer) PrintKeywords(set types.KeywordCategorySet) {
	var sb strings.Builder

	if set.IsFailure() {
		sb.WriteString(fmt.Sprintf("Keyword reply could not be parsed:\n  %s\n", set.FailureReason()))
	}

	sb.WriteString(fmt.Sprintf("Total keywords: %d\n", set.Len()))
	for _, c := range types.Categories {
		entries := set.Get(c)
		if len(entries) == 0 {
			continue
		}
		sortByWeight(entries)

		sb.WriteString(fmt.Sprintf("\n%s:\n", c.Label()))
		count := min(len(entries), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s %s\n", entries[i].Term, weightBar(entries[i].Weight)))
		}
		if len(entries) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(entries)-maxItemsToShow))
		}
	}

	p.printBox("JOB KEYWORDS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDetection outputs the seniority and industry used to optimize a CV.
func (p *Printer) PrintDetection(seniority, industry string, usedKeywords bool) {
	if seniority == "" && industry == "" {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Seniority: %s\n", seniority))
	sb.WriteString(fmt.Sprintf("Industry:  %s\n", industry))
	if usedKeywords {
		sb.WriteString("Keywords:  included")
	} else {
		sb.WriteString("Keywords:  not used")
	}

	p.printBox("OPTIMIZATION CONTEXT", sb.String())
}

// sortByWeight orders entries by descending weight, keeping the original
// order among equal weights.
func sortByWeight(entries []types.KeywordEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Weight > entries[j].Weight
	})
}

func weightBar(weight int) string {
	weight = max(types.MinWeight, min(weight, types.MaxWeight))
	return "[" + strings.Repeat("■", weight) + strings.Repeat("·", types.MaxWeight-weight) + "]"
}
