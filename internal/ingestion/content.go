package ingestion

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/cv-optimizer/internal/fetch"
)

// Names recorded in PagePosting.Adapter for the non-adapter paths.
const (
	SourceGeneric = "generic"
	SourceBody    = "body"
)

const (
	alwaysRemove = "script, style, noscript, template"
	bodyNoise    = "nav, header, footer, script, style, iframe, aside, form"

	genericContainers = `.job-description, .description, .details, article, .job-content, ` +
		`[class*="job"], [class*="description"], [class*="offer"], [class*="details"], ` +
		`[id*="description"], [id*="job"]`

	// longBodyRunes triggers section refinement of body text.
	longBodyRunes = 10000
	// minParagraphRunes is the shortest paragraph kept by refinement.
	minParagraphRunes = 50
)

// sectionKeywords mark where a posting body starts, in English and Polish.
var sectionKeywords = []string{
	"requirements", "responsibilities", "qualifications", "skills", "experience", "about the job",
	"wymagania", "obowiązki", "kwalifikacje", "umiejętności", "doświadczenie", "o pracy",
}

// extractContent locates the posting text in doc. The adapter, when present,
// wins over the generic container scan, which wins over the whole body.
// It returns the raw line-per-node text and the name of the path that
// produced it; text is empty when nothing was found.
func extractContent(doc *goquery.Document, adapter *fetch.Adapter) (string, string) {
	doc.Find(alwaysRemove).Remove()

	if adapter != nil {
		if text := adapterText(doc, *adapter); text != "" {
			return text, adapter.Name
		}
	}

	if text := longestContainer(doc); text != "" {
		return text, SourceGeneric
	}

	doc.Find(bodyNoise).Remove()
	text := fetch.NodeText(doc.Find("body"))
	if utf8.RuneCountInString(text) > longBodyRunes {
		text = relevantSection(text)
	}
	return text, SourceBody
}

func adapterText(doc *goquery.Document, adapter fetch.Adapter) string {
	if len(adapter.Noise) > 0 {
		doc.Find(strings.Join(adapter.Noise, ", ")).Remove()
	}

	for _, sel := range adapter.Selectors {
		matches := doc.Find(sel.CSS)
		if matches.Length() == 0 {
			continue
		}

		var text string
		if sel.JoinAll {
			var parts []string
			matches.Each(func(_ int, s *goquery.Selection) {
				if t := fetch.NodeText(s); t != "" {
					parts = append(parts, t)
				}
			})
			text = strings.Join(parts, "\n")
		} else {
			text = fetch.NodeText(matches.First())
		}

		if strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}

func longestContainer(doc *goquery.Document) string {
	var (
		best      string
		bestRunes int
	)
	doc.Find(genericContainers).Each(func(_ int, s *goquery.Selection) {
		text := fetch.NodeText(s)
		if n := utf8.RuneCountInString(text); n > bestRunes {
			best, bestRunes = text, n
		}
	})
	return best
}

// relevantSection keeps the substantive paragraphs from the first one that
// mentions a section keyword onwards. Without a keyword the text is kept.
func relevantSection(text string) string {
	var (
		kept  []string
		found bool
	)
	for _, paragraph := range strings.Split(text, "\n") {
		if !found && hasSectionKeyword(paragraph) {
			found = true
		}
		if found && utf8.RuneCountInString(strings.TrimSpace(paragraph)) > minParagraphRunes {
			kept = append(kept, paragraph)
		}
	}
	if len(kept) == 0 {
		return text
	}
	return strings.Join(kept, "\n")
}

func hasSectionKeyword(paragraph string) bool {
	lower := strings.ToLower(paragraph)
	for _, kw := range sectionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
