package ingestion

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/pemistahl/lingua-go"
)

// postingLanguages are the languages the detector chooses between.
var postingLanguages = []lingua.Language{
	lingua.English,
	lingua.Polish,
	lingua.German,
	lingua.French,
	lingua.Spanish,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
	lingua.Czech,
	lingua.Ukrainian,
}

func newLanguageDetector() lingua.LanguageDetector {
	return lingua.NewLanguageDetectorBuilder().
		FromLanguages(postingLanguages...).
		Build()
}

// detectLanguage returns the lowercase ISO 639-1 code and English name of
// the language of text, or empty strings when it cannot be told.
func detectLanguage(detector lingua.LanguageDetector, text string) (code, name string) {
	if detector == nil || strings.TrimSpace(text) == "" {
		return "", ""
	}
	language, ok := detector.DetectLanguageOf(text)
	if !ok {
		return "", ""
	}
	return strings.ToLower(language.IsoCode639_1().String()), language.String()
}

// pageTitle prefers the readability title and falls back to <title>.
func pageTitle(html string, pageURL *url.URL) string {
	parser := readability.NewParser()
	if article, err := parser.Parse(strings.NewReader(html), pageURL); err == nil {
		if title := strings.TrimSpace(article.Title); title != "" {
			return title
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
