// Package ingestion turns a job posting URL into clean posting text. Known
// job boards are read through site adapters; other pages fall back to a
// container scan and finally the page body. Long postings are summarized by
// the remote model.
package ingestion

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/pemistahl/lingua-go"
	"go.uber.org/zap"

	"github.com/jonathan/cv-optimizer/internal/fetch"
	"github.com/jonathan/cv-optimizer/internal/llm"
	"github.com/jonathan/cv-optimizer/internal/prompts"
	"github.com/jonathan/cv-optimizer/internal/types"
)

const (
	// DefaultSummarizeThreshold is the cleaned length, in characters, above
	// which a posting is summarized.
	DefaultSummarizeThreshold = 4000
	// DefaultSummaryInputChars is how much of the posting the summary sees.
	DefaultSummaryInputChars = 4000
	// SummaryMaxTokens bounds the summary answer.
	SummaryMaxTokens = 1500
)

// Options configures an Extractor. Zero values select defaults.
type Options struct {
	Registry *fetch.Registry
	Fetch    *fetch.Options
	// Renderer is used for pages whose HTTP content is too short. Nil
	// disables browser rendering.
	Renderer fetch.Renderer
	// Caller summarizes long postings. Nil disables summarization.
	Caller             llm.Caller
	SummarizeThreshold int
	SummaryInputChars  int
	Logger             *zap.Logger
}

// Extractor fetches job postings. It is safe for concurrent use.
type Extractor struct {
	registry           *fetch.Registry
	fetchOpts          *fetch.Options
	renderer           fetch.Renderer
	caller             llm.Caller
	summarizeThreshold int
	summaryInputChars  int
	detector           lingua.LanguageDetector
	logger             *zap.Logger
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	e := &Extractor{
		registry:           opts.Registry,
		fetchOpts:          opts.Fetch,
		renderer:           opts.Renderer,
		caller:             opts.Caller,
		summarizeThreshold: opts.SummarizeThreshold,
		summaryInputChars:  opts.SummaryInputChars,
		detector:           newLanguageDetector(),
		logger:             opts.Logger,
	}
	if e.registry == nil {
		e.registry = fetch.DefaultRegistry()
	}
	if e.fetchOpts == nil {
		e.fetchOpts = fetch.DefaultOptions()
	}
	if e.summarizeThreshold <= 0 {
		e.summarizeThreshold = DefaultSummarizeThreshold
	}
	if e.summaryInputChars <= 0 {
		e.summaryInputChars = DefaultSummaryInputChars
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Extract fetches rawURL and returns the posting it contains.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (types.PagePosting, error) {
	pageURL, err := fetch.ValidateURL(rawURL)
	if err != nil {
		return types.PagePosting{}, &ValidationError{URL: rawURL, Reason: "malformed URL", Cause: err}
	}

	log := e.logger.With(zap.String("url", rawURL))

	var adapter *fetch.Adapter
	if a, ok := e.registry.Match(pageURL.Host); ok {
		adapter = &a
		log.Debug("matched site adapter", zap.String("adapter", a.Name))
	}

	result, err := fetch.URL(ctx, rawURL, e.fetchOpts)
	if err != nil {
		fetchErr := &FetchError{URL: rawURL, Stage: StageFetch, Cause: err}
		if result != nil {
			fetchErr.StatusCode = result.StatusCode
		}
		return types.PagePosting{}, fetchErr
	}
	log.Debug("fetched page", zap.Int("bytes", len(result.HTML)), zap.Int("status", result.StatusCode))

	html := result.HTML
	text, source, err := extractFromHTML(html, adapter)
	if err != nil {
		return types.PagePosting{}, &ValidationError{URL: rawURL, Reason: "unparseable HTML", Cause: err}
	}

	if e.renderer != nil && fetch.ShouldUseBrowser(text) {
		log.Info("page content too short, rendering in browser",
			zap.Int("chars", utf8.RuneCountInString(text)),
			zap.Int("min_chars", fetch.MinContentLength))
		html, text, source = e.rendered(ctx, rawURL, adapter, html, text, source, log)
	}

	clean := fetch.CleanLines(text)
	if clean == "" {
		return types.PagePosting{}, &ValidationError{URL: rawURL, Reason: "no content found"}
	}

	code, languageName := detectLanguage(e.detector, clean)
	posting := types.PagePosting{
		SourceURL: rawURL,
		RawText:   clean,
		FinalText: clean,
		Adapter:   source,
		Title:     pageTitle(html, pageURL),
		Language:  code,
	}

	if utf8.RuneCountInString(clean) > e.summarizeThreshold {
		if err := e.summarize(ctx, &posting, languageName, log); err != nil {
			return types.PagePosting{}, err
		}
	}

	log.Info("extracted job posting",
		zap.String("adapter", posting.Adapter),
		zap.String("language", posting.Language),
		zap.Int("chars", utf8.RuneCountInString(posting.RawText)),
		zap.Bool("summarized", posting.WasSummarized))
	return posting, nil
}

func extractFromHTML(html string, adapter *fetch.Adapter) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}
	text, source := extractContent(doc, adapter)
	return text, source, nil
}

// rendered re-runs extraction on browser-rendered HTML and keeps whichever
// result is longer. Rendering failures keep the HTTP result.
func (e *Extractor) rendered(ctx context.Context, rawURL string, adapter *fetch.Adapter,
	html, text, source string, log *zap.Logger) (string, string, string) {
	renderedHTML, err := e.renderer.Render(ctx, rawURL)
	if err != nil {
		log.Warn("browser rendering failed, using HTTP content", zap.Error(err))
		return html, text, source
	}

	renderedText, renderedSource, err := extractFromHTML(renderedHTML, adapter)
	if err != nil || utf8.RuneCountInString(renderedText) <= utf8.RuneCountInString(text) {
		return html, text, source
	}
	return renderedHTML, renderedText, renderedSource
}

func (e *Extractor) summarize(ctx context.Context, posting *types.PagePosting, language string, log *zap.Logger) error {
	if e.caller == nil {
		log.Warn("posting exceeds summary threshold but no model is configured")
		return nil
	}

	prompt, err := prompts.Render("summarize.json", "posting", map[string]any{
		"Language": language,
		"Text":     truncateRunes(posting.RawText, e.summaryInputChars),
	})
	if err != nil {
		return &FetchError{URL: posting.SourceURL, Stage: StageSummarize, Cause: err}
	}

	outcome := e.caller.Call(ctx, llm.Request{Prompt: prompt, MaxOutputTokens: SummaryMaxTokens})
	if !outcome.OK() {
		return &FetchError{
			URL:        posting.SourceURL,
			Stage:      StageSummarize,
			StatusCode: outcome.StatusCode,
			Cause:      outcome.Err(),
		}
	}

	summary := strings.TrimSpace(outcome.Text)
	if summary == "" {
		log.Warn("summary was blank, keeping full posting text")
		return nil
	}
	posting.FinalText = summary
	posting.WasSummarized = true
	return nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
