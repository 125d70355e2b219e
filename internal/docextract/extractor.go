// Package docextract pulls plain text out of PDF documents. It tries a
// whole-document pass first and falls back to reading page by page, so a
// single malformed page does not lose the rest of the document.
package docextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/jonathan/cv-optimizer/internal/types"
)

type strategyFunc func(ctx context.Context, r *pdf.Reader) (string, error)

type strategy struct {
	name types.Strategy
	run  strategyFunc
}

// Extractor reads text from PDF bytes. It holds no per-call state and is
// safe for concurrent use.
type Extractor struct {
	maxPages   int
	logger     *zap.Logger
	strategies []strategy
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxPages stops the page-by-page strategy after n pages. Zero reads all.
func WithMaxPages(n int) Option {
	return func(e *Extractor) {
		if n >= 0 {
			e.maxPages = n
		}
	}
}

// WithLogger sets the logger used for strategy failures.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New returns an Extractor with the default strategy chain.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.strategies = []strategy{
		{name: types.StrategyPrimary, run: wholeDocumentText},
		{name: types.StrategyFallbackDetailed, run: e.pageByPageText},
	}
	return e
}

// Extract returns the text of the PDF in data.
//
// A document that opens but yields no text is not an error: the result has
// IsEmpty set. An error is returned only when the container cannot be opened
// or every strategy failed.
func (e *Extractor) Extract(ctx context.Context, data []byte) (types.ExtractionResult, error) {
	if len(data) == 0 {
		return types.ExtractionResult{}, &ExtractionError{Stage: StageOpen, Cause: ErrEmptyDocument}
	}

	reader, err := openReader(data)
	if err != nil {
		return types.ExtractionResult{}, &ExtractionError{Stage: StageOpen, Cause: err}
	}

	if extractionRestricted(reader) {
		e.logger.Info("document forbids text extraction")
		return types.ExtractionResult{
			Text:         RestrictedText,
			StrategyUsed: types.StrategyNone,
			Restricted:   true,
		}, nil
	}

	pages := countPages(reader)
	var (
		failures []error
		lastRun  = types.StrategyNone
	)

	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return types.ExtractionResult{}, &ExtractionError{Stage: StageExtract, Cause: err}
		}

		text, err := runStrategy(ctx, s, reader)
		if err != nil {
			e.logger.Warn("extraction strategy failed",
				zap.String("strategy", string(s.name)),
				zap.Error(err))
			failures = append(failures, fmt.Errorf("%s: %w", s.name, err))
			continue
		}

		lastRun = s.name
		if strings.TrimSpace(text) != "" {
			e.logger.Debug("document text extracted",
				zap.String("strategy", string(s.name)),
				zap.Int("pages", pages),
				zap.Int("chars", len(text)))
			return types.ExtractionResult{Text: text, StrategyUsed: s.name, Pages: pages}, nil
		}
		e.logger.Debug("extraction strategy returned no text", zap.String("strategy", string(s.name)))
	}

	if len(failures) == len(e.strategies) {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
		}
		return types.ExtractionResult{}, &ExtractionError{Stage: StageExtract, Cause: errors.Join(failures...)}
	}

	return types.ExtractionResult{StrategyUsed: lastRun, IsEmpty: true, Pages: pages}, nil
}

func openReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("malformed document: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func countPages(r *pdf.Reader) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	return r.NumPage()
}

func runStrategy(ctx context.Context, s strategy, r *pdf.Reader) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("panic: %v", rec)
		}
	}()
	return s.run(ctx, r)
}

func wholeDocumentText(_ context.Context, r *pdf.Reader) (string, error) {
	rd, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rd); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *Extractor) pageByPageText(ctx context.Context, r *pdf.Reader) (string, error) {
	total := r.NumPage()
	if e.maxPages > 0 && total > e.maxPages {
		total = e.maxPages
	}

	var (
		buf      strings.Builder
		read     int
		failures int
	)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := pageText(r, i)
		if err != nil {
			failures++
			e.logger.Warn("skipping unreadable page", zap.Int("page", i), zap.Error(err))
			continue
		}
		read++
		buf.WriteString(text)
	}

	if read == 0 && failures > 0 {
		return "", fmt.Errorf("all %d pages failed", failures)
	}
	return buf.String(), nil
}

// pageText reads one page; null pages yield empty text.
func pageText(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("panic: %v", rec)
		}
	}()

	page := r.Page(num)
	if page.V.IsNull() {
		return "", nil
	}

	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		f := page.Font(name)
		fonts[name] = &f
	}
	return page.GetPlainText(fonts)
}
