// Package pipeline wires document extraction, posting extraction, keyword
// extraction and the generation tasks into request-level operations.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/cv-optimizer/internal/llm"
	"github.com/jonathan/cv-optimizer/internal/parsing"
	"github.com/jonathan/cv-optimizer/internal/prompts"
	"github.com/jonathan/cv-optimizer/internal/schemas"
	"github.com/jonathan/cv-optimizer/internal/types"
)

// Keyword extraction call settings.
const (
	KeywordMaxTokens   = 1500
	KeywordTemperature = 0.3
)

// Step names reported in progress events.
const (
	StepDocument  = "document"
	StepPosting   = "posting"
	StepKeywords  = "keywords"
	StepDetection = "detection"
	StepTask      = "task"
	StepComplete  = "complete"
)

// Step categories reported in progress events.
const (
	CategoryExtraction = "extraction"
	CategoryAnalysis   = "analysis"
	CategoryGeneration = "generation"
)

// ProgressEvent represents a progress update during a request.
type ProgressEvent struct {
	Step      string `json:"step"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Content   any    `json:"content,omitempty"`
}

// ProgressCallback is called when request progress occurs.
type ProgressCallback func(event ProgressEvent)

// DocumentExtractor turns document bytes into text.
type DocumentExtractor interface {
	Extract(ctx context.Context, data []byte) (types.ExtractionResult, error)
}

// PostingExtractor turns a job posting URL into posting text.
type PostingExtractor interface {
	Extract(ctx context.Context, url string) (types.PagePosting, error)
}

// Deps are the components a Pipeline orchestrates. Caller is expected to
// already retry transient failures.
type Deps struct {
	Documents DocumentExtractor
	Postings  PostingExtractor
	Caller    llm.Caller
	Parser    *parsing.Parser
	Wire      types.WireSchema
	Logger    *zap.Logger
}

// Pipeline runs requests against its components. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	documents DocumentExtractor
	postings  PostingExtractor
	caller    llm.Caller
	parser    *parsing.Parser
	wire      types.WireSchema
	logger    *zap.Logger
}

// New creates a Pipeline. A zero Wire selects the Polish wire schema.
func New(deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := deps.Parser
	if parser == nil {
		parser = parsing.NewParser(logger)
	}
	wire := deps.Wire
	if wire.Name == "" {
		wire = types.PolishWire
	}
	return &Pipeline{
		documents: deps.Documents,
		postings:  deps.Postings,
		caller:    deps.Caller,
		parser:    parser,
		wire:      wire,
		logger:    logger,
	}
}

// Wire returns the wire schema keyword sets are encoded with.
func (p *Pipeline) Wire() types.WireSchema {
	return p.wire
}

// run carries the per-request id, logger and progress callback.
type run struct {
	id         string
	log        *zap.Logger
	mu         sync.Mutex
	onProgress ProgressCallback
}

func (p *Pipeline) newRun(operation string, onProgress ProgressCallback) *run {
	id := uuid.NewString()
	return &run{
		id:         id,
		log:        p.logger.With(zap.String("request_id", id), zap.String("operation", operation)),
		onProgress: onProgress,
	}
}

// emit calls the progress callback if configured. Emissions from
// concurrent branches are serialized.
func (r *run) emit(step, category, message string, content any) {
	if r.onProgress == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onProgress(ProgressEvent{
		Step:      step,
		Category:  category,
		Message:   message,
		RequestID: r.id,
		Content:   content,
	})
}

// ExtractDocument extracts text from a document.
func (p *Pipeline) ExtractDocument(ctx context.Context, data []byte) (types.ExtractionResult, error) {
	return p.extractDocument(ctx, p.newRun("extract_document", nil), data)
}

func (p *Pipeline) extractDocument(ctx context.Context, r *run, data []byte) (types.ExtractionResult, error) {
	if p.documents == nil {
		return types.ExtractionResult{}, fmt.Errorf("document extraction is not configured")
	}

	result, err := p.documents.Extract(ctx, data)
	if err != nil {
		r.log.Error("document extraction failed", zap.Int("bytes", len(data)), zap.Error(err))
		return types.ExtractionResult{}, err
	}

	fields := []zap.Field{
		zap.String("strategy", string(result.StrategyUsed)),
		zap.Int("pages", result.Pages),
		zap.Int("chars", len(result.Text)),
	}
	switch {
	case result.Restricted:
		r.log.Warn("document does not allow text extraction", fields...)
	case result.IsEmpty:
		r.log.Warn("document extraction produced no text", fields...)
	default:
		r.log.Info("document extracted", fields...)
	}
	r.emit(StepDocument, CategoryExtraction,
		fmt.Sprintf("Extracted %d characters using %s", len(result.Text), result.StrategyUsed), result)
	return result, nil
}

// ExtractPosting extracts the job posting text behind url.
func (p *Pipeline) ExtractPosting(ctx context.Context, url string) (types.PagePosting, error) {
	return p.extractPosting(ctx, p.newRun("extract_posting", nil), url)
}

func (p *Pipeline) extractPosting(ctx context.Context, r *run, url string) (types.PagePosting, error) {
	if p.postings == nil {
		return types.PagePosting{}, fmt.Errorf("posting extraction is not configured")
	}

	posting, err := p.postings.Extract(ctx, url)
	if err != nil {
		r.log.Error("posting extraction failed", zap.String("url", url), zap.Error(err))
		return types.PagePosting{}, err
	}

	r.log.Info("posting extracted",
		zap.String("url", posting.SourceURL),
		zap.String("adapter", posting.Adapter),
		zap.Bool("summarized", posting.WasSummarized),
		zap.Int("chars", len(posting.FinalText)))
	r.emit(StepPosting, CategoryExtraction,
		fmt.Sprintf("Extracted job posting from %s", posting.SourceURL), posting)
	return posting, nil
}

// ExtractKeywords asks the remote endpoint for the categorized keywords of
// a job description. A reply that cannot be parsed yields the failure
// payload rather than an error; only failed calls are returned as errors.
func (p *Pipeline) ExtractKeywords(ctx context.Context, jobDescription string) (types.KeywordCategorySet, error) {
	return p.extractKeywords(ctx, p.newRun("extract_keywords", nil), jobDescription)
}

func (p *Pipeline) extractKeywords(ctx context.Context, r *run, jobDescription string) (types.KeywordCategorySet, error) {
	if isBlank(jobDescription) {
		return types.KeywordCategorySet{}, &TaskError{Task: "keywords", Fields: []string{"job_description"}, Reason: "job description is required"}
	}
	if p.caller == nil {
		return types.KeywordCategorySet{}, fmt.Errorf("remote caller is not configured")
	}

	prompt, err := p.keywordPrompt(jobDescription)
	if err != nil {
		return types.KeywordCategorySet{}, err
	}

	outcome := p.caller.Call(ctx, llm.Request{
		Prompt:          prompt,
		MaxOutputTokens: KeywordMaxTokens,
		Temperature:     llm.Temperature(KeywordTemperature),
	})
	if !outcome.OK() {
		r.log.Error("keyword extraction call failed",
			zap.Stringer("outcome", outcome.Kind),
			zap.String("detail", outcome.Detail))
		return types.KeywordCategorySet{}, fmt.Errorf("keyword extraction: %w", outcome.Err())
	}

	set := p.parser.Parse(outcome.Text)
	if err := schemas.ValidateKeywordSet(p.wire, set); err != nil {
		r.log.Error("keyword set does not match schema", zap.String("wire", p.wire.Name), zap.Error(err))
	}
	if err := set.Validate(); err != nil {
		r.log.Error("keyword set has invalid entries", zap.Error(err))
	}

	if set.IsFailure() {
		r.log.Warn("keyword reply could not be parsed", zap.String("reason", set.FailureReason()))
	} else {
		r.log.Info("keywords extracted", zap.Int("keywords", set.Len()))
	}
	r.emit(StepKeywords, CategoryAnalysis, fmt.Sprintf("Extracted %d keywords", set.Len()), set)
	return set, nil
}

// keywordPrompt renders the keyword task in the pipeline's wire naming and
// appends the expected JSON structure.
func (p *Pipeline) keywordPrompt(jobDescription string) (string, error) {
	description, err := prompts.Render("keywords.json", "extract", map[string]string{
		"TechnicalSkills":     p.wire.Key(types.CategoryTechnicalSkills),
		"RequiredExperience":  p.wire.Key(types.CategoryRequiredExperience),
		"PersonalityTraits":   p.wire.Key(types.CategoryPersonalityTraits),
		"KeyResponsibilities": p.wire.Key(types.CategoryKeyResponsibilities),
		"IndustryTerms":       p.wire.Key(types.CategoryIndustryTerms),
	})
	if err != nil {
		return "", fmt.Errorf("failed to build keyword prompt: %w", err)
	}
	return llm.BuildExtractionPrompt(llm.KeywordSchema(p.wire, description), jobDescription), nil
}
