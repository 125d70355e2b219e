package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cv-optimizer/internal/types"
)

// AnalyzeRequest names the inputs of one analysis. Document takes priority
// over CVText, and JobDescription over JobURL.
type AnalyzeRequest struct {
	Document       []byte
	CVText         string
	JobURL         string
	JobDescription string
	OnProgress     ProgressCallback
}

// Analysis is the result of Analyze.
type Analysis struct {
	RequestID      string                    `json:"request_id"`
	Document       *types.ExtractionResult   `json:"document,omitempty"`
	CVText         string                    `json:"cv_text,omitempty"`
	Posting        *types.PagePosting        `json:"posting,omitempty"`
	JobDescription string                    `json:"job_description,omitempty"`
	Keywords       *types.KeywordCategorySet `json:"keywords,omitempty"`
}

// Analyze extracts the CV document and the job posting concurrently, then
// the keywords of the resulting job description.
func (p *Pipeline) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	r := p.newRun("analyze", req.OnProgress)

	if len(req.Document) == 0 && isBlank(req.CVText) && isBlank(req.JobURL) && isBlank(req.JobDescription) {
		return nil, &TaskError{
			Task:   "analyze",
			Fields: []string{"cv_file", "cv_text", "job_url", "job_description"},
			Reason: "nothing to analyze",
		}
	}

	analysis := &Analysis{
		RequestID:      r.id,
		CVText:         req.CVText,
		JobDescription: req.JobDescription,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if len(req.Document) > 0 {
		g.Go(func() error {
			result, err := p.extractDocument(gCtx, r, req.Document)
			if err != nil {
				return fmt.Errorf("document extraction failed: %w", err)
			}
			analysis.Document = &result
			if !result.IsEmpty && !result.Restricted {
				analysis.CVText = result.Text
			}
			return nil
		})
	}

	if !isBlank(req.JobURL) && isBlank(req.JobDescription) {
		g.Go(func() error {
			posting, err := p.extractPosting(gCtx, r, req.JobURL)
			if err != nil {
				return fmt.Errorf("posting extraction failed: %w", err)
			}
			analysis.Posting = &posting
			analysis.JobDescription = posting.FinalText
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.log.Error("analysis failed", zap.Error(err))
		return nil, err
	}

	if !isBlank(analysis.JobDescription) {
		set, err := p.extractKeywords(ctx, r, analysis.JobDescription)
		if err != nil {
			return nil, err
		}
		analysis.Keywords = &set
	}

	r.log.Info("analysis completed",
		zap.Bool("has_document", analysis.Document != nil),
		zap.Bool("has_posting", analysis.Posting != nil),
		zap.Bool("has_keywords", analysis.Keywords != nil))
	return analysis, nil
}
