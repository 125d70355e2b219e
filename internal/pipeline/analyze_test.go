package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-optimizer/internal/llm"
	"github.com/jonathan/cv-optimizer/internal/types"
)

func TestAnalyze_DocumentAndPosting(t *testing.T) {
	caller := newScriptedCaller(llm.Success(polishKeywords))
	docs := &fakeDocuments{result: types.ExtractionResult{Text: "Jane Doe CV", StrategyUsed: types.StrategyPrimary, Pages: 1}}
	postings := &fakePostings{posting: types.PagePosting{RawText: "raw", FinalText: "Go developer wanted", Adapter: "generic"}}
	recorder := &progressRecorder{}
	p := New(Deps{Documents: docs, Postings: postings, Caller: caller})

	analysis, err := p.Analyze(context.Background(), AnalyzeRequest{
		Document:   []byte("%PDF-1.4"),
		CVText:     "ignored",
		JobURL:     "https://jobs.example.com/1",
		OnProgress: recorder.record,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, analysis.RequestID)
	assert.Equal(t, "Jane Doe CV", analysis.CVText)
	require.NotNil(t, analysis.Posting)
	assert.Equal(t, "Go developer wanted", analysis.JobDescription)
	require.NotNil(t, analysis.Keywords)
	assert.Equal(t, 4, analysis.Keywords.Len())

	req, ok := caller.last("Go developer wanted")
	require.True(t, ok)
	assert.Equal(t, KeywordMaxTokens, req.MaxOutputTokens)

	steps := recorder.steps()
	assert.ElementsMatch(t, []string{StepDocument, StepPosting, StepKeywords}, steps)
	assert.Equal(t, StepKeywords, steps[len(steps)-1])
	for _, e := range recorder.events {
		assert.Equal(t, analysis.RequestID, e.RequestID)
	}
}

func TestAnalyze_EmptyDocumentKeepsCVText(t *testing.T) {
	docs := &fakeDocuments{result: types.ExtractionResult{StrategyUsed: types.StrategyFallbackDetailed, IsEmpty: true}}
	p := New(Deps{Documents: docs})

	analysis, err := p.Analyze(context.Background(), AnalyzeRequest{Document: []byte("%PDF"), CVText: "typed CV"})
	require.NoError(t, err)
	assert.Equal(t, "typed CV", analysis.CVText)
	require.NotNil(t, analysis.Document)
	assert.True(t, analysis.Document.IsEmpty)
	assert.Nil(t, analysis.Keywords)
}

func TestAnalyze_DescriptionSkipsPosting(t *testing.T) {
	postings := &fakePostings{}
	p := New(Deps{Postings: postings, Caller: newScriptedCaller(llm.Success(polishKeywords))})

	analysis, err := p.Analyze(context.Background(), AnalyzeRequest{
		JobURL:         "https://jobs.example.com/1",
		JobDescription: "given description",
	})
	require.NoError(t, err)
	assert.Nil(t, analysis.Posting)
	assert.Empty(t, postings.urls)
	assert.NotNil(t, analysis.Keywords)
}

func TestAnalyze_ComponentFailure(t *testing.T) {
	boom := errors.New("fetch failed")
	caller := newScriptedCaller(llm.Success(polishKeywords))
	p := New(Deps{
		Documents: &fakeDocuments{result: types.ExtractionResult{Text: "cv", StrategyUsed: types.StrategyPrimary}},
		Postings:  &fakePostings{err: boom},
		Caller:    caller,
	})

	_, err := p.Analyze(context.Background(), AnalyzeRequest{Document: []byte("%PDF"), JobURL: "https://jobs.example.com/1"})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, caller.calls())
}

func TestAnalyze_KeywordCallFailure(t *testing.T) {
	p := New(Deps{Caller: newScriptedCaller(llm.Fatal("bad key"))})

	_, err := p.Analyze(context.Background(), AnalyzeRequest{JobDescription: "Go role"})
	assert.ErrorIs(t, err, llm.ErrFatal)
}

func TestAnalyze_NothingToAnalyze(t *testing.T) {
	p := New(Deps{})

	_, err := p.Analyze(context.Background(), AnalyzeRequest{CVText: "  "})
	var taskErr *TaskError
	assert.ErrorAs(t, err, &taskErr)
}
