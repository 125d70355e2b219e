package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/jonathan/cv-optimizer/internal/llm"
	"github.com/jonathan/cv-optimizer/internal/types"
)

const polishKeywords = `{
  "umiejetnosci_techniczne": [{"slowo": "Go", "waga": 5}, {"slowo": "SQL", "waga": 3}],
  "wymagane_doswiadczenie": [{"slowo": "5 lat", "waga": 4}],
  "cechy_osobowosci": [],
  "kluczowe_obowiazki": [{"slowo": "Code review", "waga": 2}],
  "branzowe_terminy": []
}`

// scriptedCaller answers by matching prompt fragments and records every request.
type scriptedCaller struct {
	mu       sync.Mutex
	requests []llm.Request
	replies  map[string]llm.Outcome
	fallback llm.Outcome
}

func newScriptedCaller(fallback llm.Outcome) *scriptedCaller {
	return &scriptedCaller{replies: map[string]llm.Outcome{}, fallback: fallback}
}

func (c *scriptedCaller) on(fragment string, outcome llm.Outcome) *scriptedCaller {
	c.replies[fragment] = outcome
	return c
}

func (c *scriptedCaller) Call(_ context.Context, req llm.Request) llm.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	for fragment, outcome := range c.replies {
		if strings.Contains(req.Prompt, fragment) {
			return outcome
		}
	}
	return c.fallback
}

func (c *scriptedCaller) calls() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.requests...)
}

// last returns the last request whose prompt contains fragment.
func (c *scriptedCaller) last(fragment string) (llm.Request, bool) {
	calls := c.calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if strings.Contains(calls[i].Prompt, fragment) {
			return calls[i], true
		}
	}
	return llm.Request{}, false
}

type fakeDocuments struct {
	result types.ExtractionResult
	err    error
	calls  int
}

func (f *fakeDocuments) Extract(context.Context, []byte) (types.ExtractionResult, error) {
	f.calls++
	return f.result, f.err
}

type fakePostings struct {
	posting types.PagePosting
	err     error
	mu      sync.Mutex
	urls    []string
}

func (f *fakePostings) Extract(_ context.Context, url string) (types.PagePosting, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	if f.err != nil {
		return types.PagePosting{}, f.err
	}
	posting := f.posting
	posting.SourceURL = url
	return posting, nil
}

// progressRecorder collects progress events.
type progressRecorder struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (p *progressRecorder) record(e ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *progressRecorder) steps() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	steps := make([]string, 0, len(p.events))
	for _, e := range p.events {
		steps = append(steps, e.Step)
	}
	return steps
}
