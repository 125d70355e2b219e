package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-optimizer/internal/fetch"
	"github.com/jonathan/cv-optimizer/internal/llm"
)

func servePage(t *testing.T, status int, html string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

type recordingCaller struct {
	outcome  llm.Outcome
	calls    int32
	requests []llm.Request
}

func (c *recordingCaller) Call(_ context.Context, req llm.Request) llm.Outcome {
	atomic.AddInt32(&c.calls, 1)
	c.requests = append(c.requests, req)
	return c.outcome
}

type stubRenderer struct {
	html string
	err  error
}

func (r stubRenderer) Render(context.Context, string) (string, error) {
	return r.html, r.err
}

// localRegistry routes the httptest host through a pracuj-style adapter.
func localRegistry() *fetch.Registry {
	return fetch.NewRegistry(fetch.Adapter{
		Name:  "local",
		Hosts: []string{"127.0.0.1"},
		Selectors: []fetch.Selector{{
			CSS:     `[data-test="section-benefit-expectations-text"], [data-test="section-description-text"]`,
			JoinAll: true,
		}},
		Noise: []string{".apply-box"},
	})
}

const genericPage = `<!DOCTYPE html>
<html><head><title>Go Developer - Acme</title></head>
<body>
<nav>Home | Jobs</nav>
<div class="sidebar">Other offers</div>
<div class="job-description">
  <h2>Requirements</h2>
  <ul><li>Go   5+ years</li><li>PostgreSQL</li></ul>
</div>
<footer>Copyright</footer>
</body></html>`

func TestExtract_GenericContainer(t *testing.T) {
	url := servePage(t, http.StatusOK, genericPage)

	posting, err := New(Options{}).Extract(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, SourceGeneric, posting.Adapter)
	assert.Equal(t, "Requirements\nGo 5+ years\nPostgreSQL", posting.RawText)
	assert.Equal(t, posting.RawText, posting.FinalText)
	assert.False(t, posting.WasSummarized)
	assert.Equal(t, url, posting.SourceURL)
	assert.Contains(t, posting.Title, "Go Developer")
}

func TestExtract_AdapterJoinsAllSections(t *testing.T) {
	url := servePage(t, http.StatusOK, `<html><body>
		<div class="job-description">generic container text that is much longer than the adapter sections</div>
		<section data-test="section-description-text"><p>Budowa API w Go</p></section>
		<div class="apply-box">Aplikuj teraz</div>
		<section data-test="section-benefit-expectations-text"><p>Znajomość Kubernetes</p></section>
	</body></html>`)

	posting, err := New(Options{Registry: localRegistry()}).Extract(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, "local", posting.Adapter)
	assert.Equal(t, "Budowa API w Go\nZnajomość Kubernetes", posting.RawText)
}

func TestExtract_AdapterWithoutMatchFallsBack(t *testing.T) {
	url := servePage(t, http.StatusOK, genericPage)

	posting, err := New(Options{Registry: localRegistry()}).Extract(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, SourceGeneric, posting.Adapter)
}

func TestExtract_BodyFallbackStripsChrome(t *testing.T) {
	url := servePage(t, http.StatusOK, `<html><body>
		<header>Site header</header>
		<nav>Menu</nav>
		<p>We are hiring a backend engineer.</p>
		<aside>Related</aside>
		<form>Apply</form>
		<footer>Footer</footer>
	</body></html>`)

	posting, err := New(Options{}).Extract(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, SourceBody, posting.Adapter)
	assert.Equal(t, "We are hiring a backend engineer.", posting.RawText)
}

func TestExtract_NoContent(t *testing.T) {
	url := servePage(t, http.StatusOK, `<html><body><nav>Only navigation</nav><script>x()</script></body></html>`)

	_, err := New(Options{}).Extract(context.Background(), url)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "no content found", validationErr.Reason)
}

func TestExtract_MalformedURL(t *testing.T) {
	for _, raw := range []string{"", "example.com/job", "mailto:hr@example.com", "http://"} {
		t.Run(raw, func(t *testing.T) {
			_, err := New(Options{}).Extract(context.Background(), raw)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, "malformed URL", validationErr.Reason)
		})
	}
}

func TestExtract_HTTPStatusIsFetchError(t *testing.T) {
	url := servePage(t, http.StatusNotFound, "gone")

	_, err := New(Options{}).Extract(context.Background(), url)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, StageFetch, fetchErr.Stage)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func longPosting() string {
	var sb strings.Builder
	sb.WriteString("<html><body><article>")
	for i := 0; i < 60; i++ {
		sb.WriteString("<p>Responsibilities include designing reliable distributed services in Go.</p>")
	}
	sb.WriteString("</article></body></html>")
	return sb.String()
}

func TestExtract_SummarizesLongPosting(t *testing.T) {
	url := servePage(t, http.StatusOK, longPosting())
	caller := &recordingCaller{outcome: llm.Success("  Summary: Go services role.  ")}

	posting, err := New(Options{Caller: caller}).Extract(context.Background(), url)
	require.NoError(t, err)

	assert.True(t, posting.WasSummarized)
	assert.Equal(t, "Summary: Go services role.", posting.FinalText)
	assert.Greater(t, utf8.RuneCountInString(posting.RawText), DefaultSummarizeThreshold)

	require.Len(t, caller.requests, 1)
	req := caller.requests[0]
	assert.Equal(t, SummaryMaxTokens, req.MaxOutputTokens)
	assert.Contains(t, req.Prompt, "TOP 5 keywords")
	assert.NotContains(t, req.Prompt, posting.RawText)
}

func TestExtract_ShortPostingIsNotSummarized(t *testing.T) {
	url := servePage(t, http.StatusOK, genericPage)
	caller := &recordingCaller{outcome: llm.Success("unused")}

	_, err := New(Options{Caller: caller}).Extract(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&caller.calls))
}

func TestExtract_BlankSummaryKeepsRawText(t *testing.T) {
	url := servePage(t, http.StatusOK, longPosting())
	caller := &recordingCaller{outcome: llm.Success("   ")}

	posting, err := New(Options{Caller: caller}).Extract(context.Background(), url)
	require.NoError(t, err)

	assert.False(t, posting.WasSummarized)
	assert.Equal(t, posting.RawText, posting.FinalText)
}

func TestExtract_SummaryFailureIsFetchError(t *testing.T) {
	tests := []struct {
		name     string
		outcome  llm.Outcome
		sentinel error
	}{
		{name: "rate limited", outcome: llm.RateLimited("slow down", 0), sentinel: llm.ErrRateLimited},
		{name: "transient", outcome: llm.Transient("503"), sentinel: llm.ErrTransient},
		{name: "fatal", outcome: llm.Fatal("bad key"), sentinel: llm.ErrFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := servePage(t, http.StatusOK, longPosting())

			_, err := New(Options{Caller: &recordingCaller{outcome: tt.outcome}}).Extract(context.Background(), url)

			var fetchErr *FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, StageSummarize, fetchErr.Stage)
			assert.True(t, errors.Is(err, tt.sentinel))
		})
	}
}

func TestExtract_CustomSummarizeThreshold(t *testing.T) {
	url := servePage(t, http.StatusOK, genericPage)
	caller := &recordingCaller{outcome: llm.Success("short summary")}

	posting, err := New(Options{Caller: caller, SummarizeThreshold: 10}).Extract(context.Background(), url)
	require.NoError(t, err)
	assert.True(t, posting.WasSummarized)
}

func TestExtract_BrowserFallbackForThinPages(t *testing.T) {
	url := servePage(t, http.StatusOK, `<html><body><div id="root">Loading...</div></body></html>`)
	rendered := `<html><body><article><p>` + strings.Repeat("Rendered posting content. ", 30) + `</p></article></body></html>`

	posting, err := New(Options{Renderer: stubRenderer{html: rendered}}).Extract(context.Background(), url)
	require.NoError(t, err)
	assert.Contains(t, posting.RawText, "Rendered posting content.")
}

func TestExtract_BrowserFailureKeepsHTTPContent(t *testing.T) {
	url := servePage(t, http.StatusOK, `<html><body><p>Short but real.</p></body></html>`)

	posting, err := New(Options{Renderer: stubRenderer{err: errors.New("no chrome")}}).Extract(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "Short but real.", posting.RawText)
}

func TestExtract_DetectsLanguage(t *testing.T) {
	url := servePage(t, http.StatusOK, `<html><body><article>
		<p>Poszukujemy doświadczonego programisty, który dołączy do naszego zespołu w Warszawie.</p>
		<p>Wymagania: znajomość języka Go, doświadczenie w pracy z bazami danych oraz komunikatywność.</p>
	</article></body></html>`)

	posting, err := New(Options{}).Extract(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "pl", posting.Language)
}
