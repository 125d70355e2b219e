package fetch

import (
	"strings"
)

// Selector is one CSS query an adapter tries. JoinAll joins the text of every
// match; otherwise only the first match is used.
type Selector struct {
	CSS     string
	JoinAll bool
}

// Adapter knows where a job board keeps the posting body.
type Adapter struct {
	Name      string
	Hosts     []string
	Selectors []Selector
	Noise     []string
}

// Matches reports whether host belongs to the adapter.
func (a Adapter) Matches(host string) bool {
	host = strings.ToLower(host)
	for _, h := range a.Hosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}

// Registry is an ordered, read-only list of adapters.
type Registry struct {
	adapters []Adapter
}

// NewRegistry builds a registry from adapters, in priority order.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: append([]Adapter(nil), adapters...)}
}

// With returns a new registry with extra appended after the existing adapters.
func (r *Registry) With(extra ...Adapter) *Registry {
	all := make([]Adapter, 0, len(r.adapters)+len(extra))
	all = append(all, r.adapters...)
	all = append(all, extra...)
	return &Registry{adapters: all}
}

// Match returns the first adapter whose host pattern occurs in host.
func (r *Registry) Match(host string) (Adapter, bool) {
	if r == nil {
		return Adapter{}, false
	}
	for _, a := range r.adapters {
		if a.Matches(host) {
			return a, true
		}
	}
	return Adapter{}, false
}

// Names lists adapter names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		names[i] = a.Name
	}
	return names
}

// commonNoise removes application forms, legal boilerplate and share widgets
// that ATS pages embed next to the description.
var commonNoise = []string{
	"form",
	"#application-form",
	".application-form",
	".application--container",
	".apply-button-container",
	"[data-testid='application-form']",
	".voluntary-disclosure",
	".eeo-statement",
	".eeo-section",
	".legal-disclosure",
	".self-identification",
	".social-share",
	".share-buttons",
	".cookie-banner",
	".cookie-consent",
	".gdpr-notice",
}

func withCommonNoise(extra ...string) []string {
	return append(append([]string(nil), commonNoise...), extra...)
}

func first(css ...string) []Selector {
	sels := make([]Selector, len(css))
	for i, c := range css {
		sels[i] = Selector{CSS: c}
	}
	return sels
}

// DefaultRegistry returns the built-in job board adapters.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Adapter{
			Name:      "linkedin",
			Hosts:     []string{"linkedin.com"},
			Selectors: first(".description__text, .show-more-less-html, .jobs-description__content"),
		},
		Adapter{
			Name:      "indeed",
			Hosts:     []string{"indeed.com"},
			Selectors: first("#jobDescriptionText"),
		},
		Adapter{
			Name:  "pracuj",
			Hosts: []string{"pracuj.pl"},
			Selectors: []Selector{{
				CSS:     `[data-test="section-benefit-expectations-text"], [data-test="section-description-text"]`,
				JoinAll: true,
			}},
		},
		Adapter{
			Name:      "olx",
			Hosts:     []string{"olx.pl"},
			Selectors: first(".offer-description, .offer-content, .description"),
		},
		Adapter{
			Name:      "praca",
			Hosts:     []string{"praca.pl"},
			Selectors: first(".offer-description, .offer-content, .description"),
		},
		Adapter{
			Name:  "greenhouse",
			Hosts: []string{"greenhouse.io"},
			Selectors: first(
				".job__description.body",
				".job__description",
				".job-description__content",
				"#content",
				".job-post-container",
			),
			Noise: withCommonNoise(
				".application--wrapper",
				".voluntary-self-id",
				"#usa_self_id_section",
				".post-apply",
			),
		},
		Adapter{
			Name:  "lever",
			Hosts: []string{"lever.co"},
			Selectors: first(
				".posting-page",
				".section-wrapper.page-full-width",
				".posting-description",
				".content",
			),
			Noise: withCommonNoise(".apply-section", ".lever-application-form", ".posting-apply"),
		},
		Adapter{
			Name:  "workday",
			Hosts: []string{"myworkdayjobs.com", "workday.com"},
			Selectors: first(
				"[data-automation-id='jobDescription']",
				".job-description",
			),
			Noise: withCommonNoise("[data-automation-id='applyButton']", ".application-section"),
		},
	)
}
