package types

// PagePosting is the job posting text isolated from a single web page.
type PagePosting struct {
	SourceURL string `json:"source_url"`
	RawText   string `json:"raw_text"`
	// FinalText equals RawText unless WasSummarized is set.
	FinalText     string `json:"final_text"`
	WasSummarized bool   `json:"was_summarized"`
	// Adapter names the extraction path that produced RawText.
	Adapter  string `json:"adapter"`
	Title    string `json:"title,omitempty"`
	Language string `json:"language,omitempty"`
}
