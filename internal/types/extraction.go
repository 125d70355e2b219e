// Package types provides the data model shared by the extraction pipeline.
package types

// Strategy identifies which document extraction pass produced a result.
type Strategy string

const (
	// StrategyPrimary is the whole-document extraction call.
	StrategyPrimary Strategy = "primary"
	// StrategyFallbackDetailed is the page-by-page pass.
	StrategyFallbackDetailed Strategy = "fallback_detailed"
	// StrategyNone marks results produced without running any strategy.
	StrategyNone Strategy = "none"
)

// ExtractionResult is the plain text recovered from one document.
type ExtractionResult struct {
	Text         string   `json:"text"`
	StrategyUsed Strategy `json:"strategy_used"`
	// IsEmpty is set when every strategy ran but none found text, which is
	// expected for scanned documents and is not an error.
	IsEmpty bool `json:"is_empty"`
	// Restricted is set when the document forbids text extraction. Text then
	// holds a fixed notice instead of document content.
	Restricted bool `json:"restricted,omitempty"`
	Pages      int  `json:"pages"`
}
