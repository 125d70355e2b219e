package parsing

import (
	"encoding/json"
	"strings"
)

// CandidateFunc extracts the text that most likely holds the JSON answer.
// It reports false when it finds nothing.
type CandidateFunc func(raw string) (string, bool)

// DefaultCandidates is the order in which candidates are tried.
var DefaultCandidates = []CandidateFunc{FencedBlock, BraceBlock, WholeText}

const fence = "```"

// FencedBlock returns the body of the first ``` block. A language tag on
// the opening line is skipped and an unterminated fence runs to the end.
func FencedBlock(raw string) (string, bool) {
	start := strings.Index(raw, fence)
	if start < 0 {
		return "", false
	}
	body := raw[start+len(fence):]

	// Skip an info string such as "json" when it sits alone on the line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		tag := strings.TrimSpace(body[:nl])
		if tag == "" || isLanguageTag(tag) {
			body = body[nl+1:]
		}
	} else if isLanguageTag(strings.TrimSpace(body)) {
		return "", false
	}

	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", false
	}
	return body, true
}

func isLanguageTag(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '+') {
			return false
		}
	}
	return true
}

// BraceBlock returns the first balanced {...} substring. Braces inside JSON
// strings are ignored. When several balanced blocks exist, the first one
// that decodes as a JSON object is preferred.
func BraceBlock(raw string) (string, bool) {
	var first string
	for offset := 0; offset < len(raw); {
		rel := strings.IndexByte(raw[offset:], '{')
		if rel < 0 {
			break
		}
		start := offset + rel
		end, ok := matchBrace(raw, start)
		if !ok {
			offset = start + 1
			continue
		}
		block := raw[start : end+1]
		if first == "" {
			first = block
		}
		var obj map[string]any
		if json.Unmarshal([]byte(block), &obj) == nil {
			return block, true
		}
		offset = start + 1
	}
	if first == "" {
		return "", false
	}
	return first, true
}

// matchBrace returns the index of the brace closing the one at start.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// WholeText returns the trimmed input.
func WholeText(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	return trimmed, trimmed != ""
}
