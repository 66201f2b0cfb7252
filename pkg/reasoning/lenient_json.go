package reasoning

import (
	"encoding/json"
	"strings"
)

// ParseLenientJSON implements the three-fallback parse strategy spec §4.8/
// §4.9 mandates, grounded exactly in original_source's
// workers/evaluation/worker.py::parse_evaluation and
// workers/extraction/worker.py::parse_extraction: try a raw parse, then
// strip markdown code fences and retry, then take the substring from the
// first '{' to the last '}' and retry. Returns false if all three fail —
// callers are expected to fall back to a well-defined empty record rather
// than treat this as an error (spec §9).
func ParseLenientJSON(raw string, out interface{}) bool {
	if json.Unmarshal([]byte(raw), out) == nil {
		return true
	}

	stripped := stripCodeFences(raw)
	if stripped != raw && json.Unmarshal([]byte(stripped), out) == nil {
		return true
	}

	if braced, ok := firstBraceToLastBrace(raw); ok {
		if json.Unmarshal([]byte(braced), out) == nil {
			return true
		}
	}

	return false
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func firstBraceToLastBrace(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
