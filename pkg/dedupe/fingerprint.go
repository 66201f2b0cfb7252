// Package dedupe implements Resolve Phase A (spec §4.9): turning a batch of
// staged entities from possibly-many chunks into fingerprint-grouped
// clusters with evidence-weighted aggregates, the way
// original_source/workers/conflict/dedup.py groups rows before the
// conflict-resolution pass.
package dedupe

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)
var whitespace = regexp.MustCompile(`\s+`)

// Fingerprint normalizes free text into the dedup key spec §4.9 defines:
// NFKD-normalize, lowercase, strip punctuation (hyphens kept), collapse
// whitespace, trim.
func Fingerprint(text string) string {
	decomposed := norm.NFKD.String(text)

	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue // drop combining marks left behind by NFKD decomposition
		}
		b.WriteRune(r)
	}

	lowered := strings.ToLower(b.String())
	stripped := punctuation.ReplaceAllString(lowered, "")
	collapsed := whitespace.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(collapsed)
}
