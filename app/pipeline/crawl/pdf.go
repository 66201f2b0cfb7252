package crawl

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"
	"regexp"
	"strings"
)

// errUnsupportedPDF is returned for encodings this walker doesn't handle
// (scanned/image-only pages, non-Flate filters) — Crawl treats it as a
// permanent failure rather than crashing (SPEC_FULL §12).
var errUnsupportedPDF = errors.New("unsupported PDF encoding")

var streamPattern = regexp.MustCompile(`(?s)stream\r?\n(.*?)endstream`)
var textShowPattern = regexp.MustCompile(`\((?:[^()\\]|\\.)*\)\s*Tj|\[(?:[^\[\]]*)\]\s*TJ`)
var parenLiteral = regexp.MustCompile(`\((?:[^()\\]|\\.)*\)`)

// extractPDFText walks a linearized PDF's content streams looking for Tj/TJ
// text-show operators, inflating Flate-compressed streams along the way.
// It is not a general PDF parser — it handles the common case of simple,
// uncompressed-structure/Flate-content PDFs and returns errUnsupportedPDF
// for anything else (encrypted, image-only, or exotically filtered pages).
func extractPDFText(body []byte) (string, error) {
	if !bytes.HasPrefix(body, []byte("%PDF-")) {
		return "", errUnsupportedPDF
	}

	var out strings.Builder
	found := false

	for _, match := range streamPattern.FindAllSubmatch(body, -1) {
		raw := match[1]
		content, err := inflateIfNeeded(raw)
		if err != nil {
			continue // skip streams we can't decode rather than fail the whole document
		}

		for _, show := range textShowPattern.FindAll(content, -1) {
			for _, lit := range parenLiteral.FindAll(show, -1) {
				text := unescapePDFString(lit[1 : len(lit)-1])
				if text == "" {
					continue
				}
				out.WriteString(text)
				out.WriteString(" ")
				found = true
			}
		}
	}

	if !found {
		return "", errUnsupportedPDF
	}
	return strings.TrimSpace(out.String()), nil
}

func inflateIfNeeded(raw []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		// Not Flate-compressed; treat as literal content stream bytes.
		return raw, nil
	}
	defer r.Close()
	return io.ReadAll(r)
}

func unescapePDFString(s []byte) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case '(', ')', '\\':
				b.WriteByte(s[i])
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
