package crawl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHTMLTextStripsScriptsAndCollectsLinks(t *testing.T) {
	body := []byte(`<html><head><title>P0171 Diagnostic</title></head>
<body>
<script>var x = 1;</script>
<p>Check the mass airflow sensor.</p>
<a href="/dtc/p0172">Related code</a>
<a href="https://other.example.com/page">External</a>
</body></html>`)

	text, title, links, err := extractHTMLText(body)
	require.NoError(t, err)
	assert.Equal(t, "P0171 Diagnostic", title)
	assert.Contains(t, text, "Check the mass airflow sensor.")
	assert.NotContains(t, text, "var x = 1")
	assert.Contains(t, links, "/dtc/p0172")
	assert.Contains(t, links, "https://other.example.com/page")
}

func TestDetectMIMEFallsBackToHTML(t *testing.T) {
	assert.Equal(t, "text/html", detectMIME("text/html; charset=utf-8", nil))
	assert.Equal(t, "application/pdf", detectMIME("application/pdf", nil))
	assert.Equal(t, "application/pdf", detectMIME("", []byte("%PDF-1.4\n")))
	assert.Equal(t, "text/html", detectMIME("", []byte("<html></html>")))
}

func TestSha256HexIsStableAndDistinct(t *testing.T) {
	a := sha256Hex("the quick brown fox")
	b := sha256Hex("the quick brown fox")
	c := sha256Hex("a different string")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestFirstLineTakesTextBeforeNewline(t *testing.T) {
	assert.Equal(t, "Title line", firstLine("Title line\nrest of body text"))
	assert.Equal(t, "only one line", firstLine("only one line"))
}

func TestExtractPDFTextRejectsNonPDF(t *testing.T) {
	_, err := extractPDFText([]byte("not a pdf at all"))
	assert.ErrorIs(t, err, errUnsupportedPDF)
}
