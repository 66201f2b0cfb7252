package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evalShape struct {
	TrustScore float64 `json:"trust_score"`
}

func TestParseLenientJSONRaw(t *testing.T) {
	var out evalShape
	ok := ParseLenientJSON(`{"trust_score": 0.9}`, &out)
	require.True(t, ok)
	assert.Equal(t, 0.9, out.TrustScore)
}

func TestParseLenientJSONCodeFence(t *testing.T) {
	var out evalShape
	ok := ParseLenientJSON("```json\n{\"trust_score\": 0.7}\n```", &out)
	require.True(t, ok)
	assert.Equal(t, 0.7, out.TrustScore)
}

func TestParseLenientJSONFirstToLastBrace(t *testing.T) {
	var out evalShape
	ok := ParseLenientJSON(`Sure, here you go: {"trust_score": 0.4} -- hope that helps!`, &out)
	require.True(t, ok)
	assert.Equal(t, 0.4, out.TrustScore)
}

func TestParseLenientJSONAllFail(t *testing.T) {
	var out evalShape
	ok := ParseLenientJSON("no braces here at all", &out)
	assert.False(t, ok)
}
