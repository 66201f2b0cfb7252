package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitNeverCutsMidWord(t *testing.T) {
	text := strings.Repeat("diagnostic trouble code analysis procedure ", 30)
	segments := Split(text, 100, 20)
	require.NotEmpty(t, segments)

	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		assert.NotContains(t, []byte{seg.Text[0]}, ' ')
		last := seg.Text[len(seg.Text)-1]
		assert.NotEqual(t, byte(' '), last, "segment should not end with a trailing space from a mid-word cut")
	}
}

func TestSplitProducesOverlap(t *testing.T) {
	text := strings.Repeat("a", 1000)
	segments := Split(text, 500, 50)
	require.Len(t, segments, 3)
	assert.Less(t, segments[1].Start, segments[0].End)
}

func TestSplitEmptyTextReturnsNil(t *testing.T) {
	assert.Nil(t, Split("", 500, 50))
}

func TestSplitShortTextReturnsOneSegment(t *testing.T) {
	segments := Split("short text under the limit", 500, 50)
	require.Len(t, segments, 1)
	assert.Equal(t, "short text under the limit", segments[0].Text)
}
