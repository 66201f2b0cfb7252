// Package chunk implements the Chunk stage (spec §4.6): split a
// document's blob-stored text into overlapping, word-boundary-aligned
// chunks, record each chunk's approximate token count, and advance to
// Embed. Token counting is grounded in the teacher's pkg/ai.NumTokens use
// of pkoukk/tiktoken-go, generalized from chat-message counting to a bare
// content string.
package chunk

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"

	"github.com/ironvale-labs/dtcforge/app/core"
	"github.com/ironvale-labs/dtcforge/pkg/pipelineerr"
	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// Do splits documentID's blob text into chunks and stores them (spec §4.6).
func Do(ctx context.Context, c *core.Core, documentID string) *pipelineerr.StageError {
	doc, err := c.Store.Documents.GetDocument(ctx, documentID)
	if err != nil {
		return pipelineerr.Poison("chunk.Do", "document not found", err)
	}

	location := doc.BlobBucket + "/" + doc.BlobKey
	raw, err := c.Blobs.Get(ctx, location)
	if err != nil {
		return pipelineerr.Transient("chunk.Do", "blob fetch failed", err)
	}

	segments := Split(string(raw), c.Config.Pipeline.ChunkSizeChars, c.Config.Pipeline.ChunkOverlapChars)
	if len(segments) == 0 {
		return pipelineerr.Permanent("chunk.Do", "document produced zero chunks", nil)
	}

	chunks := make([]*types.Chunk, 0, len(segments))
	for i, seg := range segments {
		chunks = append(chunks, &types.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Index:      i,
			Content:    seg.Text,
			CharStart:  seg.Start,
			CharEnd:    seg.End,
			TokenCount: countTokens(seg.Text),
		})
	}

	if err := c.Store.Chunks.CreateChunks(ctx, chunks); err != nil {
		return pipelineerr.Transient("chunk.Do", "chunk insert failed", err)
	}

	if err := c.Store.Documents.SetChunkCount(ctx, documentID, len(chunks)); err != nil {
		return pipelineerr.Transient("chunk.Do", "failed to record chunk count", err)
	}

	return nil
}

// Segment is one character-addressed slice of a document's text.
type Segment struct {
	Text       string
	Start, End int
}

// Split divides text into segments of approximately size characters with
// overlap characters of repeated content between consecutive segments,
// always breaking on whitespace rather than mid-word (spec §4.6): a segment
// ends before the whitespace after its last word, and an overlap starts at
// a word start whenever the overlap window holds one. Returns nil for empty
// text.
func Split(text string, size, overlap int) []Segment {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var segments []Segment
	start := 0
	for start < n {
		end := start + size
		if end >= n {
			end = n
		} else {
			end = wordBoundary(runes, end)
		}
		if end <= start {
			end = n
		}

		segEnd := end
		for segEnd > start && isWhitespace(runes[segEnd-1]) {
			segEnd--
		}
		if segEnd > start {
			segments = append(segments, Segment{
				Text:  string(runes[start:segEnd]),
				Start: start,
				End:   segEnd,
			})
		}

		if end >= n {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		// Move the overlap start forward to the next word start at or before
		// end, so the following segment doesn't begin mid-word.
		for i := next; i <= end; i++ {
			if isWhitespace(runes[i-1]) && !isWhitespace(runes[i]) {
				next = i
				break
			}
		}
		start = next
	}
	return segments
}

// wordBoundary walks backward from idx to the nearest preceding whitespace
// so a chunk never ends mid-word; falls back to idx itself if no
// whitespace is found within a reasonable lookback.
func wordBoundary(runes []rune, idx int) int {
	const maxLookback = 80
	limit := idx - maxLookback
	if limit < 0 {
		limit = 0
	}
	for i := idx; i > limit; i-- {
		if isWhitespace(runes[i-1]) {
			return i
		}
	}
	return idx
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

var encoding, encodingErr = tiktoken.GetEncoding("cl100k_base")

// countTokens approximates the token count the reasoning model would see
// (spec §3's "approximate token count"), falling back to a whitespace
// split if the encoder failed to load.
func countTokens(text string) int {
	if encodingErr != nil || encoding == nil {
		return len(strings.Fields(text))
	}
	return len(encoding.Encode(text, nil, nil))
}
