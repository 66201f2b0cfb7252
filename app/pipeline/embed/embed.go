// Package embed implements the Embed stage (spec §4.7): for every chunk
// of a document lacking an embedding, call the embedding client and store
// the resulting vector. Grounded in
// original_source/workers/embedding/worker.py's serial per-chunk loop —
// no concurrency within one document, so a partial failure leaves a
// well-defined set of chunks still needing an embedding on retry.
package embed

import (
	"context"
	"log/slog"
	"time"

	"github.com/ironvale-labs/dtcforge/app/core"
	"github.com/ironvale-labs/dtcforge/pkg/pipelineerr"
)

// Do embeds every chunk of documentID that doesn't already carry a vector.
func Do(ctx context.Context, c *core.Core, documentID string) *pipelineerr.StageError {
	chunks, err := c.Store.Chunks.ListChunks(ctx, documentID)
	if err != nil {
		return pipelineerr.Poison("embed.Do", "document has no chunks", err)
	}

	embedCtx, cancel := context.WithTimeout(ctx, time.Duration(c.Config.Pipeline.EmbeddingTimeoutS)*time.Second)
	defer cancel()

	for _, chunk := range chunks {
		if len(chunk.Embedding) > 0 {
			continue
		}

		vectors, err := c.Reasoner.Embed(embedCtx, []string{chunk.Content})
		if err != nil {
			return pipelineerr.Transient("embed.Do", "embedding request failed", err)
		}
		if len(vectors) != 1 {
			return pipelineerr.Permanent("embed.Do", "embedding client returned unexpected batch size", nil)
		}

		vector := vectors[0]
		if len(vector) != c.Config.Pipeline.EmbeddingDim {
			// Logical invariant violation (spec §7): drop this chunk's
			// embedding rather than failing the whole document; it's
			// retried whenever Embed next runs against the document,
			// since ListChunks still reports it as lacking a vector.
			c.Logger.Warn("embedding dimension mismatch, skipping chunk",
				slog.String("chunk_id", chunk.ID), slog.Int("got", len(vector)),
				slog.Int("want", c.Config.Pipeline.EmbeddingDim))
			continue
		}

		if err := c.Store.Chunks.SetEmbedding(ctx, chunk.ID, vector); err != nil {
			return pipelineerr.Transient("embed.Do", "failed to persist embedding", err)
		}
	}

	return nil
}
