// Package evaluate implements the Evaluate stage (spec §4.8): for each
// chunk, ask the reasoning model to score trust/relevance/domain, parse
// its response with the three-fallback lenient parser, and upsert the
// evaluation row. Grounded in
// original_source/workers/evaluation/worker.py::process_chunk.
package evaluate

import (
	"context"
	"time"

	"github.com/ironvale-labs/dtcforge/app/core"
	"github.com/ironvale-labs/dtcforge/pkg/pipelineerr"
	"github.com/ironvale-labs/dtcforge/pkg/reasoning"
	"github.com/ironvale-labs/dtcforge/pkg/types"
)

const systemPrompt = `You are an automotive-diagnostic content evaluator. Given a passage of text, return strict JSON with exactly these fields:
{"trust_score": <0..1>, "relevance_score": <0..1>, "automotive_domain": <one of obd|electrical|engine|transmission|brakes|suspension|hvac|body|general|unknown>, "reasoning": "<short free text>"}

Rubric: OEM service-manual content sourced from a manufacturer scores trust ~0.9+. Step-by-step diagnostic procedures citing measured values score relevance ~0.9+. Spam, advertising, or unrelated content scores near 0 on both. Do not return anything except the JSON object.`

// Do evaluates every chunk of documentID and upserts its evaluation row.
func Do(ctx context.Context, c *core.Core, documentID string) *pipelineerr.StageError {
	chunks, err := c.Store.Chunks.ListChunks(ctx, documentID)
	if err != nil {
		return pipelineerr.Poison("evaluate.Do", "document has no chunks", err)
	}

	reasonCtx, cancel := context.WithTimeout(ctx, time.Duration(c.Config.Pipeline.ReasoningTimeoutS)*time.Second)
	defer cancel()

	for _, chunk := range chunks {
		result, err := evaluateChunk(reasonCtx, c, chunk.Content)
		if err != nil {
			return pipelineerr.Transient("evaluate.Do", "reasoning request failed", err)
		}

		eval := &types.ChunkEvaluation{
			ChunkID:        chunk.ID,
			TrustScore:     clamp01(result.TrustScore),
			RelevanceScore: clamp01(result.RelevanceScore),
			Domain:         types.NormalizeDomain(result.Domain),
			Reasoning:      result.Reasoning,
			Model:          c.Config.Reasoning.ChatModel,
		}
		if err := c.Store.Chunks.UpsertEvaluation(ctx, eval); err != nil {
			return pipelineerr.Transient("evaluate.Do", "evaluation upsert failed", err)
		}
	}

	return nil
}

// evaluateChunk only returns an error for the reasoning call itself
// failing (network/5xx — transient, spec §7). An unparseable response is
// not an error: it falls back to the well-defined zero-trust record spec
// §4.8 mandates, so one malformed response never fails the document.
func evaluateChunk(ctx context.Context, c *core.Core, content string) (types.EvaluationResult, error) {
	raw, err := c.Reasoner.CompleteJSON(ctx, systemPrompt, content)
	if err != nil {
		return types.EvaluationResult{}, err
	}

	var result types.EvaluationResult
	if !reasoning.ParseLenientJSON(raw, &result) {
		return types.FailedEvaluation(), nil
	}
	return result, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
