// Package extract implements the Extract stage (spec §4.9): for each
// chunk clearing the relevance gate, ask the reasoning model for
// structured DTC/cause/step/sensor/TSB/vehicle mentions, validate DTC
// codes, and stage every extracted element for Resolve. Grounded in
// original_source/workers/extraction/worker.py::process_chunk, extended
// per spec.md's JSON contract with vehicles_mentioned and
// document_category (absent from the original Python prompt).
package extract

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ironvale-labs/dtcforge/app/core"
	"github.com/ironvale-labs/dtcforge/pkg/pipelineerr"
	"github.com/ironvale-labs/dtcforge/pkg/reasoning"
	"github.com/ironvale-labs/dtcforge/pkg/types"
)

const systemPrompt = `You are an automotive diagnostic-data extractor. Extract only what the text explicitly states — never fabricate a DTC code, cause, step, sensor, bulletin, or vehicle that is not plainly present. Return strict JSON with exactly these fields:
{
  "dtc_codes": [{"code": "P0171", "description": "...", "category": "...", "severity": "critical|moderate|minor|informational"}],
  "causes": [{"dtc_code": "P0171", "description": "...", "likelihood": "high|medium|low"}],
  "diagnostic_steps": [{"dtc_code": "P0171", "step_order": 1, "description": "...", "tools_required": "...", "expected_values": "..."}],
  "sensors": [{"name": "...", "sensor_type": "...", "typical_range": "...", "unit": "...", "related_dtc_codes": ["P0171"]}],
  "tsb_references": [{"tsb_number": "...", "title": "...", "affected_models": "...", "related_dtc_codes": ["P0171"], "summary": "..."}],
  "vehicles_mentioned": [{"make": "...", "model": "...", "year_start": 2015, "year_end": 2018, "engine": "...", "transmission": "...", "related_dtc_codes": ["P0171"]}],
  "document_category": "repair_procedure|diagnostic_guide|dtc_reference|tsb_bulletin|wiring_diagram|parts_catalog|forum_discussion|owners_manual|recall_notice|general_reference"
}

Rules: only extract data explicitly stated in the text; return empty arrays for categories with no matches; DTC codes must match the pattern P/B/C/U followed by 4 hex digits.`

// Do extracts every eligible chunk of documentID into staged entity rows
// (spec §4.9). A document whose chunks yield no extraction at all still
// succeeds — Resolve treats that as a no-op and moves straight to complete.
func Do(ctx context.Context, c *core.Core, documentID string) *pipelineerr.StageError {
	chunks, err := c.Store.Chunks.ListEligibleForExtraction(ctx, documentID, c.Config.Pipeline.RelevanceGateThreshold)
	if err != nil {
		return pipelineerr.Transient("extract.Do", "failed to list eligible chunks", err)
	}

	reasonCtx, cancel := context.WithTimeout(ctx, time.Duration(c.Config.Pipeline.ReasoningTimeoutS)*time.Second)
	defer cancel()

	var rows []*types.StagedEntityRow
	for _, ch := range chunks {
		eval, err := c.Store.Chunks.GetEvaluation(ctx, ch.ID)
		if err != nil {
			return pipelineerr.Transient("extract.Do", "failed to load chunk evaluation", err)
		}

		result, err := extractChunk(reasonCtx, c, ch.Content)
		if err != nil {
			return pipelineerr.Transient("extract.Do", "reasoning request failed", err)
		}

		rows = append(rows, stageEntities(documentID, ch, eval, result)...)
	}

	if len(rows) > 0 {
		if err := c.Store.StagedEntities.InsertStagedEntities(ctx, rows); err != nil {
			return pipelineerr.Transient("extract.Do", "failed to insert staged entities", err)
		}
	}

	return nil
}

// extractChunk only returns an error for the reasoning call itself failing
// (transient, spec §7). An unparseable response yields a zero-value
// result rather than an error, so one malformed response never fails the
// document — the chunk simply contributes nothing to the staging tables.
func extractChunk(ctx context.Context, c *core.Core, content string) (types.ExtractionResult, error) {
	raw, err := c.Reasoner.CompleteJSON(ctx, systemPrompt, content)
	if err != nil {
		return types.ExtractionResult{}, err
	}

	var result types.ExtractionResult
	reasoning.ParseLenientJSON(raw, &result)
	return result, nil
}

func stageEntities(documentID string, ch *types.Chunk, eval *types.ChunkEvaluation, result types.ExtractionResult) []*types.StagedEntityRow {
	var rows []*types.StagedEntityRow

	newRow := func(kind types.EntityKind, dtcCode, text string, payload any) *types.StagedEntityRow {
		encoded, _ := json.Marshal(payload)
		return &types.StagedEntityRow{
			ID:             uuid.NewString(),
			DocumentID:     documentID,
			Kind:           kind,
			DTCCode:        dtcCode,
			Text:           text,
			Payload:        encoded,
			ChunkID:        ch.ID,
			ChunkTrust:     eval.TrustScore,
			ChunkRelevance: eval.RelevanceScore,
			ChunkIndex:     ch.Index,
		}
	}

	for _, dtc := range result.DTCCodes {
		code, ok := types.NormalizeDTCCode(dtc.Code)
		if !ok {
			continue // invalid DTC code, dropped per spec §4.9/§7
		}
		dtc.Code = code
		rows = append(rows, newRow(types.EntityDTCMaster, code, dtc.Description, dtc))
	}
	for _, cause := range result.Causes {
		code, ok := types.NormalizeDTCCode(cause.DTCCode)
		if !ok {
			continue
		}
		cause.DTCCode = code
		rows = append(rows, newRow(types.EntityCause, code, cause.Description, cause))
	}
	for _, step := range result.DiagnosticSteps {
		code, ok := types.NormalizeDTCCode(step.DTCCode)
		if !ok {
			continue
		}
		step.DTCCode = code
		rows = append(rows, newRow(types.EntityDiagnosticStep, code, step.Description, step))
	}
	for _, sensor := range result.Sensors {
		for _, code := range validCodes(sensor.RelatedDTCCodes) {
			rows = append(rows, newRow(types.EntityRelatedSensor, code, sensor.Name, sensor))
		}
	}
	for _, tsb := range result.TSBReferences {
		for _, code := range validCodes(tsb.RelatedDTCCodes) {
			rows = append(rows, newRow(types.EntityTSBReference, code, tsb.TSBNumber, tsb))
		}
	}
	for _, veh := range result.VehiclesMentioned {
		for _, code := range validCodes(veh.RelatedDTCCodes) {
			rows = append(rows, newRow(types.EntityVehicleMention, code, veh.Make+"|"+veh.Model, veh))
		}
	}
	if result.DocumentCategory != "" {
		rows = append(rows, newRow(types.EntityDocumentCategory, "", result.DocumentCategory, result.DocumentCategory))
	}

	return rows
}

func validCodes(raw []string) []string {
	var out []string
	for _, r := range raw {
		if code, ok := types.NormalizeDTCCode(r); ok {
			out = append(out, code)
		}
	}
	return out
}
