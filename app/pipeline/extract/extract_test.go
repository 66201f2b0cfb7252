package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironvale-labs/dtcforge/pkg/types"
)

func TestStageEntitiesDropsInvalidDTCCodes(t *testing.T) {
	ch := &types.Chunk{ID: "chunk-1", Index: 0}
	eval := &types.ChunkEvaluation{TrustScore: 0.8, RelevanceScore: 0.9}
	result := types.ExtractionResult{
		DTCCodes: []types.ExtractedDTC{
			{Code: "P0171", Description: "lean bank 1"},
			{Code: "ZZZZZ", Description: "not a real code"},
		},
	}

	rows := stageEntities("doc-1", ch, eval, result)
	require.Len(t, rows, 1)
	assert.Equal(t, "P0171", rows[0].DTCCode)
	assert.Equal(t, types.EntityDTCMaster, rows[0].Kind)
}

func TestStageEntitiesCarriesChunkProvenance(t *testing.T) {
	ch := &types.Chunk{ID: "chunk-7", Index: 3}
	eval := &types.ChunkEvaluation{TrustScore: 0.7, RelevanceScore: 0.6}
	result := types.ExtractionResult{
		Causes: []types.ExtractedCause{{DTCCode: "p0300", Description: "misfire", Likelihood: "high"}},
	}

	rows := stageEntities("doc-9", ch, eval, result)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "chunk-7", row.ChunkID)
	assert.Equal(t, 3, row.ChunkIndex)
	assert.Equal(t, 0.7, row.ChunkTrust)
	assert.Equal(t, 0.6, row.ChunkRelevance)
	assert.Equal(t, "P0300", row.DTCCode)
}

func TestStageEntitiesMultiDTCSensorFansOutPerCode(t *testing.T) {
	ch := &types.Chunk{ID: "chunk-2", Index: 0}
	eval := &types.ChunkEvaluation{}
	result := types.ExtractionResult{
		Sensors: []types.ExtractedSensor{
			{Name: "MAF Sensor", RelatedDTCCodes: []string{"P0171", "P0101"}},
		},
	}

	rows := stageEntities("doc-1", ch, eval, result)
	require.Len(t, rows, 2)
	assert.ElementsMatch(t, []string{"P0171", "P0101"}, []string{rows[0].DTCCode, rows[1].DTCCode})
}

func TestStageEntitiesEmitsDocumentCategoryRow(t *testing.T) {
	ch := &types.Chunk{ID: "chunk-1", Index: 0}
	eval := &types.ChunkEvaluation{}
	result := types.ExtractionResult{DocumentCategory: "repair_procedure"}

	rows := stageEntities("doc-1", ch, eval, result)
	require.Len(t, rows, 1)
	assert.Equal(t, types.EntityDocumentCategory, rows[0].Kind)
	assert.Equal(t, "repair_procedure", rows[0].Text)
}

func TestValidCodesFiltersMalformed(t *testing.T) {
	out := validCodes([]string{"p0171", "garbage", "U0100"})
	assert.Equal(t, []string{"P0171", "U0100"}, out)
}
