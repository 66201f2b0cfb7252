package resolve

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironvale-labs/dtcforge/pkg/scoring"
	"github.com/ironvale-labs/dtcforge/pkg/types"
)

func vehicleStaged(dtcCode string, v types.ExtractedVehicleMention, chunkIdx int) types.StagedEntity {
	raw, _ := json.Marshal(v)
	return types.StagedEntity{
		Kind:    types.EntityVehicleMention,
		DTCCode: dtcCode,
		Text:    v.Make + "|" + v.Model,
		Raw:     json.RawMessage(raw),
		StagedProvenance: types.StagedProvenance{
			ChunkIndex: chunkIdx,
		},
	}
}

func TestResolveDocVehicleContextPicksMajority(t *testing.T) {
	civic := types.ExtractedVehicleMention{Make: "Honda", Model: "Civic", YearStart: 2015, YearEnd: 2018}
	accord := types.ExtractedVehicleMention{Make: "Honda", Model: "Accord", YearStart: 2012, YearEnd: 2015}

	mentions := []types.StagedEntity{
		vehicleStaged("P0171", civic, 0),
		vehicleStaged("P0171", civic, 1),
		vehicleStaged("P0171", accord, 2),
	}

	got := resolveDocVehicleContext(mentions)
	require.NotNil(t, got)
	assert.Equal(t, "Honda", got.Make)
	assert.Equal(t, "Civic", got.Model)
}

func TestResolveDocVehicleContextNilWhenNoMentions(t *testing.T) {
	assert.Nil(t, resolveDocVehicleContext(nil))
}

func TestVehicleMatchForDTCExactMatch(t *testing.T) {
	civic := types.ExtractedVehicleMention{Make: "Honda", Model: "Civic", YearStart: 2015, YearEnd: 2018}
	docCtx := &vehicleContext{Make: "Honda", Model: "Civic", YearStart: 2015, YearEnd: 2018}
	mentions := []types.StagedEntity{vehicleStaged("P0171", civic, 0)}

	got := vehicleMatchForDTC("P0171", docCtx, mentions)
	assert.Equal(t, scoring.VehicleExactMatch, got)
}

func TestVehicleMatchForDTCMakeOnlyMatch(t *testing.T) {
	accord := types.ExtractedVehicleMention{Make: "Honda", Model: "Accord", YearStart: 2012, YearEnd: 2015}
	docCtx := &vehicleContext{Make: "Honda", Model: "Civic", YearStart: 2015, YearEnd: 2018}
	mentions := []types.StagedEntity{vehicleStaged("P0171", accord, 0)}

	got := vehicleMatchForDTC("P0171", docCtx, mentions)
	assert.Equal(t, scoring.VehicleMakeOnlyMatch, got)
}

func TestVehicleMatchForDTCContradicts(t *testing.T) {
	ford := types.ExtractedVehicleMention{Make: "Ford", Model: "Focus", YearStart: 2016, YearEnd: 2019}
	docCtx := &vehicleContext{Make: "Honda", Model: "Civic", YearStart: 2015, YearEnd: 2018}
	mentions := []types.StagedEntity{vehicleStaged("P0171", ford, 0)}

	got := vehicleMatchForDTC("P0171", docCtx, mentions)
	assert.Equal(t, scoring.VehicleContradicts, got)
}

func TestVehicleMatchForDTCNoAssertionWhenNoMentionForCode(t *testing.T) {
	docCtx := &vehicleContext{Make: "Honda", Model: "Civic", YearStart: 2015, YearEnd: 2018}
	got := vehicleMatchForDTC("P0300", docCtx, nil)
	assert.Equal(t, scoring.VehicleNoAssertion, got)
}

func TestVehicleMatchForDTCNoAssertionWhenNoDocContext(t *testing.T) {
	got := vehicleMatchForDTC("P0171", nil, nil)
	assert.Equal(t, scoring.VehicleNoAssertion, got)
}

func causeStaged(dtc, text string, trust, relevance float64, idx int) types.StagedEntity {
	return types.StagedEntity{
		Kind:    types.EntityCause,
		DTCCode: dtc,
		Text:    text,
		StagedProvenance: types.StagedProvenance{
			ChunkTrust:     trust,
			ChunkRelevance: relevance,
			ChunkIndex:     idx,
		},
	}
}

func TestRankOrdersByScoreDescThenEvidenceCount(t *testing.T) {
	entities := []types.StagedEntity{
		causeStaged("P0171", "vacuum leak", 0.9, 0.9, 0),
		causeStaged("P0171", "vacuum leak", 0.9, 0.9, 1),
		causeStaged("P0300", "worn spark plug", 0.2, 0.2, 0),
	}

	groups := groupsForKind(entities, types.EntityCause)
	ranked := rank(groups, nil, nil, scoring.KindCause)

	require.Len(t, ranked, 2)
	assert.Equal(t, "P0171", ranked[0].group.DTCCode)
	assert.GreaterOrEqual(t, ranked[0].score, ranked[1].score)
}

func TestBestMemberPicksHighestTrustTimesRelevance(t *testing.T) {
	members := []types.StagedEntity{
		causeStaged("P0171", "low confidence", 0.2, 0.2, 0),
		causeStaged("P0171", "high confidence", 0.9, 0.9, 1),
	}

	got := bestMember(members)
	assert.Equal(t, "high confidence", got.Text)
}

func TestRejectedLogEntryNoEligibleChunks(t *testing.T) {
	entry := rejectedLogEntry("run-1", "doc-1")

	assert.Equal(t, types.ActionRejected, entry.Action)
	assert.Equal(t, "no eligible chunks", entry.Details)
	assert.Equal(t, "run-1", entry.RunID)
	assert.Equal(t, "doc-1", entry.DocumentID)
	assert.Empty(t, entry.EntityTable)
	assert.Nil(t, entry.EntityID)
}

func TestCategoryRollupNilWhenEmpty(t *testing.T) {
	assert.Nil(t, categoryRollup(nil))
}

func TestCategoryRollupPicksMajority(t *testing.T) {
	entities := []types.StagedEntity{
		{Kind: types.EntityDocumentCategory, Text: "repair_procedure", StagedProvenance: types.StagedProvenance{ChunkIndex: 0}},
		{Kind: types.EntityDocumentCategory, Text: "diagnostic_guide", StagedProvenance: types.StagedProvenance{ChunkIndex: 1}},
		{Kind: types.EntityDocumentCategory, Text: "diagnostic_guide", StagedProvenance: types.StagedProvenance{ChunkIndex: 2}},
	}

	got := categoryRollup(entities)
	require.NotNil(t, got)
	assert.Equal(t, "diagnostic_guide", *got)
}
