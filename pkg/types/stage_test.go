package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextQueueMapsEveryNonTerminalStage(t *testing.T) {
	cases := map[DocumentStage]QueueName{
		StageChunking:   QueueChunk,
		StageEmbedding:  QueueEmbed,
		StageEvaluating: QueueEvaluate,
		StageExtracting: QueueExtract,
		StageResolving:  QueueResolve,
	}

	for stage, want := range cases {
		got, ok := NextQueue(stage)
		assert.True(t, ok, "stage %s should map to a queue", stage)
		assert.Equal(t, want, got)
	}
}

func TestNextQueueFalseForTerminalAndPendingStages(t *testing.T) {
	for _, stage := range []DocumentStage{StagePending, StageComplete, StageError} {
		_, ok := NextQueue(stage)
		assert.False(t, ok, "stage %s should have no queue", stage)
	}
}
