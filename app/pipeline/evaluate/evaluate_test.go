package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 1.0, clamp01(1.5))
	assert.Equal(t, 0.42, clamp01(0.42))
}
