package reaper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEveryRendersAtEveryShorthand(t *testing.T) {
	assert.Equal(t, "@every 1m0s", every(time.Minute))
	assert.Equal(t, "@every 30s", every(30*time.Second))
}
