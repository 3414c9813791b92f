package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")
	log.Info("dropped")
	log.Warn("kept", "event", "daily_minted")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"event":"daily_minted"`)
}
