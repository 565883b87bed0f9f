package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housing/internal/platform/config"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json format honours level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, config.Log{Level: "warn", Format: "json"})

		log.Info("dropped")
		log.Warn("kept", "area", "student_dashboard")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "kept", entry["msg"])
		assert.Equal(t, "student_dashboard", entry["area"])
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, config.Log{Level: "debug", Format: "TEXT"})
		log.Debug("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})
}
