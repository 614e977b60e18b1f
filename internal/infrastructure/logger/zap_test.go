package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/scanops/console/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	log, err := New(config.LoggerConfig{
		Level:       "debug",
		OutputPaths: []string{"stdout"},
		File:        path,
		MaxSizeMB:   1,
	})
	require.NoError(t, err)

	log.Infow("task_start", "task_id", "t1")
	log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"task_start"`)
	assert.Contains(t, string(data), `"task_id":"t1"`)
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	log, err := New(config.LoggerConfig{Level: "loud"})
	require.NoError(t, err)
	assert.False(t, log.Desugar().Core().Enabled(-1))
}
