package logger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/armanet/internal/logger"
)

func TestSetupWritesJSON(t *testing.T) {
	require.Error(t, logger.IsReady())

	dir := t.TempDir()
	cleanup, err := logger.Setup(logger.Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, logger.IsReady())
	assert.Equal(t, filepath.Join(dir, logger.FileName), logger.Path())

	logger.L().Info("train.epoch", "epoch", 1)
	logger.L().Debug("train.batch", "batch", 3)
	require.NoError(t, cleanup())
	assert.Empty(t, logger.Path())

	data, err := os.ReadFile(filepath.Join(dir, logger.FileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2, "debug records are dropped at info level")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "train.epoch", rec["msg"])
	assert.InDelta(t, 1, rec["epoch"], 0)
	assert.True(t, strings.HasSuffix(rec["time"].(string), "Z"), "time is UTC")
}

func TestSetupDebug(t *testing.T) {
	dir := t.TempDir()
	cleanup, err := logger.Setup(logger.Config{Dir: dir, Debug: true})
	require.NoError(t, err)
	logger.L().Debug("train.batch")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(filepath.Join(dir, logger.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "train.batch")
	assert.Contains(t, string(data), `"source"`)
}

func TestSetupBadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := logger.Setup(logger.Config{Dir: filepath.Join(file, "logs")})
	require.Error(t, err)
	require.Error(t, logger.IsReady())
}
