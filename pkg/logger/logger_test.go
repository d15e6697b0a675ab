package logger

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBeforeInit(t *testing.T) {
	Close()
	assert.NotNil(t, L())
	assert.Equal(t, io.Discard, GetWriter())
	Info("dropped %d", 1) // must not panic
}

func TestInit_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	require.NoError(t, Init(path))
	defer Close()

	Info("scenario %s started", "checkbox demo")
	L().Warn("resolution slow", zap.String("relation", "leftOf"), zap.Int("attempts", 3))
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"INFO"`)
	assert.Contains(t, lines[0], `"msg":"scenario checkbox demo started"`)
	assert.Contains(t, lines[1], `"relation":"leftOf"`)
	assert.Contains(t, lines[1], `"attempts":3`)
}

func TestInit_ConsoleLevel(t *testing.T) {
	dir := t.TempDir()

	var quiet bytes.Buffer
	require.NoError(t, Init(filepath.Join(dir, "a.log"), WithConsole(&quiet)))
	Debug("hidden")
	Info("shown")
	Close()
	assert.NotContains(t, quiet.String(), "hidden")
	assert.Contains(t, quiet.String(), "shown")

	var loud bytes.Buffer
	require.NoError(t, Init(filepath.Join(dir, "b.log"), WithConsole(&loud), WithVerbose(true)))
	Debug("details")
	Close()
	assert.Contains(t, loud.String(), "details")
}

func TestInit_Reinit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(filepath.Join(dir, "first.log")))
	require.NoError(t, Init(filepath.Join(dir, "second.log"), WithRotation(1, 1)))
	defer Close()

	Error("boom")
	assert.NotEqual(t, io.Discard, GetWriter())
}
