package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	logger.Info("boundary register declared", zap.String("part", "XC7A35T"), zap.Int("bits", 362))
	logger.Debug("hidden")
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "boundary register declared", entry["msg"])
	require.Equal(t, "XC7A35T", entry["part"])
	require.EqualValues(t, 362, entry["bits"])
}

func TestNewVerboseConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Verbose: true, Output: &buf})
	require.NoError(t, err)

	logger.Debug("dap shift", zap.Int("bits", 6))
	require.Contains(t, buf.String(), "DEBUG")
	require.Contains(t, buf.String(), "dap shift")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	require.Error(t, err)
}
