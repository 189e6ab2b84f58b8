package helpers

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "skipped.log")

	l := NewLogger(tmpFile)
	l.LogError("cargurus", errors.New("no price option at or below 500"))
	l.LogError("cars.com", errors.New("page 3 timed out"))

	data, err := os.ReadFile(tmpFile)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[cargurus] no price option at or below 500")
	assert.Contains(t, lines[1], "[cars.com] page 3 timed out")

	l.LogInfo("pass skipped %d of %d searches", 1, 4)
	data, err = os.ReadFile(tmpFile)
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "[INFO] pass skipped 1 of 4 searches")
}

func TestLoggerUnwritablePath(t *testing.T) {
	l := NewLogger(filepath.Join(t.TempDir(), "missing", "dir", "skipped.log"))
	assert.NotPanics(t, func() {
		l.LogError("cargurus", errors.New("boom"))
	})
}
