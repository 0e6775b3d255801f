package cli

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsDefaults(t *testing.T) {
	app := App{Name: "dragos-everything", IncludeReports: true, DefaultSaveDir: "."}
	f, err := app.ParseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "dragos.cfg", f.ConfigPath)
	assert.Equal(t, ".", f.SaveDir)
	assert.Equal(t, "dragos.sqlite3", f.DBPath)
	assert.False(t, f.Reset)
	assert.False(t, f.Debug)
}

func TestParseFlagsShorthands(t *testing.T) {
	app := App{Name: "dragos-indicators"}
	f, err := app.ParseFlags([]string{"-c", "other.cfg", "-r", "-s", "/tmp/out", "-d", "-metrics-file", "m.prom"})
	require.NoError(t, err)
	assert.Equal(t, "other.cfg", f.ConfigPath)
	assert.True(t, f.Reset)
	assert.Equal(t, "/tmp/out", f.SaveDir)
	assert.True(t, f.Debug)
	assert.Equal(t, "m.prom", f.MetricsFile)
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, false)
	assert.Equal(t, log.WarnLevel, logger.GetLevel())

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger = NewLogger(&buf, true)
	assert.Equal(t, log.DebugLevel, logger.GetLevel())
}

func TestMainConfigErrorExitCode(t *testing.T) {
	t.Setenv("DRAGOS_ACCESS_TOKEN", "")
	t.Setenv("DRAGOS_ACCESS_KEY", "")
	app := App{Name: "dragos-indicators"}
	assert.Equal(t, 1, app.Main([]string{"-c", t.TempDir() + "/missing.cfg", "-quiet"}))
}
