package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepai/deepai-client/pkg/api"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DEEPAI_API_URL", "http://localhost:8000/api")
	t.Setenv("DEEPAI_DATA_DIR", dir)

	cfg, err := Load(writeEnvFile(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api", cfg.APIURL)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, StorageFile, cfg.Storage)
	assert.Equal(t, 8, cfg.ContextSize)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
	assert.Equal(t, "127.0.0.1:5177", cfg.BridgeAddr)
	assert.Equal(t, filepath.Join(dir, "logs", "deepai.log"), cfg.Log)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoadEnvFile(t *testing.T) {
	path := writeEnvFile(t, `
DEEPAI_API_URL=http://backend:8000
DEEPAI_DATA_DIR=/var/lib/deepai
DEEPAI_STORAGE=sqlite
DEEPAI_CONTEXT_SIZE=12
DEEPAI_TIMEOUT=90s
DEEPAI_LOG_LEVEL=trace
`)
	t.Setenv("DEEPAI_CONTEXT_SIZE", "4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://backend:8000", cfg.APIURL)
	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, 4, cfg.ContextSize, "process environment wins over the file")
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, api.LevelTrace, cfg.Level())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{name: "missing url", file: "DEEPAI_DATA_DIR=/tmp/x\n"},
		{name: "relative url", file: "DEEPAI_API_URL=/api\nDEEPAI_DATA_DIR=/tmp/x\n"},
		{name: "unknown storage", file: "DEEPAI_API_URL=http://h\nDEEPAI_DATA_DIR=/tmp/x\nDEEPAI_STORAGE=redis\n"},
		{name: "zero context", file: "DEEPAI_API_URL=http://h\nDEEPAI_DATA_DIR=/tmp/x\nDEEPAI_CONTEXT_SIZE=0\n"},
		{name: "bad duration", file: "DEEPAI_API_URL=http://h\nDEEPAI_DATA_DIR=/tmp/x\nDEEPAI_TIMEOUT=soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeEnvFile(t, tt.file))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"TRACE": api.LevelTrace,
		"debug": slog.LevelDebug,
		"Warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"loud":  slog.LevelInfo,
	} {
		assert.Equal(t, want, Config{LogLevel: name}.Level(), name)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	Config{LogMode: "json", LogLevel: "DEBUG"}.NewLogger(&buf).Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	Config{LogMode: "TEXT", LogLevel: "WARN"}.NewLogger(&buf).Info("hidden")
	assert.Empty(t, buf.String())
}

func TestOpenLog(t *testing.T) {
	cfg := Config{Log: filepath.Join(t.TempDir(), "nested", "deepai.log"), LogMaxSize: 1}
	w, err := cfg.OpenLog()
	require.NoError(t, err)
	_, err = w.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(cfg.Log)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}
