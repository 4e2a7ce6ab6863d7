// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/scriptfill/internal/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("console with colors", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "scriptfill",
			Colors:      config.ColorConfig{Info: "green"},
		}
		logger := NewLogger(cfg, zapcore.AddSync(&buf))
		logger.Named("engine").Info("Target selected")
		require.NoError(t, logger.Sync())

		out := buf.String()
		assert.Contains(t, out, colorGreen+"INFO"+colorReset)
		assert.Contains(t, out, "scriptfill.engine.")
		assert.Contains(t, out, "Target selected")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}
		logger := NewLogger(cfg, zapcore.AddSync(&buf))
		logger.Warn("Insertion failed", zap.String("strategy", "value"))
		logger.Debug("filtered out")
		require.NoError(t, logger.Sync())

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "one JSON object expected: %s", buf.String())
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "Insertion failed", entry["msg"])
		assert.Equal(t, "value", entry["strategy"])
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggerConfig{Level: "loud", Format: "json"}, zapcore.AddSync(&buf))
		logger.Debug("hidden")
		logger.Info("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scriptfill.log")
		var console bytes.Buffer
		logger := NewLogger(config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1}, zapcore.AddSync(&console))
		logger.Error("This should go to the file.")
		_ = logger.Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`, "file output is always JSON")
	})
}

func TestInitialize(t *testing.T) {
	t.Run("only the first call takes effect", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"}, zapcore.AddSync(&buf))
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, zapcore.AddSync(&buf))

		assert.Same(t, first, GetLogger())
		GetLogger().Info("test")
		Sync()
		assert.True(t, strings.Contains(buf.String(), "First"))
		assert.False(t, strings.Contains(buf.String(), "Second"))
	})

	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		logger := GetLogger()
		require.NotNil(t, logger)
		assert.Nil(t, globalLogger.Load())
	})
}
