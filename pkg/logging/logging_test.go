package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerTextOutput(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, false, slog.LevelInfo)
	log.Info("hello", "key", "value")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "key=value")
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, true, slog.LevelInfo)
	log.Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, false, slog.LevelWarn)
	log.Info("should not appear")
	assert.Empty(t, buf.String())
	log.Warn("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestAppendCtxAccumulatesAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, false, slog.LevelInfo)

	ctx := AppendCtx(nil, slog.String("assoc", "a1"))
	ctx = AppendCtx(ctx, slog.String("message_id", "7"))

	log.InfoContext(ctx, "echo")
	out := buf.String()
	assert.Contains(t, out, "assoc=a1")
	assert.Contains(t, out, "message_id=7")
}

func TestRotatingFileWriterWritesToPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/test.log"
	w := RotatingFileWriter(path)
	_, err := w.Write([]byte("line\n"))
	require.NoError(t, err)
}
