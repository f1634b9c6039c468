package log

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextLoggerRoundTrip(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	S(ctx).Infow("hello", "k", "v")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "hello", entry.Message)
	assert.Equal(t, "v", entry.ContextMap()["k"])
}

func TestWithAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))
	ctx = With(ctx, Stage("resolve"))
	ctx = SWith(ctx, "service", "ipify")

	S(ctx).Infow("attempt")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "resolve", fields["stage"])
	assert.Equal(t, "ipify", fields["service"])
}

func TestByteFieldSwitchesOnEncoding(t *testing.T) {
	f := ByteField("body", []byte("plain text"))
	assert.Equal(t, zapcore.ByteStringType, f.Type)

	f = ByteField("body", []byte{0xff, 0xfe, 0xfd})
	assert.Equal(t, zapcore.BinaryType, f.Type, "invalid utf8 is logged as binary")
}

func TestElapsedRecordsDuration(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	elapsed := Elapsed("elapsed")
	time.Sleep(10 * time.Millisecond)
	S(ctx).Infow("done", elapsed)

	require.Equal(t, 1, logs.Len())
	d, ok := logs.All()[0].ContextMap()["elapsed"].(time.Duration)
	require.True(t, ok)
	assert.GreaterOrEqual(t, d, 10*time.Millisecond)
}

func TestNewRotatingCreatesDirAndWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfup.log")

	logger, closeLog, err := NewRotating(path, 1, zapcore.InfoLevel)
	require.NoError(t, err)

	logger.Info("hello from rotating logger", zap.String("k", "v"))
	_ = logger.Sync()
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from rotating logger")
	assert.Contains(t, string(data), `"k":"v"`)
}
