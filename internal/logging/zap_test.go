package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_ForwardsLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLogger(zap.New(core)).With("module", "scheduler")

	ctx := context.Background()
	log.Debug(ctx, "armed", "date", "2024-05-01")
	log.Warn(ctx, "push failed", "date", "2024-05-01")

	entries := logs.All()
	require.Len(t, entries, 2)

	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, "armed", entries[0].Message)
	require.Equal(t, "scheduler", entries[0].ContextMap()["module"])
	require.Equal(t, "2024-05-01", entries[0].ContextMap()["date"])

	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestZapLogger_InfoAndError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewZapLogger(zap.New(core))

	log.Debug(context.Background(), "filtered")
	log.Info(context.Background(), "started", "addr", ":8080")
	log.Error(context.Background(), "boom")

	require.Equal(t, 2, logs.Len())
	require.Equal(t, 1, logs.FilterMessage("boom").Len())
}
