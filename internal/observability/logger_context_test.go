package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextWithLogger_RoundTrip(t *testing.T) {
	lg := slog.Default().With(slog.String("component", "test"))
	ctx := ContextWithLogger(context.Background(), lg)
	assert.Same(t, lg, LoggerFromContext(ctx))
}

func TestLoggerFromContext_FallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), LoggerFromContext(context.Background()))
	assert.Same(t, slog.Default(), LoggerFromContext(nil)) //nolint:staticcheck
}

func TestContextWithRunID_RoundTrip(t *testing.T) {
	ctx := ContextWithRunID(context.Background(), "run-42")
	assert.Equal(t, "run-42", RunIDFromContext(ctx))
}

func TestContextWithRunID_EmptyIgnored(t *testing.T) {
	ctx := ContextWithRunID(context.Background(), "")
	assert.Empty(t, RunIDFromContext(ctx))
}
