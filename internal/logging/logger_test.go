package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with defaults", func(t *testing.T) {
		logger, err := NewLogger(nil)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("creates console logger", func(t *testing.T) {
		logger, err := NewLogger(&Config{Level: "debug", Format: "console"})
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		_, err := NewLogger(&Config{Level: "info", Format: "xml"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "format")
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := NewLogger(&Config{Level: "loud", Format: "json"})
		assert.Error(t, err)
	})
}

func TestContextFields(t *testing.T) {
	t.Run("empty context yields no fields", func(t *testing.T) {
		assert.Empty(t, ContextFields(context.Background()))
	})

	t.Run("correlation id is extracted", func(t *testing.T) {
		ctx := WithCorrelationID(context.Background(), "corr-123")
		fields := ContextFields(ctx)
		require.Len(t, fields, 1)
		assert.Equal(t, "correlation_id", fields[0].Key)
	})

	t.Run("request id is extracted", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-1")
		ctx = WithCorrelationID(ctx, "corr-1")
		fields := ContextFields(ctx)
		assert.Len(t, fields, 2)
	})
}

func TestCorrelationRoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc")
	assert.Equal(t, "abc", CorrelationIDFromContext(ctx))
	assert.Equal(t, "", CorrelationIDFromContext(context.Background()))
}
