package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/trendd/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("no api key yields nil client", func(t *testing.T) {
		client, err := New(&config.CompletionConfig{Model: "gpt-4o-mini"})
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("nil config yields nil client", func(t *testing.T) {
		client, err := New(nil)
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("api key yields client", func(t *testing.T) {
		client, err := New(&config.CompletionConfig{
			Model:   "gpt-4o-mini",
			APIKey:  "test-key",
			BaseURL: "http://localhost:9999/v1",
		})
		require.NoError(t, err)
		assert.NotNil(t, client)
	})
}
