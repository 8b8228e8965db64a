package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/trendd/internal/logging"
)

func TestClassifierProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("tech cue yields handoff without completion call", func(t *testing.T) {
		completer := &fakeCompleter{reply: "GENERAL"}
		c := NewClassifier(completer, nil, logging.NewNop())

		res, err := c.Process(ctx, Request{Query: "latest AI frameworks"})
		require.NoError(t, err)
		require.NotNil(t, res.Handoff)
		assert.Equal(t, NameTrendAnalyzer, res.Handoff.Recipient)
		assert.Equal(t, TaskTrendAnalysis, res.Handoff.TaskKind)
		assert.Empty(t, completer.prompts, "cue match skips the completion round trip")
	})

	t.Run("general question yields direct chat answer", func(t *testing.T) {
		completer := &fakeCompleter{reply: "GENERAL"}
		c := NewClassifier(completer, nil, logging.NewNop())

		res, err := c.Process(ctx, Request{Query: "Where is Athens?"})
		require.NoError(t, err)
		assert.Nil(t, res.Handoff)
		assert.Equal(t, RouteChat, res.Route)
		assert.NotEmpty(t, res.Data["response"])
	})

	t.Run("completion verdict TECH yields handoff", func(t *testing.T) {
		completer := &fakeCompleter{reply: "The answer is: TECH."}
		c := NewClassifier(completer, nil, logging.NewNop())

		res, err := c.Process(ctx, Request{Query: "compare borrow checker designs"})
		require.NoError(t, err)
		require.NotNil(t, res.Handoff)
	})

	t.Run("completion failure defaults to chat", func(t *testing.T) {
		completer := &fakeCompleter{err: errors.New("backend down")}
		c := NewClassifier(completer, nil, logging.NewNop())

		res, err := c.Process(ctx, Request{Query: "Where is Athens?"})
		require.NoError(t, err)
		assert.Nil(t, res.Handoff)
		assert.True(t, res.Degraded)
		assert.NotEmpty(t, res.Data["response"])
	})

	t.Run("nil completer answers with fallback", func(t *testing.T) {
		c := NewClassifier(nil, nil, logging.NewNop())

		res, err := c.Process(ctx, Request{Query: "Where is Athens?"})
		require.NoError(t, err)
		assert.Nil(t, res.Handoff)
		assert.True(t, res.Degraded)
		assert.NotEmpty(t, res.Data["response"])
	})

	t.Run("empty query gets a prompt to ask something", func(t *testing.T) {
		c := NewClassifier(nil, nil, logging.NewNop())

		res, err := c.Process(ctx, Request{Query: "   "})
		require.NoError(t, err)
		assert.Nil(t, res.Handoff)
		assert.Equal(t, "Please provide a question.", res.Data["response"])
	})

	t.Run("short cues only match whole words", func(t *testing.T) {
		c := NewClassifier(nil, nil, logging.NewNop())

		res, err := c.Process(ctx, Request{Query: "Is it raining in Spain?"})
		require.NoError(t, err)
		assert.Nil(t, res.Handoff, "'ai' inside 'raining' and 'Spain' must not fire")
	})
}

func TestContainsCue(t *testing.T) {
	assert.True(t, containsCue("latest ai frameworks", "ai"))
	assert.True(t, containsCue("ai", "ai"))
	assert.True(t, containsCue("show me hacker news", "hacker news"))
	assert.False(t, containsCue("raining in spain", "ai"))
	assert.False(t, containsCue("technical", "tech")) // substring of a word
}
