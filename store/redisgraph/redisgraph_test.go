package redisgraph

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeLabel(t *testing.T) {
	assert.Equal(t, "continuation", sanitizeLabel("continuation"))
	assert.Equal(t, "a_b_c", sanitizeLabel("a-b c"))
	assert.Equal(t, "Node", sanitizeLabel(""))
}

func TestQuoteString(t *testing.T) {
	assert.Equal(t, `"hello"`, quoteString("hello"))
	assert.Equal(t, `"it's \"quoted\""`, quoteString(`it's "quoted"`))
}

func TestAsFloatAndAsTime(t *testing.T) {
	assert.Equal(t, 0.75, asFloat(0.75))
	assert.Equal(t, 3.0, asFloat(int64(3)))

	now := time.Now().Truncate(time.Second).UTC()
	got := asTime(now.Unix())
	assert.True(t, got.Equal(now))
}

func TestPropMap(t *testing.T) {
	raw := []any{
		[]any{"id", "m1"},
		[]any{"confidence", 0.9},
	}
	m := propMap(raw)
	assert.Equal(t, "m1", m["id"])
	assert.Equal(t, 0.9, m["confidence"])
}

func TestParseMemoryNode(t *testing.T) {
	node := []any{
		int64(1),
		[]any{"Memory"},
		[]any{
			[]any{"id", "m1"},
			[]any{"namespace", "default"},
			[]any{"content", "hello"},
			[]any{"importance", "high"},
			[]any{"confidence", 0.8},
			[]any{"createdAt", int64(1700000000)},
			[]any{"lastActivity", int64(1700000000)},
		},
	}
	mem := parseMemoryNode(node)
	if assert.NotNil(t, mem) {
		assert.Equal(t, "m1", mem.ID)
		assert.Equal(t, "hello", mem.Content)
		assert.EqualValues(t, "high", mem.Importance)
	}
}

func TestConsolidateDuplicates_RefusesWhenLockHeld(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, client.SetNX(context.Background(), "memcore:consolidate-lock:default", "1", time.Minute).Err())

	s := NewWithClient(client, "memcore")
	_, err = s.ConsolidateDuplicates(context.Background(), "default")
	assert.Error(t, err)
}
