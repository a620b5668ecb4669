package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrorigo/memcore/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_StoreAndGetMemoryByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.StoreProcessedMemory(ctx, memory.Memory{
		Namespace: "default", Content: "the sky is blue", Category: "fact",
		Importance: memory.ImportanceHigh,
	})
	require.NoError(t, err)

	got, err := s.GetMemoryByID(ctx, "default", id)
	require.NoError(t, err)
	assert.Equal(t, "the sky is blue", got.Content)
	assert.Equal(t, memory.ImportanceHigh, got.Importance)
	assert.NotEmpty(t, got.ContentHash)
}

func TestStore_GetMemoryByID_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetMemoryByID(context.Background(), "default", "missing")
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestStore_SearchMemories_FTSMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.StoreProcessedMemory(ctx, memory.Memory{
		Namespace: "default", Content: "the user prefers dark mode", Importance: memory.ImportanceMedium,
	})
	require.NoError(t, err)
	_, err = s.StoreProcessedMemory(ctx, memory.Memory{
		Namespace: "default", Content: "unrelated content about cooking", Importance: memory.ImportanceMedium,
	})
	require.NoError(t, err)

	results, err := s.SearchMemories(ctx, "dark mode", memory.SearchOptions{Namespace: "default"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "dark mode")
}

func TestStore_StoreMemoryRelationships_RejectsMissingEndpoints(t *testing.T) {
	s := newTestStore(t)
	err := s.StoreMemoryRelationships(context.Background(), []memory.MemoryRelationship{
		{Namespace: "default", SourceID: "", TargetID: "m2"},
	})
	assert.Error(t, err)
}

func TestStore_GetRelatedMemories_OutgoingAndIncoming(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	idA, err := s.StoreProcessedMemory(ctx, memory.Memory{Namespace: "default", Content: "A", Importance: memory.ImportanceLow})
	require.NoError(t, err)
	idB, err := s.StoreProcessedMemory(ctx, memory.Memory{Namespace: "default", Content: "B", Importance: memory.ImportanceLow})
	require.NoError(t, err)

	err = s.StoreMemoryRelationships(ctx, []memory.MemoryRelationship{
		{Namespace: "default", SourceID: idA, TargetID: idB, Type: memory.RelRelated, Confidence: 0.9, Strength: 0.8},
	})
	require.NoError(t, err)

	out, err := s.GetRelatedMemories(ctx, idA, memory.RelatedOptions{Namespace: "default", Direction: "outgoing"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, idB, out[0].Memory.ID)

	in, err := s.GetRelatedMemories(ctx, idB, memory.RelatedOptions{Namespace: "default", Direction: "incoming"})
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, idA, in[0].Memory.ID)
}

func TestStore_ConsolidateDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.StoreProcessedMemory(ctx, memory.Memory{Namespace: "default", Content: "dup", Importance: memory.ImportanceLow})
	require.NoError(t, err)
	_, err = s.StoreProcessedMemory(ctx, memory.Memory{Namespace: "default", Content: "dup", Importance: memory.ImportanceLow})
	require.NoError(t, err)

	result, err := s.ConsolidateDuplicates(ctx, "default")
	require.NoError(t, err)
	assert.Len(t, result.Consolidated, 1)
}
