package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrorigo/memcore/memory"
)

func TestStore_StoreChatHistory(t *testing.T) {
	st := New()
	id, err := st.StoreChatHistory(context.Background(), memory.ChatHistoryEntry{
		Namespace: "default", SessionID: "s1", UserInput: "hi", AIOutput: "hello",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestStore_StoreAndSearchMemories(t *testing.T) {
	st := New()
	_, err := st.StoreProcessedMemory(context.Background(), memory.Memory{
		Namespace: "default", Content: "the user's favorite color is blue", Category: "preference",
	})
	require.NoError(t, err)

	results, err := st.SearchMemories(context.Background(), "blue", memory.SearchOptions{Namespace: "default"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "blue")
}

func TestStore_SearchMemories_FiltersByNamespaceAndImportance(t *testing.T) {
	st := New()
	ctx := context.Background()
	_, _ = st.StoreProcessedMemory(ctx, memory.Memory{Namespace: "a", Content: "low importance", Importance: memory.ImportanceLow})
	_, _ = st.StoreProcessedMemory(ctx, memory.Memory{Namespace: "a", Content: "high importance", Importance: memory.ImportanceHigh})
	_, _ = st.StoreProcessedMemory(ctx, memory.Memory{Namespace: "b", Content: "other namespace", Importance: memory.ImportanceHigh})

	results, err := st.SearchMemories(ctx, "", memory.SearchOptions{Namespace: "a", MinImportance: memory.ImportanceHigh})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "high importance", results[0].Content)
}

func TestStore_GetMemoryByID_NotFound(t *testing.T) {
	st := New()
	_, err := st.GetMemoryByID(context.Background(), "default", "missing")
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestStore_StoreMemoryRelationships_RejectsMissingEndpoints(t *testing.T) {
	st := New()
	err := st.StoreMemoryRelationships(context.Background(), []memory.MemoryRelationship{{SourceID: "", TargetID: "x"}})
	assert.Error(t, err)
}

func TestStore_GetRelatedMemories_OutgoingAndIncoming(t *testing.T) {
	st := New()
	ctx := context.Background()
	_, _ = st.StoreProcessedMemory(ctx, memory.Memory{ID: "a", Namespace: "default", Content: "a"})
	_, _ = st.StoreProcessedMemory(ctx, memory.Memory{ID: "b", Namespace: "default", Content: "b"})

	err := st.StoreMemoryRelationships(ctx, []memory.MemoryRelationship{{
		Namespace: "default", SourceID: "a", TargetID: "b", Type: memory.RelRelated, Strength: 0.9, Confidence: 0.9,
	}})
	require.NoError(t, err)

	out, err := st.GetRelatedMemories(ctx, "a", memory.RelatedOptions{Namespace: "default", Direction: "outgoing"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].Memory.ID)

	in, err := st.GetRelatedMemories(ctx, "b", memory.RelatedOptions{Namespace: "default", Direction: "incoming"})
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, "a", in[0].Memory.ID)
}

func TestStore_ConsolidateDuplicates_KeepsMostRecentlyActive(t *testing.T) {
	st := New()
	ctx := context.Background()
	now := time.Now().UTC()

	_, _ = st.StoreProcessedMemory(ctx, memory.Memory{
		ID: "old", Namespace: "default", Content: "duplicate content",
		ContentHash: "samehash", LastActivity: now.Add(-time.Hour),
	})
	_, _ = st.StoreProcessedMemory(ctx, memory.Memory{
		ID: "new", Namespace: "default", Content: "duplicate content",
		ContentHash: "samehash", LastActivity: now,
	})

	result, err := st.ConsolidateDuplicates(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, result.Consolidated)

	_, err = st.GetMemoryByID(ctx, "default", "old")
	assert.ErrorIs(t, err, memory.ErrNotFound)

	survivor, err := st.GetMemoryByID(ctx, "default", "new")
	require.NoError(t, err)
	assert.Equal(t, "duplicate content", survivor.Content)
}
