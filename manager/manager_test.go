package manager

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrorigo/memcore/classify"
	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/memory"
	"github.com/mrorigo/memcore/recorder"
	"github.com/mrorigo/memcore/search"
	"github.com/mrorigo/memcore/store/inmemory"
)

// flakyStore wraps a real Store and fails StoreChatHistory with a
// retryable storage error the first failTimes calls.
type flakyStore struct {
	memory.Store
	failTimes int
	calls     int
}

func (f *flakyStore) StoreChatHistory(ctx context.Context, entry memory.ChatHistoryEntry) (string, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return "", &memerr.StorageError{Op: "StoreChatHistory", Err: errProbeFailure}
	}
	return f.Store.StoreChatHistory(ctx, entry)
}

var errProbeFailure = &memerr.StorageError{Op: "probe"}

func newTestManager(t *testing.T, st memory.Store, cfg Config) *Manager {
	t.Helper()
	rec := recorder.New(st, classify.NewHeuristicClassifier(), recorder.Config{MemoryProcessingMode: "auto"}, nil)
	orch := search.NewOrchestrator(nil, nil, nil)
	return New(cfg, rec, orch, nil)
}

func chatResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Model:   "gpt-4",
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: content}}},
	}
}

func chatParams(userMsg string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: "gpt-4",
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: userMsg},
		},
	}
}

func TestManager_RecordChatCompletion_NonStreaming(t *testing.T) {
	st := inmemory.New()
	m := newTestManager(t, st, Config{EnableChatMemory: true, Namespace: "default"})

	err := m.RecordChatCompletion(context.Background(), chatParams("hi"), chatResponse("hello there"), nil)
	require.NoError(t, err)

	stats, err := m.GetMemoryStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ChatCompletions)
}

func TestManager_RecordChatCompletion_DisabledByConfigIsNoop(t *testing.T) {
	st := inmemory.New()
	m := newTestManager(t, st, Config{EnableChatMemory: false, Namespace: "default"})

	err := m.RecordChatCompletion(context.Background(), chatParams("hi"), chatResponse("hello"), nil)
	require.NoError(t, err)

	stats, _ := m.GetMemoryStats(context.Background())
	assert.Equal(t, 0, stats.ChatCompletions)
}

func TestManager_RecordChatCompletion_OptsOverrideEnableMemory(t *testing.T) {
	st := inmemory.New()
	m := newTestManager(t, st, Config{EnableChatMemory: false, Namespace: "default"})

	err := m.RecordChatCompletion(context.Background(), chatParams("hi"), chatResponse("hello"),
		&RecordOptions{EnableMemory: true, Namespace: "default"})
	require.NoError(t, err)

	stats, _ := m.GetMemoryStats(context.Background())
	assert.Equal(t, 1, stats.ChatCompletions)
}

func TestManager_RecordChatCompletion_UnrecognizedResponseShapeErrors(t *testing.T) {
	st := inmemory.New()
	m := newTestManager(t, st, Config{EnableChatMemory: true, Namespace: "default"})

	err := m.RecordChatCompletion(context.Background(), chatParams("hi"), "not a response", nil)
	assert.Error(t, err)
}

func TestManager_RecordChatCompletion_RetriesThroughTransientStorageFailure(t *testing.T) {
	st := &flakyStore{Store: inmemory.New(), failTimes: 1}
	m := newTestManager(t, st, Config{EnableChatMemory: true, Namespace: "default"})

	err := m.RecordChatCompletion(context.Background(), chatParams("hi"), chatResponse("hello"), nil)
	require.NoError(t, err, "a single transient storage failure should be retried and eventually succeed")
	assert.GreaterOrEqual(t, st.calls, 2)
}

func TestManager_RecordEmbedding(t *testing.T) {
	st := inmemory.New()
	m := newTestManager(t, st, Config{EnableEmbeddingMemory: true, Namespace: "default"})

	err := m.RecordEmbedding(context.Background(), openai.EmbeddingRequest{
		Input: "remember this",
		Model: openai.AdaEmbeddingV2,
	}, openai.EmbeddingResponse{
		Data: []openai.Embedding{{Embedding: []float32{0.1, 0.2}}},
	}, nil)
	require.NoError(t, err)

	stats, _ := m.GetMemoryStats(context.Background())
	assert.Equal(t, 1, stats.Embeddings)
}

func TestManager_SearchMemories_DefaultsNamespaceFromConfig(t *testing.T) {
	st := inmemory.New()
	m := newTestManager(t, st, Config{Namespace: "default"})

	_, err := m.SearchMemories(context.Background(), search.Query{Text: "anything"})
	require.NoError(t, err)
}

func TestManager_GetMemoryStats_UsesConfiguredNamespace(t *testing.T) {
	st := inmemory.New()
	m := newTestManager(t, st, Config{Namespace: "team-a"})

	stats, err := m.GetMemoryStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "team-a", stats.Namespace)
}

func TestNew_AppliesDefaults(t *testing.T) {
	m := newTestManager(t, inmemory.New(), Config{})
	assert.Greater(t, m.cfg.BufferTimeout.Milliseconds(), int64(0))
	assert.Greater(t, m.cfg.MaxBufferSizeChars, 0)
}
