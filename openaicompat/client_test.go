package openaicompat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrorigo/memcore/classify"
	"github.com/mrorigo/memcore/manager"
	"github.com/mrorigo/memcore/memory"
	"github.com/mrorigo/memcore/recorder"
	"github.com/mrorigo/memcore/search"
	"github.com/mrorigo/memcore/store/inmemory"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mgrCfg manager.Config) (*Client, *inmemory.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	inner := openai.NewClientWithConfig(cfg)

	st := inmemory.New()
	rec := recorder.New(st, classify.NewHeuristicClassifier(), recorder.Config{MemoryProcessingMode: "auto"}, nil)
	orch := search.NewOrchestrator(nil, nil, nil)
	mgr := manager.New(mgrCfg, rec, orch, nil)

	return New(inner, mgr), st
}

func anyMemoriesStored(t *testing.T, st *inmemory.Store) int {
	t.Helper()
	results, err := st.SearchMemories(context.Background(), "", memory.SearchOptions{Namespace: "default"})
	require.NoError(t, err)
	return len(results)
}

func TestClient_CreateChatCompletion_RecordsExchange(t *testing.T) {
	client, st := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello, friend"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
		}`)
	}, manager.Config{EnableChatMemory: true, MemoryProcessingMode: manager.ModeAuto, Namespace: "default"})

	resp, err := client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Model: "gpt-4",
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "hi there"},
		},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello, friend", resp.Choices[0].Message.Content)
	assert.GreaterOrEqual(t, anyMemoriesStored(t, st), 1, "chat completion should be recorded as a memory")
}

func TestClient_CreateChatCompletion_SkipsRecordingWhenDisabled(t *testing.T) {
	client, st := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "model": "gpt-4",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hi"}, "finish_reason": "stop"}]
		}`)
	}, manager.Config{EnableChatMemory: false, Namespace: "default"})

	_, err := client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Model:    "gpt-4",
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hi"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, anyMemoriesStored(t, st))
}

func TestClient_CreateEmbeddings_RecordsExchange(t *testing.T) {
	client, st := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"object": "list",
			"data": [{"object": "embedding", "embedding": [0.1, 0.2, 0.3], "index": 0}],
			"model": "text-embedding-3-small",
			"usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`)
	}, manager.Config{EnableEmbeddingMemory: true, MemoryProcessingMode: manager.ModeAuto, Namespace: "default"})

	_, err := client.CreateEmbeddings(context.Background(), openai.EmbeddingRequest{
		Input: "remember this",
		Model: openai.SmallEmbedding3,
	}, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, anyMemoriesStored(t, st), 1)
}

func TestClient_MemorySearchDelegatesToManager(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [{"message": {"content": "ok"}}]}`)
	}, manager.Config{Namespace: "default"})

	_, err := client.MemorySearch(context.Background(), search.Query{Text: "anything"})
	require.NoError(t, err)
}

func TestClient_MemoryStatsDelegatesToManager(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, manager.Config{Namespace: "default"})

	stats, err := client.MemoryStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", stats.Namespace)
}
