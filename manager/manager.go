// Package manager implements the Memory Manager (C10): the top-level
// coordinator wiring the Streaming Capture Buffer, Conversation Recorder,
// Retry Context Holder, and Search Orchestrator into the public
// recordChatCompletion / recordEmbedding / searchMemories / getMemoryStats
// surface.
package manager

import (
	"context"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mrorigo/memcore/capture"
	"github.com/mrorigo/memcore/log"
	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/recorder"
	"github.com/mrorigo/memcore/search"
)

// ProcessingMode mirrors the recognized `memoryProcessingMode` option.
type ProcessingMode string

const (
	ModeAuto      ProcessingMode = "auto"
	ModeConscious ProcessingMode = "conscious"
	ModeNone      ProcessingMode = "none"
)

// Config is the recognized options surface of §6.
type Config struct {
	EnableChatMemory             bool
	EnableEmbeddingMemory        bool
	MemoryProcessingMode         ProcessingMode
	MinImportanceLevel           string
	BufferTimeout                time.Duration
	MaxBufferSizeChars           int
	BackgroundUpdateInterval     time.Duration
	Namespace                    string
	EnableRelationshipExtraction bool
}

// RecordOptions overrides Config on a single call.
type RecordOptions struct {
	EnableMemory bool
	SessionID    string
	Namespace    string
}

// chatStream is the minimal surface of *openai.ChatCompletionStream the
// manager needs; detecting it structurally is how Go expresses "presence
// of the async-iterator protocol" from §4.10.
type chatStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
}

// Manager is the C10 coordinator. One Manager owns its own Streaming
// Capture Buffers (one per concurrent stream, created fresh per call) and
// exactly one RetryContextHolder, per §5's ownership rule.
type Manager struct {
	cfg         Config
	recorder    *recorder.Recorder
	orchestrator *search.Orchestrator
	retryHolder *RetryContextHolder
	retryPolicy RetryPolicy
	logger      log.Logger

	stats Stats
}

// New returns a Manager wired to rec and orch.
func New(cfg Config, rec *recorder.Recorder, orch *search.Orchestrator, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	if cfg.BufferTimeout <= 0 {
		cfg.BufferTimeout = 30 * time.Second
	}
	if cfg.MaxBufferSizeChars <= 0 {
		cfg.MaxBufferSizeChars = 100_000
	}
	return &Manager{
		cfg: cfg, recorder: rec, orchestrator: orch,
		retryHolder: NewRetryContextHolder(), retryPolicy: DefaultRetryPolicy(),
		logger: logger,
	}
}

// RecordChatCompletion implements §4.10's recordChatCompletion.
func (m *Manager) RecordChatCompletion(ctx context.Context, params openai.ChatCompletionRequest, response any, opts *RecordOptions) error {
	if !m.effectiveEnableMemory(opts, m.cfg.EnableChatMemory) {
		return nil
	}

	namespace := m.effectiveNamespace(opts)
	sessionID := ""
	if opts != nil {
		sessionID = opts.SessionID
	}

	fn := func(ctx context.Context) error {
		if stream, ok := response.(chatStream); ok {
			return m.recordStreamingChat(ctx, namespace, sessionID, params, stream)
		}
		if resp, ok := response.(openai.ChatCompletionResponse); ok {
			return m.recordNonStreamingChat(ctx, namespace, sessionID, params, resp)
		}
		return &memerr.RecordingError{Reason: "unrecognized response shape"}
	}

	if err := fn(ctx); err != nil {
		m.stats.RecordingErrors++
		m.retryHolder.Push(OperationContext{Kind: OperationChat, Params: params, Response: response, Options: opts})
		if !memerr.Retryable(err) {
			return err
		}
		return m.retryHolder.Replay(ctx, m.retryPolicy, fn)
	}
	m.stats.ChatCompletions++
	return nil
}

func (m *Manager) recordStreamingChat(ctx context.Context, namespace, sessionID string, params openai.ChatCompletionRequest, stream chatStream) error {
	buf := capture.New(capture.Config{
		BufferTimeout:    m.cfg.BufferTimeout,
		MaxBufferSize:    m.cfg.MaxBufferSizeChars,
		RecordingEnabled: true,
		ProcessingMode:   string(m.cfg.MemoryProcessingMode),
	})

	record, err := buf.Consume(ctx, func(_ context.Context) (openai.ChatCompletionStreamResponse, bool, error) {
		chunk, recvErr := stream.Recv()
		if recvErr == io.EOF {
			return openai.ChatCompletionStreamResponse{}, false, nil
		}
		if recvErr != nil {
			return openai.ChatCompletionStreamResponse{}, false, recvErr
		}
		return chunk, true, nil
	})
	if err != nil {
		return err
	}
	if !buf.IsReadyForRecording() {
		return &memerr.RecordingError{Reason: "empty-output"}
	}

	userInput := lastUserMessage(params.Messages)

	_, recErr := m.recorder.RecordStreaming(ctx, namespace, sessionID, record.Model, userInput, record.Content, map[string]any{
		"chunkCount": record.ChunkCount, "durationMs": record.Duration.Milliseconds(),
	})
	return recErr
}

func (m *Manager) recordNonStreamingChat(ctx context.Context, namespace, sessionID string, params openai.ChatCompletionRequest, resp openai.ChatCompletionResponse) error {
	userInput := lastUserMessage(params.Messages)
	aiOutput := ""
	finishReason := ""
	if len(resp.Choices) > 0 {
		aiOutput = resp.Choices[0].Message.Content
		finishReason = string(resp.Choices[0].FinishReason)
	}

	metadata := map[string]any{
		"finishReason":     finishReason,
		"systemFingerprint": resp.SystemFingerprint,
		"promptTokens":     resp.Usage.PromptTokens,
		"completionTokens": resp.Usage.CompletionTokens,
	}

	_, err := m.recorder.RecordNonStreaming(ctx, namespace, sessionID, resp.Model, userInput, aiOutput, metadata)
	return err
}

// RecordEmbedding implements §4.10's recordEmbedding.
func (m *Manager) RecordEmbedding(ctx context.Context, params openai.EmbeddingRequest, response openai.EmbeddingResponse, opts *RecordOptions) error {
	if !m.effectiveEnableMemory(opts, m.cfg.EnableEmbeddingMemory) {
		return nil
	}

	namespace := m.effectiveNamespace(opts)
	sessionID := ""
	if opts != nil {
		sessionID = opts.SessionID
	}

	summary := summarizeEmbeddingInput(params.Input)
	userInput := fmt.Sprintf("Embedding request: %s", summary)

	dims := 0
	if len(response.Data) > 0 {
		dims = len(response.Data[0].Embedding)
	}
	aiOutput := fmt.Sprintf("Generated %d embeddings of %d dimensions", len(response.Data), dims)

	meta := map[string]any{"classification": "reference", "importance": "low"}
	_, err := m.recorder.RecordNonStreaming(ctx, namespace, sessionID, string(params.Model), userInput, aiOutput, meta)
	if err != nil {
		m.stats.RecordingErrors++
		m.retryHolder.Push(OperationContext{Kind: OperationEmbedding, Params: params, Response: response, Options: opts})
		if memerr.Retryable(err) {
			replayErr := m.retryHolder.Replay(ctx, m.retryPolicy, func(ctx context.Context) error {
				_, e := m.recorder.RecordNonStreaming(ctx, namespace, sessionID, string(params.Model), userInput, aiOutput, meta)
				return e
			})
			if replayErr == nil {
				m.stats.Embeddings++
			}
			return replayErr
		}
		return err
	}
	m.stats.Embeddings++
	return nil
}

// SearchMemories delegates to the Search Orchestrator.
func (m *Manager) SearchMemories(ctx context.Context, q search.Query) ([]search.Result, error) {
	if q.Namespace == "" {
		q.Namespace = m.cfg.Namespace
	}
	return m.orchestrator.Search(ctx, q)
}

// Stats is the public shape of getMemoryStats.
type Stats struct {
	Namespace        string
	ChatCompletions  int
	Embeddings       int
	RecordingErrors  int
}

// GetMemoryStats returns this Manager's running counters. They count every
// call the Manager recorded, whatever namespace that call used, and are
// labeled with the Manager's own configured Namespace (the resolution
// chosen for spec.md §9 OQ2) rather than a private-field fallback.
func (m *Manager) GetMemoryStats(_ context.Context) (Stats, error) {
	s := m.stats
	s.Namespace = m.cfg.Namespace
	return s, nil
}

func (m *Manager) effectiveEnableMemory(opts *RecordOptions, cfgDefault bool) bool {
	if opts != nil {
		return opts.EnableMemory
	}
	return cfgDefault
}

func (m *Manager) effectiveNamespace(opts *RecordOptions) string {
	if opts != nil && opts.Namespace != "" {
		return opts.Namespace
	}
	return m.cfg.Namespace
}

func lastUserMessage(messages []openai.ChatCompletionMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == openai.ChatMessageRoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func summarizeEmbeddingInput(input any) string {
	switch v := input.(type) {
	case string:
		if len(v) > 80 {
			return v[:80] + "..."
		}
		return v
	case []string:
		if len(v) == 0 {
			return ""
		}
		return fmt.Sprintf("%d inputs, first: %.60s", len(v), v[0])
	default:
		return fmt.Sprintf("%v", v)
	}
}
