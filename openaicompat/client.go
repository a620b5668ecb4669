// Package openaicompat provides a drop-in facade that mimics
// sashabaranov/go-openai's *openai.Client method surface while invoking
// the Memory Manager on every call, per spec.md §6's drop-in facade
// interface. Grounded on the pack's own use of go-openai's
// request/response/stream shapes (kart-io/goagent's OpenAI provider
// wrapper calls the identical CreateChatCompletion /
// CreateChatCompletionStream / CreateEmbeddings trio).
package openaicompat

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mrorigo/memcore/manager"
	"github.com/mrorigo/memcore/search"
)

// Client forwards to an inner *openai.Client unchanged and records every
// call through Manager, respecting EnableChatMemory/EnableEmbeddingMemory.
type Client struct {
	inner *openai.Client
	mgr   *manager.Manager
}

// New returns a Client wrapping inner and recording through mgr.
func New(inner *openai.Client, mgr *manager.Manager) *Client {
	return &Client{inner: inner, mgr: mgr}
}

// CreateChatCompletion forwards to the inner client and records the
// exchange non-streaming.
func (c *Client) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest, opts *manager.RecordOptions) (openai.ChatCompletionResponse, error) {
	resp, err := c.inner.CreateChatCompletion(ctx, req)
	if err != nil {
		return resp, err
	}
	if recErr := c.mgr.RecordChatCompletion(ctx, req, resp, opts); recErr != nil {
		return resp, recErr
	}
	return resp, nil
}

// CreateChatCompletionStream forwards to the inner client and returns a
// teeing stream: every chunk the caller receives via Recv is also fed to
// the Manager's recording path, so the facade matches the SDK's surface
// exactly while still capturing the exchange. Recording happens
// asynchronously, completing shortly after the caller observes io.EOF.
func (c *Client) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest, opts *manager.RecordOptions) (*TeeStream, error) {
	inner, err := c.inner.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return newTeeStream(ctx, inner, c.mgr, req, opts), nil
}

// CreateEmbeddings forwards to the inner client and records the call.
func (c *Client) CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequest, opts *manager.RecordOptions) (openai.EmbeddingResponse, error) {
	resp, err := c.inner.CreateEmbeddings(ctx, req)
	if err != nil {
		return resp, err
	}
	if recErr := c.mgr.RecordEmbedding(ctx, req, resp, opts); recErr != nil {
		return resp, recErr
	}
	return resp, nil
}

// MemorySearch exposes memory.search per §6's facade interface.
func (c *Client) MemorySearch(ctx context.Context, q search.Query) ([]search.Result, error) {
	return c.mgr.SearchMemories(ctx, q)
}

// MemoryStats exposes memory.stats per §6's facade interface.
func (c *Client) MemoryStats(ctx context.Context) (manager.Stats, error) {
	return c.mgr.GetMemoryStats(ctx)
}
