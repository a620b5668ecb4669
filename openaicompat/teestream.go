package openaicompat

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mrorigo/memcore/log"
	"github.com/mrorigo/memcore/manager"
)

type relayMsg struct {
	chunk openai.ChatCompletionStreamResponse
	err   error
}

// relayStream is the Manager-facing half of the tee: it exposes the same
// Recv() surface as *openai.ChatCompletionStream but is driven by
// messages TeeStream forwards from the real stream, rather than its own
// network connection.
type relayStream struct {
	ch chan relayMsg
}

func (r *relayStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	msg, ok := <-r.ch
	if !ok {
		return openai.ChatCompletionStreamResponse{}, io.EOF
	}
	return msg.chunk, msg.err
}

// TeeStream wraps *openai.ChatCompletionStream so every chunk the caller
// receives is also forwarded to the Memory Manager's recording path. The
// caller's surface (Recv/Close) matches the SDK exactly; recording runs on
// a background goroutine fed by the same chunks.
type TeeStream struct {
	inner *openai.ChatCompletionStream
	relay chan relayMsg
	// done is closed once the recording goroutine has returned.
	done chan struct{}
}

func newTeeStream(ctx context.Context, inner *openai.ChatCompletionStream, mgr *manager.Manager, req openai.ChatCompletionRequest, opts *manager.RecordOptions) *TeeStream {
	t := &TeeStream{inner: inner, relay: make(chan relayMsg), done: make(chan struct{})}

	go func() {
		defer close(t.done)
		if err := mgr.RecordChatCompletion(ctx, req, &relayStream{ch: t.relay}, opts); err != nil {
			log.GetDefaultLogger().Warn("openaicompat: background stream recording failed: %v", err)
		}
	}()

	return t
}

// Recv returns the next chunk, relaying it to the recording goroutine
// (while that goroutine is still running) before returning to the caller.
func (t *TeeStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	chunk, err := t.inner.Recv()
	select {
	case t.relay <- relayMsg{chunk: chunk, err: err}:
	case <-t.done:
	}
	return chunk, err
}

// Close closes the underlying stream.
func (t *TeeStream) Close() {
	t.inner.Close()
}
