// Package capture implements the Streaming Capture Buffer: a state
// machine that assembles a lazy sequence of LLM chat-completion chunks
// into a single complete, recordable exchange, under a watchdog timeout
// and a size bound.
//
// The state machine and watchdog idiom are adapted from
// graph/streaming.go's channel/backpressure listener and graph/retry.go's
// TimeoutNode, generalized from fan-out of StreamEvents to accumulation
// of one content string.
package capture

import (
	"context"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mrorigo/memcore/memerr"
)

// State is one point in the buffer's lifecycle.
type State int

const (
	StateIdle State = iota
	StateReceiving
	StateCompleted
	StateFailedSize
	StateFailedTimeout
	StateFailedUpstream
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateCompleted:
		return "completed"
	case StateFailedSize:
		return "failed-size"
	case StateFailedTimeout:
		return "failed-timeout"
	case StateFailedUpstream:
		return "failed-upstream"
	default:
		return "unknown"
	}
}

// Config bounds one buffer's behavior.
type Config struct {
	BufferTimeout    time.Duration
	MaxBufferSize    int
	RecordingEnabled bool
	ProcessingMode   string // "auto" | "conscious" | "none"
}

// DefaultConfig returns the buffer's default bounds.
func DefaultConfig() Config {
	return Config{
		BufferTimeout:    30 * time.Second,
		MaxBufferSize:    100_000,
		RecordingEnabled: true,
		ProcessingMode:   "auto",
	}
}

// Record is the finished, complete accumulation returned on normal
// termination.
type Record struct {
	Chunks        []openai.ChatCompletionStreamResponse
	Content       string
	Model         string
	ChunkCount    int
	ContentLength int
	Duration      time.Duration
	Usage         *openai.Usage
}

// Buffer accumulates a chunk stream into a Record. Instance-local: two
// concurrent streams use two Buffers (§5).
type Buffer struct {
	mu sync.Mutex

	cfg   Config
	state State

	chunks  []openai.ChatCompletionStreamResponse
	content strings.Builder
	model   string
	start   time.Time
}

// New returns an Idle buffer with cfg's bounds, defaulting zero fields to
// DefaultConfig's.
func New(cfg Config) *Buffer {
	d := DefaultConfig()
	if cfg.BufferTimeout <= 0 {
		cfg.BufferTimeout = d.BufferTimeout
	}
	if cfg.MaxBufferSize <= 0 {
		cfg.MaxBufferSize = d.MaxBufferSize
	}
	if cfg.ProcessingMode == "" {
		cfg.ProcessingMode = d.ProcessingMode
	}
	return &Buffer{cfg: cfg, state: StateIdle}
}

// Consume drives stream to completion or failure, rearming the watchdog on
// every chunk arrival per §4.3/§5. stream is a blocking iterator sink: the
// caller feeds chunks via next(); it returns io.EOF-equivalent (ok=false,
// err=nil) on normal termination.
func (b *Buffer) Consume(ctx context.Context, next func(context.Context) (openai.ChatCompletionStreamResponse, bool, error)) (Record, error) {
	b.mu.Lock()
	b.state = StateReceiving
	b.start = time.Now()
	b.mu.Unlock()

	watchdogFired := make(chan struct{}, 1)
	timer := time.AfterFunc(b.cfg.BufferTimeout, func() {
		select {
		case watchdogFired <- struct{}{}:
		default:
		}
	})
	defer timer.Stop()

	type chunkMsg struct {
		chunk openai.ChatCompletionStreamResponse
		ok    bool
		err   error
	}
	chunkCh := make(chan chunkMsg, 1)

	for {
		go func() {
			c, ok, err := next(ctx)
			chunkCh <- chunkMsg{c, ok, err}
		}()

		select {
		case msg := <-chunkCh:
			timer.Stop()
			if msg.err != nil {
				b.mu.Lock()
				b.state = StateFailedUpstream
				b.mu.Unlock()
				return Record{}, &memerr.StreamingError{Reason: "upstream error", Err: msg.err}
			}
			if !msg.ok {
				return b.finish()
			}

			if brErr := b.append(msg.chunk); brErr != nil {
				return Record{}, brErr
			}
			timer.Reset(b.cfg.BufferTimeout)

		case <-watchdogFired:
			b.mu.Lock()
			b.state = StateFailedTimeout
			b.mu.Unlock()
			return Record{}, &memerr.TimeoutError{Op: "streaming capture", Timeout: b.cfg.BufferTimeout.String()}

		case <-ctx.Done():
			b.mu.Lock()
			b.state = StateFailedUpstream
			b.mu.Unlock()
			return Record{}, &memerr.StreamingError{Reason: "context cancelled", Err: ctx.Err()}
		}
	}
}

func (b *Buffer) append(chunk openai.ChatCompletionStreamResponse) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, chunk)

	var delta string
	if len(chunk.Choices) > 0 {
		delta = chunk.Choices[0].Delta.Content
	}
	b.content.WriteString(delta)

	if b.model == "" && chunk.Model != "" {
		b.model = chunk.Model
	}

	if b.content.Len() > b.cfg.MaxBufferSize {
		b.state = StateFailedSize
		return &memerr.StreamingError{Reason: "size-exceeded"}
	}
	return nil
}

func (b *Buffer) finish() (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateCompleted

	var usage *openai.Usage
	if n := len(b.chunks); n > 0 && b.chunks[n-1].Usage != nil {
		usage = b.chunks[n-1].Usage
	}

	return Record{
		Chunks:        append([]openai.ChatCompletionStreamResponse(nil), b.chunks...),
		Content:       b.content.String(),
		Model:         b.model,
		ChunkCount:    len(b.chunks),
		ContentLength: b.content.Len(),
		Duration:      time.Since(b.start),
		Usage:         usage,
	}, nil
}

// State reports the buffer's current lifecycle state.
func (b *Buffer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsReadyForRecording reports chunkCount>0 && contentLength>0 per §4.3.
func (b *Buffer) IsReadyForRecording() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks) > 0 && b.content.Len() > 0
}

// Reset clears all state, returning the buffer to Idle for reuse.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateIdle
	b.chunks = nil
	b.content.Reset()
	b.model = ""
}
