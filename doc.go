// Package memcore is a memory layer for LLM-driven agents: it captures
// chat completions (streaming and non-streaming), classifies them into
// durable memories, stores them across pluggable backends, and serves
// them back through a multi-strategy search orchestrator and a bounded
// relationship-graph traversal.
//
// # Quick Start
//
//	go get github.com/mrorigo/memcore
//
// Basic usage, wiring an in-memory store, a heuristic classifier, and
// an OpenAI-compatible client that records every completion it serves:
//
//	package main
//
//	import (
//		"context"
//
//		"github.com/mrorigo/memcore/classify"
//		"github.com/mrorigo/memcore/manager"
//		"github.com/mrorigo/memcore/openaicompat"
//		"github.com/mrorigo/memcore/recorder"
//		"github.com/mrorigo/memcore/store/inmemory"
//		openai "github.com/sashabaranov/go-openai"
//	)
//
//	func main() {
//		st := inmemory.New()
//		rec := recorder.New(st, classify.NewHeuristicClassifier(), recorder.Config{
//			MemoryProcessingMode: "auto",
//		}, nil)
//		mgr := manager.New(manager.Config{EnableChatMemory: true, Namespace: "default"}, rec, nil, nil)
//
//		oaiClient := openai.NewClient("sk-...")
//		client := openaicompat.New(oaiClient, mgr)
//
//		resp, err := client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
//			Model: "gpt-4",
//		}, &manager.RecordOptions{EnableMemory: true, Namespace: "default", SessionID: "s1"})
//		_ = resp
//		_ = err
//	}
//
// # Package Layout
//
//   - memory: domain types (Memory, ChatHistoryEntry, MemoryRelationship) and the Store interface
//   - store/inmemory, store/sqlite, store/postgres, store/redisgraph: Store implementations
//   - capture: the Streaming Capture Buffer state machine
//   - classify: conversation classifiers (heuristic and pluggable)
//   - recorder: the Conversation Recorder that ties capture, classify, and store together
//   - search: the multi-strategy search orchestrator, strategies, and circuit breaker
//   - manager: the top-level façade gluing capture, recorder, and search together
//   - openaicompat: a drop-in wrapper over sashabaranov/go-openai that records every call
//   - memerr: the shared error taxonomy and retry classification
//   - log: the leveled logging interface used throughout
//   - config: environment-driven configuration loading
//
// # Configuration
//
// Environment variables recognized by config.Load:
//
//   - MEMCORE_ENABLE_CHAT_MEMORY, MEMCORE_ENABLE_EMBEDDING_MEMORY: feature toggles
//   - MEMCORE_PROCESSING_MODE: auto, conscious, or none
//   - MEMCORE_MIN_IMPORTANCE: minimum importance level stored as a derived memory
//   - MEMCORE_BUFFER_TIMEOUT_MS, MEMCORE_MAX_BUFFER_SIZE_CHARS: capture buffer bounds
//   - MEMCORE_NAMESPACE: namespace used when a caller omits one
//   - MEMCORE_ENABLE_RELATIONSHIP_EXTRACTION: relationship extraction toggle
//
// # Examples
//
// The repository ships no example programs. The package tests show each
// part in use: capture/buffer_test.go for the capture buffer,
// search/orchestrator_test.go for the search orchestrator, and
// recorder/recorder_test.go for the conversation recorder.
package memcore
