// Package classify defines the Classifier interface the Conversation
// Recorder consumes to turn a raw exchange into a derivative Memory, plus
// a dependency-free default implementation so the repository runs without
// a live LLM.
package classify

import (
	"context"

	"github.com/mrorigo/memcore/memory"
)

// Input is one conversation exchange to classify.
type Input struct {
	ChatID    string
	UserInput string
	AIOutput  string
	Context   map[string]any
}

// Processed is the classifier's output per §6's ProcessedMemory shape.
type Processed struct {
	Content             string
	Summary             string
	Classification      memory.Classification
	Importance          memory.Importance
	Entities            []string
	Keywords            []string
	ConfidenceScore     float64
	ClassificationReason string
	RelatedMemories     []memory.MemoryRelationship
}

// Classifier turns a raw exchange into a Processed memory. Implementations
// may call out to an LLM; the Recorder treats any error as recoverable
// (the chat history is kept, only the derivative memory is skipped).
type Classifier interface {
	ProcessConversation(ctx context.Context, in Input) (Processed, error)
}
