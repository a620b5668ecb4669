package memory

import "context"

// Store is the persistence contract every backend (inmemory, sqlite,
// postgres, redisgraph) implements. Generalized from store/checkpoint.go's
// single-blob Checkpoint/CheckpointStore pattern to the four memory tables:
// raw chat history, processed memories, relationships between memories, and
// the search/traversal reads layered on top.
//
// A processed memory and its extracted relationships are written by
// separate calls (StoreProcessedMemory, then StoreMemoryRelationships), so a
// failed relationship write leaves the memory stored. A failing write call
// returns an error.
type Store interface {
	// StoreChatHistory persists one raw exchange prior to classification.
	StoreChatHistory(ctx context.Context, entry ChatHistoryEntry) (string, error)

	// StoreProcessedMemory persists a classified Memory derived from a
	// ChatHistoryEntry (or other capture source).
	StoreProcessedMemory(ctx context.Context, mem Memory) (string, error)

	// StoreMemoryRelationships persists zero or more edges atomically; a
	// failure leaves no partial subset written.
	StoreMemoryRelationships(ctx context.Context, rels []MemoryRelationship) error

	// SearchMemories runs a backend-native lookup (keyword/FTS where
	// supported) constrained by opts.
	SearchMemories(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)

	// GetRelatedMemories returns the 1-hop neighbors of memoryID along
	// relationship edges in the direction given by opts.Direction
	// (default "outgoing"), constrained by opts.
	GetRelatedMemories(ctx context.Context, memoryID string, opts RelatedOptions) ([]RelatedPair, error)

	// GetMemoryByID fetches a single Memory, or ErrNotFound if absent.
	GetMemoryByID(ctx context.Context, namespace, id string) (Memory, error)

	// ConsolidateDuplicates merges memories in namespace whose
	// ContentHash collides, keeping the most recently active survivor and
	// reporting per-id failures without aborting the whole batch.
	ConsolidateDuplicates(ctx context.Context, namespace string) (ConsolidationResult, error)

	// Close releases any underlying connection or handle.
	Close() error
}

// ErrNotFound is returned by GetMemoryByID when no record matches.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "memory: not found" }
