// Package inmemory implements memory.Store with process-local maps. It is
// the default backend for tests and single-process demos, and the pattern
// every other backend's indexing mirrors: an entity/relationship pair of
// maps plus secondary indexes from source/target ID to relationship IDs
// and from content hash to memory IDs, following
// rag/store/knowledge_graph.go's MemoryGraph.
package inmemory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrorigo/memcore/memory"
	"github.com/mrorigo/memcore/memerr"
)

// Store is a thread-safe, in-process memory.Store.
type Store struct {
	mu sync.RWMutex

	chatHistory map[string]memory.ChatHistoryEntry
	memories    map[string]memory.Memory
	relsByID    map[string]memory.MemoryRelationship
	// outgoing/incoming index namespace -> {source,target}ID -> relationship
	// IDs, mirroring MemoryGraph's entityIndex idiom.
	outgoing map[string]map[string][]string
	incoming map[string]map[string][]string
	// byHash indexes namespace -> contentHash -> memory IDs for
	// ConsolidateDuplicates.
	byHash map[string]map[string][]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		chatHistory: make(map[string]memory.ChatHistoryEntry),
		memories:    make(map[string]memory.Memory),
		relsByID:    make(map[string]memory.MemoryRelationship),
		outgoing:    make(map[string]map[string][]string),
		incoming:    make(map[string]map[string][]string),
		byHash:      make(map[string]map[string][]string),
	}
}

func (s *Store) StoreChatHistory(_ context.Context, entry memory.ChatHistoryEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatHistory[entry.ID] = entry
	return entry.ID, nil
}

func (s *Store) StoreProcessedMemory(_ context.Context, mem memory.Memory) (string, error) {
	if mem.ID == "" {
		mem.ID = uuid.NewString()
	}
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now().UTC()
	}
	if mem.LastActivity.IsZero() {
		mem.LastActivity = mem.CreatedAt
	}
	if mem.ContentHash == "" {
		mem.ContentHash = contentHash(mem.Content)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.memories[mem.ID] = mem

	if _, ok := s.byHash[mem.Namespace]; !ok {
		s.byHash[mem.Namespace] = make(map[string][]string)
	}
	s.byHash[mem.Namespace][mem.ContentHash] = append(s.byHash[mem.Namespace][mem.ContentHash], mem.ID)

	return mem.ID, nil
}

func (s *Store) StoreMemoryRelationships(_ context.Context, rels []memory.MemoryRelationship) error {
	if len(rels) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate before any mutation so the write is all-or-nothing.
	for i := range rels {
		if rels[i].SourceID == "" || rels[i].TargetID == "" {
			return &memerr.StorageError{Op: "StoreMemoryRelationships", Err: &memerr.ValidationError{
				Field: "relationship", Reason: "source and target IDs are required",
			}}
		}
	}

	for i := range rels {
		rel := rels[i]
		if rel.ID == "" {
			rel.ID = uuid.NewString()
		}
		if rel.CreatedAt.IsZero() {
			rel.CreatedAt = time.Now().UTC()
		}
		s.relsByID[rel.ID] = rel

		if _, ok := s.outgoing[rel.Namespace]; !ok {
			s.outgoing[rel.Namespace] = make(map[string][]string)
		}
		s.outgoing[rel.Namespace][rel.SourceID] = append(s.outgoing[rel.Namespace][rel.SourceID], rel.ID)

		if _, ok := s.incoming[rel.Namespace]; !ok {
			s.incoming[rel.Namespace] = make(map[string][]string)
		}
		s.incoming[rel.Namespace][rel.TargetID] = append(s.incoming[rel.Namespace][rel.TargetID], rel.ID)
	}
	return nil
}

func (s *Store) SearchMemories(_ context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []memory.SearchResult
	for _, mem := range s.memories {
		if opts.Namespace != "" && mem.Namespace != opts.Namespace {
			continue
		}
		if opts.MinImportance != "" && !mem.Importance.AtLeast(opts.MinImportance) {
			continue
		}
		if len(opts.Categories) > 0 && !containsStr(opts.Categories, mem.Category) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(mem.Content), q) &&
			!strings.Contains(strings.ToLower(mem.Summary), q) {
			continue
		}

		out = append(out, memory.SearchResult{
			ID:         mem.ID,
			Content:    mem.Content,
			Summary:    mem.Summary,
			Category:   mem.Category,
			Importance: mem.Importance,
			Score:      1.0,
			Strategy:   "like",
			Timestamp:  mem.CreatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) GetRelatedMemories(_ context.Context, memoryID string, opts memory.RelatedOptions) ([]memory.RelatedPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := s.outgoing
	if opts.Direction == "incoming" {
		index = s.incoming
	}
	relIDs := index[opts.Namespace][memoryID]

	var out []memory.RelatedPair
	for _, rid := range relIDs {
		rel, ok := s.relsByID[rid]
		if !ok {
			continue
		}
		if len(opts.RelationshipTypes) > 0 && !containsStr(opts.RelationshipTypes, string(rel.Type)) {
			continue
		}
		if rel.Confidence < opts.MinConfidence || rel.Strength < opts.MinStrength {
			continue
		}

		neighborID := rel.TargetID
		if opts.Direction == "incoming" {
			neighborID = rel.SourceID
		}
		mem, ok := s.memories[neighborID]
		if !ok {
			continue
		}
		out = append(out, memory.RelatedPair{Memory: mem, Relationship: rel})
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) GetMemoryByID(_ context.Context, namespace, id string) (memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mem, ok := s.memories[id]
	if !ok || (namespace != "" && mem.Namespace != namespace) {
		return memory.Memory{}, memory.ErrNotFound
	}
	return mem, nil
}

func (s *Store) ConsolidateDuplicates(_ context.Context, namespace string) (memory.ConsolidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := memory.ConsolidationResult{Errors: make(map[string]error)}

	for _, ids := range s.byHash[namespace] {
		if len(ids) < 2 {
			continue
		}

		survivor := ids[0]
		for _, id := range ids[1:] {
			if mem, ok := s.memories[id]; ok {
				if surv, ok := s.memories[survivor]; ok && mem.LastActivity.After(surv.LastActivity) {
					survivor, id = id, survivor
				}
			}
		}

		for _, id := range ids {
			if id == survivor {
				continue
			}
			delete(s.memories, id)
			result.Consolidated = append(result.Consolidated, id)
		}
		s.byHash[namespace][s.memories[survivor].ContentHash] = []string{survivor}
	}

	return result, nil
}

func (s *Store) Close() error { return nil }

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
