// Package redisgraph implements memory.Store over a FalkorDB-flavored
// redis/go-redis/v9 connection, reachable via GRAPH.QUERY-style Cypher
// commands. Optional and wired only for deployments that want relationship
// edges served by a native graph engine; grounded on
// rag/store/falkordb.go's MERGE/MATCH query shapes and its NewGraph/Query
// command helper (reused here rather than re-implemented).
package redisgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/memory"
	ragstore "github.com/mrorigo/memcore/rag/store"
)

// Store implements memory.Store over a single FalkorDB-compatible graph.
type Store struct {
	client    redis.UniversalClient
	graphName string
}

// Options configures the connection.
type Options struct {
	Addr      string
	GraphName string // default "memcore"
}

// New dials a redis client and targets the named graph.
func New(opts Options) (*Store, error) {
	name := opts.GraphName
	if name == "" {
		name = "memcore"
	}
	client := redis.NewClient(&redis.Options{Addr: opts.Addr})
	return &Store{client: client, graphName: name}, nil
}

// NewWithClient wraps an existing client (e.g. alicebob/miniredis/v2's
// in-process server), for tests.
func NewWithClient(client redis.UniversalClient, graphName string) *Store {
	if graphName == "" {
		graphName = "memcore"
	}
	return &Store{client: client, graphName: graphName}
}

func (s *Store) graph() ragstore.Graph {
	return ragstore.NewGraph(s.graphName, s.client)
}

var labelRegex = regexp.MustCompile(`[^a-zA-Z0-9_]`)

func sanitizeLabel(l string) string {
	clean := labelRegex.ReplaceAllString(l, "_")
	if clean == "" {
		return "Node"
	}
	return clean
}

func quoteString(v string) string {
	return strconv.Quote(v)
}

func (s *Store) StoreChatHistory(ctx context.Context, entry memory.ChatHistoryEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	metaJSON, _ := json.Marshal(entry.Metadata)

	props := fmt.Sprintf(
		"{id: %s, namespace: %s, sessionId: %s, model: %s, userInput: %s, aiOutput: %s, metadata: %s, createdAt: %d}",
		quoteString(entry.ID), quoteString(entry.Namespace), quoteString(entry.SessionID), quoteString(entry.Model),
		quoteString(entry.UserInput), quoteString(entry.AIOutput), quoteString(string(metaJSON)), entry.CreatedAt.Unix())

	query := fmt.Sprintf("MERGE (n:ChatHistory {id: %s}) SET n += %s", quoteString(entry.ID), props)
	if _, err := s.graph().Query(ctx, query); err != nil {
		return "", &memerr.StorageError{Op: "StoreChatHistory", Err: err}
	}
	return entry.ID, nil
}

func (s *Store) StoreProcessedMemory(ctx context.Context, mem memory.Memory) (string, error) {
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
	entitiesJSON, _ := json.Marshal(mem.Entities)
	keywordsJSON, _ := json.Marshal(mem.Keywords)
	processedJSON, _ := json.Marshal(mem.ProcessedData)

	props := fmt.Sprintf(`{id: %s, namespace: %s, content: %s, summary: %s, category: %s, importance: %s,
		classification: %s, entities: %s, keywords: %s, confidence: %f, retention: %s, processedData: %s,
		contentHash: %s, createdAt: %d, lastActivity: %d, accessCount: %d}`,
		quoteString(mem.ID), quoteString(mem.Namespace), quoteString(mem.Content), quoteString(mem.Summary),
		quoteString(mem.Category), quoteString(string(mem.Importance)), quoteString(string(mem.Classification)),
		quoteString(string(entitiesJSON)), quoteString(string(keywordsJSON)), mem.Confidence,
		quoteString(string(mem.Retention)), quoteString(string(processedJSON)), quoteString(mem.ContentHash),
		mem.CreatedAt.Unix(), mem.LastActivity.Unix(), mem.AccessCount)

	query := fmt.Sprintf("MERGE (n:Memory {id: %s}) SET n += %s", quoteString(mem.ID), props)
	if _, err := s.graph().Query(ctx, query); err != nil {
		return "", &memerr.StorageError{Op: "StoreProcessedMemory", Err: err}
	}
	return mem.ID, nil
}

// StoreMemoryRelationships validates every edge before writing any, then
// writes each edge with its own GRAPH.QUERY. The writes are not grouped in
// one transaction: a query that fails part-way leaves the edges written
// before it in place.
func (s *Store) StoreMemoryRelationships(ctx context.Context, rels []memory.MemoryRelationship) error {
	if len(rels) == 0 {
		return nil
	}
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
		entitiesJSON, _ := json.Marshal(rel.Entities)
		relLabel := sanitizeLabel(string(rel.Type))

		props := fmt.Sprintf(`{id: %s, namespace: %s, confidence: %f, strength: %f, reason: %s, entities: %s, context: %s, createdAt: %d}`,
			quoteString(rel.ID), quoteString(rel.Namespace), rel.Confidence, rel.Strength,
			quoteString(rel.Reason), quoteString(string(entitiesJSON)), quoteString(rel.Context), rel.CreatedAt.Unix())

		query := fmt.Sprintf(
			"MATCH (a:Memory {id: %s}), (b:Memory {id: %s}) MERGE (a)-[r:%s {id: %s}]->(b) SET r += %s",
			quoteString(rel.SourceID), quoteString(rel.TargetID), relLabel, quoteString(rel.ID), props)

		if _, err := s.graph().Query(ctx, query); err != nil {
			return &memerr.StorageError{Op: "StoreMemoryRelationships", Err: err}
		}
	}
	return nil
}

// SearchMemories matches every Memory node in the namespace and filters
// client-side by substring, the same LIKE fallback like.go uses — FalkorDB
// in this deployment carries no native full-text index, so the graph
// engine is reserved for relationship reads per the backend's optional
// scope.
func (s *Store) SearchMemories(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	cypher := "MATCH (n:Memory)"
	if opts.Namespace != "" {
		cypher += fmt.Sprintf(" WHERE n.namespace = %s", quoteString(opts.Namespace))
	}
	cypher += " RETURN n"

	qr, err := s.graph().Query(ctx, cypher)
	if err != nil {
		return nil, &memerr.StorageError{Op: "SearchMemories", Err: err}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	q := strings.ToLower(strings.TrimSpace(query))

	var out []memory.SearchResult
	for _, row := range qr.Results {
		if len(row) == 0 {
			continue
		}
		mem := parseMemoryNode(row[0])
		if mem == nil {
			continue
		}
		if opts.MinImportance != "" && !mem.Importance.AtLeast(opts.MinImportance) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(mem.Content), q) && !strings.Contains(strings.ToLower(mem.Summary), q) {
			continue
		}
		out = append(out, memory.SearchResult{
			ID: mem.ID, Content: mem.Content, Summary: mem.Summary, Category: mem.Category,
			Importance: mem.Importance, Score: 1.0, Strategy: "like", Timestamp: mem.CreatedAt,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetRelatedMemories(ctx context.Context, memoryID string, opts memory.RelatedOptions) ([]memory.RelatedPair, error) {
	cypher := fmt.Sprintf("MATCH (a:Memory {id: %s})-[r]->(b:Memory) RETURN r, b", quoteString(memoryID))
	if opts.Direction == "incoming" {
		cypher = fmt.Sprintf("MATCH (b:Memory)-[r]->(a:Memory {id: %s}) RETURN r, b", quoteString(memoryID))
	}

	qr, err := s.graph().Query(ctx, cypher)
	if err != nil {
		return nil, &memerr.StorageError{Op: "GetRelatedMemories", Err: err}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var out []memory.RelatedPair
	for _, row := range qr.Results {
		if len(row) < 2 {
			continue
		}
		rel := parseRelationshipEdge(row[0], memoryID, opts.Direction)
		neighbor := parseMemoryNode(row[1])
		if rel == nil || neighbor == nil {
			continue
		}
		if opts.Namespace != "" && rel.Namespace != opts.Namespace {
			continue
		}
		if rel.Confidence < opts.MinConfidence || rel.Strength < opts.MinStrength {
			continue
		}
		if len(opts.RelationshipTypes) > 0 && !containsStr(opts.RelationshipTypes, string(rel.Type)) {
			continue
		}
		out = append(out, memory.RelatedPair{Memory: *neighbor, Relationship: *rel})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetMemoryByID(ctx context.Context, namespace, id string) (memory.Memory, error) {
	cypher := fmt.Sprintf("MATCH (n:Memory {id: %s}) RETURN n", quoteString(id))
	qr, err := s.graph().Query(ctx, cypher)
	if err != nil {
		return memory.Memory{}, &memerr.StorageError{Op: "GetMemoryByID", Err: err}
	}
	if len(qr.Results) == 0 || len(qr.Results[0]) == 0 {
		return memory.Memory{}, memory.ErrNotFound
	}
	mem := parseMemoryNode(qr.Results[0][0])
	if mem == nil || (namespace != "" && mem.Namespace != namespace) {
		return memory.Memory{}, memory.ErrNotFound
	}
	return *mem, nil
}

// ConsolidateDuplicates holds a short-lived SETNX lock per namespace while
// it groups nodes by contentHash and deletes all but the most recently
// active survivor. The lock stands in for a SQL transaction, much as the
// map-backed store holds its mutex for the whole pass.
func (s *Store) ConsolidateDuplicates(ctx context.Context, namespace string) (memory.ConsolidationResult, error) {
	result := memory.ConsolidationResult{Errors: make(map[string]error)}

	lockKey := "memcore:consolidate-lock:" + namespace
	acquired, err := s.client.SetNX(ctx, lockKey, "1", 30*time.Second).Result()
	if err != nil {
		return result, &memerr.StorageError{Op: "ConsolidateDuplicates", Err: err}
	}
	if !acquired {
		return result, &memerr.StorageError{Op: "ConsolidateDuplicates", Err: fmt.Errorf("consolidation already in progress for %s", namespace)}
	}
	defer s.client.Del(ctx, lockKey)

	cypher := fmt.Sprintf("MATCH (n:Memory {namespace: %s}) RETURN n", quoteString(namespace))
	qr, err := s.graph().Query(ctx, cypher)
	if err != nil {
		return result, &memerr.StorageError{Op: "ConsolidateDuplicates", Err: err}
	}

	groups := make(map[string][]*memory.Memory)
	for _, row := range qr.Results {
		if len(row) == 0 {
			continue
		}
		mem := parseMemoryNode(row[0])
		if mem == nil {
			continue
		}
		groups[mem.ContentHash] = append(groups[mem.ContentHash], mem)
	}

	for _, grp := range groups {
		if len(grp) < 2 {
			continue
		}
		survivor := grp[0]
		for _, m := range grp[1:] {
			if m.LastActivity.After(survivor.LastActivity) {
				survivor = m
			}
		}
		for _, m := range grp {
			if m.ID == survivor.ID {
				continue
			}
			delCypher := fmt.Sprintf("MATCH (n:Memory {id: %s}) DETACH DELETE n", quoteString(m.ID))
			if _, err := s.graph().Query(ctx, delCypher); err != nil {
				result.Errors[m.ID] = err
				continue
			}
			result.Consolidated = append(result.Consolidated, m.ID)
		}
	}
	return result, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
