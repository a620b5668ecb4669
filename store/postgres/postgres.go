// Package postgres implements memory.Store over a jackc/pgx/v5 pool, the
// multi-tenant deployment backend. Grounded on the teacher's
// PostgresCheckpointStore: the DBPool seam that lets tests substitute
// pgxmock for a live connection, and JSONB columns for nested state,
// widened here to the three memory tables plus a tsvector column for
// SearchMemories.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/memory"
)

// DBPool is the subset of *pgxpool.Pool the store needs, seamed so tests
// can substitute pgxmock.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store implements memory.Store over Postgres.
type Store struct {
	pool DBPool
}

// Options configures the Postgres connection.
type Options struct {
	ConnString string
}

// New opens a pool to opts.ConnString and ensures the schema.
func New(ctx context.Context, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, &memerr.StorageError{Op: "Open", Err: err}
	}
	s := &Store{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool wraps an existing pool (or pgxmock) without touching the
// schema, for tests.
func NewWithPool(pool DBPool) *Store {
	return &Store{pool: pool}
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_history (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			session_id TEXT,
			model TEXT,
			user_input TEXT,
			ai_output TEXT,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			content TEXT NOT NULL,
			summary TEXT,
			category TEXT,
			importance TEXT NOT NULL,
			classification TEXT,
			entities JSONB,
			keywords JSONB,
			confidence DOUBLE PRECISION,
			retention TEXT,
			processed_data JSONB,
			content_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			last_activity TIMESTAMPTZ NOT NULL,
			access_count INTEGER NOT NULL DEFAULT 0,
			last_accessed_at TIMESTAMPTZ,
			search_vector TSVECTOR
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_namespace ON memories (namespace)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_hash ON memories (namespace, content_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_search ON memories USING GIN (search_vector)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			type TEXT NOT NULL,
			confidence DOUBLE PRECISION,
			strength DOUBLE PRECISION,
			reason TEXT,
			entities JSONB,
			context TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rel_outgoing ON relationships (namespace, source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rel_incoming ON relationships (namespace, target_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return &memerr.StorageError{Op: "initSchema", Err: err}
		}
	}
	return nil
}

func (s *Store) StoreChatHistory(ctx context.Context, entry memory.ChatHistoryEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = generateID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return "", &memerr.StorageError{Op: "StoreChatHistory", Err: err}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chat_history (id, namespace, session_id, model, user_input, ai_output, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Namespace, entry.SessionID, entry.Model, entry.UserInput, entry.AIOutput,
		metaJSON, entry.CreatedAt)
	if err != nil {
		return "", &memerr.StorageError{Op: "StoreChatHistory", Err: err}
	}
	return entry.ID, nil
}

func (s *Store) StoreProcessedMemory(ctx context.Context, mem memory.Memory) (string, error) {
	if mem.ID == "" {
		mem.ID = generateID()
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
	processedJSON, err := json.Marshal(mem.ProcessedData)
	if err != nil {
		return "", &memerr.StorageError{Op: "StoreProcessedMemory", Err: err}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO memories (id, namespace, content, summary, category, importance, classification,
			entities, keywords, confidence, retention, processed_data, content_hash,
			created_at, last_activity, access_count, last_accessed_at, search_vector)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			setweight(to_tsvector('english', coalesce($3, '')), 'A') ||
			setweight(to_tsvector('english', coalesce($4, '')), 'B'))`,
		mem.ID, mem.Namespace, mem.Content, mem.Summary, mem.Category, string(mem.Importance),
		string(mem.Classification), entitiesJSON, keywordsJSON, mem.Confidence,
		string(mem.Retention), processedJSON, mem.ContentHash,
		mem.CreatedAt, mem.LastActivity, mem.AccessCount, mem.LastAccessedAt)
	if err != nil {
		return "", &memerr.StorageError{Op: "StoreProcessedMemory", Err: err}
	}
	return mem.ID, nil
}

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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &memerr.StorageError{Op: "StoreMemoryRelationships", Err: err}
	}
	defer tx.Rollback(ctx)

	for i := range rels {
		rel := rels[i]
		if rel.ID == "" {
			rel.ID = generateID()
		}
		if rel.CreatedAt.IsZero() {
			rel.CreatedAt = time.Now().UTC()
		}
		entitiesJSON, _ := json.Marshal(rel.Entities)

		_, err = tx.Exec(ctx, `
			INSERT INTO relationships (id, namespace, source_id, target_id, type, confidence,
				strength, reason, entities, context, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			rel.ID, rel.Namespace, rel.SourceID, rel.TargetID, string(rel.Type), rel.Confidence,
			rel.Strength, rel.Reason, entitiesJSON, rel.Context, rel.CreatedAt)
		if err != nil {
			return &memerr.StorageError{Op: "StoreMemoryRelationships", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &memerr.StorageError{Op: "StoreMemoryRelationships", Err: err}
	}
	return nil
}

// SearchMemories binds the backend-native lookup to Postgres's tsvector
// full-text search via plainto_tsquery, ranked by ts_rank.
func (s *Store) SearchMemories(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error
	if query != "" {
		rows, err = s.pool.Query(ctx, `
			SELECT id, content, summary, category, importance, created_at,
				ts_rank(search_vector, plainto_tsquery('english', $1)) AS rank
			FROM memories
			WHERE search_vector @@ plainto_tsquery('english', $1)
				AND ($2 = '' OR namespace = $2)
			ORDER BY rank DESC LIMIT $3`, query, opts.Namespace, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, content, summary, category, importance, created_at, 0.0
			FROM memories
			WHERE ($1 = '' OR namespace = $1)
			ORDER BY last_activity DESC LIMIT $2`, opts.Namespace, limit)
	}
	if err != nil {
		return nil, &memerr.StorageError{Op: "SearchMemories", Err: err}
	}
	defer rows.Close()

	var out []memory.SearchResult
	for rows.Next() {
		var r memory.SearchResult
		var importance string
		if err := rows.Scan(&r.ID, &r.Content, &r.Summary, &r.Category, &importance, &r.Timestamp, &r.Score); err != nil {
			return nil, &memerr.StorageError{Op: "SearchMemories", Err: err}
		}
		r.Importance = memory.Importance(importance)
		r.Strategy = "fts"
		if opts.MinImportance != "" && !r.Importance.AtLeast(opts.MinImportance) {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRelatedMemories(ctx context.Context, memoryID string, opts memory.RelatedOptions) ([]memory.RelatedPair, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	col, neighborCol := "source_id", "target_id"
	if opts.Direction == "incoming" {
		col, neighborCol = "target_id", "source_id"
	}

	query := fmt.Sprintf(`
		SELECT r.id, r.namespace, r.source_id, r.target_id, r.type, r.confidence, r.strength,
			r.reason, r.entities, r.context, r.created_at,
			m.id, m.namespace, m.content, m.summary, m.category, m.importance, m.classification,
			m.entities, m.keywords, m.confidence, m.retention, m.content_hash,
			m.created_at, m.last_activity, m.access_count, m.last_accessed_at
		FROM relationships r
		JOIN memories m ON m.id = r.%s
		WHERE r.%s = $1 AND r.confidence >= $2 AND r.strength >= $3
			AND ($4 = '' OR r.namespace = $4)
		LIMIT $5`, neighborCol, col)

	rows, err := s.pool.Query(ctx, query, memoryID, opts.MinConfidence, opts.MinStrength, opts.Namespace, limit)
	if err != nil {
		return nil, &memerr.StorageError{Op: "GetRelatedMemories", Err: err}
	}
	defer rows.Close()

	var out []memory.RelatedPair
	for rows.Next() {
		var rel memory.MemoryRelationship
		var relType string
		var entitiesJSON []byte
		var mem memory.Memory
		var memEntitiesJSON, memKeywordsJSON []byte
		var importance, classification, retention string

		if err := rows.Scan(
			&rel.ID, &rel.Namespace, &rel.SourceID, &rel.TargetID, &relType, &rel.Confidence, &rel.Strength,
			&rel.Reason, &entitiesJSON, &rel.Context, &rel.CreatedAt,
			&mem.ID, &mem.Namespace, &mem.Content, &mem.Summary, &mem.Category, &importance, &classification,
			&memEntitiesJSON, &memKeywordsJSON, &mem.Confidence, &retention, &mem.ContentHash,
			&mem.CreatedAt, &mem.LastActivity, &mem.AccessCount, &mem.LastAccessedAt,
		); err != nil {
			return nil, &memerr.StorageError{Op: "GetRelatedMemories", Err: err}
		}
		rel.Type = memory.RelationshipType(relType)
		_ = json.Unmarshal(entitiesJSON, &rel.Entities)
		mem.Importance = memory.Importance(importance)
		mem.Classification = memory.Classification(classification)
		mem.Retention = memory.RetentionType(retention)
		_ = json.Unmarshal(memEntitiesJSON, &mem.Entities)
		_ = json.Unmarshal(memKeywordsJSON, &mem.Keywords)

		if len(opts.RelationshipTypes) > 0 && !containsStr(opts.RelationshipTypes, string(rel.Type)) {
			continue
		}
		out = append(out, memory.RelatedPair{Memory: mem, Relationship: rel})
	}
	return out, rows.Err()
}

func (s *Store) GetMemoryByID(ctx context.Context, namespace, id string) (memory.Memory, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, namespace, content, summary, category, importance, classification,
			entities, keywords, confidence, retention, processed_data, content_hash,
			created_at, last_activity, access_count, last_accessed_at
		FROM memories WHERE id = $1 AND ($2 = '' OR namespace = $2)`, id, namespace)

	var mem memory.Memory
	var importance, classification, retention string
	var entitiesJSON, keywordsJSON, processedJSON []byte

	err := row.Scan(&mem.ID, &mem.Namespace, &mem.Content, &mem.Summary, &mem.Category, &importance,
		&classification, &entitiesJSON, &keywordsJSON, &mem.Confidence, &retention, &processedJSON,
		&mem.ContentHash, &mem.CreatedAt, &mem.LastActivity, &mem.AccessCount, &mem.LastAccessedAt)
	if err == pgx.ErrNoRows {
		return memory.Memory{}, memory.ErrNotFound
	}
	if err != nil {
		return memory.Memory{}, &memerr.StorageError{Op: "GetMemoryByID", Err: err}
	}

	mem.Importance = memory.Importance(importance)
	mem.Classification = memory.Classification(classification)
	mem.Retention = memory.RetentionType(retention)
	_ = json.Unmarshal(entitiesJSON, &mem.Entities)
	_ = json.Unmarshal(keywordsJSON, &mem.Keywords)
	_ = json.Unmarshal(processedJSON, &mem.ProcessedData)
	return mem, nil
}

func (s *Store) ConsolidateDuplicates(ctx context.Context, namespace string) (memory.ConsolidationResult, error) {
	result := memory.ConsolidationResult{Errors: make(map[string]error)}

	rows, err := s.pool.Query(ctx, `
		SELECT content_hash, id, last_activity FROM memories
		WHERE namespace = $1 ORDER BY content_hash`, namespace)
	if err != nil {
		return result, &memerr.StorageError{Op: "ConsolidateDuplicates", Err: err}
	}

	type row struct {
		id   string
		last time.Time
	}
	groups := make(map[string][]row)
	for rows.Next() {
		var hash, id string
		var last time.Time
		if err := rows.Scan(&hash, &id, &last); err != nil {
			rows.Close()
			return result, &memerr.StorageError{Op: "ConsolidateDuplicates", Err: err}
		}
		groups[hash] = append(groups[hash], row{id: id, last: last})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, &memerr.StorageError{Op: "ConsolidateDuplicates", Err: err}
	}

	for _, grp := range groups {
		if len(grp) < 2 {
			continue
		}
		survivor := grp[0]
		for _, r := range grp[1:] {
			if r.last.After(survivor.last) {
				survivor = r
			}
		}
		for _, r := range grp {
			if r.id == survivor.id {
				continue
			}
			if _, err := s.pool.Exec(ctx, `DELETE FROM memories WHERE id = $1`, r.id); err != nil {
				result.Errors[r.id] = err
				continue
			}
			result.Consolidated = append(result.Consolidated, r.id)
		}
	}
	return result, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
