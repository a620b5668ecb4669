// Package sqlite implements memory.Store on top of database/sql plus
// mattn/go-sqlite3, the default durable single-node backend. Schema and
// migration style are grounded on the teacher's SqliteCheckpointStore
// (single-table, CREATE TABLE IF NOT EXISTS, ON CONFLICT upsert), widened
// from one blob table to the three memory tables plus an FTS5 virtual
// table for SearchMemories.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/google/uuid"

	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/memory"
)

// Store implements memory.Store over a SQLite database.
type Store struct {
	db *sql.DB
}

// Options configures the SQLite connection.
type Options struct {
	// Path is the database file, or ":memory:" for an ephemeral store.
	Path string
}

// New opens (creating if absent) the SQLite database at opts.Path and
// ensures its schema.
func New(opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, &memerr.StorageError{Op: "Open", Err: err}
	}
	// SQLite serializes writers; a single connection avoids
	// "database is locked" churn under the orchestrator's concurrent reads.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
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
			metadata TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			content TEXT NOT NULL,
			summary TEXT,
			category TEXT,
			importance TEXT NOT NULL,
			classification TEXT,
			entities TEXT,
			keywords TEXT,
			confidence REAL,
			retention TEXT,
			processed_data TEXT,
			content_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			last_activity DATETIME NOT NULL,
			access_count INTEGER NOT NULL DEFAULT 0,
			last_accessed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_namespace ON memories (namespace)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_hash ON memories (namespace, content_hash)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			id UNINDEXED, namespace UNINDEXED, content, summary,
			content='memories', content_rowid='rowid'
		)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			type TEXT NOT NULL,
			confidence REAL,
			strength REAL,
			reason TEXT,
			entities TEXT,
			context TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rel_outgoing ON relationships (namespace, source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rel_incoming ON relationships (namespace, target_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &memerr.StorageError{Op: "initSchema", Err: err}
		}
	}
	return nil
}

func (s *Store) StoreChatHistory(ctx context.Context, entry memory.ChatHistoryEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return "", &memerr.StorageError{Op: "StoreChatHistory", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_history (id, namespace, session_id, model, user_input, ai_output, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Namespace, entry.SessionID, entry.Model, entry.UserInput, entry.AIOutput,
		string(metaJSON), entry.CreatedAt)
	if err != nil {
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
	processedJSON, err := json.Marshal(mem.ProcessedData)
	if err != nil {
		return "", &memerr.StorageError{Op: "StoreProcessedMemory", Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", &memerr.StorageError{Op: "StoreProcessedMemory", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (id, namespace, content, summary, category, importance, classification,
			entities, keywords, confidence, retention, processed_data, content_hash,
			created_at, last_activity, access_count, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mem.ID, mem.Namespace, mem.Content, mem.Summary, mem.Category, string(mem.Importance),
		string(mem.Classification), string(entitiesJSON), string(keywordsJSON), mem.Confidence,
		string(mem.Retention), string(processedJSON), mem.ContentHash,
		mem.CreatedAt, mem.LastActivity, mem.AccessCount, mem.LastAccessedAt)
	if err != nil {
		return "", &memerr.StorageError{Op: "StoreProcessedMemory", Err: err}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO memories_fts (rowid, id, namespace, content, summary)
		SELECT rowid, id, namespace, content, summary FROM memories WHERE id = ?`, mem.ID)
	if err != nil {
		return "", &memerr.StorageError{Op: "StoreProcessedMemory", Err: err}
	}

	if err := tx.Commit(); err != nil {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &memerr.StorageError{Op: "StoreMemoryRelationships", Err: err}
	}
	defer tx.Rollback()

	for i := range rels {
		rel := rels[i]
		if rel.ID == "" {
			rel.ID = uuid.NewString()
		}
		if rel.CreatedAt.IsZero() {
			rel.CreatedAt = time.Now().UTC()
		}
		entitiesJSON, _ := json.Marshal(rel.Entities)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO relationships (id, namespace, source_id, target_id, type, confidence,
				strength, reason, entities, context, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rel.ID, rel.Namespace, rel.SourceID, rel.TargetID, string(rel.Type), rel.Confidence,
			rel.Strength, rel.Reason, string(entitiesJSON), rel.Context, rel.CreatedAt)
		if err != nil {
			return &memerr.StorageError{Op: "StoreMemoryRelationships", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &memerr.StorageError{Op: "StoreMemoryRelationships", Err: err}
	}
	return nil
}

// SearchMemories uses the FTS5 virtual table for non-empty queries
// (binding the backend-native lookup the interface calls for), falling
// back to a namespace scan ordered by last activity when query is empty
// (a "browse recent" call with no text). MinImportance is applied to the
// returned rows; opts.Categories is not applied.
func (s *Store) SearchMemories(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if strings.TrimSpace(query) != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT m.id, m.content, m.summary, m.category, m.importance, m.created_at,
				bm25(memories_fts) AS rank
			FROM memories_fts
			JOIN memories m ON m.id = memories_fts.id
			WHERE memories_fts MATCH ? AND (? = '' OR m.namespace = ?)
			ORDER BY rank LIMIT ?`,
			ftsQuery(query), opts.Namespace, opts.Namespace, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, content, summary, category, importance, created_at, 0.0
			FROM memories
			WHERE (? = '' OR namespace = ?)
			ORDER BY last_activity DESC LIMIT ?`,
			opts.Namespace, opts.Namespace, limit)
	}
	if err != nil {
		return nil, &memerr.StorageError{Op: "SearchMemories", Err: err}
	}
	defer rows.Close()

	var out []memory.SearchResult
	for rows.Next() {
		var r memory.SearchResult
		var importance string
		var rank float64
		if err := rows.Scan(&r.ID, &r.Content, &r.Summary, &r.Category, &importance, &r.Timestamp, &rank); err != nil {
			return nil, &memerr.StorageError{Op: "SearchMemories", Err: err}
		}
		r.Importance = memory.Importance(importance)
		r.Strategy = "fts"
		// FTS5's bm25() returns lower-is-better values that are zero or
		// negative; invert onto a [0,1) scale so better matches score higher,
		// the same direction as the other strategies' scores.
		r.Score = 1.0 - 1.0/(1.0+maxFloat(-rank, 0))
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

	col := "source_id"
	neighborCol := "target_id"
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
		WHERE r.%s = ? AND r.confidence >= ? AND r.strength >= ?
			AND (? = '' OR r.namespace = ?)
		LIMIT ?`, neighborCol, col)

	rows, err := s.db.QueryContext(ctx, query, memoryID, opts.MinConfidence, opts.MinStrength,
		opts.Namespace, opts.Namespace, limit)
	if err != nil {
		return nil, &memerr.StorageError{Op: "GetRelatedMemories", Err: err}
	}
	defer rows.Close()

	var out []memory.RelatedPair
	for rows.Next() {
		var rel memory.MemoryRelationship
		var relType string
		var entitiesJSON string
		var mem memory.Memory
		var memEntitiesJSON, memKeywordsJSON string
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
		_ = json.Unmarshal([]byte(entitiesJSON), &rel.Entities)
		mem.Importance = memory.Importance(importance)
		mem.Classification = memory.Classification(classification)
		mem.Retention = memory.RetentionType(retention)
		_ = json.Unmarshal([]byte(memEntitiesJSON), &mem.Entities)
		_ = json.Unmarshal([]byte(memKeywordsJSON), &mem.Keywords)

		if len(opts.RelationshipTypes) > 0 && !containsStr(opts.RelationshipTypes, string(rel.Type)) {
			continue
		}
		out = append(out, memory.RelatedPair{Memory: mem, Relationship: rel})
	}
	return out, rows.Err()
}

func (s *Store) GetMemoryByID(ctx context.Context, namespace, id string) (memory.Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, namespace, content, summary, category, importance, classification,
			entities, keywords, confidence, retention, processed_data, content_hash,
			created_at, last_activity, access_count, last_accessed_at
		FROM memories WHERE id = ? AND (? = '' OR namespace = ?)`, id, namespace, namespace)

	var mem memory.Memory
	var importance, classification, retention string
	var entitiesJSON, keywordsJSON, processedJSON string

	err := row.Scan(&mem.ID, &mem.Namespace, &mem.Content, &mem.Summary, &mem.Category, &importance,
		&classification, &entitiesJSON, &keywordsJSON, &mem.Confidence, &retention, &processedJSON,
		&mem.ContentHash, &mem.CreatedAt, &mem.LastActivity, &mem.AccessCount, &mem.LastAccessedAt)
	if err == sql.ErrNoRows {
		return memory.Memory{}, memory.ErrNotFound
	}
	if err != nil {
		return memory.Memory{}, &memerr.StorageError{Op: "GetMemoryByID", Err: err}
	}

	mem.Importance = memory.Importance(importance)
	mem.Classification = memory.Classification(classification)
	mem.Retention = memory.RetentionType(retention)
	_ = json.Unmarshal([]byte(entitiesJSON), &mem.Entities)
	_ = json.Unmarshal([]byte(keywordsJSON), &mem.Keywords)
	_ = json.Unmarshal([]byte(processedJSON), &mem.ProcessedData)
	return mem, nil
}

func (s *Store) ConsolidateDuplicates(ctx context.Context, namespace string) (memory.ConsolidationResult, error) {
	result := memory.ConsolidationResult{Errors: make(map[string]error)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content_hash, id, last_activity FROM memories
		WHERE namespace = ? ORDER BY content_hash`, namespace)
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, &memerr.StorageError{Op: "ConsolidateDuplicates", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

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
			if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, r.id); err != nil {
				result.Errors[r.id] = err
				continue
			}
			_, _ = tx.ExecContext(ctx, `DELETE FROM memories_fts WHERE id = ?`, r.id)
			result.Consolidated = append(result.Consolidated, r.id)
		}
	}
	if err := tx.Commit(); err != nil {
		return memory.ConsolidationResult{Errors: result.Errors}, &memerr.StorageError{Op: "ConsolidateDuplicates", Err: err}
	}
	return result, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

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

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ftsQuery wraps query in double quotes so FTS5 treats it as a phrase,
// avoiding its special-character query syntax leaking in from user text.
func ftsQuery(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}
