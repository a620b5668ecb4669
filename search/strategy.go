// Package search implements the multi-strategy retrieval pipeline: the
// uniform Strategy contract, the built-in strategies, the relationship
// graph traversal, the circuit-breaker gate, and the orchestrator that
// plans and dispatches across all of them.
package search

import (
	"context"
	"time"

	"github.com/mrorigo/memcore/memory"
)

// Query is the caller-supplied search request, before and after sanitize.
type Query struct {
	Text      string
	Namespace string
	Limit     int
	Offset    int

	MinImportance memory.Importance
	Categories    []string
	Metadata      map[string]any
	SortDirection string // "asc" | "desc"

	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Since         string
	Until         string

	IncludeMetadata bool

	// Relationship-specific fields, ignored by non-relationship strategies.
	StartMemoryID     string
	TargetMemoryID    string
	RelationshipTypes []string
	MaxDepth          int
	MinStrength       float64
	MinConfidence     float64
	TraversalStrategy string // "bfs" | "dfs" | "strength_weighted"
	IncludePaths      bool

	// FilterExpr, if non-empty, is applied post-dedup by the orchestrator.
	FilterExpr string
}

// IsComplex reports whether the query qualifies for the semantic strategy
// per the orchestrator's planning rule (>=6 words or >100 chars).
func (q Query) IsComplex() bool {
	if len(q.Text) > 100 {
		return true
	}
	words := 0
	inWord := false
	for _, r := range q.Text {
		isSpace := r == ' ' || r == '\t' || r == '\n'
		if !isSpace && !inWord {
			words++
			inWord = true
		} else if isSpace {
			inWord = false
		}
	}
	return words >= 6
}

// Result is one hit returned by a strategy or the orchestrator.
type Result struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Score     float64
	Strategy  string
	Timestamp time.Time
}

// Capabilities declares what a strategy can do, independent of any one
// query — for operators inspecting the registry; the orchestrator's
// planning step does not consult it.
type Capabilities struct {
	SupportsRelevanceScore bool
	SupportsFiltering      bool
	SupportsPagination     bool
}

// Strategy is the uniform contract every retrieval plan element honors:
// a fixed capability record plus two query-time functions, deliberately a
// value-holding interface rather than a class hierarchy.
type Strategy interface {
	Name() string
	Priority() int
	SupportedMemoryTypes() []string
	Capabilities() Capabilities

	// CanHandle is pure and cheap: does this strategy have any chance of
	// producing useful results for q.
	CanHandle(q Query) bool

	// Execute returns at most q.Limit results. Failures must be a typed
	// *memerr.StrategyError wrapping the original cause — never swallowed.
	Execute(ctx context.Context, q Query) ([]Result, error)
}
