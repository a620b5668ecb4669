package search

import (
	"context"
	"strings"

	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/memory"
)

const categoryMaxHierarchyDepth = 8

// CategoryStrategy narrows results to a hierarchical category path, e.g.
// "work/projects" matches "work/projects/memcore" but respects a maximum
// hierarchy depth to bound the comparison cost.
type CategoryStrategy struct {
	store memory.Store
}

// NewCategoryStrategy returns a CategoryStrategy bound to store.
func NewCategoryStrategy(store memory.Store) *CategoryStrategy { return &CategoryStrategy{store: store} }

func (s *CategoryStrategy) Name() string                  { return "category_filter" }
func (s *CategoryStrategy) Priority() int                  { return 80 }
func (s *CategoryStrategy) SupportedMemoryTypes() []string { return []string{"*"} }
func (s *CategoryStrategy) Capabilities() Capabilities     { return Capabilities{SupportsFiltering: true} }

func (s *CategoryStrategy) CanHandle(q Query) bool { return len(q.Categories) > 0 }

func (s *CategoryStrategy) Execute(ctx context.Context, q Query) ([]Result, error) {
	rows, err := s.store.SearchMemories(ctx, q.Text, memory.SearchOptions{
		Namespace:     q.Namespace,
		Limit:         q.Limit,
		MinImportance: q.MinImportance,
		Categories:    q.Categories,
	})
	if err != nil {
		return nil, &memerr.StrategyError{Strategy: s.Name(), Err: err}
	}

	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		if !categoryMatches(r.Category, q.Categories) {
			continue
		}
		out = append(out, Result{
			ID: r.ID, Content: r.Content, Score: 0.6, Strategy: s.Name(), Timestamp: r.Timestamp,
			Metadata: map[string]any{"category": r.Category},
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func categoryMatches(category string, wanted []string) bool {
	segs := strings.Split(category, "/")
	if len(segs) > categoryMaxHierarchyDepth {
		segs = segs[:categoryMaxHierarchyDepth]
	}
	prefix := strings.Join(segs, "/")
	for _, w := range wanted {
		if prefix == w || strings.HasPrefix(prefix, w+"/") {
			return true
		}
	}
	return false
}
