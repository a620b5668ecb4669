package search

import (
	"context"
	"strings"

	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/memory"
)

const metadataMaxPathDepth = 6

// MetadataStrategy filters by a nested-path lookup into the opaque
// metadata map, e.g. "source.channel" = "slack".
type MetadataStrategy struct {
	store memory.Store
}

// NewMetadataStrategy returns a MetadataStrategy bound to store.
func NewMetadataStrategy(store memory.Store) *MetadataStrategy { return &MetadataStrategy{store: store} }

func (s *MetadataStrategy) Name() string                  { return "metadata_filter" }
func (s *MetadataStrategy) Priority() int                  { return 72 }
func (s *MetadataStrategy) SupportedMemoryTypes() []string { return []string{"*"} }
func (s *MetadataStrategy) Capabilities() Capabilities     { return Capabilities{SupportsFiltering: true} }

func (s *MetadataStrategy) CanHandle(q Query) bool { return len(q.Metadata) > 0 }

func (s *MetadataStrategy) Execute(ctx context.Context, q Query) ([]Result, error) {
	rows, err := s.store.SearchMemories(ctx, q.Text, memory.SearchOptions{
		Namespace:       q.Namespace,
		Limit:           q.Limit,
		MinImportance:   q.MinImportance,
		Categories:      q.Categories,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, &memerr.StrategyError{Strategy: s.Name(), Err: err}
	}

	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		if !metadataMatches(r.Metadata, q.Metadata) {
			continue
		}
		out = append(out, Result{
			ID: r.ID, Content: r.Content, Score: 0.55, Strategy: s.Name(), Timestamp: r.Timestamp,
			Metadata: r.Metadata,
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// metadataMatches reports whether every dotted path in want resolves in
// got to an equal value, descending at most metadataMaxPathDepth levels.
func metadataMatches(got map[string]any, want map[string]any) bool {
	for path, expected := range want {
		segs := strings.Split(path, ".")
		if len(segs) > metadataMaxPathDepth {
			segs = segs[:metadataMaxPathDepth]
		}

		var cur any = got
		for _, seg := range segs {
			m, ok := cur.(map[string]any)
			if !ok {
				return false
			}
			cur, ok = m[seg]
			if !ok {
				return false
			}
		}
		if cur != expected {
			return false
		}
	}
	return true
}
