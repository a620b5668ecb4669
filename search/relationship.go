package search

import (
	"context"
	"sort"

	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/memory"
)

const (
	defaultMaxTraversalDepth = 10
	relationshipFanOutCap    = 50

	defaultStrengthWeight   = 0.6
	defaultConfidenceWeight = 0.4
	depthPenaltyBase        = 0.8
)

// frontierEntry is one work-queue item during a relationship traversal.
type frontierEntry struct {
	memoryID      string
	depth         int
	path          []string
	cumStrength   float64
	cumConfidence float64
}

func scoreOf(e frontierEntry) float64 {
	raw := (defaultStrengthWeight*e.cumStrength + defaultConfidenceWeight*e.cumConfidence)
	s := raw
	for i := 0; i < e.depth; i++ {
		s *= depthPenaltyBase
	}
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func pathContainsDup(path []string) bool {
	seen := make(map[string]bool, len(path))
	for _, id := range path {
		if seen[id] {
			return true
		}
		seen[id] = true
	}
	return false
}

// RelationshipStrategy implements C5: bounded graph traversal over the
// directed memory-relationship multigraph. Grounded on
// memory/graph_based.go's BFS-over-connections GetContext, generalized to
// bounded depth, three orderings, cycle detection via path membership (the
// teacher only tracks a flat visited set), and confidence/strength-weighted
// scoring (new, built against the traversal formula above).
type RelationshipStrategy struct {
	store             memory.Store
	maxTraversalDepth int
}

// NewRelationshipStrategy returns a strategy bound to store, with the
// traversal depth ceiling defaulting to 10 when ceiling <= 0.
func NewRelationshipStrategy(store memory.Store, ceiling int) *RelationshipStrategy {
	if ceiling <= 0 {
		ceiling = defaultMaxTraversalDepth
	}
	return &RelationshipStrategy{store: store, maxTraversalDepth: ceiling}
}

func (s *RelationshipStrategy) Name() string     { return "relationship" }
func (s *RelationshipStrategy) Priority() int     { return 70 }
func (s *RelationshipStrategy) SupportedMemoryTypes() []string { return []string{"*"} }
func (s *RelationshipStrategy) Capabilities() Capabilities {
	return Capabilities{SupportsRelevanceScore: true, SupportsFiltering: true}
}

// CanHandle reports whether the query names a traversal origin.
func (s *RelationshipStrategy) CanHandle(q Query) bool {
	return q.StartMemoryID != "" || q.TargetMemoryID != ""
}

// Execute runs the bounded traversal per §4.5.
func (s *RelationshipStrategy) Execute(ctx context.Context, q Query) ([]Result, error) {
	if err := s.validate(q); err != nil {
		return nil, &memerr.StrategyError{Strategy: s.Name(), Err: err}
	}

	startID := q.StartMemoryID
	direction := "outgoing"
	if startID == "" {
		startID = q.TargetMemoryID
		direction = "incoming"
	}

	weights := q.TraversalStrategy
	if weights == "" {
		weights = "bfs"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	queue := []frontierEntry{{memoryID: startID, depth: 0, path: []string{startID}, cumStrength: 1, cumConfidence: 1}}
	visited := make(map[string]bool)

	var results []Result

	for len(queue) > 0 && len(results) < limit {
		// Every discipline dequeues from the head; bfs/strength_weighted
		// append children at the tail, dfs prepends them at the head —
		// the discipline lives entirely in the insertion side below.
		u := queue[0]
		queue = queue[1:]

		if visited[u.memoryID] {
			continue
		}
		if pathContainsDup(u.path) {
			continue
		}
		visited[u.memoryID] = true

		if u.depth > 0 {
			mem, err := s.store.GetMemoryByID(ctx, q.Namespace, u.memoryID)
			if err != nil {
				if err == memory.ErrNotFound {
					continue
				}
				return results, &memerr.StrategyError{Strategy: s.Name(), Err: err}
			}

			meta := map[string]any{
				"distance":          u.depth,
				"connectionStrength": u.cumStrength,
				"entities":          mem.Entities,
			}
			if q.IncludePaths {
				meta["path"] = append([]string(nil), u.path...)
			}

			results = append(results, Result{
				ID:        mem.ID,
				Content:   mem.Content,
				Metadata:  meta,
				Score:     scoreOf(u),
				Strategy:  s.Name(),
				Timestamp: mem.CreatedAt,
			})
		}

		if u.depth < q.MaxDepth {
			pairs, err := s.store.GetRelatedMemories(ctx, u.memoryID, memory.RelatedOptions{
				RelationshipTypes: q.RelationshipTypes,
				MinConfidence:     q.MinConfidence,
				MinStrength:       q.MinStrength,
				Namespace:         q.Namespace,
				Limit:             relationshipFanOutCap,
				Direction:         direction,
			})
			if err != nil {
				return results, &memerr.StrategyError{Strategy: s.Name(), Err: err}
			}

			for _, pair := range pairs {
				child := frontierEntry{
					memoryID:      pair.Memory.ID,
					depth:         u.depth + 1,
					path:          append(append([]string(nil), u.path...), pair.Memory.ID),
					cumStrength:   u.cumStrength * pair.Relationship.Strength,
					cumConfidence: u.cumConfidence * pair.Relationship.Confidence,
				}

				switch weights {
				case "dfs":
					queue = append([]frontierEntry{child}, queue...)
				case "strength_weighted":
					queue = append(queue, child)
					sort.SliceStable(queue, func(i, j int) bool { return scoreOf(queue[i]) > scoreOf(queue[j]) })
				default: // bfs
					queue = append(queue, child)
				}
			}
		}
	}

	return results, nil
}

func (s *RelationshipStrategy) validate(q Query) error {
	hasStart := q.StartMemoryID != ""
	hasTarget := q.TargetMemoryID != ""
	if hasStart == hasTarget {
		return &memerr.ValidationError{Field: "startMemoryId/targetMemoryId", Reason: "exactly one must be present"}
	}
	// maxDepth 0 is a valid, trivially-empty traversal (tested boundary);
	// anything above the configured ceiling is rejected.
	if q.MaxDepth < 0 || q.MaxDepth > s.maxTraversalDepth {
		return &memerr.ValidationError{Field: "maxDepth", Reason: "out of range"}
	}
	if q.MinStrength < 0 || q.MinStrength > 1 {
		return &memerr.ValidationError{Field: "minStrength", Reason: "must be in [0,1]"}
	}
	if q.MinConfidence < 0 || q.MinConfidence > 1 {
		return &memerr.ValidationError{Field: "minConfidence", Reason: "must be in [0,1]"}
	}
	return nil
}
