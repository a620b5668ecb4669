package search

import (
	"context"
	"strings"
	"time"

	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/memory"
)

const (
	windowHour = time.Hour
	windowDay  = 24 * time.Hour
	windowWeek = 7 * 24 * time.Hour
)

// RecentStrategy returns memories ordered purely by recency, scored by
// decay window. Selected by the orchestrator whenever the query text is
// empty.
type RecentStrategy struct {
	store memory.Store
}

// NewRecentStrategy returns a RecentStrategy bound to store.
func NewRecentStrategy(store memory.Store) *RecentStrategy { return &RecentStrategy{store: store} }

func (s *RecentStrategy) Name() string                  { return "recent" }
func (s *RecentStrategy) Priority() int                  { return 20 }
func (s *RecentStrategy) SupportedMemoryTypes() []string { return []string{"*"} }
func (s *RecentStrategy) Capabilities() Capabilities     { return Capabilities{SupportsRelevanceScore: true} }

func (s *RecentStrategy) CanHandle(q Query) bool { return strings.TrimSpace(q.Text) == "" }

func (s *RecentStrategy) Execute(ctx context.Context, q Query) ([]Result, error) {
	rows, err := s.store.SearchMemories(ctx, "", memory.SearchOptions{
		Namespace:     q.Namespace,
		Limit:         q.Limit,
		MinImportance: q.MinImportance,
		Categories:    q.Categories,
	})
	if err != nil {
		return nil, &memerr.StrategyError{Strategy: s.Name(), Err: err}
	}

	now := time.Now()
	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		out = append(out, Result{
			ID: r.ID, Content: r.Content, Score: recencyScore(now, r.Timestamp),
			Strategy: s.Name(), Timestamp: r.Timestamp,
			Metadata: map[string]any{"category": r.Category, "summary": r.Summary},
		})
	}

	sortByScoreDesc(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// recencyScore buckets age into last_hour/last_day/last_week windows with a
// stepped score, decaying beyond that.
func recencyScore(now, ts time.Time) float64 {
	age := now.Sub(ts)
	switch {
	case age <= windowHour:
		return 1.0
	case age <= windowDay:
		return 0.8
	case age <= windowWeek:
		return 0.5
	default:
		days := age.Hours() / 24
		decayed := 0.5 - (days-7)*0.01
		if decayed < 0 {
			return 0
		}
		return decayed
	}
}
