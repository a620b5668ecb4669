package search

import (
	"context"
	"strings"
	"time"

	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/memory"
)

// naturalPhraseWindows maps a handful of natural-language phrases to a
// lookback duration. Since/Until are read only as these phrases; any other
// value (a timestamp string included) is ignored.
var naturalPhraseWindows = map[string]time.Duration{
	"today":      24 * time.Hour,
	"yesterday":  48 * time.Hour,
	"this week":  7 * 24 * time.Hour,
	"this month": 30 * 24 * time.Hour,
}

const naturalPhraseConfidence = 0.7

// TemporalStrategy filters by a created-at range, parsed from explicit
// bounds or a natural-language phrase.
type TemporalStrategy struct {
	store memory.Store
}

// NewTemporalStrategy returns a TemporalStrategy bound to store.
func NewTemporalStrategy(store memory.Store) *TemporalStrategy { return &TemporalStrategy{store: store} }

func (s *TemporalStrategy) Name() string                  { return "temporal_filter" }
func (s *TemporalStrategy) Priority() int                  { return 75 }
func (s *TemporalStrategy) SupportedMemoryTypes() []string { return []string{"*"} }
func (s *TemporalStrategy) Capabilities() Capabilities     { return Capabilities{SupportsFiltering: true} }

func (s *TemporalStrategy) CanHandle(q Query) bool {
	return q.CreatedAfter != nil || q.CreatedBefore != nil || q.Since != "" || q.Until != ""
}

// resolveRange derives the effective [after, before] bounds, normalizing a
// reversed explicit range and falling back to a natural-language phrase.
func (s *TemporalStrategy) resolveRange(q Query) (time.Time, time.Time, error) {
	var after, before time.Time
	now := time.Now()

	if q.CreatedAfter != nil {
		after = *q.CreatedAfter
	}
	if q.CreatedBefore != nil {
		before = *q.CreatedBefore
	}

	if phrase := strings.ToLower(strings.TrimSpace(q.Since)); phrase != "" && after.IsZero() {
		if d, ok := naturalPhraseWindows[phrase]; ok {
			after = now.Add(-d)
		}
	}
	if phrase := strings.ToLower(strings.TrimSpace(q.Until)); phrase != "" && before.IsZero() {
		if d, ok := naturalPhraseWindows[phrase]; ok {
			before = now.Add(-d)
		}
	}

	if before.IsZero() {
		before = now
	}
	if after.IsZero() {
		// No lower bound specified: anchor far enough back to include
		// everything rather than rejecting the query.
		after = time.Unix(0, 0)
	}

	if !after.IsZero() && after.After(now.Add(24*time.Hour)) {
		return time.Time{}, time.Time{}, &memerr.ValidationError{Field: "createdAfter", Reason: "invalid start date"}
	}

	if after.After(before) {
		// Auto-normalize a reversed range per §4.6.
		after, before = before, after
	}

	return after, before, nil
}

func (s *TemporalStrategy) Execute(ctx context.Context, q Query) ([]Result, error) {
	after, before, err := s.resolveRange(q)
	if err != nil {
		return nil, &memerr.StrategyError{Strategy: s.Name(), Err: err}
	}

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
		if r.Timestamp.Before(after) || r.Timestamp.After(before) {
			continue
		}
		out = append(out, Result{
			ID: r.ID, Content: r.Content, Score: naturalPhraseConfidence, Strategy: s.Name(), Timestamp: r.Timestamp,
			Metadata: map[string]any{"category": r.Category},
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
