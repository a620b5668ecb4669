package search

import (
	"context"
	"math"
	"strings"

	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/memory"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "to": true, "in": true,
	"is": true, "it": true, "and": true, "or": true, "for": true, "on": true,
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// FtsStrategy is a BM25-like scorer over content and summary tokenized
// together, with no per-field weight; the one summary-specific signal is a
// boost when a query of more than two terms appears verbatim in the
// summary. It always scores in-process, over the rows the store returns
// for an empty query (the sqlite backend's FTS5 table is not used here),
// so every backend gets the same ranking behavior.
type FtsStrategy struct {
	store memory.Store
}

// NewFtsStrategy returns an FtsStrategy bound to store.
func NewFtsStrategy(store memory.Store) *FtsStrategy { return &FtsStrategy{store: store} }

func (s *FtsStrategy) Name() string                  { return "fts" }
func (s *FtsStrategy) Priority() int                  { return 60 }
func (s *FtsStrategy) SupportedMemoryTypes() []string { return []string{"*"} }
func (s *FtsStrategy) Capabilities() Capabilities     { return Capabilities{SupportsRelevanceScore: true} }

func (s *FtsStrategy) CanHandle(q Query) bool {
	return len(tokenize(q.Text)) > 0
}

func (s *FtsStrategy) Execute(ctx context.Context, q Query) ([]Result, error) {
	queryTerms := tokenize(q.Text)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	rows, err := s.store.SearchMemories(ctx, "", memory.SearchOptions{
		Namespace:     q.Namespace,
		Limit:         0,
		MinImportance: q.MinImportance,
		Categories:    q.Categories,
	})
	if err != nil {
		return nil, &memerr.StrategyError{Strategy: s.Name(), Err: err}
	}

	docLens := make([]float64, len(rows))
	var totalLen float64
	docTerms := make([][]string, len(rows))
	for i, r := range rows {
		terms := tokenize(r.Content + " " + r.Summary)
		docTerms[i] = terms
		docLens[i] = float64(len(terms))
		totalLen += docLens[i]
	}
	avgLen := 1.0
	if len(rows) > 0 {
		avgLen = totalLen / float64(len(rows))
	}

	df := make(map[string]int)
	for _, terms := range docTerms {
		seen := make(map[string]bool)
		for _, t := range terms {
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}
	n := float64(len(rows))

	out := make([]Result, 0, len(rows))
	for i, r := range rows {
		freq := make(map[string]int)
		for _, t := range docTerms[i] {
			freq[t]++
		}

		var score float64
		for _, qt := range queryTerms {
			f := float64(freq[qt])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[qt])+0.5)/(float64(df[qt])+0.5))
			norm := bm25K1 * (1 - bm25B + bm25B*docLens[i]/avgLen)
			score += idf * (f * (bm25K1 + 1)) / (f + norm)
		}
		if score <= 0 {
			continue
		}
		// Phrase-in-summary boost: longer queries rank phrase matches
		// higher per §4.6.
		if len(queryTerms) > 2 && strings.Contains(strings.ToLower(r.Summary), strings.ToLower(q.Text)) {
			score *= 1.5
		}

		out = append(out, Result{
			ID: r.ID, Content: r.Content, Score: clampUnit(score / 10), Strategy: s.Name(), Timestamp: r.Timestamp,
			Metadata: map[string]any{"category": r.Category, "summary": r.Summary},
		})
	}

	sortByScoreDesc(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
