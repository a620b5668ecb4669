package search

import (
	"context"
	"math"
	"sort"

	"github.com/mrorigo/memcore/memerr"
)

// Embedder turns text into a dense vector. Mirrors prebuilt/rag.go's
// Embedder contract — the same interface shape the rest of the pack's
// RAG engines consume — so a caller wiring an LLM-backed embedder there
// can reuse it here unchanged.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorMatch is one similarity hit from a VectorStore.
type VectorMatch struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]any
}

// VectorStore performs nearest-neighbor search over embedded content,
// mirroring prebuilt/rag.go's VectorStore contract.
type VectorStore interface {
	SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]VectorMatch, error)
}

// SemanticStrategy is opaque to the traversal/ranking contract per §4.6: it
// defers entirely to an Embedder/VectorStore pair. Appended by the
// orchestrator only for "complex" queries.
type SemanticStrategy struct {
	embedder Embedder
	store    VectorStore
}

// NewSemanticStrategy returns a SemanticStrategy bound to an embedder and
// vector store. Either may be nil, in which case CanHandle reports false
// and the strategy is a no-op — callers without a configured embedding
// pipeline simply never select it.
func NewSemanticStrategy(embedder Embedder, store VectorStore) *SemanticStrategy {
	return &SemanticStrategy{embedder: embedder, store: store}
}

func (s *SemanticStrategy) Name() string                  { return "semantic" }
func (s *SemanticStrategy) Priority() int                  { return 65 }
func (s *SemanticStrategy) SupportedMemoryTypes() []string { return []string{"*"} }
func (s *SemanticStrategy) Capabilities() Capabilities {
	return Capabilities{SupportsRelevanceScore: true}
}

func (s *SemanticStrategy) CanHandle(q Query) bool {
	return s.embedder != nil && s.store != nil && q.Text != ""
}

func (s *SemanticStrategy) Execute(ctx context.Context, q Query) ([]Result, error) {
	embedding, err := s.embedder.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, &memerr.StrategyError{Strategy: s.Name(), Err: err}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	matches, err := s.store.SimilaritySearch(ctx, embedding, limit)
	if err != nil {
		return nil, &memerr.StrategyError{Strategy: s.Name(), Err: err}
	}

	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		out = append(out, Result{
			ID: m.ID, Content: m.Content, Score: clampUnit(m.Score), Strategy: s.Name(),
			Metadata: m.Metadata,
		})
	}
	return out, nil
}

// InMemoryVectorStore is the default cosine-similarity VectorStore,
// grounded on rag/engine/vector.go's vector search adapter pattern but
// computing similarity directly rather than delegating to an external
// index.
type InMemoryVectorStore struct {
	docs []embeddedDoc
}

type embeddedDoc struct {
	id        string
	content   string
	metadata  map[string]any
	embedding []float32
}

// NewInMemoryVectorStore returns an empty store.
func NewInMemoryVectorStore() *InMemoryVectorStore { return &InMemoryVectorStore{} }

// Add indexes one embedded document.
func (v *InMemoryVectorStore) Add(id, content string, metadata map[string]any, embedding []float32) {
	v.docs = append(v.docs, embeddedDoc{id: id, content: content, metadata: metadata, embedding: embedding})
}

// SimilaritySearch implements VectorStore via brute-force cosine similarity.
func (v *InMemoryVectorStore) SimilaritySearch(_ context.Context, embedding []float32, k int) ([]VectorMatch, error) {
	matches := make([]VectorMatch, 0, len(v.docs))
	for _, d := range v.docs {
		matches = append(matches, VectorMatch{
			ID: d.id, Content: d.content, Metadata: d.metadata,
			Score: cosineSimilarity(embedding, d.embedding),
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
