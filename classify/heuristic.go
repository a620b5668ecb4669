package classify

import (
	"context"
	"strings"

	"github.com/mrorigo/memcore/memory"
)

// keywordBuckets maps a handful of trigger words to a classification,
// adapted from memory/graph_based.go's defaultRelationExtractor keyword
// scan (there used to bucket messages into topics for graph edges; here
// used to pick a classification when no LLM is configured).
var keywordBuckets = []struct {
	classification memory.Classification
	keywords       []string
}{
	{memory.ClassTask, []string{"todo", "remind", "schedule", "deadline"}},
	{memory.ClassPreference, []string{"prefer", "favorite", "i like", "i don't like", "i hate"}},
	{memory.ClassFact, []string{"is a", "was born", "located in", "defined as"}},
}

// HeuristicClassifier is a dependency-free default Classifier: no network
// call, deterministic, good enough for tests and demos. Real deployments
// plug in LLMClassifier or any other Classifier implementation.
type HeuristicClassifier struct{}

// NewHeuristicClassifier returns a HeuristicClassifier.
func NewHeuristicClassifier() *HeuristicClassifier { return &HeuristicClassifier{} }

func (h *HeuristicClassifier) ProcessConversation(_ context.Context, in Input) (Processed, error) {
	lower := strings.ToLower(in.AIOutput)

	classification := memory.ClassConversational
	for _, bucket := range keywordBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				classification = bucket.classification
				break
			}
		}
		if classification != memory.ClassConversational {
			break
		}
	}

	importance := memory.ImportanceMedium
	if len(in.AIOutput) > 500 {
		importance = memory.ImportanceHigh
	} else if len(in.AIOutput) < 40 {
		importance = memory.ImportanceLow
	}

	summary := in.AIOutput
	if len(summary) > 160 {
		summary = summary[:160] + "..."
	}

	entities := extractEntities(in.AIOutput)
	keywords := extractKeywords(in.AIOutput)

	return Processed{
		Content:              in.AIOutput,
		Summary:              summary,
		Classification:       classification,
		Importance:           importance,
		Entities:             entities,
		Keywords:             keywords,
		ConfidenceScore:      0.5,
		ClassificationReason: "heuristic keyword match",
	}, nil
}

// extractEntities returns capitalized word runs as a crude entity proxy —
// the same "good enough without NER" tradeoff as the teacher's keyword
// extractor, extended from single keywords to capitalized tokens.
func extractEntities(text string) []string {
	var entities []string
	for _, word := range strings.Fields(text) {
		trimmed := strings.Trim(word, ".,!?;:\"'()")
		if len(trimmed) > 1 && trimmed[0] >= 'A' && trimmed[0] <= 'Z' {
			entities = append(entities, trimmed)
		}
	}
	return dedupeStrings(entities)
}

func extractKeywords(text string) []string {
	var keywords []string
	lower := strings.ToLower(text)
	for _, bucket := range keywordBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				keywords = append(keywords, kw)
			}
		}
	}
	return dedupeStrings(keywords)
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
