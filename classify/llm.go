package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/memory"
)

// llmClassifyPrompt asks the model for a single JSON object describing the
// exchange, mirroring the shape of Processed so the response unmarshals
// directly.
const llmClassifyPrompt = `Classify the following exchange between a user and an assistant.
Respond with a single JSON object, no surrounding text, with these fields:
  "summary": one sentence summarizing the exchange
  "classification": one of "fact", "preference", "task", "conversational"
  "importance": one of "low", "medium", "high", "critical"
  "entities": array of named entities mentioned
  "keywords": array of salient keywords
  "confidence": number 0-1, your confidence in this classification

User: %s
Assistant: %s`

type llmResponse struct {
	Summary        string   `json:"summary"`
	Classification string   `json:"classification"`
	Importance     string   `json:"importance"`
	Entities       []string `json:"entities"`
	Keywords       []string `json:"keywords"`
	Confidence     float64  `json:"confidence"`
}

// LLMClassifier delegates classification to an langchaingo llms.Model,
// following the same GenerateContent call shape as the chat agent's
// non-streaming path. Any model or parse failure is wrapped as a
// *memerr.ClassificationError, which the Recorder treats as recoverable.
type LLMClassifier struct {
	model llms.Model
}

// NewLLMClassifier returns a Classifier backed by model.
func NewLLMClassifier(model llms.Model) *LLMClassifier {
	return &LLMClassifier{model: model}
}

func (c *LLMClassifier) ProcessConversation(ctx context.Context, in Input) (Processed, error) {
	prompt := fmt.Sprintf(llmClassifyPrompt, in.UserInput, in.AIOutput)
	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}

	resp, err := c.model.GenerateContent(ctx, msgs)
	if err != nil {
		return Processed{}, &memerr.ClassificationError{Reason: "llm generation failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return Processed{}, &memerr.ClassificationError{Reason: "llm returned no choices"}
	}

	raw := extractJSONObject(resp.Choices[0].Content)
	var parsed llmResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Processed{}, &memerr.ClassificationError{Reason: "llm response not valid JSON", Err: err}
	}

	return Processed{
		Content:              in.AIOutput,
		Summary:              parsed.Summary,
		Classification:       memory.Classification(parsed.Classification),
		Importance:           memory.Importance(parsed.Importance),
		Entities:             parsed.Entities,
		Keywords:             parsed.Keywords,
		ConfidenceScore:      parsed.Confidence,
		ClassificationReason: "llm classification",
	}, nil
}

// extractJSONObject trims any text surrounding the first {...} span, since
// some models wrap JSON in prose or code fences despite instructions.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
