package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/mrorigo/memcore/memory"
)

func TestHeuristicClassifier_BucketsByKeyword(t *testing.T) {
	h := NewHeuristicClassifier()

	processed, err := h.ProcessConversation(context.Background(), Input{
		UserInput: "what's my favorite editor theme?",
		AIOutput:  "You said you prefer dark mode everywhere.",
	})
	require.NoError(t, err)
	assert.Equal(t, memory.ClassPreference, processed.Classification)
	assert.Contains(t, processed.Keywords, "prefer")
}

func TestHeuristicClassifier_DefaultsToConversational(t *testing.T) {
	h := NewHeuristicClassifier()

	processed, err := h.ProcessConversation(context.Background(), Input{
		UserInput: "hi",
		AIOutput:  "hello there",
	})
	require.NoError(t, err)
	assert.Equal(t, memory.ClassConversational, processed.Classification)
}

func TestHeuristicClassifier_ImportanceByLength(t *testing.T) {
	h := NewHeuristicClassifier()

	short, err := h.ProcessConversation(context.Background(), Input{AIOutput: "ok"})
	require.NoError(t, err)
	assert.Equal(t, memory.ImportanceLow, short.Importance)

	long, err := h.ProcessConversation(context.Background(), Input{AIOutput: stringOfLen(600)})
	require.NoError(t, err)
	assert.Equal(t, memory.ImportanceHigh, long.Importance)
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

type stubModel struct {
	content string
	err     error
}

func (m *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.content}}}, nil
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.content, m.err
}

func TestLLMClassifier_ParsesJSONResponse(t *testing.T) {
	model := &stubModel{content: `here you go:
{"summary":"user likes dark mode","classification":"preference","importance":"medium","entities":["dark mode"],"keywords":["prefer"],"confidence":0.82}
thanks`}
	c := NewLLMClassifier(model)

	processed, err := c.ProcessConversation(context.Background(), Input{
		UserInput: "what do I prefer?",
		AIOutput:  "you prefer dark mode",
	})
	require.NoError(t, err)
	assert.Equal(t, memory.ClassPreference, processed.Classification)
	assert.Equal(t, memory.ImportanceMedium, processed.Importance)
	assert.Equal(t, 0.82, processed.ConfidenceScore)
	assert.Equal(t, []string{"dark mode"}, processed.Entities)
}

func TestLLMClassifier_WrapsGenerationFailure(t *testing.T) {
	model := &stubModel{err: assert.AnError}
	c := NewLLMClassifier(model)

	_, err := c.ProcessConversation(context.Background(), Input{})
	assert.Error(t, err)
}

func TestLLMClassifier_WrapsUnparsableResponse(t *testing.T) {
	model := &stubModel{content: "not json at all"}
	c := NewLLMClassifier(model)

	_, err := c.ProcessConversation(context.Background(), Input{})
	assert.Error(t, err)
}
