package recorder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrorigo/memcore/classify"
	"github.com/mrorigo/memcore/memory"
	"github.com/mrorigo/memcore/store/inmemory"
)

// stubClassifier returns a fixed Processed value or a fixed error,
// whichever is set, ignoring its input.
type stubClassifier struct {
	processed classify.Processed
	err       error
}

func (s *stubClassifier) ProcessConversation(_ context.Context, _ classify.Input) (classify.Processed, error) {
	return s.processed, s.err
}

func TestRecorder_RecordNonStreaming_StoresHistoryAndMemory(t *testing.T) {
	st := inmemory.New()
	cls := &stubClassifier{processed: classify.Processed{
		Content:        "the user prefers dark mode",
		Summary:        "dark mode preference",
		Classification: memory.ClassPreference,
		Importance:     memory.ImportanceMedium,
	}}
	rec := New(st, cls, Config{MemoryProcessingMode: "auto"}, nil)

	chatID, err := rec.RecordNonStreaming(context.Background(), "default", "s1", "gpt-4",
		"do you remember my theme preference?", "you prefer dark mode", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, chatID)

	results, err := st.SearchMemories(context.Background(), "dark mode", memory.SearchOptions{Namespace: "default"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "the user prefers dark mode", results[0].Content)
}

func TestRecorder_RecordNonStreaming_RejectsEmptyOutput(t *testing.T) {
	st := inmemory.New()
	rec := New(st, &stubClassifier{}, Config{}, nil)

	_, err := rec.RecordNonStreaming(context.Background(), "default", "s1", "gpt-4", "hi", "   ", nil)
	assert.Error(t, err)
}

func TestRecorder_RecordNonStreaming_ProcessingModeNoneSkipsClassification(t *testing.T) {
	st := inmemory.New()
	cls := &stubClassifier{err: errors.New("should never be called")}
	rec := New(st, cls, Config{MemoryProcessingMode: "none"}, nil)

	chatID, err := rec.RecordNonStreaming(context.Background(), "default", "s1", "gpt-4", "hi", "hello there", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, chatID)

	results, err := st.SearchMemories(context.Background(), "", memory.SearchOptions{Namespace: "default"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecorder_RecordNonStreaming_ClassifierFailureKeepsRawHistory(t *testing.T) {
	st := inmemory.New()
	cls := &stubClassifier{err: errors.New("llm down")}
	rec := New(st, cls, Config{MemoryProcessingMode: "auto"}, nil)

	chatID, err := rec.RecordNonStreaming(context.Background(), "default", "s1", "gpt-4", "hi", "hello there", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, chatID)

	results, err := st.SearchMemories(context.Background(), "", memory.SearchOptions{Namespace: "default"})
	require.NoError(t, err)
	assert.Empty(t, results, "classifier failure should skip the derivative memory, not the raw history")
}

func TestRecorder_RecordNonStreaming_BelowImportanceThresholdSkipsMemory(t *testing.T) {
	st := inmemory.New()
	cls := &stubClassifier{processed: classify.Processed{
		Content:    "trivial aside",
		Importance: memory.ImportanceLow,
	}}
	rec := New(st, cls, Config{MemoryProcessingMode: "auto", MinImportanceLevel: memory.ImportanceMedium}, nil)

	_, err := rec.RecordNonStreaming(context.Background(), "default", "s1", "gpt-4", "hi", "trivial aside", nil)
	require.NoError(t, err)

	results, err := st.SearchMemories(context.Background(), "", memory.SearchOptions{Namespace: "default"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecorder_RecordNonStreaming_RelationshipExtraction(t *testing.T) {
	st := inmemory.New()
	cls := &stubClassifier{processed: classify.Processed{
		Content:    "the user's favorite color is blue",
		Importance: memory.ImportanceMedium,
		RelatedMemories: []memory.MemoryRelationship{
			{TargetID: "some-other-memory", Type: memory.RelRelated, Strength: 0.8, Confidence: 0.9},
		},
	}}
	rec := New(st, cls, Config{MemoryProcessingMode: "auto", EnableRelationshipExtraction: true}, nil)

	// GetRelatedMemories only reports edges whose neighbor memory exists.
	_, err := st.StoreProcessedMemory(context.Background(), memory.Memory{
		ID: "some-other-memory", Namespace: "default", Content: "an earlier memory",
	})
	require.NoError(t, err)

	_, err = rec.RecordNonStreaming(context.Background(), "default", "s1", "gpt-4", "hi", "blue", nil)
	require.NoError(t, err)

	results, err := st.SearchMemories(context.Background(), "blue", memory.SearchOptions{Namespace: "default"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	related, err := st.GetRelatedMemories(context.Background(), results[0].ID, memory.RelatedOptions{Namespace: "default"})
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "some-other-memory", related[0].Relationship.TargetID)
}

func TestRecorder_RecordStreaming_SynthesizesUserInputWhenMissing(t *testing.T) {
	st := inmemory.New()
	cls := &stubClassifier{processed: classify.Processed{Content: "assembled content", Importance: memory.ImportanceMedium}}
	rec := New(st, cls, Config{MemoryProcessingMode: "auto"}, nil)

	_, err := rec.RecordStreaming(context.Background(), "default", "s1", "gpt-4", "", "assembled content", nil)
	require.NoError(t, err)
}

func TestExtractPlainText_StripsHTML(t *testing.T) {
	got := extractPlainText("<p>hello <b>world</b></p>")
	assert.Equal(t, "hello world", got)
}

func TestExtractPlainText_LeavesPlainTextUntouched(t *testing.T) {
	got := extractPlainText("no markup here")
	assert.Equal(t, "no markup here", got)
}
