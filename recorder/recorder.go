// Package recorder implements the Conversation Recorder (C4): it persists
// a completed exchange and its classified derivative memory, degrading
// gracefully when classification or relationship storage fails.
package recorder

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/mrorigo/memcore/classify"
	"github.com/mrorigo/memcore/log"
	"github.com/mrorigo/memcore/memerr"
	"github.com/mrorigo/memcore/memory"
)

// Config controls optional recorder behavior.
type Config struct {
	EnableRelationshipExtraction bool
	MemoryProcessingMode         string // "auto" | "conscious" | "none"
	MinImportanceLevel           memory.Importance
}

// Recorder persists chat history and, when classification succeeds, a
// derivative Memory plus any relationships it yields.
type Recorder struct {
	store      memory.Store
	classifier classify.Classifier
	cfg        Config
	logger     log.Logger

	ugcPolicy *bluemonday.Policy
}

// New returns a Recorder bound to store and classifier.
func New(store memory.Store, classifier classify.Classifier, cfg Config, logger log.Logger) *Recorder {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Recorder{store: store, classifier: classifier, cfg: cfg, logger: logger, ugcPolicy: bluemonday.UGCPolicy()}
}

var htmlLikeTag = regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9]*[ >]`)

// extractPlainText runs AI output that looks like HTML/Markdown-with-tags
// through goquery so the FTS/LIKE strategies index readable text, not
// markup. Grounded on goquery's document-walking API as used for
// readability extraction elsewhere in the pack.
func extractPlainText(content string) string {
	if !htmlLikeTag.MatchString(content) {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	text := strings.TrimSpace(doc.Text())
	if text == "" {
		return content
	}
	return text
}

// RecordNonStreaming implements §4.4's non-streaming path.
func (r *Recorder) RecordNonStreaming(ctx context.Context, namespace, sessionID, model, userInput, aiOutput string, metadata map[string]any) (string, error) {
	return r.record(ctx, namespace, sessionID, model, userInput, aiOutput, metadata)
}

// RecordStreaming implements §4.4's streaming path: completeContent and
// streamMetadata come from the capture buffer; userInput is the original
// user message, or empty if the caller never captured it.
func (r *Recorder) RecordStreaming(ctx context.Context, namespace, sessionID, model, userInput, completeContent string, streamMetadata map[string]any) (string, error) {
	if userInput == "" {
		userInput = fmt.Sprintf("[no user input captured: session=%s model=%s]", sessionID, model)
	}
	return r.record(ctx, namespace, sessionID, model, userInput, completeContent, streamMetadata)
}

func (r *Recorder) record(ctx context.Context, namespace, sessionID, model, userInput, aiOutput string, metadata map[string]any) (string, error) {
	if strings.TrimSpace(aiOutput) == "" {
		return "", &memerr.RecordingError{Reason: "empty-output"}
	}

	chatID, err := r.store.StoreChatHistory(ctx, memory.ChatHistoryEntry{
		Namespace: namespace,
		SessionID: sessionID,
		Model:     model,
		UserInput: userInput,
		AIOutput:  aiOutput,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", &memerr.StorageError{Op: "StoreChatHistory", Err: err}
	}

	if r.cfg.MemoryProcessingMode == "none" {
		return chatID, nil
	}

	processed, classifyErr := r.classifier.ProcessConversation(ctx, classify.Input{
		ChatID:    chatID,
		UserInput: userInput,
		AIOutput:  aiOutput,
		Context:   metadata,
	})
	if classifyErr != nil {
		r.logger.Warn("recorder: classifier failed for chat %s, keeping raw history only: %v", chatID, classifyErr)
		return chatID, nil
	}

	if !belowThreshold(processed.Importance, r.cfg.MinImportanceLevel) {
		mem := memory.Memory{
			Namespace:      namespace,
			Content:        r.ugcPolicy.Sanitize(extractPlainText(processed.Content)),
			Summary:        processed.Summary,
			Classification: processed.Classification,
			Importance:     processed.Importance,
			Entities:       processed.Entities,
			Keywords:       processed.Keywords,
			Confidence:     processed.ConfidenceScore,
			CreatedAt:      time.Now().UTC(),
		}

		memID, storeErr := r.store.StoreProcessedMemory(ctx, mem)
		if storeErr != nil {
			r.logger.Warn("recorder: failed to store processed memory for chat %s: %v", chatID, storeErr)
			return chatID, nil
		}

		if r.cfg.EnableRelationshipExtraction && len(processed.RelatedMemories) > 0 {
			rels := make([]memory.MemoryRelationship, len(processed.RelatedMemories))
			for i, rel := range processed.RelatedMemories {
				rel.Namespace = namespace
				rel.SourceID = memID
				rels[i] = rel
			}
			if relErr := r.store.StoreMemoryRelationships(ctx, rels); relErr != nil {
				r.logger.Warn("recorder: failed to store relationships for memory %s: %v", memID, relErr)
			}
		}
	}

	return chatID, nil
}

func belowThreshold(got, min memory.Importance) bool {
	if min == "" || min == "all" {
		return false
	}
	return !got.AtLeast(min)
}
