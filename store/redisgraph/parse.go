package redisgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mrorigo/memcore/memory"
)

// parseMemoryNode decodes a raw GRAPH.QUERY node row (compact protocol:
// [id, labels, properties] with properties as [[key, value], ...]) into a
// memory.Memory, mirroring rag/store/falkordb.go's parseNode.
func parseMemoryNode(obj any) *memory.Memory {
	vals, ok := obj.([]any)
	if !ok || len(vals) < 3 {
		return nil
	}
	props := propMap(vals[2])
	if props == nil {
		return nil
	}

	mem := &memory.Memory{
		ID:             asString(props["id"]),
		Namespace:      asString(props["namespace"]),
		Content:        asString(props["content"]),
		Summary:        asString(props["summary"]),
		Category:       asString(props["category"]),
		Importance:     memory.Importance(asString(props["importance"])),
		Classification: memory.Classification(asString(props["classification"])),
		Confidence:     asFloat(props["confidence"]),
		Retention:      memory.RetentionType(asString(props["retention"])),
		ContentHash:    asString(props["contentHash"]),
		CreatedAt:      asTime(props["createdAt"]),
		LastActivity:   asTime(props["lastActivity"]),
		AccessCount:    int(asFloat(props["accessCount"])),
	}
	_ = json.Unmarshal([]byte(asString(props["entities"])), &mem.Entities)
	_ = json.Unmarshal([]byte(asString(props["keywords"])), &mem.Keywords)
	_ = json.Unmarshal([]byte(asString(props["processedData"])), &mem.ProcessedData)
	if mem.ID == "" {
		return nil
	}
	return mem
}

// parseRelationshipEdge decodes a raw GRAPH.QUERY edge row into a
// memory.MemoryRelationship. anchorID/direction resolve source/target
// since the edge properties carry no endpoint IDs in compact mode.
func parseRelationshipEdge(obj any, anchorID, direction string) *memory.MemoryRelationship {
	vals, ok := obj.([]any)
	if !ok || len(vals) < 2 {
		return nil
	}
	relType := asString(vals[1])

	var props map[string]any
	if len(vals) > 4 {
		props = propMap(vals[4])
	}
	if props == nil {
		props = map[string]any{}
	}

	rel := &memory.MemoryRelationship{
		ID:         asString(props["id"]),
		Namespace:  asString(props["namespace"]),
		Type:       memory.RelationshipType(relType),
		Confidence: asFloat(props["confidence"]),
		Strength:   asFloat(props["strength"]),
		Reason:     asString(props["reason"]),
		Context:    asString(props["context"]),
		CreatedAt:  asTime(props["createdAt"]),
	}
	_ = json.Unmarshal([]byte(asString(props["entities"])), &rel.Entities)

	// The query shape (a)-[r]->(b) or (b)-[r]->(a) already fixed which
	// side anchorID sits on; record it rather than re-deriving from the
	// edge itself, since compact mode carries no endpoint IDs.
	if direction == "incoming" {
		rel.TargetID = anchorID
	} else {
		rel.SourceID = anchorID
	}
	return rel
}

func propMap(obj any) map[string]any {
	pairs, ok := obj.([]any)
	if !ok {
		return nil
	}
	m := make(map[string]any, len(pairs))
	for _, p := range pairs {
		pair, ok := p.([]any)
		if !ok || len(pair) != 2 {
			continue
		}
		m[asString(pair[0])] = pair[1]
	}
	return m
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case string:
		var f float64
		fmt.Sscanf(x, "%f", &f)
		return f
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	switch x := v.(type) {
	case int64:
		return time.Unix(x, 0).UTC()
	case float64:
		return time.Unix(int64(x), 0).UTC()
	case string:
		var n int64
		fmt.Sscanf(x, "%d", &n)
		if n > 0 {
			return time.Unix(n, 0).UTC()
		}
	}
	return time.Time{}
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
