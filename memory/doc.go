// Package memory defines the domain model captured and retrieved by the
// rest of memcore: a Memory (the processed, classified derivative of an
// exchange), a ChatHistoryEntry (the raw exchange), a MemoryRelationship
// (an edge between two Memories), and the Store interface every backend
// implements.
//
// # Core Types
//
//   - Memory: a classified, searchable unit derived from a conversation
//   - ChatHistoryEntry: the raw user/assistant exchange that produced it
//   - MemoryRelationship: a typed, weighted edge between two Memories
//   - SearchResult, RelatedPair: query-time views returned by a Store
//
// # The Store Interface
//
// Store is implemented by store/inmemory, store/sqlite, store/postgres,
// and store/redisgraph. Callers depend only on this interface:
//
//	var st memory.Store = inmemory.New()
//
//	chatID, err := st.StoreChatHistory(ctx, memory.ChatHistoryEntry{
//		Namespace: "default",
//		SessionID: "s1",
//		UserInput: "what's my favorite color?",
//		AIOutput:  "you said blue, last week",
//	})
//
//	memID, err := st.StoreProcessedMemory(ctx, memory.Memory{
//		Namespace:  "default",
//		Content:    "the user's favorite color is blue",
//		Category:   "preference",
//		Importance: memory.ImportanceMedium,
//	})
//
//	results, err := st.SearchMemories(ctx, "favorite color", memory.SearchOptions{
//		Namespace: "default",
//		Limit:     10,
//	})
//
// # Relationships and Retention
//
// Importance, Classification, and RetentionType are small string enums
// rather than integer constants, so stored rows and Cypher/SQL literals
// stay self-describing. RelationshipType values (e.g. RelRelated) label
// edges traversed by search.RelationshipStrategy.
//
// # Error Handling
//
// Store implementations return memory.ErrNotFound (checked with
// errors.Is) when a lookup by ID finds nothing, and wrap all other
// failures in memerr's taxonomy before returning.
package memory
