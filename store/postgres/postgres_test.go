package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"

	"github.com/mrorigo/memcore/memory"
)

func TestStore_StoreChatHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)
	entry := memory.ChatHistoryEntry{
		ID: "ch-1", Namespace: "default", SessionID: "sess-1", Model: "gpt-4",
		UserInput: "hi", AIOutput: "hello", CreatedAt: time.Now(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_history")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := store.StoreChatHistory(context.Background(), entry)
	assert.NoError(t, err)
	assert.Equal(t, "ch-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_StoreProcessedMemory_GeneratesIDAndHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)
	mem := memory.Memory{
		Namespace: "default", Content: "remember this", Importance: memory.ImportanceHigh,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO memories")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := store.StoreProcessedMemory(context.Background(), mem)
	assert.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_StoreMemoryRelationships_RejectsMissingEndpoints(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)
	err = store.StoreMemoryRelationships(context.Background(), []memory.MemoryRelationship{
		{Namespace: "default", SourceID: "", TargetID: "m2"},
	})
	assert.Error(t, err)
}

func TestStore_GetMemoryByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, namespace, content")).
		WithArgs("missing", "default").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetMemoryByID(context.Background(), "default", "missing")
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestStore_SearchMemories_EmptyQueryUsesRecencyOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)

	rows := pgxmock.NewRows([]string{"id", "content", "summary", "category", "importance", "created_at", "rank"}).
		AddRow("m1", "hello", "", "general", "high", time.Now(), 0.0)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY last_activity DESC")).
		WithArgs("default", 50).
		WillReturnRows(rows)

	results, err := store.SearchMemories(context.Background(), "", memory.SearchOptions{Namespace: "default"})
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].ID)
}

func TestStore_Close(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)

	store := NewWithPool(mock)
	assert.NotPanics(t, func() {
		_ = store.Close()
	})
}
