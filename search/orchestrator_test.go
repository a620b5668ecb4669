package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrorigo/memcore/memerr"
)

// fakeStrategy is a hand-rolled Strategy used to drive the orchestrator's
// plan/dispatch/recover/rank pipeline without a real store.
type fakeStrategy struct {
	name       string
	priority   int
	canHandle  bool
	results    []Result
	err        error
	delay      time.Duration
	calls      int32
	failNTimes int32
}

func (f *fakeStrategy) Name() string                  { return f.name }
func (f *fakeStrategy) Priority() int                 { return f.priority }
func (f *fakeStrategy) SupportedMemoryTypes() []string { return []string{"*"} }
func (f *fakeStrategy) Capabilities() Capabilities     { return Capabilities{} }
func (f *fakeStrategy) CanHandle(q Query) bool         { return f.canHandle }

func (f *fakeStrategy) Execute(ctx context.Context, q Query) ([]Result, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil && n <= f.failNTimes {
		return nil, f.err
	}
	return f.results, nil
}

// storageErr builds a fresh retryable (CategoryStorage) failure.
func storageErr() error {
	return &memerr.StorageError{Op: "test", Err: errors.New("transient failure")}
}

func TestOrchestrator_SearchDedupesAcrossStrategies(t *testing.T) {
	a := &fakeStrategy{name: "a", priority: 50, canHandle: true, results: []Result{
		{ID: "1", Content: "shared", Strategy: "a", Score: 1},
	}}
	b := &fakeStrategy{name: "b", priority: 60, canHandle: true, results: []Result{
		{ID: "1", Content: "shared", Strategy: "b", Score: 1},
		{ID: "2", Content: "unique", Strategy: "b", Score: 1},
	}}
	like := &fakeStrategy{name: "like", priority: 10, canHandle: true}

	o := NewOrchestrator([]Strategy{a, b, like}, nil, nil)
	results, err := o.Search(context.Background(), Query{Text: "shared"})
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, r := range results {
		assert.False(t, ids[r.ID], "duplicate id %s in results", r.ID)
		ids[r.ID] = true
	}
	assert.True(t, ids["1"])
	assert.True(t, ids["2"])
}

func TestOrchestrator_SearchRespectsLimit(t *testing.T) {
	like := &fakeStrategy{name: "like", priority: 10, canHandle: true, results: []Result{
		{ID: "1", Strategy: "like", Score: 1},
		{ID: "2", Strategy: "like", Score: 1},
		{ID: "3", Strategy: "like", Score: 1},
	}}
	o := NewOrchestrator([]Strategy{like}, nil, nil)
	results, err := o.Search(context.Background(), Query{Text: "x", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestOrchestrator_SearchSkipsStrategiesThatCannotHandle(t *testing.T) {
	excluded := &fakeStrategy{name: "relationship", priority: 70, canHandle: false, results: []Result{
		{ID: "x", Strategy: "relationship", Score: 1},
	}}
	like := &fakeStrategy{name: "like", priority: 10, canHandle: true}

	o := NewOrchestrator([]Strategy{excluded, like}, nil, nil)
	results, err := o.Search(context.Background(), Query{Text: "hello"})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "x", r.ID)
	}
}

func TestOrchestrator_SearchRejectsInvalidQuery(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil)
	_, err := o.Search(context.Background(), Query{Text: "<script>alert(1)</script>"})
	assert.Error(t, err)
}

func TestOrchestrator_DispatchRecordsCircuitFailures(t *testing.T) {
	failing := &fakeStrategy{
		name: "fts", priority: 80, canHandle: true,
		err: storageErr(), failNTimes: 100,
	}
	like := &fakeStrategy{name: "like", priority: 10, canHandle: true, results: []Result{
		{ID: "fallback", Strategy: "like", Score: 1},
	}}

	breaker := NewBreaker(1, time.Minute, nil)
	o := NewOrchestrator([]Strategy{failing, like}, breaker, nil)

	_, err := o.Search(context.Background(), Query{Text: "x"})
	require.NoError(t, err)
	assert.True(t, breaker.IsOpen("fts"), "repeated strategy failures should trip its circuit")
}

func TestOrchestrator_RecoverFallsBackOnFailure(t *testing.T) {
	failing := &fakeStrategy{name: "fts", priority: 80, canHandle: true, err: storageErr(), failNTimes: 100}
	like := &fakeStrategy{name: "like", priority: 10, canHandle: true, results: []Result{
		{ID: "fallback", Content: "x", Strategy: "like", Score: 1},
	}}

	o := NewOrchestrator([]Strategy{failing, like}, nil, nil)
	results, err := o.Search(context.Background(), Query{Text: "x"})
	require.NoError(t, err)

	found := false
	for _, r := range results {
		if r.ID == "fallback" {
			found = true
		}
	}
	assert.True(t, found, "fallback strategy's results should appear after the primary fails")
}

func TestOrchestrator_RankOrdersByPriorityAndTextMatch(t *testing.T) {
	low := &fakeStrategy{name: "recent", priority: 5, canHandle: true}
	high := &fakeStrategy{name: "fts", priority: 90, canHandle: true}

	o := NewOrchestrator([]Strategy{low, high}, nil, nil)
	results := []Result{
		{ID: "low", Strategy: "recent", Score: 1, Content: "nothing relevant"},
		{ID: "high", Strategy: "fts", Score: 1, Content: "needle in haystack"},
	}
	o.rank(results, Query{Text: "needle"})
	require.Len(t, results, 2)
	assert.Equal(t, "high", results[0].ID, "higher-priority strategy plus text match should rank first")
}

func TestOrchestrator_SearchWithStrategy_UnknownNameErrors(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil)
	_, err := o.SearchWithStrategy(context.Background(), "nope", Query{Text: "x"})
	assert.Error(t, err)
}

func TestOrchestrator_SearchWithStrategy_RetriesTransientFailureOnce(t *testing.T) {
	flaky := &fakeStrategy{
		name: "like", priority: 10, canHandle: true,
		results:    []Result{{ID: "1", Strategy: "like", Score: 1}},
		err:        storageErr(),
		failNTimes: 1,
	}
	o := NewOrchestrator([]Strategy{flaky}, nil, nil)
	results, err := o.SearchWithStrategy(context.Background(), "like", Query{Text: "x"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&flaky.calls))
}
