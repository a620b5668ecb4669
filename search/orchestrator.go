package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mrorigo/memcore/log"
	"github.com/mrorigo/memcore/memerr"
)

const defaultStrategyTimeout = 5 * time.Second

// Orchestrator plans and dispatches a query across registered strategies
// per §4.7: sanitize → plan → execute → filter → rank.
type Orchestrator struct {
	strategies      map[string]Strategy
	breaker         *Breaker
	strategyTimeout time.Duration
	logger          log.Logger
}

// NewOrchestrator returns an Orchestrator with the given strategies
// registered by name. breaker may be nil, in which case one is created
// with default thresholds.
func NewOrchestrator(strategies []Strategy, breaker *Breaker, logger log.Logger) *Orchestrator {
	if breaker == nil {
		breaker = NewBreaker(3, 30*time.Second, nil)
	}
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	reg := make(map[string]Strategy, len(strategies))
	for _, s := range strategies {
		reg[s.Name()] = s
	}
	return &Orchestrator{strategies: reg, breaker: breaker, strategyTimeout: defaultStrategyTimeout, logger: logger}
}

// Search runs the full pipeline for q.
func (o *Orchestrator) Search(ctx context.Context, q Query) ([]Result, error) {
	q, err := Sanitize(q)
	if err != nil {
		return nil, err
	}

	plan := o.plan(q)

	seen := make(map[string]bool)
	var results []Result

	for _, name := range plan {
		if len(results) >= q.Limit {
			break
		}
		strat, ok := o.strategies[name]
		if !ok {
			continue
		}
		if !strat.CanHandle(q) {
			continue
		}

		rows, execErr := o.dispatch(ctx, strat, q)
		if execErr != nil {
			rows = o.recover(ctx, strat, q, execErr)
		}

		for _, r := range rows {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			results = append(results, r)
		}
	}

	if q.FilterExpr != "" {
		filtered, ferr := applyFilterExpr(results, q.FilterExpr)
		if ferr != nil {
			o.logger.Warn("search: filter expression failed, returning pre-filter results: %v", ferr)
		} else {
			results = filtered
		}
	}

	o.rank(results, q)

	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// SearchWithStrategy runs a single named strategy strictly: failure is
// surfaced after retry, with no fallback.
func (o *Orchestrator) SearchWithStrategy(ctx context.Context, name string, q Query) ([]Result, error) {
	q, err := Sanitize(q)
	if err != nil {
		return nil, err
	}
	strat, ok := o.strategies[name]
	if !ok {
		return nil, &memerr.ValidationError{Field: "strategy", Reason: "unknown strategy " + name}
	}

	rows, execErr := o.dispatch(ctx, strat, q)
	if execErr == nil {
		return rows, nil
	}

	category := memerr.Classify(execErr)
	if !ShouldRetry(category) {
		return nil, execErr
	}
	rows, execErr = o.dispatch(ctx, strat, q)
	if execErr != nil {
		return nil, execErr
	}
	return rows, nil
}

// plan builds the ordered strategy list per §4.7 step 2.
func (o *Orchestrator) plan(q Query) []string {
	if strings.TrimSpace(q.Text) == "" {
		return []string{"recent"}
	}

	var order []string
	type candidate struct {
		name     string
		priority int
	}
	var candidates []candidate
	for name, strat := range o.strategies {
		if name == "like" || name == "recent" || name == "category_filter" ||
			name == "temporal_filter" || name == "metadata_filter" || name == "semantic" {
			continue
		}
		if strat.CanHandle(q) {
			candidates = append(candidates, candidate{name, strat.Priority()})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].priority > candidates[j].priority })
	for _, c := range candidates {
		order = append(order, c.name)
	}

	if len(q.Categories) > 0 {
		order = append([]string{"category_filter"}, order...)
	}
	if q.CreatedAfter != nil || q.CreatedBefore != nil || q.Since != "" || q.Until != "" {
		order = append(order, "temporal_filter")
	}
	if len(q.Metadata) > 0 {
		order = append(order, "metadata_filter")
	}
	if q.IsComplex() {
		order = append(order, "semantic")
	}
	order = append(order, "like")

	return order
}

// dispatch runs one strategy through the circuit breaker and a
// per-strategy soft timeout.
func (o *Orchestrator) dispatch(ctx context.Context, strat Strategy, q Query) ([]Result, error) {
	if !o.breaker.Allow(strat.Name()) {
		return nil, &memerr.StrategyError{Strategy: strat.Name(), Err: &memerr.StorageError{Op: "dispatch", Err: errCircuitOpen}}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, o.strategyTimeout)
	defer cancel()

	type outcome struct {
		rows []Result
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		rows, err := strat.Execute(timeoutCtx, q)
		ch <- outcome{rows, err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			o.breaker.RecordFailure(strat.Name(), out.err)
			return nil, out.err
		}
		o.breaker.RecordSuccess(strat.Name())
		return out.rows, nil
	case <-timeoutCtx.Done():
		err := &memerr.TimeoutError{Op: "strategy:" + strat.Name(), Timeout: o.strategyTimeout.String()}
		o.breaker.RecordFailure(strat.Name(), err)
		return nil, err
	}
}

// recover implements §4.7 step 3's failure handling: classify, retry once
// if transient, then fall back per the degradation mapping.
func (o *Orchestrator) recover(ctx context.Context, strat Strategy, q Query, firstErr error) []Result {
	category := memerr.Classify(firstErr)
	if ShouldRetry(category) {
		if rows, err := o.dispatch(ctx, strat, q); err == nil {
			return rows
		}
	}

	fallbackName := FallbackFor(strat.Name())
	if fallbackName == strat.Name() {
		return nil
	}
	fallback, ok := o.strategies[fallbackName]
	if !ok || !fallback.CanHandle(q) {
		return nil
	}
	rows, err := o.dispatch(ctx, fallback, q)
	if err != nil {
		return nil
	}
	return rows
}

// rank applies §4.7 step 5's composite scoring and sorts descending.
func (o *Orchestrator) rank(results []Result, q Query) {
	needle := strings.ToLower(q.Text)
	for i := range results {
		strat := o.strategies[results[i].Strategy]
		priority := 0
		if strat != nil {
			priority = strat.Priority()
		}
		score := results[i].Score * (1 + float64(priority)/100)
		if needle != "" && strings.Contains(strings.ToLower(results[i].Content), needle) {
			score *= 1.2
		}
		results[i].Score = score
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}
