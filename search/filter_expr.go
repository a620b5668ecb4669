package search

import (
	"errors"
	"strconv"
	"strings"
)

var errCircuitOpen = errors.New("circuit open")

// applyFilterExpr evaluates a minimal post-dedup filter expression of the
// form "field op value" (e.g. "score>0.5", "strategy=fts"), ANDing clauses
// joined by "&&". Supported fields: score, strategy, id. Supported ops:
// =, !=, >, >=, <, <=.
func applyFilterExpr(results []Result, expr string) ([]Result, error) {
	clauses := strings.Split(expr, "&&")
	preds := make([]func(Result) bool, 0, len(clauses))
	for _, c := range clauses {
		pred, err := parseClause(strings.TrimSpace(c))
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		match := true
		for _, p := range preds {
			if !p(r) {
				match = false
				break
			}
		}
		if match {
			out = append(out, r)
		}
	}
	return out, nil
}

func parseClause(clause string) (func(Result) bool, error) {
	for _, op := range []string{">=", "<=", "!=", "=", ">", "<"} {
		idx := strings.Index(clause, op)
		if idx <= 0 {
			continue
		}
		field := strings.TrimSpace(clause[:idx])
		value := strings.TrimSpace(clause[idx+len(op):])
		return buildPredicate(field, op, value)
	}
	return nil, errors.New("search: unparseable filter clause: " + clause)
}

func buildPredicate(field, op, value string) (func(Result) bool, error) {
	switch field {
	case "score":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, err
		}
		return func(r Result) bool { return compareFloat(r.Score, op, v) }, nil
	case "strategy":
		return func(r Result) bool { return compareString(r.Strategy, op, value) }, nil
	case "id":
		return func(r Result) bool { return compareString(r.ID, op, value) }, nil
	default:
		return nil, errors.New("search: unknown filter field: " + field)
	}
}

func compareFloat(a float64, op string, b float64) bool {
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	case ">":
		return a > b
	case ">=":
		return a >= b
	case "<":
		return a < b
	case "<=":
		return a <= b
	default:
		return false
	}
}

func compareString(a, op, b string) bool {
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	default:
		return false
	}
}
