// Package store wraps the FalkorDB/RedisGraph wire protocol: a named
// graph bound to a redis connection, a Cypher query runner, and the
// GRAPH.QUERY/GRAPH.DELETE response decoding. Trimmed to the surface
// store/redisgraph actually calls — Commit-by-appending-nodes-and-edges,
// pretty-printing, and the debug helpers behind them were never reached
// from memcore and are gone.
package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Graph is a named FalkorDB/RedisGraph graph reachable over conn.
type Graph struct {
	Name string
	Conn redis.UniversalClient
}

// NewGraph returns a Graph bound to name over conn.
func NewGraph(name string, conn redis.UniversalClient) Graph {
	return Graph{Name: name, Conn: conn}
}

// QueryResult is the decoded shape of a GRAPH.QUERY reply.
type QueryResult struct {
	Header     []string
	Results    [][]interface{}
	Statistics []string
}

// Query runs a Cypher statement against the graph and decodes the
// compact GRAPH.QUERY reply shape (header+results+stats, or just
// results+stats for statement types that return no header).
func (g *Graph) Query(ctx context.Context, q string) (QueryResult, error) {
	qr := QueryResult{}

	res, err := g.Conn.Do(ctx, "GRAPH.QUERY", g.Name, q, "--compact").Result()
	if err != nil {
		return qr, err
	}

	r, ok := res.([]interface{})
	if !ok {
		return qr, fmt.Errorf("unexpected response type: %T", res)
	}

	switch len(r) {
	case 3:
		if header, ok := r[0].([]interface{}); ok {
			qr.Header = make([]string, len(header))
			for i, h := range header {
				qr.Header[i] = fmt.Sprint(h)
			}
		}
		if rows, ok := r[1].([]interface{}); ok {
			qr.Results = make([][]interface{}, len(rows))
			for i, row := range rows {
				if rVals, ok := row.([]interface{}); ok {
					qr.Results[i] = rVals
				}
			}
		}
		if stats, ok := r[2].([]interface{}); ok {
			qr.Statistics = make([]string, len(stats))
			for i, s := range stats {
				qr.Statistics[i] = fmt.Sprint(s)
			}
		}
	case 2:
		if rows, ok := r[0].([]interface{}); ok {
			qr.Results = make([][]interface{}, len(rows))
			for i, row := range rows {
				if rVals, ok := row.([]interface{}); ok {
					qr.Results[i] = rVals
				}
			}
		}
		if stats, ok := r[1].([]interface{}); ok {
			qr.Statistics = make([]string, len(stats))
			for i, s := range stats {
				qr.Statistics[i] = fmt.Sprint(s)
			}
		}
	default:
		return qr, fmt.Errorf("unexpected response length: %d", len(r))
	}

	return qr, nil
}

// Delete drops the graph entirely via GRAPH.DELETE.
func (g *Graph) Delete(ctx context.Context) error {
	return g.Conn.Do(ctx, "GRAPH.DELETE", g.Name).Err()
}
