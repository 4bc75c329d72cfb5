// Package graphtest provides an in-memory graph.Runner that records every
// statement it receives, for unit tests of code that builds Cypher.
package graphtest

import (
	"context"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Call is one recorded statement
type Call struct {
	Mode   string
	Query  string
	Params map[string]any
}

// Responder produces the records (or error) for a statement
type Responder func(call Call) ([]*neo4j.Record, error)

// Runner records calls and answers them with Respond, if set
type Runner struct {
	mu      sync.Mutex
	calls   []Call
	Respond Responder
}

// Read implements graph.Runner
func (r *Runner) Read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	return r.record(ctx, Call{Mode: "read", Query: query, Params: params})
}

// Write implements graph.Runner
func (r *Runner) Write(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	return r.record(ctx, Call{Mode: "write", Query: query, Params: params})
}

func (r *Runner) record(ctx context.Context, call Call) ([]*neo4j.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	respond := r.Respond
	r.mu.Unlock()

	if respond == nil {
		return nil, nil
	}
	return respond(call)
}

// Calls returns a copy of every recorded call
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsMatching returns the recorded calls whose query contains fragment
func (r *Runner) CallsMatching(fragment string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if strings.Contains(c.Query, fragment) {
			out = append(out, c)
		}
	}
	return out
}

// Record builds a driver record from alternating key/value pairs
func Record(kv ...any) *neo4j.Record {
	rec := &neo4j.Record{}
	for i := 0; i+1 < len(kv); i += 2 {
		rec.Keys = append(rec.Keys, kv[i].(string))
		rec.Values = append(rec.Values, kv[i+1])
	}
	return rec
}

// Node builds a driver node value with the given labels and properties
func Node(props map[string]any, labels ...string) neo4j.Node {
	return neo4j.Node{Labels: labels, Props: props}
}
