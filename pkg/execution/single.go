package execution

import (
	"context"
	"errors"

	"github.com/dshills/lantern/pkg/graph"
)

// NodeResult is the outcome of an isolated single-node execution.
type NodeResult struct {
	Output  graph.State `json:"output"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
}

// ExecuteNode runs one node in isolation without scheduling the rest of
// the graph. The mock state stands in for what upstream nodes would have
// produced; explicit input keys override mock keys when both are present.
// The node's history gains a record exactly as in a full graph run, so a
// node can be exercised in isolation and then inspected through the same
// state queries. Sentinels cannot be executed in isolation.
func (e *Engine) ExecuteNode(ctx context.Context, g *graph.Graph, nodeID string, input, mock graph.State) (*NodeResult, error) {
	node, err := g.Node(nodeID)
	if err != nil {
		var unknown *graph.UnknownNodeError
		if errors.As(err, &unknown) {
			return nil, NewNodeNotFound(nodeID)
		}
		return nil, err
	}
	if node.IsSentinel() {
		return nil, NewNodeNotFound(nodeID)
	}

	snapshot := mock.Clone()
	snapshot.Merge(input)

	rec := e.runner.Run(ctx, node, snapshot)

	return &NodeResult{
		Output:  rec.Output,
		Success: rec.Success,
		Error:   rec.Error,
	}, nil
}

// ExecuteNodeByID resolves the graph through the store, then executes the
// node in isolation.
func (e *Engine) ExecuteNodeByID(ctx context.Context, graphID, nodeID string, input, mock graph.State) (*NodeResult, error) {
	g, err := e.store.Get(ctx, graphID)
	if err != nil {
		if errors.Is(err, graph.ErrGraphNotFound) {
			return nil, NewGraphNotFound(graphID)
		}
		return nil, err
	}
	return e.ExecuteNode(ctx, g, nodeID, input, mock)
}
