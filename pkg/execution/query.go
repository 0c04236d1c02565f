package execution

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/lantern/pkg/graph"
)

// NodeStateInfo is a point-in-time view of one node's accumulated
// execution history.
type NodeStateInfo struct {
	GraphID        string      `json:"graph_id"`
	NodeID         string      `json:"node_id"`
	NodeName       string      `json:"node_name"`
	CurrentState   graph.State `json:"current_state"`
	Input          graph.State `json:"input,omitempty"`
	Output         graph.State `json:"output,omitempty"`
	ExecutionCount int         `json:"execution_count"`
	LastExecuted   *time.Time  `json:"last_executed,omitempty"`
}

// NodeState reports a node's latest observed state. CurrentState is the
// output of the most recent successful execution; Input and Output reflect
// that same record. Sentinels keep their execution count but always report
// empty input and output, since they carry no data of their own.
func NodeState(g *graph.Graph, nodeID string) (*NodeStateInfo, error) {
	node, err := g.Node(nodeID)
	if err != nil {
		var unknown *graph.UnknownNodeError
		if errors.As(err, &unknown) {
			return nil, NewNodeNotFound(nodeID)
		}
		return nil, err
	}

	info := &NodeStateInfo{
		GraphID:        g.ID,
		NodeID:         node.ID,
		NodeName:       node.Name,
		CurrentState:   graph.State{},
		ExecutionCount: node.ExecutionCount(),
	}

	if last := node.LastExecuted(); !last.IsZero() {
		info.LastExecuted = &last
	}

	if node.IsSentinel() {
		return info, nil
	}

	if rec, ok := node.LatestSuccess(); ok {
		info.CurrentState = rec.Output
		info.Input = rec.Input
		info.Output = rec.Output
	}

	return info, nil
}

// NodeStateByID resolves the graph through the engine's store first.
func (e *Engine) NodeStateByID(ctx context.Context, graphID, nodeID string) (*NodeStateInfo, error) {
	g, err := e.store.Get(ctx, graphID)
	if err != nil {
		if errors.Is(err, graph.ErrGraphNotFound) {
			return nil, NewGraphNotFound(graphID)
		}
		return nil, err
	}
	return NodeState(g, nodeID)
}
