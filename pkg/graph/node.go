package graph

import (
	"context"
	"sync"
	"time"
)

// NodeType categorizes nodes within a graph.
type NodeType string

const (
	// NodeTypeOrdinary is a regular computation node.
	NodeTypeOrdinary NodeType = "ordinary"
	// NodeTypeTesting is a node that performs adversarial transformations
	// (e.g. prompt injection) for red-team pipelines.
	NodeTypeTesting NodeType = "testing"
	// NodeTypeSentinel marks the synthetic start and end nodes.
	NodeTypeSentinel NodeType = "sentinel"
)

// TransformFunc is the computation a node performs. It receives an immutable
// snapshot of the shared state and returns a partial state to merge back.
// Returning a nil state with a nil error is treated as an empty update.
type TransformFunc func(ctx context.Context, state State) (State, error)

// ExecutionRecord captures a single invocation of a node. Records are
// append-only; once appended to a node's history they are never modified.
type ExecutionRecord struct {
	Input     State         `json:"input"`
	Output    State         `json:"output"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Node is a single unit of computation in a graph. A node carries its own
// append-only execution history, so inspecting what a node saw and produced
// does not require any external bookkeeping.
type Node struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      NodeType       `json:"type"`
	Transform TransformFunc  `json:"-"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	mu      sync.RWMutex
	history []ExecutionRecord
}

// NewNode creates an ordinary node. If name is empty the id is used.
func NewNode(id, name string, transform TransformFunc) *Node {
	if name == "" {
		name = id
	}
	return &Node{
		ID:        id,
		Name:      name,
		Type:      NodeTypeOrdinary,
		Transform: transform,
		Metadata:  make(map[string]any),
	}
}

// RecordExecution appends a record to the node's history. The execution
// runner is the only caller during normal operation; every invocation of a
// node produces exactly one record, failed or not.
func (n *Node) RecordExecution(rec ExecutionRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = append(n.history, rec)
}

// History returns a copy of the node's execution records in append order.
func (n *Node) History() []ExecutionRecord {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]ExecutionRecord, len(n.history))
	copy(out, n.history)
	return out
}

// ExecutionCount returns how many times the node has been executed.
func (n *Node) ExecutionCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.history)
}

// LastExecuted returns the start time of the most recent execution, or the
// zero time if the node has never run.
func (n *Node) LastExecuted() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if len(n.history) == 0 {
		return time.Time{}
	}
	return n.history[len(n.history)-1].StartedAt
}

// LatestRecord returns the most recent execution record, or false if the
// node has never run.
func (n *Node) LatestRecord() (ExecutionRecord, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if len(n.history) == 0 {
		return ExecutionRecord{}, false
	}
	return n.history[len(n.history)-1], true
}

// LatestSuccess returns the most recent successful record, or false if the
// node has never completed successfully.
func (n *Node) LatestSuccess() (ExecutionRecord, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for i := len(n.history) - 1; i >= 0; i-- {
		if n.history[i].Success {
			return n.history[i], true
		}
	}
	return ExecutionRecord{}, false
}

// IsSentinel reports whether the node is a synthetic start or end marker.
func (n *Node) IsSentinel() bool {
	return n.Type == NodeTypeSentinel
}
