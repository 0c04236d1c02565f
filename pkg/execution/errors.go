package execution

import "fmt"

// NotFoundError indicates that a graph or node lookup failed. API layers
// map this to a 404.
type NotFoundError struct {
	Kind string // "graph" or "node"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewGraphNotFound creates a NotFoundError for a graph id.
func NewGraphNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "graph", ID: id}
}

// NewNodeNotFound creates a NotFoundError for a node id.
func NewNodeNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "node", ID: id}
}

// NodeExecutionError indicates that a node's transform failed, timed out,
// or panicked. The failure is recorded in the node's history and reported
// through events; it does not abort sibling branches.
type NodeExecutionError struct {
	NodeID  string
	Message string
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s execution failed: %s", e.NodeID, e.Message)
}

// EngineFault indicates an internal scheduling inconsistency, such as
// predecessor bookkeeping disagreeing with the graph. It aborts the
// execution rather than producing a silently wrong result.
type EngineFault struct {
	Message string
}

func (e *EngineFault) Error() string {
	return fmt.Sprintf("engine fault: %s", e.Message)
}
