package graph

import (
	"errors"
	"fmt"
)

// ErrGraphNotFound is returned by stores when a graph id is unknown.
var ErrGraphNotFound = errors.New("graph not found")

// DuplicateNodeError indicates an attempt to register a node id that
// already exists in the graph.
type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("duplicate node ID: %s", e.NodeID)
}

// UnknownNodeError indicates a reference to a node id that does not exist
// in the graph.
type UnknownNodeError struct {
	NodeID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node: %s", e.NodeID)
}
