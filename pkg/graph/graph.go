package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// StartNodeID is the synthetic entry point every graph begins with.
	StartNodeID = "__start__"
	// EndNodeID is the synthetic exit point every graph terminates at.
	EndNodeID = "__end__"
)

// Graph is a directed graph of computation nodes over shared state. New
// graphs come with the start and end sentinels already in place; callers
// add their own nodes and wire edges between them and the sentinels.
type Graph struct {
	ID    string
	Name  string
	nodes map[string]*Node
	edges []*Edge
}

// New creates a graph with start and end sentinels.
func New(name string) *Graph {
	g := &Graph{
		ID:    uuid.NewString(),
		Name:  name,
		nodes: make(map[string]*Node),
		edges: make([]*Edge, 0),
	}

	for _, id := range []string{StartNodeID, EndNodeID} {
		g.nodes[id] = &Node{
			ID:   id,
			Name: id,
			Type: NodeTypeSentinel,
			Transform: func(ctx context.Context, state State) (State, error) {
				return State{}, nil
			},
		}
	}

	return g
}

// AddNode registers a node. Sentinel ids and existing ids are rejected.
func (g *Graph) AddNode(node *Node) error {
	if node == nil {
		return errors.New("cannot add nil node")
	}
	if node.ID == "" {
		return errors.New("node ID cannot be empty")
	}
	if _, exists := g.nodes[node.ID]; exists {
		return &DuplicateNodeError{NodeID: node.ID}
	}

	g.nodes[node.ID] = node
	return nil
}

// AddEdge wires a directed edge between two existing nodes. Edges keep
// their declaration order; for conditional routing the first declared edge
// whose condition matches is the one that fires.
func (g *Graph) AddEdge(edge *Edge) error {
	if edge == nil {
		return errors.New("cannot add nil edge")
	}
	if _, exists := g.nodes[edge.Source]; !exists {
		return &UnknownNodeError{NodeID: edge.Source}
	}
	if _, exists := g.nodes[edge.Target]; !exists {
		return &UnknownNodeError{NodeID: edge.Target}
	}
	if err := edge.Validate(); err != nil {
		return err
	}

	for _, existing := range g.edges {
		if existing.Source == edge.Source && existing.Target == edge.Target {
			return fmt.Errorf("duplicate edge from %s to %s", edge.Source, edge.Target)
		}
	}

	if err := edge.compile(); err != nil {
		return err
	}

	g.edges = append(g.edges, edge)
	return nil
}

// Connect is a convenience for adding an unconditional edge.
func (g *Graph) Connect(source, target string) error {
	return g.AddEdge(&Edge{Source: source, Target: target})
}

// Node returns a node by id.
func (g *Graph) Node(id string) (*Node, error) {
	node, exists := g.nodes[id]
	if !exists {
		return nil, &UnknownNodeError{NodeID: id}
	}
	return node, nil
}

// Nodes returns all nodes including sentinels.
func (g *Graph) Nodes() map[string]*Node {
	out := make(map[string]*Node, len(g.nodes))
	for id, node := range g.nodes {
		out[id] = node
	}
	return out
}

// Edges returns the edges in declaration order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Successors returns the outgoing edges of a node in declaration order.
func (g *Graph) Successors(id string) []*Edge {
	var out []*Edge
	for _, edge := range g.edges {
		if edge.Source == id {
			out = append(out, edge)
		}
	}
	return out
}

// Predecessors returns the ids of nodes with an edge into the given node.
func (g *Graph) Predecessors(id string) []string {
	var out []string
	for _, edge := range g.edges {
		if edge.Target == id {
			out = append(out, edge.Source)
		}
	}
	return out
}

// Validate checks the structural invariants required for execution:
// the start sentinel must lead somewhere, the end sentinel must be
// reachable, every edge endpoint must exist, and the graph must be acyclic.
func (g *Graph) Validate() error {
	var validationErrors []string

	if len(g.Successors(StartNodeID)) == 0 {
		validationErrors = append(validationErrors, "start node has no outgoing edges")
	}
	if len(g.Predecessors(EndNodeID)) == 0 {
		validationErrors = append(validationErrors, "end node has no incoming edges")
	}

	for _, edge := range g.edges {
		if _, exists := g.nodes[edge.Source]; !exists {
			validationErrors = append(validationErrors, fmt.Sprintf("edge references invalid source node: %s", edge.Source))
		}
		if _, exists := g.nodes[edge.Target]; !exists {
			validationErrors = append(validationErrors, fmt.Sprintf("edge references invalid target node: %s", edge.Target))
		}
	}

	for _, node := range g.nodes {
		if node.IsSentinel() {
			continue
		}
		if node.Transform == nil {
			validationErrors = append(validationErrors, fmt.Sprintf("node %s has no transform", node.ID))
		}
	}

	if err := g.checkForCycles(); err != nil {
		validationErrors = append(validationErrors, err.Error())
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, "; "))
	}
	return nil
}

// checkForCycles performs depth-first search to detect cycles.
func (g *Graph) checkForCycles() error {
	if len(g.edges) == 0 {
		return nil
	}

	adjacency := make(map[string][]string)
	for _, edge := range g.edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	// Visit states: 0=unvisited, 1=visiting, 2=visited
	state := make(map[string]int)

	var dfs func(string) bool
	dfs = func(nodeID string) bool {
		if state[nodeID] == 1 {
			return true
		}
		if state[nodeID] == 2 {
			return false
		}

		state[nodeID] = 1
		for _, neighbor := range adjacency[nodeID] {
			if dfs(neighbor) {
				return true
			}
		}
		state[nodeID] = 2
		return false
	}

	for id := range g.nodes {
		if state[id] == 0 {
			if dfs(id) {
				return errors.New("graph contains circular dependency")
			}
		}
	}

	return nil
}

// TopologicalSort returns node ids in dependency order using Kahn's
// algorithm. Nodes with no edges at all are still included.
func (g *Graph) TopologicalSort() ([]string, error) {
	adjacency := make(map[string][]string)
	inDegree := make(map[string]int)

	for id := range g.nodes {
		inDegree[id] = 0
	}
	for _, edge := range g.edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		inDegree[edge.Target]++
	}

	queue := make([]string, 0)
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for _, neighbor := range adjacency[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, errors.New("graph contains a cycle (circular dependency)")
	}

	return result, nil
}
