package execution

import "github.com/dshills/lantern/pkg/graph"

// Reducer merges a node's partial output (delta) into the accumulated
// state, returning the new state. Reducers must not mutate prev.
//
// The engine applies reducers serially in node completion order, so the
// reducer itself never needs locking. When concurrent branches write
// overlapping keys the completion order decides which value survives under
// LastWriteWins; supply an associative, commutative reducer to make such
// merges order-independent.
type Reducer func(prev, delta graph.State) graph.State

// LastWriteWins is the default reducer: delta keys overwrite prev keys.
func LastWriteWins(prev, delta graph.State) graph.State {
	next := make(graph.State, len(prev)+len(delta))
	for k, v := range prev {
		next[k] = v
	}
	for k, v := range delta {
		next[k] = v
	}
	return next
}
