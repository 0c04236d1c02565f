package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/lantern/pkg/graph"
)

// Status represents the lifecycle of a graph execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	// DefaultMaxConcurrentNodes bounds simultaneously running nodes.
	DefaultMaxConcurrentNodes = 8
	// DefaultDeadline bounds a whole execution. Past it the run is forced
	// to a failed terminal state so goroutines and consumers never hang.
	DefaultDeadline = 10 * time.Minute
)

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	MaxConcurrentNodes int
	NodeTimeout        time.Duration
	Deadline           time.Duration
	Reducer            Reducer
	Logger             *Logger
}

// Result is the terminal outcome of a graph execution.
type Result struct {
	ExecutionID string        `json:"execution_id"`
	Status      Status        `json:"status"`
	State       graph.State   `json:"state"`
	Duration    time.Duration `json:"duration"`
	Err         error         `json:"-"`
}

// Engine executes graphs: it schedules ready nodes onto a bounded worker
// pool, serializes state merges, honors join barriers, and cascades
// failures to nodes whose every path has died.
type Engine struct {
	store  graph.Store
	opts   Options
	runner *Runner
}

// NewEngine creates an engine bound to a graph store.
func NewEngine(store graph.Store, opts Options) *Engine {
	if opts.MaxConcurrentNodes <= 0 {
		opts.MaxConcurrentNodes = DefaultMaxConcurrentNodes
	}
	if opts.NodeTimeout <= 0 {
		opts.NodeTimeout = DefaultNodeTimeout
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	if opts.Reducer == nil {
		opts.Reducer = LastWriteWins
	}
	if opts.Logger == nil {
		opts.Logger = NewLogger()
	}

	return &Engine{
		store:  store,
		opts:   opts,
		runner: NewRunner(opts.NodeTimeout, opts.Logger),
	}
}

// Store returns the engine's graph store.
func (e *Engine) Store() graph.Store {
	return e.store
}

// Runner returns the engine's node runner. Isolated single-node execution
// goes through the same runner so history accounting is identical.
func (e *Engine) Runner() *Runner {
	return e.runner
}

// ExecuteByID looks up a graph in the store and executes it.
func (e *Engine) ExecuteByID(ctx context.Context, graphID string, initial graph.State, emitter Emitter) (*Result, error) {
	g, err := e.store.Get(ctx, graphID)
	if err != nil {
		if errors.Is(err, graph.ErrGraphNotFound) {
			return nil, NewGraphNotFound(graphID)
		}
		return nil, err
	}
	return e.Execute(ctx, g, initial, emitter)
}

// edge decision states tracked by the scheduler
const (
	edgePending = iota
	edgeLive
	edgeDead
)

// node scheduling states tracked by the scheduler
const (
	nodeWaiting = iota
	nodeRunning
	nodeSucceeded
	nodeFailed
	nodeUnreachable
)

// completion carries a finished node back to the scheduler loop.
type completion struct {
	nodeID string
	rec    graph.ExecutionRecord
}

// Execute runs a graph to termination. The emitter receives the ordered
// event stream; pass DiscardEmitter() when events are not needed. The
// returned Result is also populated when the execution fails; the error
// return is reserved for inputs the engine refuses to run at all
// (validation failures, cyclic graphs).
func (e *Engine) Execute(ctx context.Context, g *graph.Graph, initial graph.State, emitter Emitter) (*Result, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("graph validation failed: %w", err)
	}
	if emitter == nil {
		emitter = DiscardEmitter()
	}

	executionID := uuid.NewString()
	started := time.Now()
	e.opts.Logger.LogExecutionStart(executionID, g.ID)

	execCtx, cancel := context.WithTimeout(ctx, e.opts.Deadline)
	defer cancel()

	if err := emitter.Emit(execCtx, Event{
		Type:        EventStart,
		ExecutionID: executionID,
	}); err != nil {
		return nil, err
	}

	result := e.run(execCtx, g, initial, executionID, emitter)
	result.Duration = time.Since(started)

	e.emitTerminal(emitter, executionID, result)
	e.opts.Logger.LogExecutionEnd(executionID, result.Status, result.Duration)

	return result, nil
}

// run owns all scheduling state. It is the single writer of the shared
// state: workers only compute, and their outputs are merged here in
// completion order.
func (e *Engine) run(ctx context.Context, g *graph.Graph, initial graph.State, executionID string, emitter Emitter) *Result {
	state := initial.Clone()
	edges := g.Edges()
	nodes := g.Nodes()

	nodeStatus := make(map[string]int, len(nodes))
	incomingPending := make(map[string]int, len(nodes))
	incomingLive := make(map[string]int, len(nodes))
	edgeState := make([]int, len(edges))
	edgeIndex := make(map[string][]int, len(nodes)) // source -> edge positions

	for id := range nodes {
		nodeStatus[id] = nodeWaiting
	}
	for i, edge := range edges {
		incomingPending[edge.Target]++
		edgeIndex[edge.Source] = append(edgeIndex[edge.Source], i)
	}

	var firstFailure error
	ready := []string{graph.StartNodeID}
	inFlight := 0

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	completions := make(chan completion, len(nodes))
	grp := &errgroup.Group{}
	grp.SetLimit(e.opts.MaxConcurrentNodes)

	fail := func(err error) *Result {
		cancelWorkers()
		waitWorkers(grp)
		return &Result{
			ExecutionID: executionID,
			Status:      StatusFailed,
			State:       state,
			Err:         err,
		}
	}

	// markUnreachable cascades dead edges through the graph: a node whose
	// every incoming edge is dead never runs, and its own outgoing edges
	// die with it.
	var markUnreachable func(nodeID string)
	markUnreachable = func(nodeID string) {
		if nodeStatus[nodeID] != nodeWaiting {
			return
		}
		nodeStatus[nodeID] = nodeUnreachable
		e.opts.Logger.LogUnreachable(nodeID)
		for _, i := range edgeIndex[nodeID] {
			if edgeState[i] == edgePending {
				decideEdge(edges, edgeState, incomingPending, incomingLive, i, false)
				settleTarget(edges[i].Target, nodeStatus, incomingPending, incomingLive, &ready, markUnreachable)
			}
		}
	}

	dispatch := func(nodeID string, block bool) bool {
		node := nodes[nodeID]
		snapshot := state.Clone()
		work := func() error {
			rec := e.runner.Run(workerCtx, node, snapshot)
			completions <- completion{nodeID: nodeID, rec: rec}
			return nil
		}
		// A finished worker releases its group slot only after its
		// completion has been consumed, so with nothing in flight a full
		// group resolves imminently and blocking is safe.
		if block {
			grp.Go(work)
		} else if !grp.TryGo(work) {
			return false
		}

		nodeStatus[nodeID] = nodeRunning
		inFlight++
		_ = emitter.Emit(ctx, Event{
			Type:        EventNodeStart,
			ExecutionID: executionID,
			NodeID:      nodeID,
			NodeName:    node.Name,
		})
		return true
	}

	for inFlight > 0 || len(ready) > 0 {
		for len(ready) > 0 {
			if !dispatch(ready[0], inFlight == 0) {
				break
			}
			ready = ready[1:]
		}

		if inFlight == 0 {
			// Unreachable: a blocking dispatch always puts one in flight.
			return fail(&EngineFault{Message: "ready nodes could not be dispatched"})
		}

		select {
		case c := <-completions:
			inFlight--
			if nodeStatus[c.nodeID] != nodeRunning {
				return fail(&EngineFault{Message: fmt.Sprintf("completion for node %s which is not running", c.nodeID)})
			}

			status := NodeSucceeded
			if c.rec.Success {
				nodeStatus[c.nodeID] = nodeSucceeded
				state = e.opts.Reducer(state, c.rec.Output)
			} else {
				nodeStatus[c.nodeID] = nodeFailed
				status = NodeFailed
				if firstFailure == nil {
					firstFailure = &NodeExecutionError{NodeID: c.nodeID, Message: c.rec.Error}
				}
			}

			_ = emitter.Emit(ctx, Event{
				Type:        EventNodeComplete,
				ExecutionID: executionID,
				NodeID:      c.nodeID,
				NodeName:    nodes[c.nodeID].Name,
				Status:      status,
				Duration:    c.rec.Duration,
				Error:       c.rec.Error,
			})

			e.routeEdges(c.nodeID, c.rec.Success, state, edges, edgeState, edgeIndex, incomingPending, incomingLive, nodeStatus, &ready, markUnreachable)

		case <-ctx.Done():
			return fail(fmt.Errorf("execution deadline exceeded: %w", ctx.Err()))
		}
	}

	waitWorkers(grp)

	if nodeStatus[graph.EndNodeID] == nodeSucceeded {
		return &Result{
			ExecutionID: executionID,
			Status:      StatusCompleted,
			State:       state,
		}
	}

	if firstFailure == nil {
		firstFailure = errors.New("end node not reached")
	}
	return &Result{
		ExecutionID: executionID,
		Status:      StatusFailed,
		State:       state,
		Err:         firstFailure,
	}
}

// routeEdges decides the outgoing edges of a completed node. Unconditional
// edges from a successful node always go live. Conditional edges are
// evaluated against the post-merge state in declaration order and only the
// first match fires; the rest die. Every edge of a failed node dies.
func (e *Engine) routeEdges(nodeID string, success bool, state graph.State, edges []*graph.Edge, edgeState []int, edgeIndex map[string][]int, incomingPending, incomingLive map[string]int, nodeStatus map[string]int, ready *[]string, markUnreachable func(string)) {
	matched := false
	for _, i := range edgeIndex[nodeID] {
		if edgeState[i] != edgePending {
			continue
		}

		live := false
		if success {
			if !edges[i].Conditional {
				live = true
			} else if !matched && edges[i].Matches(state) {
				live = true
				matched = true
			}
		}

		decideEdge(edges, edgeState, incomingPending, incomingLive, i, live)
		settleTarget(edges[i].Target, nodeStatus, incomingPending, incomingLive, ready, markUnreachable)
	}
}

// decideEdge moves one edge out of the pending set.
func decideEdge(edges []*graph.Edge, edgeState []int, incomingPending, incomingLive map[string]int, i int, live bool) {
	if live {
		edgeState[i] = edgeLive
		incomingLive[edges[i].Target]++
	} else {
		edgeState[i] = edgeDead
	}
	incomingPending[edges[i].Target]--
}

// settleTarget checks whether a node's join barrier has resolved: once no
// incoming edges are pending it is either ready (at least one live path)
// or unreachable (every path died).
func settleTarget(nodeID string, nodeStatus map[string]int, incomingPending, incomingLive map[string]int, ready *[]string, markUnreachable func(string)) {
	if nodeStatus[nodeID] != nodeWaiting {
		return
	}
	if incomingPending[nodeID] > 0 {
		return
	}
	if incomingLive[nodeID] > 0 {
		*ready = append(*ready, nodeID)
		return
	}
	markUnreachable(nodeID)
}

// emitTerminal sends the final complete or error event. Terminal delivery
// uses its own short deadline so a departed consumer cannot wedge the
// engine after the run itself finished.
func (e *Engine) emitTerminal(emitter Emitter, executionID string, result *Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := Event{
		ExecutionID: executionID,
		Duration:    result.Duration,
		State:       result.State,
	}
	if result.Status == StatusCompleted {
		event.Type = EventComplete
	} else {
		event.Type = EventError
		if result.Err != nil {
			event.Error = result.Err.Error()
		}
	}

	_ = emitter.Emit(ctx, event)
	emitter.Close()
}

// waitWorkers drains the worker group. Workers send completions on a
// buffered channel sized to the node count, so none of them can block.
func waitWorkers(grp *errgroup.Group) {
	_ = grp.Wait()
}
