package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lantern/pkg/graph"
)

func staticTransform(delta graph.State) graph.TransformFunc {
	return func(_ context.Context, _ graph.State) (graph.State, error) {
		return delta, nil
	}
}

func failingTransform(msg string) graph.TransformFunc {
	return func(_ context.Context, _ graph.State) (graph.State, error) {
		return nil, errors.New(msg)
	}
}

func newTestEngine() *Engine {
	return NewEngine(graph.NewMemoryStore(), Options{Logger: NopLogger()})
}

func TestExecuteLinearGraph(t *testing.T) {
	g := graph.New("linear")
	require.NoError(t, g.AddNode(graph.NewNode("step1", "", staticTransform(graph.State{"foo": "bar"}))))
	require.NoError(t, g.AddNode(graph.NewNode("step2", "", func(_ context.Context, state graph.State) (graph.State, error) {
		return graph.State{"baz": state["foo"]}, nil
	})))
	require.NoError(t, g.Connect(graph.StartNodeID, "step1"))
	require.NoError(t, g.Connect("step1", "step2"))
	require.NoError(t, g.Connect("step2", graph.EndNodeID))

	engine := newTestEngine()
	result, err := engine.Execute(context.Background(), g, graph.State{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "bar", result.State["foo"])
	assert.Equal(t, "bar", result.State["baz"])
	assert.NotEmpty(t, result.ExecutionID)
}

func TestExecuteRecordsHistory(t *testing.T) {
	g := graph.New("history")
	require.NoError(t, g.AddNode(graph.NewNode("a", "", staticTransform(graph.State{"x": 1}))))
	require.NoError(t, g.Connect(graph.StartNodeID, "a"))
	require.NoError(t, g.Connect("a", graph.EndNodeID))

	engine := newTestEngine()
	_, err := engine.Execute(context.Background(), g, graph.State{"seed": true}, nil)
	require.NoError(t, err)

	node, err := g.Node("a")
	require.NoError(t, err)
	require.Equal(t, 1, node.ExecutionCount())

	rec, ok := node.LatestRecord()
	require.True(t, ok)
	assert.True(t, rec.Success)
	assert.Equal(t, true, rec.Input["seed"])
	assert.False(t, rec.StartedAt.IsZero())

	// Sentinels record their invocations too
	start, err := g.Node(graph.StartNodeID)
	require.NoError(t, err)
	assert.Equal(t, 1, start.ExecutionCount())
}

func TestExecuteFanOutFanIn(t *testing.T) {
	g := graph.New("fanout")
	require.NoError(t, g.AddNode(graph.NewNode("split", "", staticTransform(graph.State{}))))
	require.NoError(t, g.AddNode(graph.NewNode("city", "", staticTransform(graph.State{"city": "London"}))))
	require.NoError(t, g.AddNode(graph.NewNode("temp", "", staticTransform(graph.State{"temp": "18C"}))))
	require.NoError(t, g.AddNode(graph.NewNode("join", "", func(_ context.Context, state graph.State) (graph.State, error) {
		// The join barrier guarantees both branch outputs are merged
		// before this node runs.
		city := state.GetString("city")
		temp := state.GetString("temp")
		if city == "" || temp == "" {
			return nil, fmt.Errorf("join ran before both branches completed: city=%q temp=%q", city, temp)
		}
		return graph.State{"report": city + " " + temp}, nil
	})))
	require.NoError(t, g.Connect(graph.StartNodeID, "split"))
	require.NoError(t, g.Connect("split", "city"))
	require.NoError(t, g.Connect("split", "temp"))
	require.NoError(t, g.Connect("city", "join"))
	require.NoError(t, g.Connect("temp", "join"))
	require.NoError(t, g.Connect("join", graph.EndNodeID))

	engine := newTestEngine()
	result, err := engine.Execute(context.Background(), g, graph.State{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "London 18C", result.State["report"])
}

func TestExecuteSnapshotIsolation(t *testing.T) {
	// Branches receive the state as of their dispatch; a sibling's output
	// must not bleed into a concurrently dispatched node's input.
	g := graph.New("isolation")
	require.NoError(t, g.AddNode(graph.NewNode("left", "", staticTransform(graph.State{"left": true}))))
	require.NoError(t, g.AddNode(graph.NewNode("right", "", func(_ context.Context, state graph.State) (graph.State, error) {
		_, sawSibling := state.Get("left")
		return graph.State{"right_saw_left_at_input": sawSibling}, nil
	})))
	require.NoError(t, g.Connect(graph.StartNodeID, "left"))
	require.NoError(t, g.Connect(graph.StartNodeID, "right"))
	require.NoError(t, g.Connect("left", graph.EndNodeID))
	require.NoError(t, g.Connect("right", graph.EndNodeID))

	engine := newTestEngine()
	result, err := engine.Execute(context.Background(), g, graph.State{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, false, result.State["right_saw_left_at_input"])
	assert.Equal(t, true, result.State["left"])
}

func TestExecuteFailureCascade(t *testing.T) {
	// A failed node makes its exclusive downstream cone unreachable while
	// the sibling branch continues to the end.
	g := graph.New("cascade")
	require.NoError(t, g.AddNode(graph.NewNode("split", "", staticTransform(graph.State{}))))
	require.NoError(t, g.AddNode(graph.NewNode("bad", "", failingTransform("boom"))))
	require.NoError(t, g.AddNode(graph.NewNode("after_bad", "", staticTransform(graph.State{"after_bad": true}))))
	require.NoError(t, g.AddNode(graph.NewNode("ok", "", staticTransform(graph.State{"ok": true}))))
	require.NoError(t, g.Connect(graph.StartNodeID, "split"))
	require.NoError(t, g.Connect("split", "bad"))
	require.NoError(t, g.Connect("split", "ok"))
	require.NoError(t, g.Connect("bad", "after_bad"))
	require.NoError(t, g.Connect("after_bad", graph.EndNodeID))
	require.NoError(t, g.Connect("ok", graph.EndNodeID))

	engine := newTestEngine()
	result, err := engine.Execute(context.Background(), g, graph.State{}, nil)
	require.NoError(t, err)

	// The end was reached through the surviving branch.
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, true, result.State["ok"])
	assert.NotContains(t, result.State, "after_bad")

	afterBad, err := g.Node("after_bad")
	require.NoError(t, err)
	assert.Equal(t, 0, afterBad.ExecutionCount())

	bad, err := g.Node("bad")
	require.NoError(t, err)
	rec, ok := bad.LatestRecord()
	require.True(t, ok)
	assert.False(t, rec.Success)
	assert.Equal(t, "boom", rec.Error)
}

func TestExecuteAllPathsDead(t *testing.T) {
	g := graph.New("dead")
	require.NoError(t, g.AddNode(graph.NewNode("bad", "", failingTransform("boom"))))
	require.NoError(t, g.Connect(graph.StartNodeID, "bad"))
	require.NoError(t, g.Connect("bad", graph.EndNodeID))

	engine := newTestEngine()
	result, err := engine.Execute(context.Background(), g, graph.State{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)

	var nodeErr *NodeExecutionError
	require.ErrorAs(t, result.Err, &nodeErr)
	assert.Equal(t, "bad", nodeErr.NodeID)
}

func TestExecuteJoinWithFailedBranchStillRuns(t *testing.T) {
	// A join whose live predecessor set is non-empty proceeds once all
	// pending predecessors have resolved, even if one branch died.
	g := graph.New("partial-join")
	require.NoError(t, g.AddNode(graph.NewNode("bad", "", failingTransform("boom"))))
	require.NoError(t, g.AddNode(graph.NewNode("ok", "", staticTransform(graph.State{"ok": true}))))
	require.NoError(t, g.AddNode(graph.NewNode("join", "", staticTransform(graph.State{"joined": true}))))
	require.NoError(t, g.Connect(graph.StartNodeID, "bad"))
	require.NoError(t, g.Connect(graph.StartNodeID, "ok"))
	require.NoError(t, g.Connect("bad", "join"))
	require.NoError(t, g.Connect("ok", "join"))
	require.NoError(t, g.Connect("join", graph.EndNodeID))

	engine := newTestEngine()
	result, err := engine.Execute(context.Background(), g, graph.State{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, true, result.State["joined"])
}

func TestExecuteConditionalRouting(t *testing.T) {
	g := graph.New("conditional")
	require.NoError(t, g.AddNode(graph.NewNode("route", "", staticTransform(graph.State{"value": 5}))))
	require.NoError(t, g.AddNode(graph.NewNode("high", "", staticTransform(graph.State{"picked": "high"}))))
	require.NoError(t, g.AddNode(graph.NewNode("low", "", staticTransform(graph.State{"picked": "low"}))))
	require.NoError(t, g.Connect(graph.StartNodeID, "route"))
	require.NoError(t, g.AddEdge(&graph.Edge{Source: "route", Target: "high", Conditional: true, Condition: "value > 3"}))
	require.NoError(t, g.AddEdge(&graph.Edge{Source: "route", Target: "low", Conditional: true, Condition: "value <= 3"}))
	require.NoError(t, g.Connect("high", graph.EndNodeID))
	require.NoError(t, g.Connect("low", graph.EndNodeID))

	engine := newTestEngine()
	result, err := engine.Execute(context.Background(), g, graph.State{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "high", result.State["picked"])

	low, err := g.Node("low")
	require.NoError(t, err)
	assert.Equal(t, 0, low.ExecutionCount())
}

func TestExecuteConditionalFirstMatchWins(t *testing.T) {
	// Both conditions are true; only the first declared edge fires.
	g := graph.New("tie")
	require.NoError(t, g.AddNode(graph.NewNode("route", "", staticTransform(graph.State{"value": 5}))))
	require.NoError(t, g.AddNode(graph.NewNode("first", "", staticTransform(graph.State{"picked": "first"}))))
	require.NoError(t, g.AddNode(graph.NewNode("second", "", staticTransform(graph.State{"picked": "second"}))))
	require.NoError(t, g.Connect(graph.StartNodeID, "route"))
	require.NoError(t, g.AddEdge(&graph.Edge{Source: "route", Target: "first", Conditional: true, Condition: "value > 0"}))
	require.NoError(t, g.AddEdge(&graph.Edge{Source: "route", Target: "second", Conditional: true, Condition: "value > 1"}))
	require.NoError(t, g.Connect("first", graph.EndNodeID))
	require.NoError(t, g.Connect("second", graph.EndNodeID))

	engine := newTestEngine()
	result, err := engine.Execute(context.Background(), g, graph.State{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "first", result.State["picked"])

	second, err := g.Node("second")
	require.NoError(t, err)
	assert.Equal(t, 0, second.ExecutionCount())
}

func TestExecuteConditionalNoMatch(t *testing.T) {
	g := graph.New("nomatch")
	require.NoError(t, g.AddNode(graph.NewNode("route", "", staticTransform(graph.State{"value": 0}))))
	require.NoError(t, g.AddNode(graph.NewNode("target", "", staticTransform(graph.State{"picked": "target"}))))
	require.NoError(t, g.Connect(graph.StartNodeID, "route"))
	require.NoError(t, g.AddEdge(&graph.Edge{Source: "route", Target: "target", Conditional: true, Condition: "value > 3"}))
	require.NoError(t, g.Connect("target", graph.EndNodeID))

	engine := newTestEngine()
	result, err := engine.Execute(context.Background(), g, graph.State{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.EqualError(t, result.Err, "end node not reached")
}

func TestExecuteRefusesCyclicGraph(t *testing.T) {
	g := graph.New("cyclic")
	require.NoError(t, g.AddNode(graph.NewNode("a", "", staticTransform(graph.State{}))))
	require.NoError(t, g.AddNode(graph.NewNode("b", "", staticTransform(graph.State{}))))
	require.NoError(t, g.Connect(graph.StartNodeID, "a"))
	require.NoError(t, g.Connect("a", "b"))
	require.NoError(t, g.Connect("b", "a"))
	require.NoError(t, g.Connect("b", graph.EndNodeID))

	engine := newTestEngine()
	_, err := engine.Execute(context.Background(), g, graph.State{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestExecuteEventOrdering(t *testing.T) {
	g := graph.New("events")
	require.NoError(t, g.AddNode(graph.NewNode("a", "", staticTransform(graph.State{"a": 1}))))
	require.NoError(t, g.AddNode(graph.NewNode("b", "", staticTransform(graph.State{"b": 2}))))
	require.NoError(t, g.Connect(graph.StartNodeID, "a"))
	require.NoError(t, g.Connect("a", "b"))
	require.NoError(t, g.Connect("b", graph.EndNodeID))

	engine := newTestEngine()
	stream := NewStream()

	done := make(chan *Result, 1)
	go func() {
		result, err := engine.Execute(context.Background(), g, graph.State{}, stream)
		require.NoError(t, err)
		done <- result
	}()

	var events []Event
	for event := range stream.Events() {
		events = append(events, event)
	}
	result := <-done

	require.NotEmpty(t, events)
	assert.Equal(t, EventStart, events[0].Type)
	assert.Equal(t, EventComplete, events[len(events)-1].Type)

	started := make(map[string]int)
	terminal := 0
	for i, event := range events {
		assert.Equal(t, result.ExecutionID, event.ExecutionID)
		switch event.Type {
		case EventNodeStart:
			started[event.NodeID] = i
		case EventNodeComplete:
			startIdx, ok := started[event.NodeID]
			require.True(t, ok, "node_complete for %s without node_start", event.NodeID)
			assert.Less(t, startIdx, i)
		case EventComplete, EventError:
			terminal++
			assert.Equal(t, len(events)-1, i, "terminal event must be last")
		case EventStart:
			assert.Equal(t, 0, i)
		}
	}
	assert.Equal(t, 1, terminal)
	assert.Contains(t, started, "a")
	assert.Contains(t, started, "b")
}

func TestExecuteErrorEventOnFailure(t *testing.T) {
	g := graph.New("fail-events")
	require.NoError(t, g.AddNode(graph.NewNode("bad", "", failingTransform("boom"))))
	require.NoError(t, g.Connect(graph.StartNodeID, "bad"))
	require.NoError(t, g.Connect("bad", graph.EndNodeID))

	engine := newTestEngine()
	stream := NewStream()

	go func() {
		_, _ = engine.Execute(context.Background(), g, graph.State{}, stream)
	}()

	var events []Event
	for event := range stream.Events() {
		events = append(events, event)
	}

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Error, "boom")

	var nodeFailed bool
	for _, event := range events {
		if event.Type == EventNodeComplete && event.NodeID == "bad" {
			assert.Equal(t, NodeFailed, event.Status)
			nodeFailed = true
		}
	}
	assert.True(t, nodeFailed)
}

func TestExecuteDeadline(t *testing.T) {
	g := graph.New("deadline")
	require.NoError(t, g.AddNode(graph.NewNode("slow", "", func(ctx context.Context, _ graph.State) (graph.State, error) {
		select {
		case <-time.After(5 * time.Second):
			return graph.State{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})))
	require.NoError(t, g.Connect(graph.StartNodeID, "slow"))
	require.NoError(t, g.Connect("slow", graph.EndNodeID))

	engine := NewEngine(graph.NewMemoryStore(), Options{
		Deadline: 100 * time.Millisecond,
		Logger:   NopLogger(),
	})

	start := time.Now()
	result, err := engine.Execute(context.Background(), g, graph.State{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Error(t, result.Err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestExecuteByID(t *testing.T) {
	store := graph.NewMemoryStore()
	engine := NewEngine(store, Options{Logger: NopLogger()})

	g := graph.New("stored")
	require.NoError(t, g.AddNode(graph.NewNode("a", "", staticTransform(graph.State{"a": 1}))))
	require.NoError(t, g.Connect(graph.StartNodeID, "a"))
	require.NoError(t, g.Connect("a", graph.EndNodeID))

	id, err := store.Create(context.Background(), g)
	require.NoError(t, err)

	result, err := engine.ExecuteByID(context.Background(), id, graph.State{}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)

	_, err = engine.ExecuteByID(context.Background(), "missing", graph.State{}, nil)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "graph", notFound.Kind)
}
