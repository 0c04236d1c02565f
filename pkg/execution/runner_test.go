package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lantern/pkg/graph"
)

func TestRunnerSuccess(t *testing.T) {
	node := graph.NewNode("a", "Node A", func(_ context.Context, state graph.State) (graph.State, error) {
		return graph.State{"out": state["in"]}, nil
	})

	runner := NewRunner(0, nil)
	rec := runner.Run(context.Background(), node, graph.State{"in": "value"})

	assert.True(t, rec.Success)
	assert.Empty(t, rec.Error)
	assert.Equal(t, "value", rec.Input["in"])
	assert.Equal(t, "value", rec.Output["out"])
	assert.False(t, rec.StartedAt.IsZero())
	assert.Equal(t, 1, node.ExecutionCount())
}

func TestRunnerSnapshotNotMutated(t *testing.T) {
	node := graph.NewNode("a", "", func(_ context.Context, state graph.State) (graph.State, error) {
		state["sneaky"] = true
		return state, nil
	})

	runner := NewRunner(0, nil)
	snapshot := graph.State{"in": "value"}
	rec := runner.Run(context.Background(), node, snapshot)

	assert.True(t, rec.Success)
	assert.NotContains(t, snapshot, "sneaky")
	assert.NotContains(t, rec.Input, "sneaky")
}

func TestRunnerTransformError(t *testing.T) {
	node := graph.NewNode("a", "", func(_ context.Context, _ graph.State) (graph.State, error) {
		return nil, errors.New("transform blew up")
	})

	runner := NewRunner(0, nil)
	rec := runner.Run(context.Background(), node, graph.State{})

	assert.False(t, rec.Success)
	assert.Equal(t, "transform blew up", rec.Error)
	assert.NotNil(t, rec.Output)
	assert.Equal(t, 1, node.ExecutionCount())
}

func TestRunnerPanicRecovery(t *testing.T) {
	node := graph.NewNode("a", "", func(_ context.Context, _ graph.State) (graph.State, error) {
		panic("unexpected condition")
	})

	runner := NewRunner(0, nil)
	rec := runner.Run(context.Background(), node, graph.State{})

	assert.False(t, rec.Success)
	assert.Contains(t, rec.Error, "panic")
	assert.Contains(t, rec.Error, "unexpected condition")
	assert.Equal(t, 1, node.ExecutionCount())
}

func TestRunnerTimeout(t *testing.T) {
	node := graph.NewNode("slow", "", func(ctx context.Context, _ graph.State) (graph.State, error) {
		select {
		case <-time.After(5 * time.Second):
			return graph.State{"done": true}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	runner := NewRunner(50*time.Millisecond, nil)
	start := time.Now()
	rec := runner.Run(context.Background(), node, graph.State{})

	assert.False(t, rec.Success)
	assert.Contains(t, rec.Error, "timeout")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, node.ExecutionCount())
}

func TestRunnerCancellation(t *testing.T) {
	node := graph.NewNode("slow", "", func(ctx context.Context, _ graph.State) (graph.State, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	runner := NewRunner(10*time.Second, nil)
	rec := runner.Run(ctx, node, graph.State{})

	assert.False(t, rec.Success)
	assert.Contains(t, rec.Error, "cancelled")
}

func TestRunnerNilTransform(t *testing.T) {
	t.Run("sentinel succeeds", func(t *testing.T) {
		node := graph.NewNode(graph.StartNodeID, "", nil)
		node.Type = graph.NodeTypeSentinel

		runner := NewRunner(0, nil)
		rec := runner.Run(context.Background(), node, graph.State{})

		assert.True(t, rec.Success)
		assert.Empty(t, rec.Output)
	})

	t.Run("ordinary node fails", func(t *testing.T) {
		node := graph.NewNode("a", "", nil)

		runner := NewRunner(0, nil)
		rec := runner.Run(context.Background(), node, graph.State{})

		assert.False(t, rec.Success)
		assert.Contains(t, rec.Error, "no transform")
	})
}

func TestRunnerNilOutputBecomesEmptyState(t *testing.T) {
	node := graph.NewNode("a", "", func(_ context.Context, _ graph.State) (graph.State, error) {
		return nil, nil
	})

	runner := NewRunner(0, nil)
	rec := runner.Run(context.Background(), node, graph.State{})

	assert.True(t, rec.Success)
	require.NotNil(t, rec.Output)
	assert.Empty(t, rec.Output)
}
