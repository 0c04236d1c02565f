package execution

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dshills/lantern/pkg/graph"
)

// DefaultNodeTimeout bounds a single node invocation.
const DefaultNodeTimeout = 30 * time.Second

// Runner invokes node transforms and appends the resulting record to the
// node's history. It is the only component that writes history: one
// invocation, one record, success or not.
type Runner struct {
	timeout time.Duration
	logger  *Logger
}

// NewRunner creates a runner with the given per-node timeout. A zero or
// negative timeout falls back to DefaultNodeTimeout.
func NewRunner(timeout time.Duration, logger *Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultNodeTimeout
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Runner{
		timeout: timeout,
		logger:  logger,
	}
}

// transformResult carries the outcome of a transform goroutine.
type transformResult struct {
	output graph.State
	err    error
}

// Run executes the node's transform against an immutable snapshot of the
// state and records the outcome. Panics inside the transform become
// failure records. A transform that outlives the timeout is abandoned; its
// eventual return value is discarded and the record reports a timeout.
func (r *Runner) Run(ctx context.Context, node *graph.Node, snapshot graph.State) graph.ExecutionRecord {
	started := time.Now()

	rec := graph.ExecutionRecord{
		Input:     snapshot.Clone(),
		StartedAt: started,
	}

	if node.Transform == nil {
		rec.Output = graph.State{}
		rec.Success = node.IsSentinel()
		if !rec.Success {
			rec.Error = "node has no transform"
		}
		rec.Duration = time.Since(started)
		node.RecordExecution(rec)
		r.logger.LogNodeExecution(node.ID, rec)
		return rec
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resultCh := make(chan transformResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				resultCh <- transformResult{
					err: fmt.Errorf("panic: %v\n%s", p, debug.Stack()),
				}
			}
		}()

		output, err := node.Transform(runCtx, snapshot.Clone())
		resultCh <- transformResult{output: output, err: err}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			rec.Success = false
			rec.Error = result.err.Error()
			rec.Output = graph.State{}
		} else {
			rec.Success = true
			rec.Output = result.output
			if rec.Output == nil {
				rec.Output = graph.State{}
			}
		}
	case <-runCtx.Done():
		rec.Success = false
		rec.Output = graph.State{}
		if ctx.Err() != nil {
			rec.Error = "execution cancelled"
		} else {
			rec.Error = "timeout"
		}
	}

	rec.Duration = time.Since(started)
	node.RecordExecution(rec)
	r.logger.LogNodeExecution(node.ID, rec)
	return rec
}
