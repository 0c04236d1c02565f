package execution

import (
	"log"
	"time"

	"github.com/dshills/lantern/pkg/graph"
)

// Logger handles execution logging. Output goes through the standard log
// package, so callers control destination and verbosity by configuring
// log itself (the CLI discards it unless --debug is set).
type Logger struct {
	enabled bool
}

// NewLogger creates an execution logger.
func NewLogger() *Logger {
	return &Logger{enabled: true}
}

// NopLogger creates a logger that emits nothing.
func NopLogger() *Logger {
	return &Logger{enabled: false}
}

// LogExecutionStart logs the start of a graph execution.
func (l *Logger) LogExecutionStart(executionID, graphID string) {
	if l == nil || !l.enabled {
		return
	}
	log.Printf("execution %s: started (graph %s)", executionID, graphID)
}

// LogExecutionEnd logs the terminal status of a graph execution.
func (l *Logger) LogExecutionEnd(executionID string, status Status, duration time.Duration) {
	if l == nil || !l.enabled {
		return
	}
	log.Printf("execution %s: %s (duration: %v)", executionID, status, duration)
}

// LogNodeExecution logs a node execution record.
func (l *Logger) LogNodeExecution(nodeID string, rec graph.ExecutionRecord) {
	if l == nil || !l.enabled {
		return
	}
	if rec.Success {
		log.Printf("node %s: succeeded (duration: %v)", nodeID, rec.Duration)
		return
	}
	log.Printf("node %s: failed: %s (duration: %v)", nodeID, rec.Error, rec.Duration)
}

// LogUnreachable logs nodes skipped because every path to them failed.
func (l *Logger) LogUnreachable(nodeID string) {
	if l == nil || !l.enabled {
		return
	}
	log.Printf("node %s: unreachable (all live predecessors failed)", nodeID)
}
