package execution

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/lantern/pkg/graph"
)

// EventType categorizes events emitted during graph execution.
type EventType string

const (
	// EventStart is emitted once when an execution begins.
	EventStart EventType = "start"
	// EventNodeStart is emitted when a node is dispatched.
	EventNodeStart EventType = "node_start"
	// EventNodeComplete is emitted when a node finishes, succeeded or failed.
	EventNodeComplete EventType = "node_complete"
	// EventComplete is emitted once when an execution completes successfully.
	EventComplete EventType = "complete"
	// EventError is emitted once when an execution terminates with failure.
	EventError EventType = "error"
)

// NodeStatus is the per-node outcome carried by node_complete events.
type NodeStatus string

const (
	NodeSucceeded NodeStatus = "succeeded"
	NodeFailed    NodeStatus = "failed"
)

// Event is a single observation of execution progress. Events for one
// execution are causally ordered: start comes first, every node_start
// precedes that node's node_complete, and exactly one of complete or error
// terminates the stream.
type Event struct {
	Type        EventType     `json:"type"`
	ExecutionID string        `json:"execution_id"`
	Timestamp   time.Time     `json:"timestamp"`
	NodeID      string        `json:"node_id,omitempty"`
	NodeName    string        `json:"node_name,omitempty"`
	Status      NodeStatus    `json:"status,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Error       string        `json:"error,omitempty"`
	State       graph.State   `json:"state,omitempty"`
}

// Emitter receives execution events as they happen.
type Emitter interface {
	// Emit delivers one event. Emit may block until the consumer catches
	// up; it returns the context error if ctx is cancelled while blocked.
	Emit(ctx context.Context, event Event) error
	// Close signals that no further events will be emitted.
	Close()
}

// Stream is a bounded-channel Emitter for real-time consumers. When the
// buffer is full Emit blocks instead of dropping, so slow consumers see
// every event; the engine's overall deadline bounds how long a stalled
// consumer can hold an execution.
type Stream struct {
	ch        chan Event
	closeOnce sync.Once
}

// DefaultStreamBuffer is the event channel capacity used by NewStream.
const DefaultStreamBuffer = 64

// NewStream creates a stream with the default buffer size.
func NewStream() *Stream {
	return NewStreamWithBuffer(DefaultStreamBuffer)
}

// NewStreamWithBuffer creates a stream with an explicit buffer size.
func NewStreamWithBuffer(size int) *Stream {
	if size < 1 {
		size = 1
	}
	return &Stream{
		ch: make(chan Event, size),
	}
}

// Events returns the channel consumers read from. The channel is closed
// after the terminal event once Close is called.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Emit delivers an event, blocking while the buffer is full.
func (s *Stream) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case s.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the event channel. Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}

// discardEmitter drops all events. Used when the caller does not stream.
type discardEmitter struct{}

func (discardEmitter) Emit(_ context.Context, _ Event) error { return nil }
func (discardEmitter) Close()                                {}

// DiscardEmitter returns an Emitter that drops everything.
func DiscardEmitter() Emitter {
	return discardEmitter{}
}
