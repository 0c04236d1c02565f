package cli

import (
	"context"
	"fmt"

	"github.com/dshills/lantern/pkg/graph"
	"github.com/dshills/lantern/pkg/injection"
)

// NewDemoRegistry builds the transform registry available to graph
// definition files run from the CLI. It carries a handful of named
// transforms for trying out pipelines, plus the prompt injection factory
// for nodes declared with type "testing".
func NewDemoRegistry() *graph.Registry {
	registry := graph.NewRegistry()

	registry.Register("generate", func(ctx context.Context, state graph.State) (graph.State, error) {
		prompt := "What is the weather like today?"
		return graph.State{"prompt": prompt, "original": prompt}, nil
	})

	registry.Register("process", func(ctx context.Context, state graph.State) (graph.State, error) {
		original := state.GetString("original")
		injected := state.GetString("injected_prompt")

		return graph.State{
			"original_prompt": original,
			"injected_prompt": injected,
			"chars_added":     len(injected) - len(original),
			"test_type":       "prompt_injection",
			"status":          "completed",
			"warning":         "This injected prompt could potentially bypass safety measures",
		}, nil
	})

	registry.Register("step1", func(ctx context.Context, state graph.State) (graph.State, error) {
		return graph.State{"foo": "bar"}, nil
	})

	registry.Register("step2", func(ctx context.Context, state graph.State) (graph.State, error) {
		foo, ok := state.Get("foo")
		if !ok {
			return nil, fmt.Errorf("state key %q missing", "foo")
		}
		return graph.State{"baz": foo}, nil
	})

	registry.RegisterTestingNodeFactory(injection.NodeFactory)

	return registry
}
