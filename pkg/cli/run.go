package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	lanterrors "github.com/dshills/lantern/pkg/errors"
	"github.com/dshills/lantern/pkg/execution"
	"github.com/dshills/lantern/pkg/graph"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	var setValues []string

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a graph definition file",
		Long: `Run parses a graph definition YAML file, executes it and streams
execution events to stdout. Initial state keys can be supplied with --set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := graph.ParseFile(args[0], NewDemoRegistry())
			if err != nil {
				return err
			}

			initial, err := parseKeyValues(setValues)
			if err != nil {
				return err
			}

			store := graph.NewMemoryStore()
			if _, err := store.Create(cmd.Context(), g); err != nil {
				return err
			}

			engine := execution.NewEngine(store, execution.Options{})
			stream := execution.NewStream()

			done := make(chan *execution.Result, 1)
			errCh := make(chan error, 1)
			go func() {
				result, err := engine.Execute(context.Background(), g, initial, stream)
				if err != nil {
					errCh <- err
					stream.Close()
					return
				}
				done <- result
			}()

			for event := range stream.Events() {
				printEvent(cmd, event)
			}

			select {
			case err := <-errCh:
				return lanterrors.NewOperationalError("executing graph", g.ID, "", err)
			case result := <-done:
				final, err := json.MarshalIndent(result.State, "", "  ")
				if err != nil {
					return err
				}
				cmd.Printf("\nstatus: %s\n", result.Status)
				cmd.Printf("final state:\n%s\n", final)
				if result.Status != execution.StatusCompleted {
					return result.Err
				}
				return nil
			}
		},
	}

	cmd.Flags().StringArrayVar(&setValues, "set", nil, "Initial state entry as key=value (repeatable)")

	return cmd
}

// printEvent renders one execution event for the terminal.
func printEvent(cmd *cobra.Command, event execution.Event) {
	switch event.Type {
	case execution.EventStart:
		cmd.Printf("[%s] execution %s started\n", event.Timestamp.Format("15:04:05.000"), event.ExecutionID)
	case execution.EventNodeStart:
		cmd.Printf("[%s] node %s started\n", event.Timestamp.Format("15:04:05.000"), event.NodeID)
	case execution.EventNodeComplete:
		if event.Status == execution.NodeFailed {
			cmd.Printf("[%s] node %s failed: %s (%v)\n", event.Timestamp.Format("15:04:05.000"), event.NodeID, event.Error, event.Duration)
		} else {
			cmd.Printf("[%s] node %s completed (%v)\n", event.Timestamp.Format("15:04:05.000"), event.NodeID, event.Duration)
		}
	case execution.EventComplete:
		cmd.Printf("[%s] execution completed (%v)\n", event.Timestamp.Format("15:04:05.000"), event.Duration)
	case execution.EventError:
		cmd.Printf("[%s] execution failed: %s (%v)\n", event.Timestamp.Format("15:04:05.000"), event.Error, event.Duration)
	}
}

// parseKeyValues converts repeated key=value flags into a state map.
func parseKeyValues(pairs []string) (graph.State, error) {
	state := graph.State{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid key=value pair: %q", pair)
		}
		state[key] = value
	}
	return state, nil
}
