package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	lanterrors "github.com/dshills/lantern/pkg/errors"
	"github.com/dshills/lantern/pkg/execution"
	"github.com/dshills/lantern/pkg/graph"
)

// NewExecCommand creates the exec command for isolated node execution
func NewExecCommand() *cobra.Command {
	var inputValues []string
	var mockValues []string

	cmd := &cobra.Command{
		Use:   "exec FILE NODE",
		Short: "Execute a single node in isolation",
		Long: `Exec runs one node from a graph definition file without executing the
rest of the graph. Mock predecessor state (--mock) stands in for upstream
outputs; explicit input keys (--input) override mock keys. The node's
execution history records the invocation exactly as a full run would.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := graph.ParseFile(args[0], NewDemoRegistry())
			if err != nil {
				return err
			}

			input, err := parseKeyValues(inputValues)
			if err != nil {
				return err
			}
			mock, err := parseKeyValues(mockValues)
			if err != nil {
				return err
			}

			store := graph.NewMemoryStore()
			if _, err := store.Create(cmd.Context(), g); err != nil {
				return err
			}

			engine := execution.NewEngine(store, execution.Options{})
			result, err := engine.ExecuteNode(cmd.Context(), g, args[1], input, mock)
			if err != nil {
				return lanterrors.NewOperationalError("executing node", g.ID, args[1], err)
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&inputValues, "input", nil, "Input state entry as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&mockValues, "mock", nil, "Mock predecessor state entry as key=value (repeatable)")

	return cmd
}
