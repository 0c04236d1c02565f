package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/lantern/pkg/graph"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a graph definition file",
		Long: `Validate checks a graph definition YAML file against the definition
schema and then against the structural graph invariants (sentinel wiring,
known transforms, acyclicity).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			if err := graph.ValidateDefinition(data); err != nil {
				return fmt.Errorf("schema validation failed: %w", err)
			}

			if _, err := graph.Parse(data, NewDemoRegistry()); err != nil {
				return fmt.Errorf("graph validation failed: %w", err)
			}

			cmd.Printf("%s is valid\n", args[0])
			return nil
		},
	}
}
