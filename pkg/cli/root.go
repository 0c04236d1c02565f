package cli

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
)

const (
	// Version is the current version of Lantern
	Version = "0.1.0"
)

// Config holds the global configuration for the Lantern CLI
type Config struct {
	Debug bool
}

// GlobalConfig is the shared configuration instance
var GlobalConfig = &Config{}

// NewRootCommand creates the root cobra command for Lantern
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lantern",
		Short: "Lantern - graph execution for red-teaming AI agent pipelines",
		Long: `Lantern executes directed graphs of computation nodes over shared state.
It is built for red-teaming AI agent pipelines: testing nodes inject adversarial
content into prompts, every node keeps an auditable execution history, and
individual nodes can be executed in isolation with mocked predecessor state.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if GlobalConfig.Debug {
				log.SetOutput(os.Stderr)
				log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}

	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewExecCommand())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
