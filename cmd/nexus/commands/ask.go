package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexusai/nexus/internal/fallback"
	"github.com/nexusai/nexus/internal/logging"
)

// NewAskCmd constructs the `nexus ask` command, which sends a single
// question through the model fallback cascade and prints the answer.
func NewAskCmd() *cobra.Command {
	var showModel bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask Nexus a one-shot question",
		Long: `Send a single question through the model fallback cascade and print the
answer to stdout. No session, documents, or history are involved.

One-shot questions bypass rate limiting; the cascade still skips
rate-limited models and retries transient failures.

Examples:
  nexus ask "what is retrieval-augmented generation?"
  nexus ask --show-model "summarise the CAP theorem"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			client, err := buildGeminiClient(ctx)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			orchestrator := fallback.New(client, nil, fallback.Config{
				Hierarchy: fallback.HierarchyFromEnv(),
			}, nil)

			result, err := orchestrator.Generate(ctx, "cli", args[0], "")
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(result.Text)
			if showModel {
				fmt.Fprintf(os.Stderr, "[answered by %s]\n", result.ModelDisplayName)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showModel, "show-model", false, "Print which model answered to stderr")

	return cmd
}
