// Package commands defines all Cobra CLI commands for the nexus binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nexusai/nexus/internal/audit"
	"github.com/nexusai/nexus/internal/config"
	"github.com/nexusai/nexus/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nexus",
		Short: "Nexus — a document-grounded AI chat service",
		Long: `Nexus is a document-grounded chat service backed by Gemini models.

Upload documents into a chat session and ask questions about them; answers
are grounded in the uploaded content via retrieval-augmented generation.
When no documents are present, Nexus answers as a general assistant.

Configuration comes from environment variables or a YAML config file
(~/.nexus/config.yaml). The GEMINI_API_KEY variable is required for any
command that talks to the model API.
See 'nexus --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Load a local .env if present. Real env vars always win.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.nexus/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewIngestCmd(),
		NewCleanupCmd(),
		NewVersionCmd(),
	)

	return root
}
