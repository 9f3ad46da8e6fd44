package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexusai/nexus/internal/cleanup"
	"github.com/nexusai/nexus/internal/gemini"
	"github.com/nexusai/nexus/internal/logging"
)

// NewCleanupCmd constructs the `nexus cleanup` command, which removes
// orphaned vectors left behind when a delete-time cleanup failed.
func NewCleanupCmd() *cobra.Command {
	var sessionID string
	var documentID string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove orphaned vectors for a session or document",
		Long: `Delete every vector belonging to a session or document from the Qdrant
collection. Deleting a session or document through the API already does
this; cleanup is the manual sweep for vectors orphaned by an earlier
cleanup failure (look for "vectors orphaned" in the server logs).

Examples:
  nexus cleanup --session 4f7c...
  nexus cleanup --document 9a21...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (sessionID == "") == (documentID == "") {
				return fmt.Errorf("cleanup: exactly one of --session or --document is required")
			}

			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Vector deletes filter on payload fields, so the collection's
			// vector size never matters here. Default dimensions keep the
			// connection config consistent with the other commands.
			vectors, err := buildVectorStore(ctx, getEnvInt("EMBEDDING_DIMENSIONS", gemini.DefaultDimensions))
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}
			defer func() { _ = vectors.Close() }()

			worker := cleanup.NewWorker(vectors, cleanup.Config{})

			if sessionID != "" {
				if err := worker.DeleteSessionVectors(ctx, sessionID); err != nil {
					return fmt.Errorf("cleanup: session %s: %w", sessionID, err)
				}
				fmt.Printf("removed vectors for session %s\n", sessionID)
				return nil
			}

			if err := worker.DeleteDocumentVectors(ctx, documentID); err != nil {
				return fmt.Errorf("cleanup: document %s: %w", documentID, err)
			}
			fmt.Printf("removed vectors for document %s\n", documentID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session whose vectors should be removed")
	cmd.Flags().StringVarP(&documentID, "document", "d", "", "Document whose vectors should be removed")

	return cmd
}
