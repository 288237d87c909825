package commands

import "github.com/spf13/cobra"

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run ingest then dedupe",
		Long: `Run the ingestion and deduplication stages in order. If ingestion fails,
deduplication does not start.`,
		Example: `  # Run both stages with default paths
  incidentgraph run

  # Machine-readable run report
  incidentgraph run --output json`,
		Aliases: []string{"build"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			return cc.RunStages(cmd.Context(), newIngestStage(cc), newDedupeStage(cc))
		},
	}
}
