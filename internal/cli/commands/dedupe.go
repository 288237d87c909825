package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/incidentgraph/internal/dedupe"
	"github.com/leapstack-labs/incidentgraph/internal/pipeline"
)

// NewDedupeCommand creates the dedupe command.
func NewDedupeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Reduce the cleaned table to unique (day, area) pairs",
		Long: `Derive the calendar day of each cleaned incident, pair it with its area
and write every distinct (DAY, AREA_NAME) pair once.

The input may also be an edge table written by a previous dedupe, in which
case the output is identical to the input.`,
		Example: `  # Deduplicate data/clean_crime.csv into data/day_area.csv
  incidentgraph dedupe

  # Write the edge table somewhere else
  incidentgraph dedupe --edges /tmp/day_area.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			return cc.RunStages(cmd.Context(), newDedupeStage(cc))
		},
	}
}

func newDedupeStage(cc *CommandContext) pipeline.Stage {
	return dedupe.New(dedupe.Config{
		InputPath:  cc.Cfg.Paths.Cleaned,
		OutputPath: cc.Cfg.Paths.Edges,
		Location:   cc.Cfg.Location(),
		Logger:     cc.Logger,
	})
}
