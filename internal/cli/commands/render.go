package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/incidentgraph/internal/render"
)

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Plot a degree-count table on log–log axes",
		Long: `Draw a two-column degree-count table as a scatter plot with logarithmic
degree and count axes.

The first row is a header and is skipped. Columns are read by position as
degree then count. Any degree or count <= 0 fails the command unless
--drop-nonpositive is set. The image format follows the output file
extension (png, svg, pdf, eps, jpg, tif).`,
		Example: `  # Render report/degree_counts.csv into report/degree_loglog.png
  incidentgraph render

  # SVG with a custom title, skipping zero-degree rows
  incidentgraph render --plot report/degrees.svg --title "Areas per day" --drop-nonpositive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			stage := render.New(render.Config{
				InputPath:       cc.Cfg.Paths.Degrees,
				OutputPath:      cc.Cfg.Paths.Plot,
				Title:           cc.Cfg.Render.Title,
				WidthIn:         cc.Cfg.Render.WidthIn,
				HeightIn:        cc.Cfg.Render.HeightIn,
				DropNonPositive: cc.Cfg.Render.DropNonPositive,
				Logger:          cc.Logger,
			})
			return cc.RunStages(cmd.Context(), stage)
		},
	}

	cmd.Flags().String("title", "", "Plot title")
	cmd.Flags().Float64("width", 0, "Image width in inches")
	cmd.Flags().Float64("height", 0, "Image height in inches")
	cmd.Flags().Bool("drop-nonpositive", false, "Skip rows with degree or count <= 0 instead of failing")

	return cmd
}
