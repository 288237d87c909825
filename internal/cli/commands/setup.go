package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/incidentgraph/internal/cli/config"
	"github.com/leapstack-labs/incidentgraph/internal/cli/output"
	"github.com/leapstack-labs/incidentgraph/internal/pipeline"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the config and logger stored by the root
// command and builds a renderer on the command's writers.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.GetConfig(ctx)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(ctx),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// RunStages executes stages in order and renders the run summary. The
// summary is rendered for failed runs too, before the error is returned.
func (c *CommandContext) RunStages(ctx context.Context, stages ...pipeline.Stage) error {
	run, err := pipeline.NewRunner(c.Logger).Run(ctx, stages...)
	if renderErr := renderRun(c.Renderer, run); renderErr != nil && err == nil {
		err = renderErr
	}
	return err
}

func renderRun(r *output.Renderer, run *pipeline.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(run)
	}

	r.Header(1, "Pipeline Run")
	r.KeyValue("Run", run.ID)
	r.KeyValue("Status", string(run.Status))
	if run.FailedStage != "" {
		r.KeyValue("Failed stage", run.FailedStage)
	}

	if len(run.Reports) > 0 {
		r.Println("")
		rows := make([][]string, 0, len(run.Reports))
		for _, rep := range run.Reports {
			rows = append(rows, []string{
				rep.Stage,
				fmt.Sprintf("%d", rep.RowsIn),
				fmt.Sprintf("%d", rep.RowsOut),
				formatCounts(rep.Dropped),
				fmt.Sprintf("%dms", rep.DurationMS),
				rep.Output,
			})
		}
		r.Table([]string{"Stage", "Rows in", "Rows out", "Dropped", "Duration", "Output"}, rows)
	}

	for _, rep := range run.Reports {
		for _, w := range rep.Warnings {
			r.Warning(fmt.Sprintf("%s: %s", rep.Stage, w.Message))
		}
		if len(rep.Metrics) > 0 {
			r.Println("")
			r.Header(2, rep.Stage+" metrics")
			for _, key := range sortedKeys(rep.Metrics) {
				r.KeyValue(key, formatMetric(rep.Metrics[key]))
			}
		}
	}
	return nil
}

func formatCounts(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(m))
	for _, key := range sortedKeys(m) {
		parts = append(parts, fmt.Sprintf("%s=%d", key, m[key]))
	}
	return strings.Join(parts, " ")
}

func formatMetric(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.4f", v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
