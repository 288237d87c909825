package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/incidentgraph/internal/adapter"
	"github.com/leapstack-labs/incidentgraph/internal/cli/output"
	"github.com/leapstack-labs/incidentgraph/internal/verify"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the pipeline outputs with SQL",
		Long: `Load the cleaned and edge tables into an in-memory DuckDB and check:

  - no cleaned row is missing a required field
  - no two edge rows are equal
  - the edge table is no larger than the cleaned table
  - the edges are exactly the distinct (day, area) pairs of the cleaned table
  - the degree-count table, when present, holds only positive integers

Exits non-zero when any check fails.`,
		Example: `  # Verify the default outputs
  incidentgraph verify

  # As JSON for CI
  incidentgraph verify --output json`,
		Args: cobra.NoArgs,
		RunE: runVerify,
	}
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()

	db, err := adapter.OpenMemory(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	res, err := verify.New(db, cc.Logger).Run(ctx, verify.Paths{
		Cleaned: cc.Cfg.Paths.Cleaned,
		Edges:   cc.Cfg.Paths.Edges,
		Degrees: cc.Cfg.Paths.Degrees,
	})
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(res); err != nil {
			return err
		}
		return res.Err()
	}

	r.Header(1, "Verification")
	r.KeyValue("Cleaned rows", fmt.Sprintf("%d", res.CleanedRows))
	r.KeyValue("Edge rows", fmt.Sprintf("%d", res.EdgeRows))
	r.Println("")
	for _, c := range res.Checks {
		detail := c.Description
		switch {
		case c.Skipped:
			r.Muted(fmt.Sprintf("- %s: skipped (no input)", c.Name))
			continue
		case !c.Passed:
			detail = fmt.Sprintf("%s (%d violations)", c.Description, c.Violations)
		}
		r.StatusLine(c.Passed, c.Name, detail)
	}
	return res.Err()
}
