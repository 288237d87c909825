package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leapstack-labs/incidentgraph/internal/adapter"
	"github.com/leapstack-labs/incidentgraph/internal/cli/output"
	"github.com/leapstack-labs/incidentgraph/internal/verify"
	"github.com/leapstack-labs/incidentgraph/pkg/schema"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the pipeline outputs with SQL",
		Long: `Run SQL against the pipeline's output files using an in-memory DuckDB.

Each output that exists on disk is exposed as a view:

  cleaned   the cleaned incident table
  edges     the day-area edge table
  degrees   the degree-count table (columns degree, count)

SQL is taken from the arguments, from --input, or from piped stdin.`,
		Example: `  # Incidents per area
  incidentgraph query "SELECT AREA_NAME, COUNT(*) AS n FROM cleaned GROUP BY 1 ORDER BY n DESC"

  # Number of areas per day, the graph degree
  incidentgraph query "SELECT DAY, COUNT(*) AS degree FROM edges GROUP BY DAY" --format csv

  # List available views
  incidentgraph query tables

  # Show columns of a view
  incidentgraph query schema edges`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md (default follows --output)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	cmd.AddCommand(newQueryTablesCommand(opts))
	cmd.AddCommand(newQuerySchemaCommand(opts))

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	var sqlQuery string

	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	}
	if strings.TrimSpace(sqlQuery) == "" {
		return errors.New("no SQL given (pass it as an argument, with --input, or on stdin)")
	}

	return withOutputViews(cmd, func(ctx context.Context, db adapter.Adapter) error {
		rows, err := db.Query(ctx, sqlQuery)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		defer func() { _ = rows.Close() }()
		return renderResults(cmd.OutOrStdout(), rows.Rows, resolveFormat(cmd, opts.Format))
	})
}

// newQueryTablesCommand creates the tables subcommand.
func newQueryTablesCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the views over the pipeline outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withOutputViews(cmd, func(ctx context.Context, db adapter.Adapter) error {
				return listTables(ctx, cmd.OutOrStdout(), db, resolveFormat(cmd, opts.Format))
			})
		},
	}
}

// newQuerySchemaCommand creates the schema subcommand.
func newQuerySchemaCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show columns of a view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOutputViews(cmd, func(ctx context.Context, db adapter.Adapter) error {
				return showSchema(ctx, cmd.OutOrStdout(), db, args[0], resolveFormat(cmd, opts.Format))
			})
		},
	}
}

// outputView is a pipeline output exposed to SQL.
type outputView struct {
	name string
	path string
	opts adapter.CSVOptions
}

func outputViews(cc *CommandContext) []outputView {
	return []outputView{
		{name: verify.TableCleaned, path: cc.Cfg.Paths.Cleaned},
		{name: verify.TableEdges, path: cc.Cfg.Paths.Edges},
		{name: verify.TableDegrees, path: cc.Cfg.Paths.Degrees, opts: adapter.CSVOptions{Names: schema.DegreeColumns}},
	}
}

// withOutputViews opens an in-memory database, creates a view for every
// output file that exists and calls fn.
func withOutputViews(cmd *cobra.Command, fn func(ctx context.Context, db adapter.Adapter) error) error {
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()

	db, err := adapter.OpenMemory(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	created := 0
	for _, v := range outputViews(cc) {
		if _, err := os.Stat(v.path); errors.Is(err, fs.ErrNotExist) {
			cc.Logger.Debug("output not found, view skipped", "view", v.name, "path", v.path)
			continue
		}
		if err := db.CreateCSVView(ctx, v.name, v.path, v.opts); err != nil {
			return err
		}
		created++
	}
	if created == 0 {
		return errors.New("no pipeline outputs found (run 'incidentgraph run' first)")
	}

	return fn(ctx, db)
}

// resolveFormat picks the result format: an explicit --format wins,
// otherwise it follows the renderer's output mode.
func resolveFormat(cmd *cobra.Command, format string) string {
	if format != "" {
		return format
	}
	switch NewCommandContext(cmd).Renderer.EffectiveMode() {
	case output.ModeJSON:
		return "json"
	case output.ModeMarkdown:
		return "md"
	default:
		return "table"
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}
