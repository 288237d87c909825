// Package verify re-checks the invariants of the pipeline's on-disk tables
// with SQL over an in-memory DuckDB.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/incidentgraph/internal/adapter"
	"github.com/leapstack-labs/incidentgraph/pkg/schema"
)

// Table names the loaded files are bound to.
const (
	TableCleaned = "cleaned"
	TableEdges   = "edges"
	TableDegrees = "degrees"
)

// Check names.
const (
	CheckCleanedComplete = "cleaned_complete"
	CheckEdgesUnique     = "edges_unique"
	CheckEdgesBounded    = "edges_bounded"
	CheckEdgesDerived    = "edges_derived"
	CheckDegreesPositive = "degrees_positive"
)

// Paths locates the tables to verify. Degrees is optional.
type Paths struct {
	Cleaned string
	Edges   string
	Degrees string
}

// Check is the outcome of one property check.
type Check struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Violations  int64  `json:"violations"`
	Passed      bool   `json:"passed"`
	Skipped     bool   `json:"skipped,omitempty"`
}

// Result collects every check of one verification.
type Result struct {
	CleanedRows int64   `json:"cleaned_rows"`
	EdgeRows    int64   `json:"edge_rows"`
	Checks      []Check `json:"checks"`
}

// OK reports whether every non-skipped check passed.
func (r *Result) OK() bool {
	for _, c := range r.Checks {
		if !c.Skipped && !c.Passed {
			return false
		}
	}
	return true
}

// Failed returns the names of the checks that did not pass.
func (r *Result) Failed() []string {
	var names []string
	for _, c := range r.Checks {
		if !c.Skipped && !c.Passed {
			names = append(names, c.Name)
		}
	}
	return names
}

// ErrFailed is wrapped by the error returned from Err when checks fail.
var ErrFailed = errors.New("verification failed")

// Err returns nil when every check passed.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrFailed, strings.Join(r.Failed(), ", "))
}

// Verifier runs property checks against one database handle.
type Verifier struct {
	db     adapter.Adapter
	logger *slog.Logger
}

// New creates a Verifier. A nil logger discards output.
func New(db adapter.Adapter, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Verifier{db: db, logger: logger}
}

// Run loads the tables named by paths and checks them. Check failures are
// reported in the Result, not as an error; the error is for tables that
// could not be loaded or queried.
func (v *Verifier) Run(ctx context.Context, paths Paths) (*Result, error) {
	if err := v.db.LoadCSV(ctx, TableCleaned, paths.Cleaned, adapter.CSVOptions{AllVarchar: true}); err != nil {
		return nil, err
	}
	if err := v.db.LoadCSV(ctx, TableEdges, paths.Edges, adapter.CSVOptions{AllVarchar: true}); err != nil {
		return nil, err
	}

	res := &Result{}
	var err error
	if res.CleanedRows, err = v.count(ctx, TableCleaned); err != nil {
		return nil, err
	}
	if res.EdgeRows, err = v.count(ctx, TableEdges); err != nil {
		return nil, err
	}

	checks := []struct {
		name, desc, sql string
	}{
		{CheckCleanedComplete, "every cleaned row has all required fields", completenessSQL()},
		{CheckEdgesUnique, "no two edge rows are equal", edgesUniqueSQL()},
		{CheckEdgesDerived, "edges equal the distinct (day, area) pairs of the cleaned table", edgesDerivedSQL()},
	}
	for _, c := range checks {
		n, err := v.db.QueryInt(ctx, c.sql)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", c.name, err)
		}
		res.add(Check{Name: c.name, Description: c.desc, Violations: n})
	}

	bounded := res.EdgeRows - res.CleanedRows
	if bounded < 0 {
		bounded = 0
	}
	res.add(Check{Name: CheckEdgesBounded, Description: "edge count does not exceed cleaned count", Violations: bounded})

	degrees, err := v.checkDegrees(ctx, paths.Degrees)
	if err != nil {
		return nil, err
	}
	res.add(degrees)

	for _, c := range res.Checks {
		v.logger.Debug("check finished", "check", c.Name, "violations", c.Violations, "skipped", c.Skipped)
	}
	return res, nil
}

func (r *Result) add(c Check) {
	c.Passed = !c.Skipped && c.Violations == 0
	r.Checks = append(r.Checks, c)
}

func (v *Verifier) checkDegrees(ctx context.Context, path string) (Check, error) {
	c := Check{Name: CheckDegreesPositive, Description: "degree and count are positive integers"}
	if path == "" {
		c.Skipped = true
		return c, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		c.Skipped = true
		return c, nil
	}

	opts := adapter.CSVOptions{AllVarchar: true, Names: schema.DegreeColumns}
	if err := v.db.LoadCSV(ctx, TableDegrees, path, opts); err != nil {
		return c, err
	}
	n, err := v.db.QueryInt(ctx, degreesPositiveSQL())
	if err != nil {
		return c, fmt.Errorf("check %s: %w", c.Name, err)
	}
	c.Violations = n
	return c, nil
}

func (v *Verifier) count(ctx context.Context, table string) (int64, error) {
	return v.db.QueryInt(ctx, "SELECT COUNT(*) FROM "+adapter.QuoteIdent(table))
}

func completenessSQL() string {
	conds := make([]string, len(schema.CleanedColumns))
	for i, col := range schema.CleanedColumns {
		q := adapter.QuoteIdent(col)
		conds[i] = fmt.Sprintf("%s IS NULL OR trim(%s) = ''", q, q)
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", TableCleaned, strings.Join(conds, " OR "))
}

func edgesUniqueSQL() string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM (
		SELECT %[1]s, %[2]s FROM %[3]s GROUP BY %[1]s, %[2]s HAVING COUNT(*) > 1
	)`, adapter.QuoteIdent(schema.ColDay), adapter.QuoteIdent(schema.ColAreaName), TableEdges)
}

// edgesDerivedSQL counts the symmetric difference between the edge table
// and the pairs derived from the cleaned table.
func edgesDerivedSQL() string {
	return fmt.Sprintf(`WITH derived AS (
		SELECT DISTINCT strftime(TRY_CAST(%[1]s AS TIMESTAMP), '%%Y-%%m-%%d') AS day, %[2]s AS area FROM %[3]s
	), stored AS (
		SELECT DISTINCT %[4]s AS day, %[2]s AS area FROM %[5]s
	)
	SELECT
		(SELECT COUNT(*) FROM (SELECT * FROM derived EXCEPT SELECT * FROM stored)) +
		(SELECT COUNT(*) FROM (SELECT * FROM stored EXCEPT SELECT * FROM derived))`,
		adapter.QuoteIdent(schema.ColDateOcc),
		adapter.QuoteIdent(schema.ColAreaName),
		TableCleaned,
		adapter.QuoteIdent(schema.ColDay),
		TableEdges,
	)
}

func degreesPositiveSQL() string {
	d := fmt.Sprintf("TRY_CAST(trim(%s) AS BIGINT)", adapter.QuoteIdent(schema.ColDegree))
	c := fmt.Sprintf("TRY_CAST(trim(%s) AS BIGINT)", adapter.QuoteIdent(schema.ColCount))
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL OR %s IS NULL OR %s <= 0 OR %s <= 0",
		TableDegrees, d, c, d, c)
}
