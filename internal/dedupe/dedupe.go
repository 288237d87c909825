// Package dedupe reduces the cleaned incident table to its distinct
// (calendar day, area) pairs.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/leapstack-labs/incidentgraph/internal/ingest"
	"github.com/leapstack-labs/incidentgraph/internal/pipeline"
	"github.com/leapstack-labs/incidentgraph/internal/table"
	"github.com/leapstack-labs/incidentgraph/pkg/schema"
)

// StageName identifies the deduplication stage in reports and logs.
const StageName = "dedupe"

// Metric keys recorded on the stage report.
const (
	MetricPairsBefore = "pairs_before"
	MetricPairsAfter  = "pairs_after"
)

const ctxCheckInterval = 4096

// Config configures the deduplication stage.
type Config struct {
	InputPath  string
	OutputPath string
	// Location is used when a cleaned timestamp carries no offset (UTC if nil).
	Location *time.Location
	Logger   *slog.Logger
}

// Derive maps each cleaned record to its (day, area) pair.
func Derive(records []schema.CleanedIncidentRecord) []schema.DayAreaPair {
	pairs := make([]schema.DayAreaPair, len(records))
	for i, rec := range records {
		pairs[i] = rec.Pair()
	}
	return pairs
}

// Deduplicate returns each distinct pair once, in first-seen order.
func Deduplicate(pairs []schema.DayAreaPair) []schema.DayAreaEdge {
	seen := make(map[schema.DayAreaPair]struct{}, len(pairs))
	edges := make([]schema.DayAreaEdge, 0, len(pairs))
	for _, p := range pairs {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		edges = append(edges, schema.DayAreaEdge(p))
	}
	return edges
}

// ReadPairs loads the (day, area) pair of every row of path. The source may
// be a cleaned incident table (DATE_OCC) or an edge table (DAY); when both
// columns exist DAY wins.
func ReadPairs(ctx context.Context, path string, loc *time.Location) ([]schema.DayAreaPair, error) {
	if loc == nil {
		loc = time.UTC
	}

	r, err := table.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	areaPos, ok := r.Header.Index(schema.ColAreaName)
	if !ok {
		return nil, &schema.InputError{Path: path, Column: schema.ColAreaName, Reason: "required column is missing"}
	}

	sourceCol := schema.ColDay
	sourcePos, ok := r.Header.Index(schema.ColDay)
	if !ok {
		sourceCol = schema.ColDateOcc
		sourcePos, ok = r.Header.Index(schema.ColDateOcc)
	}
	if !ok {
		return nil, &schema.InputError{
			Path:   path,
			Column: schema.ColDateOcc,
			Reason: fmt.Sprintf("neither %s nor %s column is present", schema.ColDateOcc, schema.ColDay),
		}
	}

	var pairs []schema.DayAreaPair
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec, line, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		area := table.Cell(rec, areaPos)
		if schema.IsAbsent(area) {
			return nil, &schema.InputError{Path: path, Line: line, Column: schema.ColAreaName, Reason: "value is absent"}
		}

		cell := table.Cell(rec, sourcePos)
		day, err := parseSource(sourceCol, cell, loc)
		if err != nil {
			return nil, &schema.InputError{
				Path:   path,
				Line:   line,
				Column: sourceCol,
				Reason: fmt.Sprintf("cannot read %q as a date", cell),
				Err:    err,
			}
		}
		pairs = append(pairs, schema.DayAreaPair{Day: day, AreaName: area})
	}
	return pairs, nil
}

var errUnparseable = errors.New("unparseable timestamp")

func parseSource(col, cell string, loc *time.Location) (schema.Day, error) {
	if col == schema.ColDay {
		return schema.ParseDay(cell)
	}
	ts, ok := ingest.ParseTimestamp(cell, loc)
	if !ok {
		return schema.Day{}, errUnparseable
	}
	return schema.DayOf(ts), nil
}

// Stage is the deduplication pipeline stage.
type Stage struct {
	cfg    Config
	logger *slog.Logger
}

// New creates the deduplication stage.
func New(cfg Config) *Stage {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Stage{cfg: cfg, logger: logger.With("stage", StageName)}
}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return StageName }

// Run reads the source table, deduplicates its pairs and writes the edge table.
func (s *Stage) Run(ctx context.Context) (*pipeline.Report, error) {
	pairs, err := ReadPairs(ctx, s.cfg.InputPath, s.cfg.Location)
	if err != nil {
		return nil, err
	}
	s.logger.Info("pairs before deduplication", "count", len(pairs))

	edges := Deduplicate(pairs)
	s.logger.Info("pairs after deduplication", "count", len(edges))

	if err := table.WriteRows(s.cfg.OutputPath, schema.EdgeColumns, edges); err != nil {
		return nil, fmt.Errorf("failed to write edge table: %w", err)
	}

	return &pipeline.Report{
		Input:   s.cfg.InputPath,
		Output:  s.cfg.OutputPath,
		RowsIn:  len(pairs),
		RowsOut: len(edges),
		Columns: len(schema.EdgeColumns),
		Metrics: map[string]float64{
			MetricPairsBefore: float64(len(pairs)),
			MetricPairsAfter:  float64(len(edges)),
		},
	}, nil
}
