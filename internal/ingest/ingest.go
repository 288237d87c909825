// Package ingest turns the raw incident dataset into the cleaned incident
// table: header normalization, timestamp parsing, projection onto the
// required columns and the field-completeness filter.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/leapstack-labs/incidentgraph/internal/pipeline"
	"github.com/leapstack-labs/incidentgraph/internal/table"
	"github.com/leapstack-labs/incidentgraph/pkg/schema"
)

// StageName identifies the ingestion stage in reports and logs.
const StageName = "ingest"

// Drop causes, in the order they are checked.
const (
	DropMissingValue  = "missing_value"
	DropBadTimestamp  = "bad_timestamp"
	DropBadCoordinate = "bad_coordinate"
)

// ctxCheckInterval is how many rows are processed between cancellation checks.
const ctxCheckInterval = 4096

// Config configures the ingestion stage.
type Config struct {
	// InputPath is the raw incident dataset.
	InputPath string
	// OutputPath receives the cleaned incident table.
	OutputPath string
	// Location is the zone timestamps without an offset are read in (UTC if nil).
	Location *time.Location
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Result is the outcome of cleaning a batch of raw records.
type Result struct {
	Records []schema.CleanedIncidentRecord
	RowsIn  int
	Dropped map[string]int
}

// ReadRaw loads every row of the raw dataset, projected onto the required
// columns. It fails with a *schema.SchemaError when a required column is
// missing or ambiguous after header normalization.
func ReadRaw(ctx context.Context, path string) ([]schema.RawIncidentRecord, error) {
	r, err := table.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	pos, missing, duplicated := r.Header.Resolve(schema.CleanedColumns...)
	if len(missing) > 0 || len(duplicated) > 0 {
		return nil, &schema.SchemaError{
			Path:       path,
			Missing:    missing,
			Duplicated: duplicated,
			Available:  r.Header.Names,
		}
	}

	var raws []schema.RawIncidentRecord
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

		raws = append(raws, schema.RawIncidentRecord{
			Line:      line,
			DRNo:      table.Cell(rec, pos[schema.ColDRNo]),
			DateOcc:   table.Cell(rec, pos[schema.ColDateOcc]),
			AreaName:  table.Cell(rec, pos[schema.ColAreaName]),
			Lat:       table.Cell(rec, pos[schema.ColLat]),
			Lon:       table.Cell(rec, pos[schema.ColLon]),
			CrmCdDesc: table.Cell(rec, pos[schema.ColCrmCdDesc]),
		})
	}
	return raws, nil
}

// Clean parses and filters raw records. Records with any absent required
// value, an unparseable timestamp or a non-numeric coordinate are dropped
// and counted by cause; nothing is imputed.
func Clean(ctx context.Context, raws []schema.RawIncidentRecord, loc *time.Location) (*Result, error) {
	if loc == nil {
		loc = time.UTC
	}

	res := &Result{
		Records: make([]schema.CleanedIncidentRecord, 0, len(raws)),
		RowsIn:  len(raws),
		Dropped: map[string]int{},
	}

	for i, raw := range raws {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec, cause := cleanRecord(raw, loc)
		if cause != "" {
			res.Dropped[cause]++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func cleanRecord(raw schema.RawIncidentRecord, loc *time.Location) (schema.CleanedIncidentRecord, string) {
	for _, v := range []string{raw.DRNo, raw.DateOcc, raw.AreaName, raw.Lat, raw.Lon, raw.CrmCdDesc} {
		if schema.IsAbsent(v) {
			return schema.CleanedIncidentRecord{}, DropMissingValue
		}
	}

	ts, ok := ParseTimestamp(raw.DateOcc, loc)
	if !ok {
		return schema.CleanedIncidentRecord{}, DropBadTimestamp
	}

	lat, latOK := parseCoordinate(raw.Lat)
	lon, lonOK := parseCoordinate(raw.Lon)
	if !latOK || !lonOK {
		return schema.CleanedIncidentRecord{}, DropBadCoordinate
	}

	return schema.CleanedIncidentRecord{
		DRNo:      raw.DRNo,
		DateOcc:   ts,
		AreaName:  raw.AreaName,
		Lat:       lat,
		Lon:       lon,
		CrmCdDesc: raw.CrmCdDesc,
	}, ""
}

// ParseTimestamp parses s with a permissive, month-first date/time parser.
// Timestamps without an offset are read in loc. ok is false when s is not
// a recognizable date.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	ts, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func parseCoordinate(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Stage is the ingestion pipeline stage.
type Stage struct {
	cfg    Config
	logger *slog.Logger
}

// New creates the ingestion stage.
func New(cfg Config) *Stage {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Stage{cfg: cfg, logger: logger.With("stage", StageName)}
}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return StageName }

// Run reads the raw dataset, cleans it fully in memory and only then writes
// the cleaned table.
func (s *Stage) Run(ctx context.Context) (*pipeline.Report, error) {
	s.logger.Debug("reading raw dataset", "path", s.cfg.InputPath)

	raws, err := ReadRaw(ctx, s.cfg.InputPath)
	if err != nil {
		return nil, err
	}

	res, err := Clean(ctx, raws, s.cfg.Location)
	if err != nil {
		return nil, err
	}

	if err := table.WriteRows(s.cfg.OutputPath, schema.CleanedColumns, res.Records); err != nil {
		return nil, fmt.Errorf("failed to write cleaned table: %w", err)
	}

	report := &pipeline.Report{
		Input:   s.cfg.InputPath,
		Output:  s.cfg.OutputPath,
		RowsIn:  res.RowsIn,
		RowsOut: len(res.Records),
		Columns: len(schema.CleanedColumns),
		Dropped: res.Dropped,
	}
	if n := res.Dropped[DropBadTimestamp]; n > 0 {
		report.AddWarning(pipeline.WarnParse, "%d records excluded: %s could not be parsed", n, schema.ColDateOcc)
		s.logger.Debug("unparseable timestamps excluded", "count", n)
	}

	s.logger.Info("cleaned data shape", "rows", report.RowsOut, "columns", report.Columns, "path", s.cfg.OutputPath)
	return report, nil
}
