// Package render draws a precomputed degree-count distribution as a
// log–log scatter plot.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/leapstack-labs/incidentgraph/internal/pipeline"
	"github.com/leapstack-labs/incidentgraph/internal/table"
	"github.com/leapstack-labs/incidentgraph/pkg/schema"
)

// StageName identifies the render stage in reports and logs.
const StageName = "render"

// Defaults for an unset Config field.
const (
	DefaultTitle  = "Log–Log Degree Distribution"
	DefaultWidth  = 4.0
	DefaultHeight = 4.0
)

// DropNonPositive is the drop cause for rows skipped by Config.DropNonPositive.
const DropNonPositive = "nonpositive"

// Metric keys recorded on the stage report.
const (
	MetricPoints     = "points"
	MetricDegreeMin  = "degree_min"
	MetricDegreeMax  = "degree_max"
	MetricSlope      = "loglog_slope"
	MetricMeanDegree = "mean_degree"
)

// Config configures the render stage.
type Config struct {
	InputPath  string
	OutputPath string
	Title      string
	// WidthIn and HeightIn are the image size in inches.
	WidthIn  float64
	HeightIn float64
	// DropNonPositive skips rows with degree or count <= 0 instead of failing.
	DropNonPositive bool
	Logger          *slog.Logger
}

// ReadDegrees loads a two-column degree-count table. The header row is
// skipped and its names ignored; columns are read by position.
func ReadDegrees(ctx context.Context, path string) ([]schema.DegreeCountRow, []int, error) {
	r, err := table.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = r.Close() }()

	var (
		rows  []schema.DegreeCountRow
		lines []int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		rec, line, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if len(rec) < 2 {
			return nil, nil, &schema.InputError{Path: path, Line: line, Reason: fmt.Sprintf("expected 2 columns, got %d", len(rec))}
		}

		degree, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, nil, &schema.InputError{Path: path, Line: line, Column: schema.ColDegree, Reason: "not an integer", Err: err}
		}
		count, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, nil, &schema.InputError{Path: path, Line: line, Column: schema.ColCount, Reason: "not an integer", Err: err}
		}

		rows = append(rows, schema.DegreeCountRow{Degree: degree, Count: count})
		lines = append(lines, line)
	}
	return rows, lines, nil
}

// Points converts rows into plot coordinates. A row that cannot sit on a
// logarithmic axis is a *schema.RangeError unless dropNonPositive is set, in
// which case it is skipped and counted.
func Points(path string, rows []schema.DegreeCountRow, lines []int, dropNonPositive bool) (plotter.XYs, int, error) {
	pts := make(plotter.XYs, 0, len(rows))
	dropped := 0
	for i, row := range rows {
		if !row.Plottable() {
			if dropNonPositive {
				dropped++
				continue
			}
			line := 0
			if i < len(lines) {
				line = lines[i]
			}
			return nil, dropped, &schema.RangeError{Path: path, Line: line, Degree: row.Degree, Count: row.Count}
		}
		pts = append(pts, plotter.XY{X: float64(row.Degree), Y: float64(row.Count)})
	}
	return pts, dropped, nil
}

// Stats summarizes a set of plotted points.
type Stats struct {
	DegreeMin  float64
	DegreeMax  float64
	MeanDegree float64
	// Slope is the least-squares slope of log(count) on log(degree); NaN
	// when fewer than two distinct degrees are present.
	Slope float64
}

// Summarize computes Stats for non-empty pts.
func Summarize(pts plotter.XYs) Stats {
	logX := make([]float64, len(pts))
	logY := make([]float64, len(pts))
	degrees := make([]float64, len(pts))
	counts := make([]float64, len(pts))

	s := Stats{DegreeMin: math.Inf(1), DegreeMax: math.Inf(-1), Slope: math.NaN()}
	for i, p := range pts {
		degrees[i], counts[i] = p.X, p.Y
		logX[i], logY[i] = math.Log10(p.X), math.Log10(p.Y)
		s.DegreeMin = math.Min(s.DegreeMin, p.X)
		s.DegreeMax = math.Max(s.DegreeMax, p.X)
	}

	s.MeanDegree = stat.Mean(degrees, counts)
	if s.DegreeMax > s.DegreeMin {
		_, s.Slope = stat.LinearRegression(logX, logY, nil, false)
	}
	return s
}

// Plot builds the log–log scatter for pts.
func Plot(pts plotter.XYs, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Degree"
	p.Y.Label.Text = "Count"

	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build scatter: %w", err)
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(3)
	p.Add(scatter)

	// Pad each axis to a factor of two so a single point or a constant
	// column still spans a non-degenerate log range.
	xMin, xMax, yMin, yMax := plotter.XYRange(pts)
	p.X.Min, p.X.Max = xMin/2, xMax*2
	p.Y.Min, p.Y.Max = yMin/2, yMax*2

	return p, nil
}

// Stage is the render pipeline stage.
type Stage struct {
	cfg    Config
	logger *slog.Logger
}

// New creates the render stage, filling unset title and size with defaults.
func New(cfg Config) *Stage {
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.WidthIn <= 0 {
		cfg.WidthIn = DefaultWidth
	}
	if cfg.HeightIn <= 0 {
		cfg.HeightIn = DefaultHeight
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Stage{cfg: cfg, logger: logger.With("stage", StageName)}
}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return StageName }

// Run validates the degree table, draws it and writes the image.
func (s *Stage) Run(ctx context.Context) (*pipeline.Report, error) {
	rows, lines, err := ReadDegrees(ctx, s.cfg.InputPath)
	if err != nil {
		return nil, err
	}

	pts, dropped, err := Points(s.cfg.InputPath, rows, lines, s.cfg.DropNonPositive)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		s.logger.Warn("skipped non-positive rows", "count", dropped)
	}
	if len(pts) == 0 {
		return nil, &schema.InputError{Path: s.cfg.InputPath, Reason: "degree table has no plottable rows"}
	}

	p, err := Plot(pts, s.cfg.Title)
	if err != nil {
		return nil, err
	}

	format := imageFormat(s.cfg.OutputPath)
	wt, err := p.WriterTo(vg.Length(s.cfg.WidthIn)*vg.Inch, vg.Length(s.cfg.HeightIn)*vg.Inch, format)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s image: %w", format, err)
	}
	if err := table.WriteAtomic(s.cfg.OutputPath, func(w io.Writer) error {
		_, err := wt.WriteTo(w)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to write plot: %w", err)
	}

	st := Summarize(pts)
	s.logger.Info("rendered degree distribution",
		"points", len(pts),
		"degree_min", st.DegreeMin,
		"degree_max", st.DegreeMax,
		"path", s.cfg.OutputPath,
	)

	report := &pipeline.Report{
		Input:   s.cfg.InputPath,
		Output:  s.cfg.OutputPath,
		RowsIn:  len(rows),
		RowsOut: len(pts),
		Columns: len(schema.DegreeColumns),
		Metrics: map[string]float64{
			MetricPoints:     float64(len(pts)),
			MetricDegreeMin:  st.DegreeMin,
			MetricDegreeMax:  st.DegreeMax,
			MetricMeanDegree: st.MeanDegree,
		},
	}
	if !math.IsNaN(st.Slope) {
		report.Metrics[MetricSlope] = st.Slope
	}
	if dropped > 0 {
		report.Dropped = map[string]int{DropNonPositive: dropped}
	}
	return report, nil
}

// imageFormat derives the encoder name from the file extension, defaulting to png.
func imageFormat(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return "png"
	}
	return ext
}
