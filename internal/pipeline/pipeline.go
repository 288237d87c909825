// Package pipeline runs batch stages strictly in order and records what
// each one did.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Warning codes attached to stage reports.
const (
	// WarnEmptyResult marks a stage that completed with zero output rows.
	WarnEmptyResult = "empty_result"
	// WarnParse marks a stage that excluded records whose values did not parse.
	WarnParse = "parse"
)

// Stage is a single run-to-completion transform from one durable input to
// one durable output. A stage either writes its complete output and
// returns a report, or returns an error having written nothing.
type Stage interface {
	Name() string
	Run(ctx context.Context) (*Report, error)
}

// Report describes one completed stage.
type Report struct {
	RunID      string             `json:"run_id"`
	Stage      string             `json:"stage"`
	Input      string             `json:"input"`
	Output     string             `json:"output"`
	RowsIn     int                `json:"rows_in"`
	RowsOut    int                `json:"rows_out"`
	Columns    int                `json:"columns"`
	Dropped    map[string]int     `json:"dropped,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Warnings   []Warning          `json:"warnings,omitempty"`
	Empty      bool               `json:"empty"`
	StartedAt  time.Time          `json:"started_at"`
	DurationMS int64              `json:"duration_ms"`
}

// Warning is a non-fatal condition observed by a stage.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AddWarning appends a warning to the report.
func (r *Report) AddWarning(code, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

// HasWarning reports whether a warning with the given code was recorded.
func (r *Report) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Status is the state of a pipeline run.
type Status string

// Run statuses.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one invocation of a sequence of stages.
type Run struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	FailedStage string     `json:"failed_stage,omitempty"`
	Reports     []*Report  `json:"reports"`
}

// Runner executes stages in order.
type Runner struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner creates a runner. A nil logger discards output.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{logger: logger, now: time.Now}
}

// Run executes stages one after another, stopping at the first failure.
// Stages after a failed one are not started. The returned Run is never nil.
func (r *Runner) Run(ctx context.Context, stages ...Stage) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Status:    StatusRunning,
		StartedAt: r.now().UTC(),
	}
	logger := r.logger.With("run_id", run.ID)
	logger.Info("starting run", "stages", stageNames(stages))

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return r.fail(run, logger, stage.Name(), err)
		}

		started := r.now()
		logger.Debug("starting stage", "stage", stage.Name())

		report, err := stage.Run(ctx)
		if err != nil {
			return r.fail(run, logger, stage.Name(), err)
		}

		report.RunID = run.ID
		report.Stage = stage.Name()
		report.StartedAt = started.UTC()
		report.DurationMS = r.now().Sub(started).Milliseconds()
		if report.RowsOut == 0 {
			report.Empty = true
			if !report.HasWarning(WarnEmptyResult) {
				report.AddWarning(WarnEmptyResult, "%s produced zero rows", stage.Name())
			}
			logger.Warn("stage produced zero rows", "stage", stage.Name(), "output", report.Output)
		}

		logger.Info("stage completed",
			"stage", stage.Name(),
			"rows_in", report.RowsIn,
			"rows_out", report.RowsOut,
			"duration_ms", report.DurationMS,
		)
		run.Reports = append(run.Reports, report)
	}

	completed := r.now().UTC()
	run.CompletedAt = &completed
	run.Status = StatusCompleted
	logger.Info("run completed")
	return run, nil
}

func (r *Runner) fail(run *Run, logger *slog.Logger, stage string, err error) (*Run, error) {
	completed := r.now().UTC()
	run.CompletedAt = &completed
	run.Status = StatusFailed
	run.FailedStage = stage
	run.Error = err.Error()
	logger.Error("stage failed", "stage", stage, "error", err.Error())
	return run, fmt.Errorf("%s failed: %w", stage, err)
}

func stageNames(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name()
	}
	return names
}
