package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/incidentgraph/internal/testutil"
)

type fakeStage struct {
	name    string
	rowsOut int
	err     error
	calls   *[]string
}

func (f fakeStage) Name() string { return f.name }

func (f fakeStage) Run(_ context.Context) (*Report, error) {
	*f.calls = append(*f.calls, f.name)
	if f.err != nil {
		return nil, f.err
	}
	return &Report{RowsIn: 10, RowsOut: f.rowsOut}, nil
}

func TestRunner_RunsStagesInOrder(t *testing.T) {
	var calls []string
	runner := NewRunner(testutil.NewTestLogger(t))

	run, err := runner.Run(context.Background(),
		fakeStage{name: "ingest", rowsOut: 5, calls: &calls},
		fakeStage{name: "dedupe", rowsOut: 3, calls: &calls},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"ingest", "dedupe"}, calls)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.NotEmpty(t, run.ID)
	require.NotNil(t, run.CompletedAt)
	require.Len(t, run.Reports, 2)

	for i, name := range []string{"ingest", "dedupe"} {
		rep := run.Reports[i]
		assert.Equal(t, name, rep.Stage)
		assert.Equal(t, run.ID, rep.RunID)
		assert.False(t, rep.Empty)
		assert.Empty(t, rep.Warnings)
	}
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	runner := NewRunner(nil)

	run, err := runner.Run(context.Background(),
		fakeStage{name: "ingest", err: boom, calls: &calls},
		fakeStage{name: "dedupe", rowsOut: 3, calls: &calls},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "ingest failed")

	assert.Equal(t, []string{"ingest"}, calls, "later stages must not start")
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "ingest", run.FailedStage)
	assert.Equal(t, "boom", run.Error)
	assert.Empty(t, run.Reports)
}

func TestRunner_FlagsEmptyResult(t *testing.T) {
	var calls []string
	runner := NewRunner(testutil.NewTestLogger(t))

	run, err := runner.Run(context.Background(), fakeStage{name: "ingest", rowsOut: 0, calls: &calls})
	require.NoError(t, err, "an empty result is a warning, not an error")

	rep := run.Reports[0]
	assert.True(t, rep.Empty)
	assert.True(t, rep.HasWarning(WarnEmptyResult))
}

func TestRunner_CancelledContext(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := NewRunner(nil).Run(ctx, fakeStage{name: "ingest", rowsOut: 1, calls: &calls})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
	assert.Equal(t, StatusFailed, run.Status)
}

func TestReport_AddWarning(t *testing.T) {
	rep := &Report{}
	rep.AddWarning(WarnParse, "%d timestamps could not be parsed", 3)

	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, Warning{Code: WarnParse, Message: "3 timestamps could not be parsed"}, rep.Warnings[0])
	assert.True(t, rep.HasWarning(WarnParse))
	assert.False(t, rep.HasWarning(WarnEmptyResult))
}
