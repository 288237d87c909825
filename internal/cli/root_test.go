package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/incidentgraph/internal/cli/config"
	clitest "github.com/leapstack-labs/incidentgraph/internal/cli/testutil"
	"github.com/leapstack-labs/incidentgraph/internal/pipeline"
	"github.com/leapstack-labs/incidentgraph/internal/testutil"
	"github.com/leapstack-labs/incidentgraph/internal/verify"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRoot_RunWritesCleanedAndEdges(t *testing.T) {
	t.Chdir(clitest.SetupTestProject(t))

	out, _, err := execute(t, "run", "-o", "json")
	require.NoError(t, err)

	var run pipeline.Run
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, pipeline.StatusCompleted, run.Status)
	require.Len(t, run.Reports, 2)
	assert.Equal(t, 5, run.Reports[0].RowsIn)
	assert.Equal(t, 4, run.Reports[0].RowsOut)
	assert.Equal(t, 1, run.Reports[0].Dropped["bad_timestamp"])
	assert.Equal(t, 3, run.Reports[1].RowsOut)

	assert.Equal(t, []string{
		"DAY,AREA_NAME",
		"2020-01-02,Central",
		"2020-01-02,Rampart",
		"2020-01-03,Rampart",
	}, testutil.ReadLines(t, config.DefaultEdgesPath))
	assert.Len(t, testutil.ReadLines(t, config.DefaultCleanedPath), 5)
}

func TestRoot_StagesOneByOne(t *testing.T) {
	t.Chdir(clitest.SetupTestProject(t))

	out, _, err := execute(t, "ingest", "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "# Pipeline Run")
	assert.Contains(t, out, "bad_timestamp=1")

	_, _, err = execute(t, "dedupe", "--edges", "out/edges.csv")
	require.NoError(t, err)
	assert.Len(t, testutil.ReadLines(t, filepath.Join("out", "edges.csv")), 4)
}

func TestRoot_FailedStageStillReports(t *testing.T) {
	t.Chdir(t.TempDir())

	out, _, err := execute(t, "ingest", "--raw", "missing.csv", "-o", "json")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	var run pipeline.Run
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, pipeline.StatusFailed, run.Status)
	assert.Equal(t, "ingest", run.FailedStage)
}

func TestRoot_RenderFromDegreeTable(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.WriteCSV(t, dir, filepath.FromSlash(config.DefaultDegreesPath),
		"degree,count",
		"1,50",
		"2,10",
		"4,2",
	)

	_, _, err := execute(t, "render", "--title", "Areas per day", "--width", "5")
	require.NoError(t, err)

	data, err := os.ReadFile(config.DefaultPlotPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "plot should be a PNG")
}

func TestRoot_RenderRejectsZeroDegree(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.WriteCSV(t, dir, "degrees.csv", "degree,count", "0,3", "1,5")

	_, _, err := execute(t, "render", "--degrees", "degrees.csv", "--plot", "plot.svg")
	require.Error(t, err)
	assert.NoFileExists(t, "plot.svg")

	_, _, err = execute(t, "render", "--degrees", "degrees.csv", "--plot", "plot.svg", "--drop-nonpositive")
	require.NoError(t, err)
	assert.FileExists(t, "plot.svg")
}

func TestRoot_VerifyAndQuery(t *testing.T) {
	t.Chdir(clitest.SetupTestProject(t))

	_, _, err := execute(t, "run")
	require.NoError(t, err)

	out, _, err := execute(t, "verify", "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "**PASS** "+verify.CheckEdgesUnique)
	assert.Contains(t, out, "**PASS** "+verify.CheckEdgesDerived)

	out, _, err = execute(t, "query", "--format", "csv", "SELECT COUNT(*) AS n FROM edges")
	require.NoError(t, err)
	assert.Equal(t, "n\n3\n", out)
}

func TestRoot_VerifyDetectsForeignEdge(t *testing.T) {
	t.Chdir(clitest.SetupTestProject(t))

	_, _, err := execute(t, "run")
	require.NoError(t, err)

	f, err := os.OpenFile(config.DefaultEdgesPath, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("2021-06-01,Harbor\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, _, err := execute(t, "verify", "-o", "markdown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, verify.ErrFailed))
	assert.Contains(t, out, "**FAIL** "+verify.CheckEdgesDerived)
}

func TestRoot_QueryWithoutOutputs(t *testing.T) {
	t.Chdir(t.TempDir())

	_, _, err := execute(t, "query", "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pipeline outputs found")
}

func TestRoot_InvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	_, _, err := execute(t, "ingest", "--timezone", "Mars/Olympus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.timezone")
}

func TestRoot_VerboseNamesConfigFile(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "incidentgraph.yaml"), []byte("log_level: warn\n"), 0600))
	t.Chdir(dir)

	_, errOut, err := execute(t, "ingest", "-v")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Using config file")
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "incidentgraph")

	_, _, err = execute(t, "completion", "tcsh")
	require.Error(t, err)
}
