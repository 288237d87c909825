package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/incidentgraph/internal/pipeline"
	"github.com/leapstack-labs/incidentgraph/internal/testutil"
	"github.com/leapstack-labs/incidentgraph/pkg/schema"
)

func newStage(t *testing.T, input string) (*Stage, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "data", "clean_crime.csv")
	return New(Config{
		InputPath:  input,
		OutputPath: out,
		Logger:     testutil.NewTestLogger(t),
	}), out
}

func TestStage_CleansAndProjects(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteCSV(t, dir, "raw.csv",
		testutil.RawHeader,
		testutil.RawRow("200100001", "01/02/2020 08:30:00 AM", "Central", "34.0522", "-118.2437", "THEFT"),
		testutil.RawRow("200100002", "01/02/2020 11:15:00 PM", "Central", "34.05", "-118.24", "BURGLARY"),
	)

	stage, out := newStage(t, input)
	report, err := stage.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.RowsIn)
	assert.Equal(t, 2, report.RowsOut)
	assert.Equal(t, 6, report.Columns)
	assert.Empty(t, report.Warnings)

	assert.Equal(t, []string{
		"DR_NO,DATE_OCC,AREA_NAME,LAT,LON,Crm_Cd_Desc",
		"200100001,2020-01-02 08:30:00,Central,34.0522,-118.2437,THEFT",
		"200100002,2020-01-02 23:15:00,Central,34.05,-118.24,BURGLARY",
	}, testutil.ReadLines(t, out))
}

func TestStage_ExcludesUnparseableTimestamp(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteCSV(t, dir, "raw.csv",
		testutil.RawHeader,
		testutil.RawRow("1", "01/02/2020 08:30:00 AM", "Central", "34.0", "-118.2", "THEFT"),
		testutil.RawRow("2", "garbage", "Central", "34.0", "-118.2", "THEFT"),
	)

	stage, out := newStage(t, input)
	report, err := stage.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.RowsOut)
	assert.Equal(t, 1, report.Dropped[DropBadTimestamp])
	assert.True(t, report.HasWarning(pipeline.WarnParse))
	assert.Len(t, testutil.ReadLines(t, out), 2)
}

func TestStage_AllNullColumnYieldsEmptyTable(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteCSV(t, dir, "raw.csv",
		testutil.RawHeader,
		testutil.RawRow("1", "01/02/2020 08:30:00 AM", "Central", "", "-118.2", "THEFT"),
		testutil.RawRow("2", "01/03/2020 08:30:00 AM", "Newton", "", "-118.3", "ASSAULT"),
	)

	stage, out := newStage(t, input)
	report, err := stage.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.RowsOut)
	assert.Equal(t, 2, report.Dropped[DropMissingValue])
	assert.Equal(t, []string{"DR_NO,DATE_OCC,AREA_NAME,LAT,LON,Crm_Cd_Desc"}, testutil.ReadLines(t, out))
}

func TestStage_MissingColumnIsSchemaError(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteCSV(t, dir, "raw.csv",
		"DR_NO,DATE OCC,AREA NAME,LAT,Crm Cd Desc",
		"1,01/02/2020 08:30:00 AM,Central,34.0,THEFT",
	)

	stage, out := newStage(t, input)
	_, err := stage.Run(context.Background())
	require.Error(t, err)

	var schemaErr *schema.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"LON"}, schemaErr.Missing)
	assert.Contains(t, schemaErr.Available, "AREA_NAME")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no output may be written on failure")
}

func TestStage_DuplicatedColumnIsSchemaError(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteCSV(t, dir, "raw.csv",
		"DR_NO,DATE OCC,DATE_OCC,AREA NAME,LAT,LON,Crm Cd Desc",
		"1,01/02/2020 08:30:00 AM,01/02/2020 08:30:00 AM,Central,34.0,-118.2,THEFT",
	)

	stage, _ := newStage(t, input)
	_, err := stage.Run(context.Background())

	var schemaErr *schema.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"DATE_OCC"}, schemaErr.Duplicated)
}

func TestStage_MissingInput(t *testing.T) {
	stage, _ := newStage(t, filepath.Join(t.TempDir(), "absent.csv"))
	_, err := stage.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClean_DropCauses(t *testing.T) {
	raws := []schema.RawIncidentRecord{
		{DRNo: "1", DateOcc: "01/02/2020 08:30:00 AM", AreaName: "Central", Lat: "34.0", Lon: "-118.2", CrmCdDesc: "THEFT"},
		{DRNo: "2", DateOcc: "01/02/2020 08:30:00 AM", AreaName: "NA", Lat: "34.0", Lon: "-118.2", CrmCdDesc: "THEFT"},
		{DRNo: "3", DateOcc: "garbage", AreaName: "Central", Lat: "34.0", Lon: "-118.2", CrmCdDesc: "THEFT"},
		{DRNo: "4", DateOcc: "01/02/2020 08:30:00 AM", AreaName: "Central", Lat: "north", Lon: "-118.2", CrmCdDesc: "THEFT"},
		{DRNo: "5", DateOcc: "01/02/2020 08:30:00 AM", AreaName: "Central", Lat: "34.0", Lon: "Inf", CrmCdDesc: "THEFT"},
	}

	res, err := Clean(context.Background(), raws, nil)
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "1", res.Records[0].DRNo)
	assert.Equal(t, 5, res.RowsIn)
	assert.Equal(t, map[string]int{
		DropMissingValue:  1,
		DropBadTimestamp:  1,
		DropBadCoordinate: 2,
	}, res.Dropped)
}

func TestClean_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Clean(ctx, []schema.RawIncidentRecord{{DRNo: "1"}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseTimestamp(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name string
		in   string
		loc  *time.Location
		want time.Time
		ok   bool
	}{
		{"month first with meridiem", "01/02/2020 08:30:00 AM", time.UTC, time.Date(2020, 1, 2, 8, 30, 0, 0, time.UTC), true},
		{"iso", "2020-03-04 05:06:07", time.UTC, time.Date(2020, 3, 4, 5, 6, 7, 0, time.UTC), true},
		{"surrounding space", "  2020-03-04  ", time.UTC, time.Date(2020, 3, 4, 0, 0, 0, 0, time.UTC), true},
		{"read in location", "2020-03-04 23:00:00", la, time.Date(2020, 3, 4, 23, 0, 0, 0, la), true},
		{"garbage", "garbage", time.UTC, time.Time{}, false},
		{"blank", "   ", time.UTC, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in, tt.loc)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
			}
		})
	}
}
