package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func connect(t *testing.T) *DuckDBAdapter {
	t.Helper()
	a, err := OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("failed to connect to in-memory DuckDB: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestDuckDBAdapter_QueryInt(t *testing.T) {
	ctx := context.Background()
	a := connect(t)

	if err := a.Exec(ctx, `CREATE TABLE edges ("DAY" VARCHAR, "AREA_NAME" VARCHAR)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if err := a.Exec(ctx, `INSERT INTO edges VALUES ('2020-01-02', 'Central'), ('2020-01-03', 'Central')`); err != nil {
		t.Fatalf("failed to insert data: %v", err)
	}

	n, err := a.QueryInt(ctx, `SELECT COUNT(*) FROM edges`)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if n != 2 {
		t.Errorf("got %d rows, want 2", n)
	}
}

func TestDuckDBAdapter_LoadCSV_AllVarchar(t *testing.T) {
	ctx := context.Background()
	a := connect(t)

	path := writeFile(t, "clean.csv", "DR_NO,DATE_OCC,AREA_NAME,LAT,LON,Crm_Cd_Desc\n"+
		"1,2020-01-02 08:30:00,Central,34.05,-118.24,THEFT\n"+
		"2,2020-01-02 23:15:00,\"West, LA\",34.06,-118.44,BURGLARY\n")

	if err := a.LoadCSV(ctx, "cleaned", path, CSVOptions{AllVarchar: true}); err != nil {
		t.Fatalf("failed to load CSV: %v", err)
	}

	meta, err := a.GetTableMetadata(ctx, "cleaned")
	if err != nil {
		t.Fatalf("failed to get metadata: %v", err)
	}
	if len(meta.Columns) != 6 {
		t.Fatalf("got %d columns, want 6", len(meta.Columns))
	}
	for _, col := range meta.Columns {
		if col.Type != "VARCHAR" {
			t.Errorf("column %s: got type %q, want VARCHAR", col.Name, col.Type)
		}
	}
	if meta.RowCount != 2 {
		t.Errorf("got row count %d, want 2", meta.RowCount)
	}

	n, err := a.QueryInt(ctx, `SELECT COUNT(*) FROM cleaned WHERE "AREA_NAME" = 'West, LA'`)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if n != 1 {
		t.Errorf("quoted field: got %d matches, want 1", n)
	}
}

func TestDuckDBAdapter_CreateCSVView_Names(t *testing.T) {
	ctx := context.Background()
	a := connect(t)

	path := writeFile(t, "degrees.csv", "k,n\n1,50\n2,10\n4,2\n")

	if err := a.CreateCSVView(ctx, "degrees", path, CSVOptions{Names: []string{"degree", "count"}}); err != nil {
		t.Fatalf("failed to create view: %v", err)
	}

	total, err := a.QueryInt(ctx, `SELECT CAST(SUM("count") AS BIGINT) FROM degrees WHERE "degree" > 1`)
	if err != nil {
		t.Fatalf("failed to query view: %v", err)
	}
	if total != 12 {
		t.Errorf("got %d, want 12", total)
	}
}

func TestDuckDBAdapter_LoadCSV_MissingFile(t *testing.T) {
	a := connect(t)

	err := a.LoadCSV(context.Background(), "missing", filepath.Join(t.TempDir(), "absent.csv"), CSVOptions{})
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestDuckDBAdapter_GetTableMetadata_NotFound(t *testing.T) {
	a := connect(t)

	if _, err := a.GetTableMetadata(context.Background(), "nonexistent_table"); err == nil {
		t.Error("expected error for nonexistent table, got nil")
	}
}

func TestDuckDBAdapter_WithoutConnect(t *testing.T) {
	ctx := context.Background()
	a := NewDuckDBAdapter()

	if err := a.Exec(ctx, "SELECT 1"); err == nil {
		t.Error("expected error when executing without connection, got nil")
	}
	if _, err := a.Query(ctx, "SELECT 1"); err == nil {
		t.Error("expected error when querying without connection, got nil")
	}
	if _, err := a.QueryInt(ctx, "SELECT 1"); err == nil {
		t.Error("expected error when querying without connection, got nil")
	}
	if err := a.Close(); err != nil {
		t.Errorf("close without connect should not error: %v", err)
	}
}

func TestQuoting(t *testing.T) {
	if got := QuoteIdent(`we"ird`); got != `"we""ird"` {
		t.Errorf("QuoteIdent: got %s", got)
	}
	if got := QuoteString(`/tmp/o'neil.csv`); got != `'/tmp/o''neil.csv'` {
		t.Errorf("QuoteString: got %s", got)
	}

	expr := readCSVExpr("/data/x.csv", CSVOptions{AllVarchar: true, Names: []string{"degree", "count"}})
	want := "read_csv_auto('/data/x.csv', header=true, all_varchar=true, names=['degree', 'count'])"
	if expr != want {
		t.Errorf("readCSVExpr: got %s, want %s", expr, want)
	}
}
