package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// RawHeader is a raw LAPD-style header with irregular spacing and extra
// columns that ingestion must normalize and project away.
const RawHeader = "DR_NO,Date Rptd, DATE OCC ,TIME OCC,AREA,AREA NAME,Crm Cd,Crm Cd Desc,LAT,LON"

// RawRow formats one raw data row matching RawHeader.
func RawRow(drNo, dateOcc, area, lat, lon, desc string) string {
	return strings.Join([]string{drNo, "01/03/2020 12:00:00 AM", dateOcc, "1000", "01", area, "440", desc, lat, lon}, ",")
}

// WriteCSV writes lines (header first) to dir/name and returns the path.
func WriteCSV(t testing.TB, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("failed to create fixture directory: %v", err)
	}
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
	return path
}

// ReadLines returns the lines of a text file without the trailing newline.
func ReadLines(t testing.TB, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test fixture path
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
