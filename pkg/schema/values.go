package schema

import (
	"fmt"
	"strconv"
	"time"
)

// Layouts used when writing and reading stage outputs.
const (
	TimestampLayout = "2006-01-02 15:04:05"
	DayLayout       = "2006-01-02"
)

// naTokens are the cell values treated as absent. They match the default
// NA set of common dataframe CSV readers so exported files behave the same.
var naTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsAbsent reports whether a cell value counts as missing.
func IsAbsent(v string) bool {
	_, ok := naTokens[v]
	return ok
}

// Day is a calendar date without time of day or zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf truncates t to its calendar date in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// ParseDay parses a DayLayout string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, err
	}
	return DayOf(t), nil
}

// String formats the day as YYYY-MM-DD.
func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Before reports whether d is earlier than o.
func (d Day) Before(o Day) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// FormatTimestamp renders a timestamp the way the cleaned table stores it.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// FormatCoordinate renders a coordinate with the shortest exact form.
func FormatCoordinate(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
