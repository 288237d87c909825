package schema

import (
	"strconv"
	"time"
)

// RawIncidentRecord is one row of the raw dataset projected onto the
// required columns. Values are unparsed cell text; nothing is validated.
type RawIncidentRecord struct {
	Line      int
	DRNo      string
	DateOcc   string
	AreaName  string
	Lat       string
	Lon       string
	CrmCdDesc string
}

// CleanedIncidentRecord is a raw record whose required fields are all
// present and whose timestamp parsed.
type CleanedIncidentRecord struct {
	DRNo      string
	DateOcc   time.Time
	AreaName  string
	Lat       float64
	Lon       float64
	CrmCdDesc string
}

// Row renders the record in CleanedColumns order.
func (r CleanedIncidentRecord) Row() []string {
	return []string{
		r.DRNo,
		FormatTimestamp(r.DateOcc),
		r.AreaName,
		FormatCoordinate(r.Lat),
		FormatCoordinate(r.Lon),
		r.CrmCdDesc,
	}
}

// Pair derives the record's (day, area) pair.
func (r CleanedIncidentRecord) Pair() DayAreaPair {
	return DayAreaPair{Day: DayOf(r.DateOcc), AreaName: r.AreaName}
}

// DayAreaPair is the (calendar day, area) projection of a cleaned record.
type DayAreaPair struct {
	Day      Day
	AreaName string
}

// DayAreaEdge is a DayAreaPair known to be unique within its table.
type DayAreaEdge DayAreaPair

// Row renders the edge in EdgeColumns order.
func (e DayAreaEdge) Row() []string {
	return []string{e.Day.String(), e.AreaName}
}

// DegreeCountRow is one (degree, count) observation of the external
// degree distribution.
type DegreeCountRow struct {
	Degree int
	Count  int
}

// Row renders the row in DegreeColumns order.
func (r DegreeCountRow) Row() []string {
	return []string{strconv.Itoa(r.Degree), strconv.Itoa(r.Count)}
}

// Plottable reports whether both values are usable on a logarithmic axis.
func (r DegreeCountRow) Plottable() bool {
	return r.Degree > 0 && r.Count > 0
}
