package schema

import "strings"

// Column names after normalization.
const (
	ColDRNo      = "DR_NO"
	ColDateOcc   = "DATE_OCC"
	ColAreaName  = "AREA_NAME"
	ColLat       = "LAT"
	ColLon       = "LON"
	ColCrmCdDesc = "Crm_Cd_Desc"
	ColDay       = "DAY"
	ColDegree    = "degree"
	ColCount     = "count"
)

// CleanedColumns is the required-field set, in output order.
var CleanedColumns = []string{ColDRNo, ColDateOcc, ColAreaName, ColLat, ColLon, ColCrmCdDesc}

// EdgeColumns is the day-area edge table header.
var EdgeColumns = []string{ColDay, ColAreaName}

// DegreeColumns is the degree-count table header.
var DegreeColumns = []string{ColDegree, ColCount}

// NormalizeColumn trims surrounding whitespace and replaces every remaining
// space with an underscore. Case is preserved.
func NormalizeColumn(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

// Header is a parsed header row with normalized names.
type Header struct {
	Names []string
	index map[string][]int
}

// NewHeader normalizes a raw header row.
func NewHeader(raw []string) Header {
	h := Header{
		Names: make([]string, len(raw)),
		index: make(map[string][]int, len(raw)),
	}
	for i, name := range raw {
		// A UTF-8 BOM on the first header cell is not part of the name.
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		n := NormalizeColumn(name)
		h.Names[i] = n
		h.index[n] = append(h.index[n], i)
	}
	return h
}

// Index returns the position of the first column with the given name.
func (h Header) Index(name string) (int, bool) {
	pos, ok := h.index[name]
	if !ok {
		return -1, false
	}
	return pos[0], true
}

// Has reports whether the header contains the column.
func (h Header) Has(name string) bool {
	_, ok := h.index[name]
	return ok
}

// Resolve looks up every name. It returns the positions of the names that
// were found exactly once, plus the names that were missing or duplicated.
func (h Header) Resolve(names ...string) (positions map[string]int, missing, duplicated []string) {
	positions = make(map[string]int, len(names))
	for _, name := range names {
		pos := h.index[name]
		switch len(pos) {
		case 0:
			missing = append(missing, name)
		case 1:
			positions[name] = pos[0]
		default:
			duplicated = append(duplicated, name)
		}
	}
	return positions, missing, duplicated
}
