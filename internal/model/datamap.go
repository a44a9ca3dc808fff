package model

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

// DataType is the type a datamap line declares for its cell.
type DataType string

const (
	DataTypeNone    DataType = ""
	DataTypeText    DataType = "Text"
	DataTypeInteger DataType = "Integer"
	DataTypeFloat   DataType = "Float"
	DataTypeDate    DataType = "Date"
	DataTypePhone   DataType = "Phone"
)

// ParseDataType maps user input (any case, surrounding space) onto a DataType.
// An empty string is a valid absent type.
func ParseDataType(s string) (DataType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DataTypeNone, nil
	}
	for _, dt := range []DataType{DataTypeText, DataTypeInteger, DataTypeFloat, DataTypeDate, DataTypePhone} {
		if strings.EqualFold(s, string(dt)) {
			return dt, nil
		}
	}
	return DataTypeNone, eris.Errorf("unknown data type %q", s)
}

// DatamapLine binds a logical key to one cell of one sheet.
type DatamapLine struct {
	ID        string   `json:"id" yaml:"-"`
	DatamapID string   `json:"datamap_id" yaml:"-"`
	Key       string   `json:"key" yaml:"key"`
	Sheet     string   `json:"sheet" yaml:"sheet"`
	CellRef   string   `json:"cell_ref" yaml:"cell_ref"`
	DataType  DataType `json:"data_type,omitempty" yaml:"data_type,omitempty"`
	Required  bool     `json:"required,omitempty" yaml:"required,omitempty"`     // reserved, not enforced
	MaxLength int      `json:"max_length,omitempty" yaml:"max_length,omitempty"` // reserved, not enforced
}

// Datamap is an ordered set of datamap lines.
type Datamap struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	TierID string        `json:"tier_id,omitempty"`
	Active bool          `json:"active"`
	Lines  []DatamapLine `json:"lines"`
}

// Sheets returns the sorted set of sheet names referenced by the datamap.
func (d *Datamap) Sheets() []string {
	seen := make(map[string]struct{}, len(d.Lines))
	var sheets []string
	for _, l := range d.Lines {
		if _, ok := seen[l.Sheet]; ok {
			continue
		}
		seen[l.Sheet] = struct{}{}
		sheets = append(sheets, l.Sheet)
	}
	sort.Strings(sheets)
	return sheets
}

// LinesForSheet returns the lines of one sheet in datamap order.
func (d *Datamap) LinesForSheet(sheet string) []DatamapLine {
	var out []DatamapLine
	for _, l := range d.Lines {
		if l.Sheet == sheet {
			out = append(out, l)
		}
	}
	return out
}

// Line returns the line for key on sheet, or nil if not found.
func (d *Datamap) Line(sheet, key string) *DatamapLine {
	for i := range d.Lines {
		if d.Lines[i].Sheet == sheet && d.Lines[i].Key == key {
			return &d.Lines[i]
		}
	}
	return nil
}

// DuplicateCellRefError reports two lines pointing at the same cell.
type DuplicateCellRefError struct {
	Sheet   string
	CellRef string
}

func (e *DuplicateCellRefError) Error() string {
	return "You already have that cell reference/sheet/datamap combination - no duplicates please! (" +
		e.Sheet + "!" + e.CellRef + ")"
}

// DuplicateKeyError reports a key used twice on one sheet.
type DuplicateKeyError struct {
	Sheet string
	Key   string
}

func (e *DuplicateKeyError) Error() string {
	return "duplicate key " + e.Key + " on sheet " + e.Sheet
}

// Validate checks the datamap invariants that are enforced when a datamap is
// edited: unique (sheet, cell_ref), unique key per sheet, well-formed cells and
// known data types. Cell references are normalised in place.
func (d *Datamap) Validate() error {
	cells := make(map[[2]string]struct{}, len(d.Lines))
	keys := make(map[[2]string]struct{}, len(d.Lines))
	for i := range d.Lines {
		l := &d.Lines[i]
		if strings.TrimSpace(l.Key) == "" {
			return eris.Errorf("datamap: line %d: key is required", i+1)
		}
		if strings.TrimSpace(l.Sheet) == "" {
			return eris.Errorf("datamap: line %d (%s): sheet is required", i+1, l.Key)
		}
		ref, err := NormalizeCellRef(l.CellRef)
		if err != nil {
			return eris.Wrapf(err, "datamap: line %d (%s)", i+1, l.Key)
		}
		l.CellRef = ref
		dt, err := ParseDataType(string(l.DataType))
		if err != nil {
			return eris.Wrapf(err, "datamap: line %d (%s)", i+1, l.Key)
		}
		l.DataType = dt

		ck := [2]string{l.Sheet, l.CellRef}
		if _, dup := cells[ck]; dup {
			return &DuplicateCellRefError{Sheet: l.Sheet, CellRef: l.CellRef}
		}
		cells[ck] = struct{}{}

		kk := [2]string{l.Sheet, l.Key}
		if _, dup := keys[kk]; dup {
			return &DuplicateKeyError{Sheet: l.Sheet, Key: l.Key}
		}
		keys[kk] = struct{}{}
	}
	return nil
}

// NormalizeCellRef upper-cases an A1 reference and strips absolute anchors.
func NormalizeCellRef(ref string) (string, error) {
	ref = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(ref), "$", ""))
	col, row, err := excelize.CellNameToCoordinates(ref)
	if err != nil {
		return "", eris.Errorf("invalid cell reference %q", ref)
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", eris.Errorf("invalid cell reference %q", ref)
	}
	return name, nil
}
