// Package datamap loads datamap lines from CSV, Excel, YAML and JSON files
// and imports them into a store.
package datamap

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/dbasik/dbasik/internal/model"
)

// ErrIncorrectHeaders is returned when a CSV or Excel datamap does not carry
// the key, sheet and cell_ref columns.
var ErrIncorrectHeaders = eris.New("Incorrect headers in csv file")

// ErrUnsupportedFile is returned by ReadFile for extensions it cannot parse.
var ErrUnsupportedFile = eris.New("needs to be a CSV or Excel file")

const (
	colKey      = "key"
	colSheet    = "sheet"
	colCellRef  = "cell_ref"
	colDataType = "data_type"
)

// ReadFile reads datamap lines from path, choosing a parser by extension.
func ReadFile(path string) ([]model.DatamapLine, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSVFile(path)
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	case ".yaml", ".yml":
		return readYAMLFile(path)
	case ".json":
		return readJSONFile(path)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFile, "datamap: %s", filepath.Base(path))
	}
}

// row is one tabular datamap entry before validation.
type row struct {
	Key      string `csv:"key"`
	Sheet    string `csv:"sheet"`
	CellRef  string `csv:"cell_ref"`
	DataType string `csv:"data_type,omitempty"`
}

func (r row) blank() bool {
	return strings.TrimSpace(r.Key) == "" &&
		strings.TrimSpace(r.Sheet) == "" &&
		strings.TrimSpace(r.CellRef) == "" &&
		strings.TrimSpace(r.DataType) == ""
}

// normalizeHeader lower-cases and trims header cells and checks that the
// required columns are present exactly once. Only data_type is optional.
func normalizeHeader(header []string) ([]string, error) {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		switch h {
		case colKey, colSheet, colCellRef, colDataType:
		default:
			return nil, ErrIncorrectHeaders
		}
		if seen[h] {
			return nil, ErrIncorrectHeaders
		}
		seen[h] = true
		out[i] = h
	}
	if !seen[colKey] || !seen[colSheet] || !seen[colCellRef] {
		return nil, ErrIncorrectHeaders
	}
	return out, nil
}

// toLine validates one row. n is the 1-based row number in the source file.
func toLine(n int, r row) (model.DatamapLine, error) {
	line := model.DatamapLine{
		Key:     strings.TrimSpace(r.Key),
		Sheet:   strings.TrimSpace(r.Sheet),
		CellRef: strings.TrimSpace(r.CellRef),
	}
	switch {
	case line.Key == "":
		return line, eris.Errorf("datamap: row %d: missing key", n)
	case line.Sheet == "":
		return line, eris.Errorf("datamap: row %d: missing sheet", n)
	case line.CellRef == "":
		return line, eris.Errorf("datamap: row %d: missing cell_ref", n)
	}
	dt, err := model.ParseDataType(r.DataType)
	if err != nil {
		return line, eris.Wrapf(err, "datamap: row %d", n)
	}
	line.DataType = dt
	return line, nil
}
