package datamap

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/dbasik/dbasik/internal/model"
)

// readXLSX reads the first sheet of an Excel datamap. The first row is the
// header; columns are matched by name.
func readXLSX(path string) ([]model.DatamapLine, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "datamap: open xlsx")
	}
	if len(f.Sheets) == 0 || len(f.Sheets[0].Rows) == 0 {
		return nil, ErrIncorrectHeaders
	}
	sheet := f.Sheets[0]

	header, err := normalizeHeader(trimTrailing(rowToStrings(sheet.Rows[0])))
	if err != nil {
		return nil, err
	}

	var lines []model.DatamapLine
	for i, xr := range sheet.Rows[1:] {
		if xr == nil {
			continue
		}
		r := rowFromCells(header, rowToStrings(xr))
		if r.blank() {
			continue
		}
		line, err := toLine(i+2, r)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func rowToStrings(r *xlsx.Row) []string {
	cells := make([]string, len(r.Cells))
	for j, cell := range r.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// trimTrailing drops empty cells at the end of a header row; Excel often
// stores formatted but empty columns.
func trimTrailing(cells []string) []string {
	n := len(cells)
	for n > 0 && cells[n-1] == "" {
		n--
	}
	return cells[:n]
}

func rowFromCells(header, cells []string) row {
	var r row
	for i, col := range header {
		if i >= len(cells) {
			break
		}
		switch col {
		case colKey:
			r.Key = cells[i]
		case colSheet:
			r.Sheet = cells[i]
		case colCellRef:
			r.CellRef = cells[i]
		case colDataType:
			r.DataType = cells[i]
		}
	}
	return r
}
