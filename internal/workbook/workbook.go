// Package workbook reads raw scalar cell values from xlsx/xlsm workbooks.
package workbook

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

// Reader is the view of a workbook the extractor consumes. Cell returns one
// of nil, int64, float64, string, bool or time.Time.
type Reader interface {
	SheetNames() []string
	Cell(sheet, ref string) (any, error)
}

// AllowedExtensions lists the workbook formats Open accepts.
var AllowedExtensions = []string{".xlsm", ".xlsx"}

// Workbook is an opened spreadsheet file. It is not safe for concurrent use.
type Workbook struct {
	path     string
	f        *excelize.File
	sheets   []string
	index    map[string]struct{}
	date1904 bool
}

// Open opens the workbook at path. Any failure is reported as an
// *InvalidTemplateError.
func Open(path string) (*Workbook, error) {
	if !HasAllowedExtension(path) {
		return nil, &InvalidTemplateError{Path: path, Err: eris.Errorf("unsupported extension %q", filepath.Ext(path))}
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &InvalidTemplateError{Path: path, Err: eris.Wrap(err, "workbook: open file")}
	}

	wb := &Workbook{
		path:   path,
		f:      f,
		sheets: f.GetSheetList(),
	}
	wb.index = make(map[string]struct{}, len(wb.sheets))
	for _, s := range wb.sheets {
		wb.index[s] = struct{}{}
	}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		wb.date1904 = *props.Date1904
	}
	return wb, nil
}

// HasAllowedExtension reports whether path names an xlsx or xlsm file.
func HasAllowedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// Filename returns the base name of the workbook file.
func (w *Workbook) Filename() string {
	return filepath.Base(w.path)
}

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	out := make([]string, len(w.sheets))
	copy(out, w.sheets)
	return out
}

// Close releases the underlying file.
func (w *Workbook) Close() error {
	return eris.Wrap(w.f.Close(), "workbook: close")
}

// Cell returns the raw scalar stored at ref on sheet. Formula cells yield
// their cached result.
func (w *Workbook) Cell(sheet, ref string) (any, error) {
	if _, ok := w.index[sheet]; !ok {
		return nil, eris.Wrapf(ErrSheetNotFound, "workbook: %q", sheet)
	}

	typ, err := w.f.GetCellType(sheet, ref)
	if err != nil {
		return nil, eris.Wrapf(err, "workbook: cell type %s!%s", sheet, ref)
	}
	raw, err := w.f.GetCellValue(sheet, ref, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, eris.Wrapf(err, "workbook: cell value %s!%s", sheet, ref)
	}

	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeError:
		if raw == "" {
			return nil, nil
		}
		return raw, nil
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeDate:
		return parseISODate(raw)
	}

	// Unset and Number both carry numeric literals.
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// Not numeric after all; keep the text.
		return raw, nil
	}

	isDate, err := w.isDateCell(sheet, ref)
	if err != nil {
		return nil, err
	}
	if isDate {
		t, err := excelize.ExcelDateToTime(n, w.date1904)
		if err != nil {
			return nil, eris.Wrapf(err, "workbook: date serial %s!%s", sheet, ref)
		}
		return t, nil
	}

	if !strings.ContainsAny(raw, ".eE") {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
	}
	return n, nil
}

func (w *Workbook) isDateCell(sheet, ref string) (bool, error) {
	idx, err := w.f.GetCellStyle(sheet, ref)
	if err != nil {
		return false, eris.Wrapf(err, "workbook: cell style %s!%s", sheet, ref)
	}
	if idx == 0 {
		return false, nil
	}
	style, err := w.f.GetStyle(idx)
	if err != nil {
		return false, eris.Wrapf(err, "workbook: style %d", idx)
	}
	code := ""
	if style.CustomNumFmt != nil {
		code = *style.CustomNumFmt
	}
	return isDateFormat(style.NumFmt, code), nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseISODate(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, eris.Errorf("workbook: unparseable date cell %q", s)
}
