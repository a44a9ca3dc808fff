package workbook

import (
	"github.com/rotisserie/eris"
)

// Memory is an in-memory Reader. Sheets are kept in insertion order.
type Memory struct {
	order []string
	cells map[string]map[string]any
}

// NewMemory returns an empty in-memory workbook.
func NewMemory() *Memory {
	return &Memory{cells: make(map[string]map[string]any)}
}

// AddSheet adds an empty sheet if it does not exist yet.
func (m *Memory) AddSheet(name string) *Memory {
	if _, ok := m.cells[name]; !ok {
		m.order = append(m.order, name)
		m.cells[name] = make(map[string]any)
	}
	return m
}

// Set stores a raw value, creating the sheet on first use.
func (m *Memory) Set(sheet, ref string, v any) *Memory {
	m.AddSheet(sheet)
	m.cells[sheet][ref] = v
	return m
}

// SheetNames implements Reader.
func (m *Memory) SheetNames() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Cell implements Reader. Unset cells are nil.
func (m *Memory) Cell(sheet, ref string) (any, error) {
	s, ok := m.cells[sheet]
	if !ok {
		return nil, eris.Wrapf(ErrSheetNotFound, "workbook: %q", sheet)
	}
	return s[ref], nil
}
