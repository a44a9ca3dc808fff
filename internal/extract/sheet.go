package extract

import (
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dbasik/dbasik/internal/model"
	"github.com/dbasik/dbasik/internal/workbook"
)

// TypedCell is one cell read through a datamap line, with its kind.
type TypedCell struct {
	Key        string
	Sheet      string
	Value      any
	SourceCell string
	Kind       Kind
}

// SheetData holds the typed cells of one sheet keyed by datamap key.
type SheetData struct {
	Title string
	keys  []string
	cells map[string]TypedCell
	lines map[string]model.DatamapLine
}

// Get returns the cell extracted for key.
func (s *SheetData) Get(key string) (TypedCell, bool) {
	c, ok := s.cells[key]
	return c, ok
}

// Keys returns the keys in datamap order.
func (s *SheetData) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of cells.
func (s *SheetData) Len() int { return len(s.keys) }

// ExtractSheet reads every datamap line of sheet from r.
func ExtractSheet(r workbook.Reader, dm *model.Datamap, sheet string, mode Mode) (*SheetData, error) {
	return extractSheet(r, dm, sheet, mode, zap.NewNop())
}

func extractSheet(r workbook.Reader, dm *model.Datamap, sheet string, mode Mode, log *zap.Logger) (*SheetData, error) {
	lines := dm.LinesForSheet(sheet)
	sd := &SheetData{
		Title: sheet,
		keys:  make([]string, 0, len(lines)),
		cells: make(map[string]TypedCell, len(lines)),
		lines: make(map[string]model.DatamapLine, len(lines)),
	}

	for _, line := range lines {
		raw, err := r.Cell(sheet, line.CellRef)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: read %s!%s", sheet, line.CellRef)
		}
		if t, ok := raw.(time.Time); ok {
			raw = truncateDate(t)
		}

		cell := TypedCell{
			Key:        line.Key,
			Sheet:      sheet,
			Value:      raw,
			SourceCell: line.CellRef,
		}

		if mode == ModeDeclared {
			cell.Kind = ClassifyDeclared(line.DataType)
			if cell.Kind == KindPhone {
				v, err := CoercePhone(raw)
				if err != nil {
					return nil, withCell(err, line)
				}
				cell.Value = v
			}
		} else {
			kind, err := ClassifyObserved(raw)
			if errors.Is(err, ErrUnclassifiable) {
				log.Debug("unclassifiable cell value",
					zap.String("key", line.Key),
					zap.String("sheet", sheet),
					zap.String("cell", line.CellRef),
				)
				kind = KindUnknown
			}
			cell.Kind = kind
		}

		if _, dup := sd.cells[line.Key]; !dup {
			sd.keys = append(sd.keys, line.Key)
		}
		sd.cells[line.Key] = cell
		sd.lines[line.Key] = line
	}

	return sd, nil
}

// withCell fills in the location of a policy error.
func withCell(err error, line model.DatamapLine) error {
	var pe *PhoneValueInvalidError
	if errors.As(err, &pe) {
		pe.Key, pe.Sheet, pe.CellRef = line.Key, line.Sheet, line.CellRef
	}
	return err
}
