// Package extract turns a populated workbook into typed return items using a
// datamap.
package extract

import (
	"context"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dbasik/dbasik/internal/model"
	"github.com/dbasik/dbasik/internal/workbook"
)

// Mode selects how cell kinds are decided.
type Mode string

const (
	// ModeInferred classifies each cell from its content.
	ModeInferred Mode = "inferred"
	// ModeDeclared trusts the datamap's declared types and applies the
	// validation policy.
	ModeDeclared Mode = "declared"
)

// ModeFor maps the use-datamap-types switch onto a Mode.
func ModeFor(useDatamapTypes bool) Mode {
	if useDatamapTypes {
		return ModeDeclared
	}
	return ModeInferred
}

// Options configures a Spreadsheet.
type Options struct {
	Mode     Mode
	ReturnID string      // owning return; passed to the sink
	Filename string      // informational, used in logs
	Logger   *zap.Logger // defaults to a no-op logger
}

// Sink receives the items of one run. Implementations must write them
// atomically.
type Sink interface {
	SaveReturnItems(ctx context.Context, returnID string, items []model.ReturnItem) error
}

// Spreadsheet is one populated workbook whose data is extracted by Process.
// Per-sheet data is available afterwards through Sheet.
type Spreadsheet struct {
	r       workbook.Reader
	closer  io.Closer
	dm      *model.Datamap
	opts    Options
	log     *zap.Logger
	sheets  []string
	data    map[string]*SheetData
	records []Record
}

// Open opens the workbook at path and checks it against dm. The returned
// Spreadsheet owns the workbook; call Close when done.
func Open(path string, dm *model.Datamap, opts Options) (*Spreadsheet, error) {
	wb, err := workbook.Open(path)
	if err != nil {
		return nil, err
	}
	if opts.Filename == "" {
		opts.Filename = wb.Filename()
	}
	s, err := New(wb, dm, opts)
	if err != nil {
		wb.Close() //nolint:errcheck
		return nil, err
	}
	s.closer = wb
	return s, nil
}

// ProcessFile opens the workbook at path, processes it into sink and closes
// it. It returns the records of the run.
func ProcessFile(ctx context.Context, path string, dm *model.Datamap, opts Options, sink Sink) ([]Record, error) {
	s, err := Open(path, dm, opts)
	if err != nil {
		return nil, err
	}
	defer s.Close() //nolint:errcheck

	if err := s.Process(ctx, sink); err != nil {
		return nil, err
	}
	return s.Records(), nil
}

// New checks that every sheet the datamap references exists in r. Sheets in
// r that the datamap does not mention are ignored.
func New(r workbook.Reader, dm *model.Datamap, opts Options) (*Spreadsheet, error) {
	if dm == nil {
		return nil, eris.New("extract: datamap is required")
	}
	if opts.Mode == "" {
		opts.Mode = ModeInferred
	}
	if opts.Mode != ModeInferred && opts.Mode != ModeDeclared {
		return nil, eris.Errorf("extract: invalid mode %q", opts.Mode)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	present := make(map[string]struct{})
	for _, name := range r.SheetNames() {
		present[name] = struct{}{}
	}
	sheets := dm.Sheets()
	for _, name := range sheets {
		if _, ok := present[name]; !ok {
			return nil, &MissingSheetError{Sheet: name}
		}
	}

	return &Spreadsheet{
		r:      r,
		dm:     dm,
		opts:   opts,
		log:    log.With(zap.String("file", opts.Filename), zap.String("mode", string(opts.Mode))),
		sheets: sheets,
		data:   make(map[string]*SheetData, len(sheets)),
	}, nil
}

// Close releases the workbook if the Spreadsheet opened it.
func (s *Spreadsheet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Sheets returns the sheet names the datamap references, sorted.
func (s *Spreadsheet) Sheets() []string {
	out := make([]string, len(s.sheets))
	copy(out, s.sheets)
	return out
}

// Sheet returns the extracted data for one sheet. It fails with
// *MissingSheetError before Process has run or for names never processed.
func (s *Spreadsheet) Sheet(name string) (*SheetData, error) {
	sd, ok := s.data[name]
	if !ok {
		return nil, &MissingSheetError{Sheet: name}
	}
	return sd, nil
}

// Records returns the records emitted by the last successful Process.
func (s *Spreadsheet) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Process extracts every sheet, builds one record per datamap line and hands
// the whole run to sink. Nothing reaches the sink unless every cell passed
// validation. A nil sink only extracts and validates.
func (s *Spreadsheet) Process(ctx context.Context, sink Sink) error {
	data := make(map[string]*SheetData, len(s.sheets))
	var records []Record

	for _, name := range s.sheets {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "extract: process cancelled")
		}
		sd, err := extractSheet(s.r, s.dm, name, s.opts.Mode, s.log)
		if err != nil {
			return err
		}
		data[name] = sd

		for _, key := range sd.keys {
			rec, err := s.record(sd, key)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		s.log.Debug("processed sheet", zap.String("sheet", name), zap.Int("cells", sd.Len()))
	}

	s.data = data
	s.records = records

	if sink == nil {
		return nil
	}
	items := make([]model.ReturnItem, len(records))
	for i, rec := range records {
		items[i] = rec.ReturnItem(s.opts.ReturnID)
	}
	if err := sink.SaveReturnItems(ctx, s.opts.ReturnID, items); err != nil {
		return eris.Wrap(err, "extract: save return items")
	}
	s.log.Info("spreadsheet processed",
		zap.String("return_id", s.opts.ReturnID),
		zap.Int("items", len(items)),
	)
	return nil
}

func (s *Spreadsheet) record(sd *SheetData, key string) (Record, error) {
	cell := sd.cells[key]
	line := sd.lines[key]
	slot := SlotFor(cell.Kind)
	value := cell.Value

	s.log.Debug("processing cell",
		zap.String("key", key),
		zap.String("sheet", sd.Title),
		zap.String("slot", string(slot)),
	)

	if s.opts.Mode == ModeDeclared {
		v, err := Validate(slot, value)
		if err != nil {
			return Record{}, withCell(err, line)
		}
		value = v
	}

	typed, err := newSlot(slot, value)
	if err != nil {
		if !errors.Is(err, ErrTypeMismatch) {
			return Record{}, err
		}
		return Record{}, &ValidationError{
			Key:     key,
			Sheet:   sd.Title,
			CellRef: line.CellRef,
			Slot:    slot,
			Value:   value,
			Err:     err,
		}
	}

	return Record{
		DatamapLineID: line.ID,
		Key:           key,
		Sheet:         sd.Title,
		CellRef:       line.CellRef,
		Slot:          typed,
	}, nil
}
