package workbook

import (
	"errors"
	"fmt"
)

// ErrSheetNotFound is returned when a cell is read from a sheet the workbook
// does not have.
var ErrSheetNotFound = errors.New("sheet not found")

// InvalidTemplateError reports a workbook that could not be opened: missing
// file, corrupt archive or unsupported format.
type InvalidTemplateError struct {
	Path string
	Err  error
}

func (e *InvalidTemplateError) Error() string {
	return fmt.Sprintf("invalid template %q: %v", e.Path, e.Err)
}

func (e *InvalidTemplateError) Unwrap() error {
	return e.Err
}
