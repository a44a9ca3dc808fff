package extract

import (
	"errors"
	"fmt"

	"github.com/dbasik/dbasik/internal/workbook"
)

var (
	// ErrUnclassifiable is returned by ClassifyObserved for values outside the
	// known kinds. Inferred extraction turns it into KindUnknown.
	ErrUnclassifiable = errors.New("cannot detect applicable type")

	// ErrTypeMismatch means a value cannot be converted into the slot its
	// kind selects without losing information.
	ErrTypeMismatch = errors.New("value does not fit slot type")
)

// MissingSheetError names a sheet the datamap needs but the spreadsheet
// lacks, or a sheet that has not been processed.
type MissingSheetError struct {
	Sheet string
}

func (e *MissingSheetError) Error() string {
	return fmt.Sprintf("there is no sheet in the spreadsheet with title %q", e.Sheet)
}

// PhoneValueInvalidError reports a value declared Phone that has no text
// representation.
type PhoneValueInvalidError struct {
	Key     string
	Sheet   string
	CellRef string
	Value   any
}

func (e *PhoneValueInvalidError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%v (%T) cannot be stored as a phone number", e.Value, e.Value)
	}
	return fmt.Sprintf("%s (%s!%s): %v (%T) cannot be stored as a phone number",
		e.Key, e.Sheet, e.CellRef, e.Value, e.Value)
}

// ValidationError reports a cell whose value failed the coercion policy.
type ValidationError struct {
	Key     string
	Sheet   string
	CellRef string
	Slot    SlotName
	Value   any
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s (%s!%s): %v (%T) rejected for %s: %v",
		e.Key, e.Sheet, e.CellRef, e.Value, e.Value, e.Slot, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsTemplateError reports whether err comes from the uploaded workbook rather
// than from the system processing it.
func IsTemplateError(err error) bool {
	var (
		ms *MissingSheetError
		pe *PhoneValueInvalidError
		ve *ValidationError
		it *workbook.InvalidTemplateError
	)
	return errors.As(err, &ms) || errors.As(err, &pe) || errors.As(err, &ve) || errors.As(err, &it)
}
