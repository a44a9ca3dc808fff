package extract

import (
	"math"
	"strconv"
	"strings"
)

// Validate applies the declared-type policy to the value chosen for slot.
// Phone values must have a text form; every other slot passes through
// unchanged.
func Validate(slot SlotName, value any) (any, error) {
	if slot == SlotPhone {
		return CoercePhone(value)
	}
	return value, nil
}

// CoercePhone returns the text form of a phone number. Text is kept (trimmed)
// and whole numbers are rendered in decimal, so numbers entered without
// leading zeros still come out as text. nil stays nil.
func CoercePhone(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.TrimSpace(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		if math.Trunc(v) == v && !math.IsInf(v, 0) && math.Abs(v) < 1e15 {
			return strconv.FormatFloat(v, 'f', 0, 64), nil
		}
	}
	return nil, &PhoneValueInvalidError{Value: value}
}
