package extract

import (
	"time"

	"github.com/dbasik/dbasik/internal/model"
)

// Kind classifies an extracted value.
type Kind int

const (
	KindInteger Kind = iota + 1
	KindText
	KindDate
	KindFloat
	KindUnknown
	KindPhone
)

var kindNames = map[Kind]string{
	KindInteger: "integer",
	KindText:    "text",
	KindDate:    "date",
	KindFloat:   "float",
	KindUnknown: "unknown",
	KindPhone:   "phone",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "invalid"
}

// ClassifyDeclared maps a datamap line's declared type onto a Kind. Case is
// ignored; absent or unrecognised types are Text.
func ClassifyDeclared(dt model.DataType) Kind {
	if parsed, err := model.ParseDataType(string(dt)); err == nil {
		dt = parsed
	}
	switch dt {
	case model.DataTypeInteger:
		return KindInteger
	case model.DataTypeFloat:
		return KindFloat
	case model.DataTypeDate:
		return KindDate
	case model.DataTypePhone:
		return KindPhone
	default:
		return KindText
	}
}

// ClassifyObserved inspects a raw cell value. Integral numbers (booleans
// included) come first, then text, floats and dates. Unsigned values too
// large for an int64 are Float. Anything else, nil included, is
// ErrUnclassifiable.
func ClassifyObserved(raw any) (Kind, error) {
	if _, ok := asInt64(raw); ok {
		return KindInteger, nil
	}
	switch raw.(type) {
	case bool:
		return KindInteger, nil
	case uint, uint64:
		return KindFloat, nil
	case string:
		return KindText, nil
	case float32, float64:
		return KindFloat, nil
	case time.Time:
		return KindDate, nil
	default:
		return KindUnknown, ErrUnclassifiable
	}
}
