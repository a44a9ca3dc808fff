package extract

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dbasik/dbasik/internal/model"
)

// SlotName names one typed column of a return item.
type SlotName string

const (
	SlotStr   SlotName = "value_str"
	SlotInt   SlotName = "value_int"
	SlotFloat SlotName = "value_float"
	SlotDate  SlotName = "value_date"
	SlotPhone SlotName = "value_phone"
)

// SlotFor returns the slot a kind is stored in. Unknown values go to
// value_str.
func SlotFor(k Kind) SlotName {
	switch k {
	case KindInteger:
		return SlotInt
	case KindFloat:
		return SlotFloat
	case KindDate:
		return SlotDate
	case KindPhone:
		return SlotPhone
	default:
		return SlotStr
	}
}

// Slot is a typed value bound to exactly one slot. A nil pointer means the
// cell was empty.
type Slot interface {
	Name() SlotName
	isSlot()
}

type (
	StrSlot   struct{ V *string }
	IntSlot   struct{ V *int64 }
	FloatSlot struct{ V *float64 }
	DateSlot  struct{ V *time.Time }
	PhoneSlot struct{ V *string }
)

func (StrSlot) Name() SlotName   { return SlotStr }
func (IntSlot) Name() SlotName   { return SlotInt }
func (FloatSlot) Name() SlotName { return SlotFloat }
func (DateSlot) Name() SlotName  { return SlotDate }
func (PhoneSlot) Name() SlotName { return SlotPhone }

func (StrSlot) isSlot()   {}
func (IntSlot) isSlot()   {}
func (FloatSlot) isSlot() {}
func (DateSlot) isSlot()  {}
func (PhoneSlot) isSlot() {}

// newSlot converts v into the Go type of slot. Lossless conversions are
// applied; anything else is ErrTypeMismatch.
func newSlot(name SlotName, v any) (Slot, error) {
	if v == nil {
		return emptySlot(name), nil
	}
	switch name {
	case SlotInt:
		i, err := toInt(v)
		if err != nil {
			return nil, err
		}
		return IntSlot{V: &i}, nil
	case SlotFloat:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return FloatSlot{V: &f}, nil
	case SlotDate:
		d, err := toDate(v)
		if err != nil {
			return nil, err
		}
		return DateSlot{V: &d}, nil
	case SlotPhone:
		s, ok := v.(string)
		if !ok {
			return nil, ErrTypeMismatch
		}
		return PhoneSlot{V: &s}, nil
	default:
		s := toText(v)
		return StrSlot{V: &s}, nil
	}
}

func emptySlot(name SlotName) Slot {
	switch name {
	case SlotInt:
		return IntSlot{}
	case SlotFloat:
		return FloatSlot{}
	case SlotDate:
		return DateSlot{}
	case SlotPhone:
		return PhoneSlot{}
	default:
		return StrSlot{}
	}
}

// asInt64 converts any Go integer type to int64. Unsigned values above
// math.MaxInt64 do not fit.
func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return asInt64(uint64(x))
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

func toInt(v any) (int64, error) {
	if i, ok := asInt64(v); ok {
		return i, nil
	}
	switch x := v.(type) {
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case float32:
		return toInt(float64(x))
	case float64:
		if math.Trunc(x) != x || math.IsInf(x, 0) || math.Abs(x) >= math.MaxInt64 {
			return 0, ErrTypeMismatch
		}
		return int64(x), nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return toInt(f)
		}
	}
	return 0, ErrTypeMismatch
}

func toFloat(v any) (float64, error) {
	if i, ok := asInt64(v); ok {
		return float64(i), nil
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
	}
	return 0, ErrTypeMismatch
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006"}

func toDate(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return truncateDate(x), nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, ErrTypeMismatch
}

func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprint(x)
	}
}

// truncateDate drops the time of day.
func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Record is one extracted value ready for persistence.
type Record struct {
	DatamapLineID string
	Key           string
	Sheet         string
	CellRef       string
	Slot          Slot
}

// ReturnItem widens the record into the flat row the store persists: every
// slot other than the record's own is nil.
func (r Record) ReturnItem(returnID string) model.ReturnItem {
	ri := model.ReturnItem{
		ReturnID:      returnID,
		DatamapLineID: r.DatamapLineID,
		Key:           r.Key,
		Sheet:         r.Sheet,
		CellRef:       r.CellRef,
	}
	switch s := r.Slot.(type) {
	case StrSlot:
		ri.ValueStr = s.V
	case IntSlot:
		ri.ValueInt = s.V
	case FloatSlot:
		ri.ValueFloat = s.V
	case DateSlot:
		ri.ValueDate = s.V
	case PhoneSlot:
		ri.ValuePhone = s.V
	}
	return ri
}
