package extract

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoercePhone(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      any
		want    any
		invalid bool
	}{
		{"integer", int64(7678877654), "7678877654", false},
		{"int", 12345, "12345", false},
		{"text keeps leading zero", " 07678 877654 ", "07678 877654", false},
		{"whole float", 7678877654.0, "7678877654", false},
		{"empty", nil, nil, false},
		{"fractional float", 76.5, nil, true},
		{"date", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), nil, true},
		{"bool", true, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CoercePhone(tt.in)
			if tt.invalid {
				var pe *PhoneValueInvalidError
				require.True(t, errors.As(err, &pe))
				assert.Equal(t, tt.in, pe.Value)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate_PassThrough(t *testing.T) {
	t.Parallel()
	for _, slot := range []SlotName{SlotStr, SlotInt, SlotFloat, SlotDate} {
		v, err := Validate(slot, "anything")
		require.NoError(t, err)
		assert.Equal(t, "anything", v)
	}
	v, err := Validate(SlotPhone, int64(1))
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestNewSlot_Conversions(t *testing.T) {
	t.Parallel()
	d := time.Date(2022, 2, 23, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		slot SlotName
		in   any
		want any
	}{
		{"int from int64", SlotInt, int64(5), int64(5)},
		{"int from whole float", SlotInt, 5.0, int64(5)},
		{"int from text", SlotInt, " 1,200 ", int64(1200)},
		{"int from bool", SlotInt, true, int64(1)},
		{"float from int", SlotFloat, int64(2), 2.0},
		{"float from text", SlotFloat, "3.25", 3.25},
		{"str from int", SlotStr, int64(1200), "1200"},
		{"str from float", SlotStr, 0.1, "0.1"},
		{"str from date", SlotStr, d, "2022-02-23"},
		{"date from date", SlotDate, d.Add(14 * time.Hour), d},
		{"date from iso text", SlotDate, "2022-02-23", d},
		{"date from uk text", SlotDate, "23/02/2022", d},
		{"phone from text", SlotPhone, "01234", "01234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := newSlot(tt.slot, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.slot, s.Name())
			assert.Equal(t, tt.want, Record{Slot: s}.ReturnItem("r").Value())
		})
	}
}

func TestNewSlot_Mismatch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		slot SlotName
		in   any
	}{
		{SlotInt, 3.5},
		{SlotInt, "abc"},
		{SlotFloat, "abc"},
		{SlotFloat, time.Now()},
		{SlotDate, "next tuesday"},
		{SlotDate, int64(44615)},
		{SlotPhone, int64(1)},
	}
	for _, tt := range tests {
		_, err := newSlot(tt.slot, tt.in)
		assert.True(t, errors.Is(err, ErrTypeMismatch), "%s %v", tt.slot, tt.in)
	}
}

func TestNewSlot_NilIsEmptySlot(t *testing.T) {
	t.Parallel()
	for _, name := range []SlotName{SlotStr, SlotInt, SlotFloat, SlotDate, SlotPhone} {
		s, err := newSlot(name, nil)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
		assert.Nil(t, Record{Slot: s}.ReturnItem("r").Value())
	}
}

func TestRecord_ReturnItemSetsOneSlot(t *testing.T) {
	t.Parallel()
	v := int64(42)
	ri := Record{
		DatamapLineID: "dml-1",
		Key:           "Total Cost",
		Sheet:         "Test Sheet 1",
		CellRef:       "B2",
		Slot:          IntSlot{V: &v},
	}.ReturnItem("ret-1")

	assert.Equal(t, "ret-1", ri.ReturnID)
	assert.Equal(t, "dml-1", ri.DatamapLineID)
	require.NotNil(t, ri.ValueInt)
	assert.Equal(t, int64(42), *ri.ValueInt)
	assert.Nil(t, ri.ValueStr)
	assert.Nil(t, ri.ValueFloat)
	assert.Nil(t, ri.ValueDate)
	assert.Nil(t, ri.ValuePhone)
}
