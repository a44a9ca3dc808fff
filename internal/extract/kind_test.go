package extract

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dbasik/dbasik/internal/model"
)

func TestClassifyDeclared(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   model.DataType
		want Kind
	}{
		{model.DataTypeText, KindText},
		{model.DataTypeInteger, KindInteger},
		{model.DataTypeFloat, KindFloat},
		{model.DataTypeDate, KindDate},
		{model.DataTypePhone, KindPhone},
		{model.DataTypeNone, KindText},
		{"Currency", KindText},
		{"integer", KindInteger},
		{"PHONE", KindPhone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyDeclared(tt.in), "%q", tt.in)
	}
}

func TestClassifyObserved(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   any
		want Kind
		err  error
	}{
		{"int64", int64(12), KindInteger, nil},
		{"int", 3, KindInteger, nil},
		{"bool is integral", true, KindInteger, nil},
		{"int16", int16(5), KindInteger, nil},
		{"uint32", uint32(7), KindInteger, nil},
		{"huge uint64", uint64(math.MaxUint64), KindFloat, nil},
		{"float32", float32(2.5), KindFloat, nil},
		{"string", "Testable Project", KindText, nil},
		{"empty string", "", KindText, nil},
		{"float", 1.5, KindFloat, nil},
		{"date", time.Date(2022, 2, 23, 0, 0, 0, 0, time.UTC), KindDate, nil},
		{"nil", nil, KindUnknown, ErrUnclassifiable},
		{"bytes", []byte("x"), KindUnknown, ErrUnclassifiable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ClassifyObserved(tt.in)
			assert.Equal(t, tt.want, got)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "phone", KindPhone.String())
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.Equal(t, "invalid", Kind(0).String())
}

func TestSlotFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, SlotInt, SlotFor(KindInteger))
	assert.Equal(t, SlotStr, SlotFor(KindText))
	assert.Equal(t, SlotFloat, SlotFor(KindFloat))
	assert.Equal(t, SlotDate, SlotFor(KindDate))
	assert.Equal(t, SlotPhone, SlotFor(KindPhone))
	assert.Equal(t, SlotStr, SlotFor(KindUnknown))
}
