package observation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldTableIsComplete(t *testing.T) {
	seen := make(map[string]Field)
	for _, f := range AllFields() {
		key := f.String()
		require.NotEmpty(t, fieldTable[f].key, "field %d has no key", int(f))
		if prev, dup := seen[key]; dup {
			t.Fatalf("fields %d and %d share key %s", int(prev), int(f), key)
		}
		seen[key] = f

		parsed, ok := ParseField(key)
		require.True(t, ok)
		assert.Equal(t, f, parsed)
	}
	assert.Len(t, seen, int(fieldCount)-1)
}

func TestFieldOutOfRange(t *testing.T) {
	assert.Equal(t, "Field(0)", FieldUnknown.String())
	assert.Equal(t, "Field(9999)", Field(9999).String())
	assert.False(t, Field(9999).Valid())
	assert.Equal(t, ShapeAny, Field(-1).Shape())

	_, err := FieldUnknown.MarshalText()
	assert.Error(t, err)
}

func TestChannelHelpers(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(int) (Field, bool)
		n      int
		want   Field
		wantOK bool
	}{
		{"first extra temp", TempExtra, 1, TempExtra1, true},
		{"last extra temp", TempExtra, 7, TempExtra7, true},
		{"extra temp overflow", TempExtra, 8, FieldUnknown, false},
		{"soil station temp", TempChannel, 4, Temp4, true},
		{"soil moisture zero", MoistSoil, 0, FieldUnknown, false},
		{"leaf wetness", WetLeaf, 2, WetLeaf2, true},
		{"leaf temp", TempLeaf, 3, TempLeaf3, true},
		{"soil temp", TempSoil, 1, TempSoil1, true},
		{"extra hum", HumExtra, 7, HumExtra7, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.fn(tt.n)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name   string
		raw    any
		shape  Shape
		want   Value
		wantOK bool
	}{
		{"null", nil, ShapeFloat, Null(), true},
		{"numeric string to float", "29.812", ShapeFloat, Float(29.812), true},
		{"text to float", "n/a", ShapeFloat, Value{}, false},
		{"integral float to int", float64(1700000000), ShapeInt, Int(1700000000), true},
		{"fractional to int", 1.5, ShapeInt, Value{}, false},
		{"bool flag", true, ShapeInt, Int(1), true},
		{"number to string", float64(3), ShapeString, Value{}, false},
		{"any keeps text", "Steady", ShapeAny, String("Steady"), true},
		{"any turns numbers into floats", int64(3), ShapeAny, Float(3), true},
		{"object is never a value", map[string]any{}, ShapeAny, Value{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := coerce(tt.raw, tt.shape)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestValueAccessors(t *testing.T) {
	v := Float(2.0)
	i, ok := v.Int64()
	assert.True(t, ok)
	assert.EqualValues(t, 2, i)

	_, ok = Float(2.5).Int64()
	assert.False(t, ok)

	_, ok = String("x").Float64()
	assert.False(t, ok)
	assert.Equal(t, "null", Null().String())
	assert.Equal(t, "0.06", Float(0.06).String())
	assert.Nil(t, Null().Interface())
}
