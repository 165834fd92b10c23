package observation

import (
	"errors"
	"strconv"
)

var (
	ErrUnsupportedAPIVersion = errors.New("unsupported API version")
	ErrMalformedPayload      = errors.New("malformed payload")
)

// record is a decoded JSON object whose lookups never fail: missing keys and
// values of the wrong type are reported as absent.
type record map[string]any

func asRecord(raw any) (record, bool) {
	m, ok := raw.(map[string]any)
	return record(m), ok
}

// object returns a nested object.
func (r record) object(key string) (record, bool) {
	return asRecord(r[key])
}

// firstData returns data[0], the one current reading the vendor sends per sensor.
func (r record) firstData() (record, bool) {
	arr, ok := r["data"].([]any)
	if !ok || len(arr) == 0 {
		return nil, false
	}
	return asRecord(arr[0])
}

// int returns an integral, non-null value.
func (r record) int(key string) (int, bool) {
	raw, ok := r[key]
	if !ok || raw == nil {
		return 0, false
	}
	i, ok := toInt(raw)
	return int(i), ok
}

// take copies key into dst as field f, coerced to f's shape. Absent keys and
// uncoercible values leave dst untouched; JSON null is kept as Null.
func (r record) take(dst Fields, f Field, key string) {
	raw, ok := r[key]
	if !ok {
		return
	}
	if v, ok := coerce(raw, f.Shape()); ok {
		dst[f] = v
	}
}

// takeZeroNull is take with null mapped to 0.0. Used for rain-storm totals,
// which the vendor reports as null between storms.
func (r record) takeZeroNull(dst Fields, f Field, key string) {
	raw, ok := r[key]
	if !ok {
		return
	}
	if raw == nil {
		dst[f] = Float(0)
		return
	}
	r.take(dst, f, key)
}

// takeScaled is take with numeric values divided by div.
func (r record) takeScaled(dst Fields, f Field, key string, div float64) {
	raw, ok := r[key]
	if !ok {
		return
	}
	if raw == nil {
		dst[f] = Null()
		return
	}
	v, ok := toFloat(raw)
	if !ok {
		return
	}
	dst[f] = Float(v / div)
}

// takeChannels copies key_1..key_n into the fields returned by ch.
func (r record) takeChannels(dst Fields, ch func(int) (Field, bool), prefix string, n int) {
	for i := 1; i <= n; i++ {
		f, ok := ch(i)
		if !ok {
			continue
		}
		r.take(dst, f, prefix+"_"+strconv.Itoa(i))
	}
}
