// Package responseformat writes HTTP responses as JSON or MessagePack.
package responseformat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Format is a response encoding.
type Format int

const (
	JSON Format = iota
	MsgPack
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgPack = "application/x-msgpack"
)

// Negotiate picks the response format. `?format=msgpack` wins; otherwise an
// Accept header naming msgpack selects it. JSON is the default.
func Negotiate(req *http.Request) Format {
	switch strings.ToLower(req.URL.Query().Get("format")) {
	case "msgpack":
		return MsgPack
	case "json":
		return JSON
	}
	accept := req.Header.Get("Accept")
	if strings.Contains(accept, "msgpack") {
		return MsgPack
	}
	return JSON
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == MsgPack {
		return contentTypeMsgPack
	}
	return contentTypeJSON
}

// Write encodes data in the negotiated format with the given status. The body
// is encoded before any header is written so encoding failures can still
// become a 500.
func Write(w http.ResponseWriter, req *http.Request, status int, data any) error {
	format := Negotiate(req)

	body, err := Encode(format, data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// Encode serialises data. MessagePack output is built from the JSON form so
// custom MarshalJSON methods and json tags shape both encodings alike.
func Encode(format Format, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	if format == JSON {
		return append(raw, '\n'), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetSortMapKeys(true)
	if err := enc.Encode(fromJSONNumbers(generic)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fromJSONNumbers turns json.Number leaves into int64 or float64 so msgpack
// does not encode them as strings.
func fromJSONNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, val := range t {
			t[k] = fromJSONNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = fromJSONNumbers(val)
		}
		return t
	}
	return v
}
