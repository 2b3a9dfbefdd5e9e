package observation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// IDField is the one field every record must carry. Its value is the station
// id the aggregation server keys on.
const IDField = "id"

// ErrNotObject is returned by Decode when the body is valid JSON but not a
// single JSON object.
var ErrNotObject = errors.New("observation: body is not a JSON object")

// Record is one station's weather observation. Values are strings or numbers
// (decoded as json.Number so numeric text is preserved exactly).
type Record map[string]any

// ID returns the station id, or "" when the field is missing or empty.
func (r Record) ID() string {
	switch v := r[IDField].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Decode parses data as a single JSON object into a Record. Numbers are kept
// as json.Number. Trailing content after the object is an error.
func Decode(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("observation: decode: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("observation: trailing data after JSON object")
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Record(obj), nil
}

// DecodeList parses data as either a JSON array of objects or a single
// object, returning the records in order.
func DecodeList(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("observation: decode list: %w", err)
	}

	switch v := raw.(type) {
	case []any:
		out := make([]Record, 0, len(v))
		for _, el := range v {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, ErrNotObject
			}
			out = append(out, Record(obj))
		}
		return out, nil
	case map[string]any:
		return []Record{Record(v)}, nil
	default:
		return nil, ErrNotObject
	}
}

// Encode serializes the record as a JSON object. Keys are emitted in sorted
// order, so a record always encodes to the same bytes.
func (r Record) Encode() ([]byte, error) {
	b, err := json.Marshal(map[string]any(r))
	if err != nil {
		return nil, fmt.Errorf("observation: encode: %w", err)
	}
	return b, nil
}

// Keys returns the record's field names in sorted order, with "id" first.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		if k != IDField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := r[IDField]; ok {
		keys = append([]string{IDField}, keys...)
	}
	return keys
}

// Equal reports whether two records carry the same fields with equal values.
// Numeric values compare numerically, so "15" and "15.0" are equal; all other
// values compare as strings.
func Equal(a, b Record) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !valueEqual(av, bv) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
