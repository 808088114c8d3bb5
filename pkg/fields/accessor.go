// Package fields provides total accessors over decoded JSON documents.
//
// Every accessor maps missing, null and empty-string values to the empty
// string sentinel and never panics, whatever shape the input has. The
// reporting API drifts between versions, so projections read every leaf
// through this package instead of through typed structs.
package fields

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Object is a decoded JSON object.
type Object = map[string]any

// Lookup walks root through the given keys and returns the value found.
// It reports false when an intermediate value is not an object or a key
// is absent. A present null is returned as (nil, true).
func Lookup(root any, path ...string) (any, bool) {
	cur := root
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Get returns the value at path rendered as a string, or "" when the
// value is missing, null or the empty string.
func Get(root any, path ...string) string {
	v, ok := Lookup(root, path...)
	if !ok {
		return ""
	}
	return String(v)
}

// String renders a decoded JSON value.
//
// Strings are returned verbatim, json.Number keeps its literal text,
// floats use the shortest decimal form and booleans render as true/false.
// Objects and arrays become compact JSON.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return marshalCompact(t)
	}
}

// Compact returns raw as compact JSON text with key order preserved.
// Null, "", [] and {} are treated as empty, as is malformed input.
func Compact(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", `""`, "[]", "{}":
		return ""
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return ""
	}
	switch buf.String() {
	case "[]", "{}":
		return ""
	}
	return buf.String()
}

func marshalCompact(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
