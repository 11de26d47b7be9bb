package toolcall

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Serialized is the string form of a tool result payload. OK is false when
// the value could not be encoded and Value holds a placeholder for it.
type Serialized struct {
	Value string
	OK    bool
}

// Serialize encodes v as JSON. HTML characters are not escaped so the model
// sees the payload as the tool produced it.
func Serialize(v any) Serialized {
	data, err := marshalJSON(v)
	if err != nil {
		return Serialized{Value: fallbackText(v), OK: false}
	}
	return Serialized{Value: string(data), OK: true}
}

// SerializeCompact encodes v with the compact encoding. Values that cannot be
// represented as JSON fall back like Serialize.
func SerializeCompact(v any) Serialized {
	encoded, err := EncodeCompact(v)
	if err != nil {
		return Serialized{Value: fallbackText(v), OK: false}
	}
	return Serialized{Value: encoded, OK: true}
}

func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// fallbackText describes a value that failed to encode. Composite values are
// only named by type: they may be cyclic and fmt would recurse without bound.
func fallbackText(v any) string {
	if v == nil {
		return "null"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer, reflect.Interface:
		return fmt.Sprintf("[%T]", v)
	default:
		return fmt.Sprint(v)
	}
}
