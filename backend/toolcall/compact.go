package toolcall

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const compactIndent = "  "

var (
	compactKeyPattern     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
	compactNumericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][+-]?\d+)?$`)
)

// EncodeCompact renders v in a line-oriented encoding that spends fewer
// tokens than JSON:
//
//	name: Ada
//	tags[2]: admin,ops
//	users[2]{id,name}:
//	  1,Ada
//	  2,Bob
//	items[2]:
//	  - id: 1
//	    note: first
//	  - 7
//
// Field order follows the JSON encoding of v. Strings are quoted only when
// they would otherwise be ambiguous.
func EncodeCompact(v any) (string, error) {
	data, err := marshalJSON(v)
	if err != nil {
		return "", err
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	value, err := decodeOrdered(decoder)
	if err != nil {
		return "", fmt.Errorf("failed to decode value: %w", err)
	}

	e := &compactEncoder{}
	switch value := value.(type) {
	case compactObject:
		e.writeFields(value, 0)
	case []any:
		e.writeArray("", value, 0)
	default:
		e.buf.WriteString(compactPrimitive(value))
	}

	return strings.TrimSuffix(e.buf.String(), "\n"), nil
}

type compactField struct {
	key   string
	value any
}

type compactObject []compactField

func decodeOrdered(decoder *json.Decoder) (any, error) {
	token, err := decoder.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := token.(json.Delim)
	if !ok {
		return token, nil
	}

	switch delim {
	case '{':
		object := compactObject{}
		for decoder.More() {
			keyToken, err := decoder.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyToken.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyToken)
			}
			value, err := decodeOrdered(decoder)
			if err != nil {
				return nil, err
			}
			object = append(object, compactField{key: key, value: value})
		}
		if _, err := decoder.Token(); err != nil {
			return nil, err
		}
		return object, nil
	case '[':
		array := []any{}
		for decoder.More() {
			value, err := decodeOrdered(decoder)
			if err != nil {
				return nil, err
			}
			array = append(array, value)
		}
		if _, err := decoder.Token(); err != nil {
			return nil, err
		}
		return array, nil
	}

	return nil, errors.New("unexpected closing delimiter")
}

type compactEncoder struct {
	buf bytes.Buffer
}

func (e *compactEncoder) line(depth int, text string) {
	e.buf.WriteString(strings.Repeat(compactIndent, depth))
	e.buf.WriteString(text)
	e.buf.WriteByte('\n')
}

func (e *compactEncoder) writeFields(object compactObject, depth int) {
	for _, field := range object {
		e.writeField(field, depth)
	}
}

func (e *compactEncoder) writeField(field compactField, depth int) {
	key := compactKey(field.key)
	switch value := field.value.(type) {
	case compactObject:
		e.line(depth, key+":")
		e.writeFields(value, depth+1)
	case []any:
		e.writeArray(key, value, depth)
	default:
		e.line(depth, key+": "+compactPrimitive(value))
	}
}

// writeArray picks the inline, tabular or list form for an array. key is
// empty for the root value and for arrays nested in lists.
func (e *compactEncoder) writeArray(key string, array []any, depth int) {
	header := fmt.Sprintf("%s[%d]", key, len(array))

	if len(array) == 0 {
		e.line(depth, header+":")
		return
	}

	if allPrimitive(array) {
		e.line(depth, header+": "+joinPrimitives(array))
		return
	}

	if fields, ok := tabularFields(array); ok {
		keys := make([]string, len(fields))
		for i, field := range fields {
			keys[i] = compactKey(field)
		}
		e.line(depth, fmt.Sprintf("%s{%s}:", header, strings.Join(keys, ",")))
		for _, item := range array {
			object := item.(compactObject)
			row := make([]any, len(object))
			for i, field := range object {
				row[i] = field.value
			}
			e.line(depth+1, joinPrimitives(row))
		}
		return
	}

	e.line(depth, header+":")
	for _, item := range array {
		e.writeListItem(item, depth+1)
	}
}

func (e *compactEncoder) writeListItem(item any, depth int) {
	switch value := item.(type) {
	case compactObject:
		if len(value) == 0 {
			e.line(depth, "-")
			return
		}
		// The first field shares the dash line, the rest align under it.
		first := &compactEncoder{}
		first.writeField(value[0], 0)
		lines := strings.Split(strings.TrimSuffix(first.buf.String(), "\n"), "\n")
		e.line(depth, "- "+lines[0])
		for _, rest := range lines[1:] {
			e.line(depth+1, rest)
		}
		e.writeFields(value[1:], depth+1)
	case []any:
		nested := &compactEncoder{}
		nested.writeArray("", value, 0)
		lines := strings.Split(strings.TrimSuffix(nested.buf.String(), "\n"), "\n")
		e.line(depth, "- "+lines[0])
		for _, rest := range lines[1:] {
			e.line(depth+1, rest)
		}
	default:
		e.line(depth, "- "+compactPrimitive(value))
	}
}

func allPrimitive(array []any) bool {
	for _, item := range array {
		switch item.(type) {
		case compactObject, []any:
			return false
		}
	}
	return true
}

// tabularFields returns the shared field names when every element is a non-empty
// object with the same keys in the same order and only primitive values.
func tabularFields(array []any) ([]string, bool) {
	var fields []string
	for i, item := range array {
		object, ok := item.(compactObject)
		if !ok || len(object) == 0 {
			return nil, false
		}
		if i == 0 {
			for _, field := range object {
				fields = append(fields, field.key)
			}
		} else if len(object) != len(fields) {
			return nil, false
		}
		for j, field := range object {
			if field.key != fields[j] {
				return nil, false
			}
			switch field.value.(type) {
			case compactObject, []any:
				return nil, false
			}
		}
	}
	return fields, true
}

func joinPrimitives(values []any) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = compactPrimitive(value)
	}
	return strings.Join(parts, ",")
}

func compactKey(key string) string {
	if compactKeyPattern.MatchString(key) {
		return key
	}
	return quoteCompact(key)
}

func compactPrimitive(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case string:
		if needsQuoting(v) {
			return quoteCompact(v)
		}
		return v
	}
	return fmt.Sprint(value)
}

func needsQuoting(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return true
	}

	switch s {
	case "true", "false", "null":
		return true
	}

	if compactNumericPattern.MatchString(s) {
		return true
	}

	if strings.ContainsAny(s, ",:\"\\[]{}#") || strings.HasPrefix(s, "-") {
		return true
	}

	for _, r := range s {
		if r < 0x20 {
			return true
		}
	}
	return false
}

func quoteCompact(s string) string {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
