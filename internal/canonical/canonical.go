// Package canonical produces a deterministic byte encoding for
// JSON-representable values. Two structurally equal documents always
// encode to identical bytes regardless of key insertion order, which is
// what makes plan digests reproducible across independent computations.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal encodes value as compact JSON with lexicographically sorted map
// keys and no inserted whitespace. Values that have no JSON representation
// (functions, channels, NaN, infinities) are rejected with an error rather
// than silently omitted.
func Marshal(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		return writeString(buf, v)
	case json.Number:
		literal := v.String()
		if !json.Valid([]byte(literal)) {
			return fmt.Errorf("canonical: invalid number literal %q", literal)
		}
		buf.WriteString(literal)
	case []any:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, v[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		// Structs, typed slices, typed maps, and plain numeric types take
		// a round trip through encoding/json so their json tags and number
		// literals are honored, then re-encode generically.
		generic, err := roundTrip(v)
		if err != nil {
			return err
		}
		return encode(buf, generic)
	}
	return nil
}

// roundTrip converts an arbitrary Go value into the generic JSON shape
// (maps, slices, json.Number, string, bool, nil) that encode understands.
func roundTrip(value any) (any, error) {
	raw, err := jsonMarshalNoEscape(value)
	if err != nil {
		return nil, fmt.Errorf("canonical: value is not JSON-representable: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var generic any
	if err := decoder.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical: decode intermediate form: %w", err)
	}
	switch generic.(type) {
	case map[string]any, []any, string, bool, nil, json.Number:
		return generic, nil
	default:
		return nil, fmt.Errorf("canonical: unsupported intermediate type %T", generic)
	}
}

func writeString(buf *bytes.Buffer, s string) error {
	encoded, err := jsonMarshalNoEscape(s)
	if err != nil {
		return fmt.Errorf("canonical: encode string: %w", err)
	}
	buf.Write(encoded)
	return nil
}

// jsonMarshalNoEscape marshals without HTML escaping so '<', '>' and '&'
// appear verbatim, matching the plain JSON literal encoding the digest
// contract is defined over.
func jsonMarshalNoEscape(value any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
