package session

import (
	"bytes"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical serializes a Value to canonical JSON. This is the
// only serialization used for record IDs and golden traces; two equal
// values always produce identical bytes.
//
// The profile follows RFC 8785:
//   - object keys sorted by UTF-16 code units
//   - strings NFC-normalized, minimally escaped (no HTML escaping,
//     U+2028/U+2029 stay literal)
//   - integers in plain decimal
//   - no floats, no nulls (unrepresentable in the Value type set)
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustMarshalCanonical is MarshalCanonical panicking on error.
// Only for tests and values known to be well-formed.
func MustMarshalCanonical(v Value) []byte {
	data, err := MarshalCanonical(v)
	if err != nil {
		panic(err)
	}
	return data
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case StringValue:
		writeCanonicalString(buf, string(val))
		return nil

	case IntValue:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil

	case BoolValue:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil

	case ArrayValue:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if elem == nil {
				return fmt.Errorf("canonical JSON: nil element at index %d", i)
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	case ObjectValue:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if val[k] == nil {
				return fmt.Errorf("canonical JSON: nil value for key %q", k)
			}
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case nil:
		return fmt.Errorf("canonical JSON: nil value")

	default:
		return fmt.Errorf("canonical JSON: unsupported type %T", v)
	}
}

// writeCanonicalString writes an NFC-normalized, minimally escaped JSON
// string. Escaped: quote, backslash, and control characters below
// U+0020 (with the RFC 8785 two-character forms where they exist).
// Everything else, including <, >, &, U+2028 and U+2029, is written
// literally.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)

	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
