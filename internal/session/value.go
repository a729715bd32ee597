package session

import (
	"slices"
	"unicode/utf16"
)

// Value is the sealed set of types the canonical serializer accepts.
// StringValue, IntValue, BoolValue, ArrayValue, and ObjectValue are the
// only implementations. There is deliberately no float and no null:
// both break byte-stable hashing, and nothing in a session record or
// trace needs them.
type Value interface {
	value() // sealed
}

// StringValue is a canonical string. NFC normalization happens at
// serialization time, not construction time.
type StringValue string

func (StringValue) value() {}

// IntValue is a canonical integer. Always int64.
type IntValue int64

func (IntValue) value() {}

// BoolValue is a canonical boolean.
type BoolValue bool

func (BoolValue) value() {}

// ArrayValue is an ordered sequence of canonical values.
type ArrayValue []Value

func (ArrayValue) value() {}

// ObjectValue maps string keys to canonical values. Use SortedKeys for
// deterministic iteration.
type ObjectValue map[string]Value

func (ObjectValue) value() {}

// SortedKeys returns the object's keys in RFC 8785 order: UTF-16 code
// units, not UTF-8 bytes. Go's sort.Strings compares UTF-8 and gives a
// different order for strings containing supplementary-plane runes.
func (obj ObjectValue) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// compareUTF16 orders strings by UTF-16 code units per RFC 8785.
// utf16.Encode handles surrogate pairs; comparing runes directly would
// order supplementary-plane characters after the surrogate range
// instead of inside it.
func compareUTF16(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))

	n := len(ua)
	if len(ub) < n {
		n = len(ub)
	}
	for i := 0; i < n; i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	default:
		return 0
	}
}
