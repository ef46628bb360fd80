package changelog

import (
	"strconv"
)

// ScalarKind tags the JSON value kind a Scalar was decoded from.
type ScalarKind uint8

const (
	NullKind ScalarKind = iota
	StringKind
	NumberKind
	BoolKind
)

// String provides a string representation of ScalarKind for logging and debugging.
func (k ScalarKind) String() string {
	switch k {
	case NullKind:
		return "null"
	case StringKind:
		return "string"
	case NumberKind:
		return "number"
	case BoolKind:
		return "bool"
	default:
		return "unknown"
	}
}

// Scalar is a single snapshot field value that keeps its JSON value kind.
//
// Numbers keep the literal text they were written with, so 1 and 1.0 stay distinguishable.
// The zero value is the JSON null.
type Scalar struct {
	kind    ScalarKind
	text    string
	boolean bool
}

// StringScalar builds a Scalar of StringKind.
func StringScalar(s string) Scalar {
	return Scalar{kind: StringKind, text: s}
}

// NumberScalar builds a Scalar of NumberKind from a JSON number literal.
func NumberScalar(literal string) Scalar {
	return Scalar{kind: NumberKind, text: literal}
}

// BoolScalar builds a Scalar of BoolKind.
func BoolScalar(b bool) Scalar {
	return Scalar{kind: BoolKind, boolean: b}
}

// NullScalar builds the JSON null.
func NullScalar() Scalar {
	return Scalar{}
}

func (s Scalar) Kind() ScalarKind {
	return s.kind
}

func (s Scalar) IsNull() bool {
	return s.kind == NullKind
}

// String returns the textual form of the value: strings verbatim, numbers as written,
// booleans as "true"/"false" and null as "".
func (s Scalar) String() string {
	switch s.kind {
	case StringKind, NumberKind:
		return s.text
	case BoolKind:
		return strconv.FormatBool(s.boolean)
	default:
		return ""
	}
}

// MarshalJSON renders the Scalar as the JSON value it was decoded from.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case StringKind:
		return snapshotJSON.Marshal(s.text)
	case NumberKind:
		return []byte(s.text), nil
	case BoolKind:
		return []byte(strconv.FormatBool(s.boolean)), nil
	default:
		return []byte("null"), nil
	}
}
