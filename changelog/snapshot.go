package changelog

import (
	"errors"
	"io"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var (
	// ErrMalformedSnapshot is returned when a changes payload can not be decoded into a SnapshotPair.
	ErrMalformedSnapshot = errors.New("changes payload is not a valid snapshot pair")
)

const (
	memberOldValues = "oldValues"
	memberNewValues = "newValues"
)

var snapshotJSON = jsoniter.ConfigCompatibleWithStandardLibrary

/***** FieldValues *****/

// FieldValues maps field names to Scalar values and remembers the order the fields were written in.
type FieldValues struct {
	order  []string
	values map[string]Scalar
}

// FieldValue is one named value used to build FieldValues.
type FieldValue struct {
	name  string
	value Scalar
}

// F builds a FieldValue.
func F(name string, value Scalar) FieldValue {
	return FieldValue{name: name, value: value}
}

// FieldValuesOf builds FieldValues in the given order. A repeated name keeps its first position and its last value.
func FieldValuesOf(fields ...FieldValue) FieldValues {
	fv := FieldValues{
		order:  make([]string, 0, len(fields)),
		values: make(map[string]Scalar, len(fields)),
	}

	for _, field := range fields {
		fv.set(field.name, field.value)
	}

	return fv
}

func (fv *FieldValues) set(name string, value Scalar) {
	if fv.values == nil {
		fv.values = make(map[string]Scalar)
	}

	if _, exists := fv.values[name]; !exists {
		fv.order = append(fv.order, name)
	}

	fv.values[name] = value
}

// Fields returns the field names in the order they were written.
func (fv FieldValues) Fields() []string {
	return slices.Clone(fv.order)
}

// Get returns the value of a field and whether the field is present.
func (fv FieldValues) Get(name string) (Scalar, bool) {
	value, ok := fv.values[name]
	return value, ok
}

// Has reports whether the field is present (a present field may hold null).
func (fv FieldValues) Has(name string) bool {
	_, ok := fv.values[name]
	return ok
}

func (fv FieldValues) Len() int {
	return len(fv.order)
}

/***** SnapshotPair *****/

// SnapshotPair holds the field values of an entity before and after one mutation.
//
// A creation has empty OldValues, a deletion has empty NewValues.
type SnapshotPair struct {
	OldValues FieldValues
	NewValues FieldValues
}

// EmptySnapshotPair returns a SnapshotPair without any fields.
func EmptySnapshotPair() SnapshotPair {
	return SnapshotPair{OldValues: FieldValuesOf(), NewValues: FieldValuesOf()}
}

// ParseSnapshotPair decodes a persisted changes payload.
//
// The payload is a JSON object with the members "oldValues" and "newValues" (matched case-insensitively),
// each an object of field name to JSON scalar. A missing or null member decodes as empty FieldValues,
// unknown members are ignored. Nested objects or arrays are kept as strings holding their JSON text.
// Returns ErrMalformedSnapshot if the payload is not valid JSON, not an object, is followed by anything
// but whitespace, or has neither member.
func ParseSnapshotPair(raw []byte) (SnapshotPair, error) {
	iter := snapshotJSON.BorrowIterator(raw)
	defer snapshotJSON.ReturnIterator(iter)

	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return SnapshotPair{}, ErrMalformedSnapshot
	}

	pair := EmptySnapshotPair()
	membersFound := 0

	iter.ReadObjectCB(func(it *jsoniter.Iterator, member string) bool {
		switch {
		case strings.EqualFold(member, memberOldValues):
			pair.OldValues = readFieldValues(it)
			membersFound++

		case strings.EqualFold(member, memberNewValues):
			pair.NewValues = readFieldValues(it)
			membersFound++

		default:
			it.Skip()
		}

		return it.Error == nil
	})

	if iter.Error != nil {
		return SnapshotPair{}, errors.Join(ErrMalformedSnapshot, iter.Error)
	}

	// only the end of input may follow the object
	if iter.WhatIsNext(); !errors.Is(iter.Error, io.EOF) {
		return SnapshotPair{}, ErrMalformedSnapshot
	}

	if membersFound == 0 {
		return SnapshotPair{}, ErrMalformedSnapshot
	}

	return pair, nil
}

func readFieldValues(it *jsoniter.Iterator) FieldValues {
	fv := FieldValuesOf()

	switch it.WhatIsNext() {
	case jsoniter.NilValue:
		it.ReadNil()
		return fv

	case jsoniter.ObjectValue:
		it.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
			fv.set(field, readScalar(it))
			return it.Error == nil
		})

	default:
		it.ReportError("readFieldValues", "expect object or null")
	}

	return fv
}

func readScalar(it *jsoniter.Iterator) Scalar {
	switch it.WhatIsNext() {
	case jsoniter.StringValue:
		return StringScalar(it.ReadString())

	case jsoniter.NumberValue:
		return NumberScalar(string(it.ReadNumber()))

	case jsoniter.BoolValue:
		return BoolScalar(it.ReadBool())

	case jsoniter.NilValue:
		it.ReadNil()
		return NullScalar()

	default:
		return StringScalar(string(it.SkipAndReturnBytes()))
	}
}
