package history

import (
	"github.com/coursehistory/coursehistory-go/changelog"
)

// DiffKind tags a DiffEntry.
type DiffKind int

const (
	FieldAdded DiffKind = iota
	FieldChanged
	FieldDeleted
)

func (k DiffKind) String() string {
	switch k {
	case FieldAdded:
		return "added"
	case FieldChanged:
		return "changed"
	case FieldDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// DiffEntry is one field-level difference between two snapshots.
//
// An added entry only carries NewValue, a deleted entry only OldValue, a changed entry both.
// Field holds the display label, not the raw field name.
type DiffEntry struct {
	Kind     DiffKind
	Field    string
	OldValue changelog.Scalar
	NewValue changelog.Scalar
}

// Added builds an added DiffEntry.
func Added(field string, value changelog.Scalar) DiffEntry {
	return DiffEntry{Kind: FieldAdded, Field: field, NewValue: value}
}

// Changed builds a changed DiffEntry.
func Changed(field string, oldValue, newValue changelog.Scalar) DiffEntry {
	return DiffEntry{Kind: FieldChanged, Field: field, OldValue: oldValue, NewValue: newValue}
}

// Deleted builds a deleted DiffEntry.
func Deleted(field string, value changelog.Scalar) DiffEntry {
	return DiffEntry{Kind: FieldDeleted, Field: field, OldValue: value}
}

// Value returns the value an added or deleted entry carries, or the new value of a changed one.
func (e DiffEntry) Value() changelog.Scalar {
	if e.Kind == FieldDeleted {
		return e.OldValue
	}

	return e.NewValue
}

// MarshalJSON renders {"field","value"} for added and deleted entries
// and {"field","oldValue","newValue"} for changed ones.
func (e DiffEntry) MarshalJSON() ([]byte, error) {
	if e.Kind == FieldChanged {
		return outputJSON.Marshal(struct {
			Field    string           `json:"field"`
			OldValue changelog.Scalar `json:"oldValue"`
			NewValue changelog.Scalar `json:"newValue"`
		}{e.Field, e.OldValue, e.NewValue})
	}

	return outputJSON.Marshal(struct {
		Field string           `json:"field"`
		Value changelog.Scalar `json:"value"`
	}{e.Field, e.Value()})
}

// Diff compares two snapshots field by field.
//
// Fields of newValues are visited in their written order, then the fields only present in oldValues.
// Excluded fields are skipped, labels come from DisplayName. Values are compared by their text,
// so 1 and "1" are equal while 1 and 1.0 are not. A field turning null produces no entry.
func Diff(oldValues, newValues changelog.FieldValues) []DiffEntry {
	return diffFields(oldValues, newValues, IsExcludedField, DisplayName)
}

func diffFields(
	oldValues, newValues changelog.FieldValues,
	excluded func(field string) bool,
	label func(field string) string,
) []DiffEntry {

	entries := make([]DiffEntry, 0)

	for _, field := range newValues.Fields() {
		if excluded(field) {
			continue
		}

		newValue, _ := newValues.Get(field)
		oldValue, existed := oldValues.Get(field)

		switch {
		case newValue.IsNull():
			continue

		case !existed:
			entries = append(entries, Added(label(field), newValue))

		case oldValue.String() != newValue.String():
			entries = append(entries, Changed(label(field), oldValue, newValue))
		}
	}

	for _, field := range oldValues.Fields() {
		if excluded(field) || newValues.Has(field) {
			continue
		}

		oldValue, _ := oldValues.Get(field)
		entries = append(entries, Deleted(label(field), oldValue))
	}

	return entries
}

func noFieldExcluded(string) bool {
	return false
}

func sameLabel(field string) string {
	return field
}

// DiffRecord decodes the payload of a record and diffs it.
// A record without payload has no entries, a malformed payload returns changelog.ErrMalformedSnapshot.
func DiffRecord(record changelog.ChangeRecord) ([]DiffEntry, error) {
	pair, err := record.Snapshot()
	if err != nil {
		return nil, err
	}

	return Diff(pair.OldValues, pair.NewValues), nil
}
