package sisapi

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Record is a single API resource as returned by the school-management
// API: a string-keyed map of JSON values. Resources are schemaless on
// the wire, so the client keeps them in map form and callers pull out
// the fields they asked for.
type Record map[string]interface{}

// Filter is an exact-match conjunction over record fields. A record
// matches when every key in the filter is present in the record with an
// equal value.
type Filter map[string]interface{}

// ID returns the record's identifier under idKey, normalized to a
// string. The second return is false when the field is absent or empty.
func (r Record) ID(idKey string) (string, bool) {
	v, ok := r[idKey]
	if !ok {
		return "", false
	}

	id, err := CleanID(v)
	if err != nil {
		return "", false
	}

	return id, true
}

// String returns the record field as a string, or "" when absent.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprint(v)
}

// Bool returns the record field as a bool; absent or non-bool is false.
func (r Record) Bool(field string) bool {
	b, _ := r[field].(bool)

	return b
}

// FieldNames returns the sorted names of all populated fields. A field
// is populated when its value has a non-empty representation.
func (r Record) FieldNames() []string {
	names := make([]string, 0, len(r))

	for name, value := range r {
		if !populated(value) {
			continue
		}

		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Matches reports whether the record satisfies every field/value pair
// in the filter.
func (r Record) Matches(filter Filter) bool {
	for field, want := range filter {
		got, ok := r[field]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}

	return true
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}

	return out
}

// populated reports whether a field value counts toward field coverage.
func populated(v interface{}) bool {
	if v == nil {
		return false
	}

	if s, ok := v.(string); ok {
		return s != ""
	}

	return true
}

// valuesEqual compares two JSON-decoded values. Scalars compare
// directly; composite values fall back to deep equality.
func valuesEqual(a, b interface{}) bool {
	if isComparable(a) && isComparable(b) {
		return a == b
	}

	return reflect.DeepEqual(a, b)
}

func isComparable(v interface{}) bool {
	switch v.(type) {
	case nil, bool, string, int, int64, float64:
		return true
	default:
		return false
	}
}

// CleanID normalizes an identifier to its string form. The API hands
// back ids as strings but callers often hold them as ints; anything
// else is a ValidationError.
func CleanID(id interface{}) (string, error) {
	switch v := id.(type) {
	case string:
		if v == "" {
			return "", &ValidationError{Field: "id", Reason: "must not be empty"}
		}

		return v, nil
	case int:
		return fmt.Sprintf("%d", v), nil
	case int64:
		return fmt.Sprintf("%d", v), nil
	case float64:
		// JSON numbers decode to float64; ids are always integral.
		return fmt.Sprintf("%d", int64(v)), nil
	case nil:
		return "", &ValidationError{Field: "id", Reason: "must not be nil"}
	default:
		return "", &ValidationError{
			Field:  "id",
			Reason: fmt.Sprintf("must be a string or int, got %T", id),
		}
	}
}

// MakeID builds a composite identifier from its parts, colon-joined.
// Used for resources the API returns without ids of their own, such as
// grades and report cards.
func MakeID(parts ...string) string {
	return strings.Join(parts, ":")
}
