// Package audit turns entity updates into field-level history records.
package audit

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// Change is one modified field of one mutation.
type Change struct {
	Field    string
	OldValue string
	NewValue string
}

// Diff compares a patch against the current state of an entity and returns one
// Change per key whose value differs after coercion to string. Keys absent
// from the patch are never diffed, so partial updates produce no spurious
// history. The result is sorted by field name for deterministic persistence.
func Diff(before, patch map[string]any) []Change {
	var changes []Change
	for field, newVal := range patch {
		oldStr := Stringify(before[field])
		newStr := Stringify(newVal)
		if oldStr == newStr {
			continue
		}
		changes = append(changes, Change{Field: field, OldValue: oldStr, NewValue: newStr})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return changes
}

// Stringify coerces a value to its history representation. Nil and nil
// pointers become the empty string; pointers are dereferenced first.
func Stringify(v any) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}
		return Stringify(rv.Elem().Interface())
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		if rv.Kind() == reflect.String {
			return rv.String()
		}
		return fmt.Sprint(v)
	}
}
