package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }
func uintPtr(v uint) *uint    { return &v }

func TestDiff_NoChanges(t *testing.T) {
	before := map[string]any{"firstName": "Анна", "phone": "+79990001122"}
	patch := map[string]any{"firstName": "Анна", "phone": "+79990001122"}

	assert.Empty(t, Diff(before, patch))
}

func TestDiff_UntouchedFieldsNeverDiffed(t *testing.T) {
	before := map[string]any{
		"firstName": "Анна",
		"lastName":  "Иванова",
		"phone":     "+79990001122",
	}
	patch := map[string]any{"lastName": "Петрова"}

	changes := Diff(before, patch)
	assert.Len(t, changes, 1)
	assert.Equal(t, "lastName", changes[0].Field)
	assert.Equal(t, "Иванова", changes[0].OldValue)
	assert.Equal(t, "Петрова", changes[0].NewValue)
}

func TestDiff_SortedByField(t *testing.T) {
	before := map[string]any{"title": "Old", "amount": float64(100), "stageId": uint(1)}
	patch := map[string]any{"title": "New", "amount": float64(250), "stageId": uint(2)}

	changes := Diff(before, patch)
	assert.Len(t, changes, 3)
	assert.Equal(t, "amount", changes[0].Field)
	assert.Equal(t, "stageId", changes[1].Field)
	assert.Equal(t, "title", changes[2].Field)
}

func TestDiff_OldNewRoundTrip(t *testing.T) {
	before := map[string]any{"stageId": uint(1)}
	patch := map[string]any{"stageId": uint(3)}

	changes := Diff(before, patch)
	assert.Len(t, changes, 1)
	assert.Equal(t, "1", changes[0].OldValue)
	assert.Equal(t, "3", changes[0].NewValue)

	// применив новое значение, повторный дифф пуст
	after := map[string]any{"stageId": uint(3)}
	assert.Empty(t, Diff(after, patch))
}

func TestDiff_NilBecomesSet(t *testing.T) {
	before := map[string]any{"email": (*string)(nil)}
	patch := map[string]any{"email": strPtr("a@b.ru")}

	changes := Diff(before, patch)
	assert.Len(t, changes, 1)
	assert.Equal(t, "", changes[0].OldValue)
	assert.Equal(t, "a@b.ru", changes[0].NewValue)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "", Stringify((*uint)(nil)))
	assert.Equal(t, "", Stringify((*string)(nil)))
	assert.Equal(t, "7", Stringify(uintPtr(7)))
	assert.Equal(t, "hello", Stringify(strPtr("hello")))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "false", Stringify(false))
	assert.Equal(t, "99.5", Stringify(99.5))
	assert.Equal(t, "100", Stringify(float64(100)))
	assert.Equal(t, "IN_PROGRESS", Stringify(statusLike("IN_PROGRESS")))
}

// типы на базе string (статусы, источники) приводятся к строке напрямую
type statusLike string
