package security

import (
	"testing"

	"github.com/dbrevel/queryplane/pkg/model"
)

func TestMask_RedactsDeclaredFields(t *testing.T) {
	rows := []model.Record{{"id": 1, "email": "a@example.com", "name": "Alice"}}
	masks := map[string][]string{"users": {"email"}}

	got := Mask(rows, masks)

	if got[0]["email"] != MaskedValue {
		t.Errorf("email = %v; want masked", got[0]["email"])
	}
	if got[0]["name"] != "Alice" {
		t.Errorf("name = %v; want unchanged", got[0]["name"])
	}
}

// TestMask_AppliesAcrossTablesWithoutBinding verifies the preserved gap: a
// mask declared for "users" still redacts the same field name in a row that
// has no relation to that table.
func TestMask_AppliesAcrossTablesWithoutBinding(t *testing.T) {
	rows := []model.Record{{"id": 1, "email": "not-a-user-row@example.com"}}
	masks := map[string][]string{"users": {"email"}}

	got := Mask(rows, masks)

	if got[0]["email"] != MaskedValue {
		t.Errorf("expected email masked even though this row isn't from the users table")
	}
}

func TestMask_NoMasksReturnsRowsUnchanged(t *testing.T) {
	rows := []model.Record{{"id": 1, "email": "a@example.com"}}
	got := Mask(rows, nil)
	if got[0]["email"] != "a@example.com" {
		t.Errorf("expected rows unchanged when no masks declared")
	}
}

func TestMask_IdempotentOnReapplication(t *testing.T) {
	rows := []model.Record{{"email": "a@example.com"}}
	masks := map[string][]string{"users": {"email"}}

	once := Mask(rows, masks)
	twice := Mask(once, masks)

	if twice[0]["email"] != MaskedValue {
		t.Errorf("re-masking an already-masked row should stay masked")
	}
}

func TestMask_DoesNotMutateInputRows(t *testing.T) {
	rows := []model.Record{{"email": "a@example.com"}}
	masks := map[string][]string{"users": {"email"}}

	_ = Mask(rows, masks)

	if rows[0]["email"] != "a@example.com" {
		t.Errorf("Mask must not mutate its input rows, got %v", rows[0]["email"])
	}
}
