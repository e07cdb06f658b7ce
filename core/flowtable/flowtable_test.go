package flowtable

import (
	"testing"

	"gatekeeper/core/flow"
)

func key(n byte) flow.Key {
	return flow.NewV4Key([4]byte{10, 0, 0, n}, [4]byte{10, 0, 0, 1}, 6)
}

func TestInsertLookupDelete(t *testing.T) {
	tbl := New[*int](2)

	v := 42
	if err := tbl.Insert(key(1), &v); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	got, err := tbl.Lookup(key(1))
	if err != nil {
		t.Fatalf("unexpected lookup error: %v", err)
	}
	if *got != 42 {
		t.Fatalf("expected 42, got %d", *got)
	}

	if err := tbl.Delete(key(1)); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, err := tbl.Lookup(key(1)); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestInsertFullReturnsErrFull(t *testing.T) {
	tbl := New[*int](1)

	a, b := 1, 2
	if err := tbl.Insert(key(1), &a); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if err := tbl.Insert(key(2), &b); err != ErrFull {
		t.Fatalf("expected ErrFull, got %v", err)
	}
}

func TestInsertExistingKeyOverwrites(t *testing.T) {
	tbl := New[*int](1)

	a, b := 1, 2
	if err := tbl.Insert(key(1), &a); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if err := tbl.Insert(key(1), &b); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	got, _ := tbl.Lookup(key(1))
	if *got != 2 {
		t.Fatalf("expected overwrite to take effect, got %d", *got)
	}
}

func TestDeleteFreesSlotForReuse(t *testing.T) {
	tbl := New[*int](1)

	a, b := 1, 2
	if err := tbl.Insert(key(1), &a); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if err := tbl.Delete(key(1)); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if err := tbl.Insert(key(2), &b); err != nil {
		t.Fatalf("expected freed slot to be reusable: %v", err)
	}
}

func TestRangeVisitsAllEntries(t *testing.T) {
	tbl := New[*int](3)
	a, b, c := 1, 2, 3
	tbl.Insert(key(1), &a)
	tbl.Insert(key(2), &b)
	tbl.Insert(key(3), &c)

	seen := 0
	tbl.Range(func(k flow.Key, e *int) bool {
		seen++
		return true
	})
	if seen != 3 {
		t.Fatalf("expected 3 entries visited, got %d", seen)
	}
}
