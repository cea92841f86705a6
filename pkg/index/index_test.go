package index

import (
	"sort"
	"testing"

	"github.com/lsmkv/lsmkv/pkg/backingstore"
)

func newTestIndex() *Index {
	return New(backingstore.NewMemStore(), "__lsm__", "default")
}

func TestEnsureQueryRoundTrip(t *testing.T) {
	x := newTestIndex()

	if err := x.Ensure("byColor", "red", "item1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := x.Ensure("byColor", "red", "item2"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	got, err := x.Query("byColor", "red")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	want := []string{"item1", "item2"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Query() = %v, want %v", got, want)
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	x := newTestIndex()
	for i := 0; i < 3; i++ {
		if err := x.Ensure("byColor", "red", "item1"); err != nil {
			t.Fatalf("Ensure() error = %v", err)
		}
	}
	got, err := x.Query("byColor", "red")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Query() after repeated Ensure() = %v, want a single entry", got)
	}
}

func TestRemoveDropsEntryAndEmptiesField(t *testing.T) {
	x := newTestIndex()
	if err := x.Ensure("byColor", "red", "item1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := x.Remove("byColor", "red", "item1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	got, err := x.Query("byColor", "red")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Query() after Remove() = %v, want empty", got)
	}

	fields, err := x.List("byColor")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(fields) != 0 {
		t.Fatalf("List() after last entry removed = %v, want empty", fields)
	}
}

func TestFieldValueContainingSeparatorDoesNotCorruptOtherFields(t *testing.T) {
	// Regression guard for the colon-joined-key bug flagged as an Open
	// Question: a field value containing ':' must not collide with or
	// truncate a sibling field's entries now that index keys are
	// structured pairs rather than "<name>:<field>" strings.
	x := newTestIndex()
	if err := x.Ensure("byTag", "a:b", "item1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := x.Ensure("byTag", "a", "item2"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	gotAB, err := x.Query("byTag", "a:b")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	gotA, err := x.Query("byTag", "a")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(gotAB) != 1 || gotAB[0] != "item1" {
		t.Fatalf("Query(byTag, a:b) = %v, want [item1]", gotAB)
	}
	if len(gotA) != 1 || gotA[0] != "item2" {
		t.Fatalf("Query(byTag, a) = %v, want [item2]", gotA)
	}
}

func TestListReturnsAllFields(t *testing.T) {
	x := newTestIndex()
	if err := x.Ensure("byColor", "red", "item1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := x.Ensure("byColor", "blue", "item2"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	fields, err := x.List("byColor")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	sort.Strings(fields)
	if len(fields) != 2 || fields[0] != "blue" || fields[1] != "red" {
		t.Fatalf("List() = %v, want [blue red]", fields)
	}
}
