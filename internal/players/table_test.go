package players

import (
	"net"
	"testing"
	"time"
)

func TestAdmitAssignsLowestFreeID(t *testing.T) {
	tbl := New(3)
	c1, _ := net.Pipe()
	c2, _ := net.Pipe()

	id1, err := tbl.Admit(c1, "alice")
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if id1 != 1 {
		t.Errorf("first Admit() id = %d, want 1", id1)
	}

	id2, err := tbl.Admit(c2, "bob")
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if id2 != 2 {
		t.Errorf("second Admit() id = %d, want 2", id2)
	}

	tbl.Release(id1)
	c3, _ := net.Pipe()
	id3, err := tbl.Admit(c3, "carol")
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if id3 != 1 {
		t.Errorf("Admit() after release id = %d, want 1 (reused)", id3)
	}
}

func TestAdmitRejectsWhenFull(t *testing.T) {
	tbl := New(1)
	c1, _ := net.Pipe()
	if _, err := tbl.Admit(c1, "alice"); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}

	c2, _ := net.Pipe()
	if _, err := tbl.Admit(c2, "bob"); err != ErrFull {
		t.Errorf("Admit() on full table error = %v, want ErrFull", err)
	}
	if tbl.Count() != 1 {
		t.Errorf("Count() = %d, want 1", tbl.Count())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tbl := New(2)
	c1, _ := net.Pipe()
	id, _ := tbl.Admit(c1, "alice")

	snap := tbl.Snapshot()
	if len(snap) != 1 || snap[0].ID != id {
		t.Fatalf("Snapshot() = %+v, want one slot with id %d", snap, id)
	}

	tbl.Release(id)
	if len(snap) != 1 {
		t.Errorf("prior snapshot mutated after Release(); len = %d, want 1", len(snap))
	}
}

func TestWithSlotReturnsFalseForUnknownID(t *testing.T) {
	tbl := New(2)
	called := false
	ok := tbl.WithSlot(5, func(*Slot) { called = true })
	if ok {
		t.Error("WithSlot() on unknown id = true, want false")
	}
	if called {
		t.Error("WithSlot() invoked fn for unknown id")
	}
}

func TestWaitForOccupantUnblocksOnAdmit(t *testing.T) {
	tbl := New(1)
	done := make(chan struct{})
	go func() {
		tbl.WaitForOccupant()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitForOccupant() returned before any Admit()")
	case <-time.After(20 * time.Millisecond):
	}

	c1, _ := net.Pipe()
	tbl.Admit(c1, "alice")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForOccupant() did not unblock after Admit()")
	}
}
