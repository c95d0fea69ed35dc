package cloze

import (
	"errors"
	"strings"
	"testing"

	"learnpage/internal/content"
)

func testItems() []content.Item {
	return []content.Item{
		{ID: "i1", Value: "alpha"},
		{ID: "i2", Value: "beta"},
		{ID: "i3", Value: "gamma"},
	}
}

func newTestCoordinator(withReplacement bool) *Coordinator {
	c := New(testItems(), withReplacement)
	c.RegisterZone("drop-region-0")
	c.RegisterZone("drop-region-1")
	return c
}

// Without replacement every item is in exactly one place: a zone or the pool.
func assertPartition(t *testing.T, c *Coordinator) {
	t.Helper()
	seen := map[string]int{}
	for _, it := range c.PoolItems() {
		seen[it.ID]++
	}
	for _, it := range c.Snapshot() {
		seen[it.ID]++
	}
	for _, it := range testItems() {
		if seen[it.ID] != 1 {
			t.Fatalf("item %s appears %d times, want exactly 1", it.ID, seen[it.ID])
		}
	}
}

func TestMovePoolToZone(t *testing.T) {
	c := newTestCoordinator(false)
	out, err := c.Move(Slot{Item: "i1"}, Slot{Zone: "drop-region-0"})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if !out.Changed || !out.Emit {
		t.Fatalf("placement should change state and emit, got %+v", out)
	}
	if it, ok := c.Occupant("drop-region-0"); !ok || it.ID != "i1" {
		t.Fatalf("zone should hold i1, got %+v ok=%v", it, ok)
	}
	if len(c.PoolItems()) != 2 {
		t.Fatalf("pool should shrink to 2, got %d", len(c.PoolItems()))
	}
	assertPartition(t, c)
}

func TestMoveDisplacesOccupant(t *testing.T) {
	c := newTestCoordinator(false)
	mustMove(t, c, Slot{Item: "i1"}, Slot{Zone: "drop-region-0"})
	mustMove(t, c, Slot{Item: "i2"}, Slot{Zone: "drop-region-0"})

	if it, _ := c.Occupant("drop-region-0"); it.ID != "i2" {
		t.Fatalf("zone should hold the new item, got %s", it.ID)
	}
	pool := c.PoolItems()
	if len(pool) != 2 {
		t.Fatalf("displaced item should return to the pool, pool=%d", len(pool))
	}
	// The displaced occupant takes the mover's pool position.
	if pool[0].ID != "i1" {
		t.Fatalf("displaced i1 should take i2's old position, got %s", pool[0].ID)
	}
	assertPartition(t, c)
}

func TestMoveZoneToZoneSwaps(t *testing.T) {
	c := newTestCoordinator(false)
	mustMove(t, c, Slot{Item: "i1"}, Slot{Zone: "drop-region-0"})
	mustMove(t, c, Slot{Item: "i2"}, Slot{Zone: "drop-region-1"})

	out, err := c.Move(Slot{Zone: "drop-region-0"}, Slot{Zone: "drop-region-1"})
	if err != nil || !out.Emit {
		t.Fatalf("swap should emit, got %+v err=%v", out, err)
	}
	a, _ := c.Occupant("drop-region-0")
	b, _ := c.Occupant("drop-region-1")
	if a.ID != "i2" || b.ID != "i1" {
		t.Fatalf("expected swap, got %s / %s", a.ID, b.ID)
	}
	assertPartition(t, c)
}

func TestMoveZoneToPool(t *testing.T) {
	c := newTestCoordinator(false)
	mustMove(t, c, Slot{Item: "i1"}, Slot{Zone: "drop-region-0"})
	out, err := c.Move(Slot{Zone: "drop-region-0"}, Slot{Pool: true})
	if err != nil || !out.Emit {
		t.Fatalf("return to pool should emit, got %+v err=%v", out, err)
	}
	if _, ok := c.Occupant("drop-region-0"); ok {
		t.Fatalf("zone should be empty")
	}
	if len(c.PoolItems()) != 3 {
		t.Fatalf("pool should be whole again, got %d", len(c.PoolItems()))
	}
	assertPartition(t, c)
}

func TestPoolReorderDoesNotEmit(t *testing.T) {
	c := newTestCoordinator(false)
	out, err := c.Move(Slot{Item: "i1"}, Slot{Item: "i3"})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if !out.Changed || out.Emit {
		t.Fatalf("pool reorder changes state but must not emit, got %+v", out)
	}
	pool := c.PoolItems()
	if pool[0].ID != "i3" || pool[2].ID != "i1" {
		t.Fatalf("expected i1 and i3 swapped, got %v", pool)
	}
}

func TestMoveOntoSameSlotIsNoOp(t *testing.T) {
	c := newTestCoordinator(false)
	out, err := c.Move(Slot{Item: "i1"}, Slot{Item: "i1"})
	if err != nil {
		t.Fatalf("self move: %v", err)
	}
	if out.Changed || out.Emit {
		t.Fatalf("self move must be a silent no-op, got %+v", out)
	}
}

func TestMoveUnknownSlotAborts(t *testing.T) {
	c := newTestCoordinator(false)
	before := c.PoolItems()

	if _, err := c.Move(Slot{Item: "nope"}, Slot{Zone: "drop-region-0"}); !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("expected ErrUnknownSlot for bad source, got %v", err)
	}
	if _, err := c.Move(Slot{Item: "i1"}, Slot{Zone: "drop-region-9"}); !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("expected ErrUnknownSlot for bad destination, got %v", err)
	}

	after := c.PoolItems()
	if len(before) != len(after) {
		t.Fatalf("aborted move must not mutate state")
	}
	for i := range before {
		if before[i].ID != after[i].ID {
			t.Fatalf("aborted move must not mutate pool order")
		}
	}
}

func TestWithReplacementClonesKeepPoolWhole(t *testing.T) {
	c := newTestCoordinator(true)
	mustMove(t, c, Slot{Item: "i1"}, Slot{Zone: "drop-region-0"})
	mustMove(t, c, Slot{Item: "i1"}, Slot{Zone: "drop-region-1"})

	if len(c.PoolItems()) != 3 {
		t.Fatalf("pool must never deplete with replacement, got %d", len(c.PoolItems()))
	}
	snap := c.Snapshot()
	if len(snap) != 2 || snap[0].ID != "i1" || snap[1].ID != "i1" {
		t.Fatalf("both zones should hold i1, got %v", snap)
	}
}

func TestWithReplacementDropOnPoolOriginalClearsZone(t *testing.T) {
	c := newTestCoordinator(true)
	mustMove(t, c, Slot{Item: "i1"}, Slot{Zone: "drop-region-0"})
	out, err := c.Move(Slot{Zone: "drop-region-0"}, Slot{Item: "i1"})
	if err != nil || !out.Emit {
		t.Fatalf("clearing drop should emit, got %+v err=%v", out, err)
	}
	if _, ok := c.Occupant("drop-region-0"); ok {
		t.Fatalf("dropping a clone on its pool original should clear the zone")
	}
}

func TestSnapshotTagsZonesInRegistrationOrder(t *testing.T) {
	c := newTestCoordinator(false)
	mustMove(t, c, Slot{Item: "i2"}, Slot{Zone: "drop-region-1"})
	mustMove(t, c, Slot{Item: "i1"}, Slot{Zone: "drop-region-0"})

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 placed items, got %d", len(snap))
	}
	if snap[0].DropZoneID != "drop-region-0" || snap[1].DropZoneID != "drop-region-1" {
		t.Fatalf("snapshot must follow zone registration order, got %v", snap)
	}
}

func TestRestoreSeedsOccupancy(t *testing.T) {
	c := newTestCoordinator(false)
	c.Restore([]content.Item{
		{ID: "i2", Value: "beta", DropZoneID: "drop-region-1"},
		{ID: "ghost", DropZoneID: "no-such-zone"},
	})
	if it, ok := c.Occupant("drop-region-1"); !ok || it.ID != "i2" {
		t.Fatalf("restore should seed zone 1 with i2")
	}
	if len(c.PoolItems()) != 2 {
		t.Fatalf("restored item should leave the pool, got %d", len(c.PoolItems()))
	}
}

func TestKeyboardPickFocusDrop(t *testing.T) {
	c := newTestCoordinator(false)
	if err := c.Pick(Slot{Item: "i1"}); err != nil {
		t.Fatalf("pick: %v", err)
	}
	// Focus starts past the zones (on the pool) for a pool pick; cycle back
	// to the first zone.
	c.MoveFocus(1)
	out, err := c.Drop()
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if !out.Emit {
		t.Fatalf("keyboard placement should emit, got %+v", out)
	}
	if it, ok := c.Occupant("drop-region-0"); !ok || it.ID != "i1" {
		t.Fatalf("expected i1 in first zone")
	}
}

func TestDropWithoutPick(t *testing.T) {
	c := newTestCoordinator(false)
	if _, err := c.Drop(); !errors.Is(err, ErrNothingHeld) {
		t.Fatalf("expected ErrNothingHeld, got %v", err)
	}
}

func TestReplacementIDsAreDistinct(t *testing.T) {
	c := newTestCoordinator(true)
	mustMove(t, c, Slot{Item: "i1"}, Slot{Zone: "drop-region-0"})
	mustMove(t, c, Slot{Item: "i1"}, Slot{Zone: "drop-region-1"})

	a := c.occupancy[0].replacementID
	b := c.occupancy[1].replacementID
	if a == b {
		t.Fatalf("clone identities must differ, both %q", a)
	}
	if !strings.HasPrefix(a, "i1|") || !strings.HasPrefix(b, "i1|") {
		t.Fatalf("clone identity should extend the authored id, got %q %q", a, b)
	}
}

func mustMove(t *testing.T, c *Coordinator, src, dst Slot) {
	t.Helper()
	if _, err := c.Move(src, dst); err != nil {
		t.Fatalf("move %+v -> %+v: %v", src, dst, err)
	}
}
