// Package cloze manages the drag-and-drop state of cloze questions: the
// ordered registration of inline drop zones discovered while the question
// body renders, the zone occupancy map, and the move protocol shared by
// pointer and keyboard interaction.
package cloze

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"learnpage/internal/content"
)

var (
	ErrUnknownSlot = errors.New("unknown drag slot")
	ErrNothingHeld = errors.New("no item picked up")
)

// Slot identifies a drag source or destination: a drop zone by id, an item
// (in the pool or placed in a zone) by replacement id, or the pool area
// itself.
type Slot struct {
	Zone string `json:"zone,omitempty"`
	Item string `json:"item,omitempty"`
	Pool bool   `json:"pool,omitempty"`
}

func (s Slot) isZero() bool { return s.Zone == "" && s.Item == "" && !s.Pool }

// placed is an item instance carrying a replacement id: the identity used for
// drag targeting, distinct from the authored item id so that withReplacement
// clones can coexist.
type placed struct {
	item          content.Item
	replacementID string
}

// MoveOutcome reports what a move did. Emit is true only when zone occupancy
// changed: pool-only reorders mutate state without producing a new attempt.
type MoveOutcome struct {
	Changed bool
	Emit    bool
}

// Coordinator holds per-question-instance drag state. It is rebuilt from
// scratch whenever the owning question mounts; it is not shared between
// questions and is not safe for concurrent use (the owning session serialises
// access).
type Coordinator struct {
	withReplacement bool
	source          []content.Item

	zoneIndex map[string]int
	zoneIDs   []string
	occupancy []*placed

	pool []*placed

	held  *Slot
	focus int
}

func New(items []content.Item, withReplacement bool) *Coordinator {
	c := &Coordinator{
		withReplacement: withReplacement,
		source:          append([]content.Item(nil), items...),
		zoneIndex:       make(map[string]int),
	}
	for _, it := range items {
		c.pool = append(c.pool, &placed{item: it, replacementID: it.ID})
	}
	return c
}

// RegisterZone records an inline drop zone in render order. Zones are
// data-driven: the authored content decides how many exist, so registration
// happens as each inline region renders. Re-registering an id is a no-op and
// returns the original index.
func (c *Coordinator) RegisterZone(zoneID string) int {
	if i, ok := c.zoneIndex[zoneID]; ok {
		return i
	}
	i := len(c.zoneIDs)
	c.zoneIndex[zoneID] = i
	c.zoneIDs = append(c.zoneIDs, zoneID)
	c.occupancy = append(c.occupancy, nil)
	return i
}

// Restore seeds occupancy from a previous attempt's items. Items naming an
// unregistered zone are ignored. Without replacement, placed items are
// removed from the pool one instance per id.
func (c *Coordinator) Restore(items []content.Item) {
	for _, it := range items {
		i, ok := c.zoneIndex[it.DropZoneID]
		if !ok {
			continue
		}
		inst := it
		inst.DropZoneID = ""
		c.occupancy[i] = &placed{item: inst, replacementID: c.placementID(inst)}
		if !c.withReplacement {
			c.removeFromPoolByID(inst.ID)
		}
	}
}

// Snapshot converts current occupancy to attempt items: occupied zones only,
// each tagged with its zone id, in zone registration order.
func (c *Coordinator) Snapshot() []content.Item {
	out := make([]content.Item, 0, len(c.occupancy))
	for i, p := range c.occupancy {
		if p == nil {
			continue
		}
		it := p.item
		it.DropZoneID = c.zoneIDs[i]
		out = append(out, it)
	}
	return out
}

// PoolItems returns the non-selected items in their current order.
func (c *Coordinator) PoolItems() []content.Item {
	out := make([]content.Item, 0, len(c.pool))
	for _, p := range c.pool {
		out = append(out, p.item)
	}
	return out
}

// Occupant returns the item currently held by a zone, if any.
func (c *Coordinator) Occupant(zoneID string) (content.Item, bool) {
	i, ok := c.zoneIndex[zoneID]
	if !ok || c.occupancy[i] == nil {
		return content.Item{}, false
	}
	return c.occupancy[i].item, true
}

// Move applies the uniform move protocol. A move whose source or destination
// cannot be resolved aborts with ErrUnknownSlot and no state mutation; a move
// that resolves to the identical slot is a silent no-op.
func (c *Coordinator) Move(src, dst Slot) (MoveOutcome, error) {
	fromPool, fromIdx, err := c.resolveSource(src)
	if err != nil {
		return MoveOutcome{}, err
	}

	if fromPool {
		return c.moveFromPool(fromIdx, dst)
	}
	return c.moveFromZone(fromIdx, dst)
}

func (c *Coordinator) moveFromPool(fromIdx int, dst Slot) (MoveOutcome, error) {
	switch {
	case dst.Pool:
		// Dropped back onto the pool area: nothing moved.
		return MoveOutcome{}, nil
	case dst.Item != "":
		if toIdx := c.poolIndex(dst.Item); toIdx >= 0 {
			if toIdx == fromIdx {
				return MoveOutcome{}, nil
			}
			c.pool[fromIdx], c.pool[toIdx] = c.pool[toIdx], c.pool[fromIdx]
			return MoveOutcome{Changed: true}, nil
		}
		// Destination item sits in a zone: treat as a drop onto that zone.
		toIdx := c.zoneIndexOfItem(dst.Item)
		if toIdx < 0 {
			return MoveOutcome{}, ErrUnknownSlot
		}
		return c.placeFromPool(fromIdx, toIdx), nil
	case dst.Zone != "":
		toIdx, ok := c.zoneIndex[dst.Zone]
		if !ok {
			return MoveOutcome{}, ErrUnknownSlot
		}
		return c.placeFromPool(fromIdx, toIdx), nil
	default:
		return MoveOutcome{}, ErrUnknownSlot
	}
}

// placeFromPool puts a pool item into a zone. Without replacement the item
// leaves the pool and any displaced occupant takes its pool position; with
// replacement the pool is never depleted and the placed instance gets a fresh
// synthetic identity so duplicates can coexist across zones.
func (c *Coordinator) placeFromPool(fromIdx, toIdx int) MoveOutcome {
	item := c.pool[fromIdx]
	displaced := c.occupancy[toIdx]

	if !c.withReplacement {
		if displaced != nil {
			c.pool[fromIdx] = &placed{item: displaced.item, replacementID: displaced.item.ID}
		} else {
			c.pool = append(c.pool[:fromIdx], c.pool[fromIdx+1:]...)
		}
	}
	c.occupancy[toIdx] = &placed{item: item.item, replacementID: c.placementID(item.item)}
	return MoveOutcome{Changed: true, Emit: true}
}

func (c *Coordinator) moveFromZone(fromIdx int, dst Slot) (MoveOutcome, error) {
	item := c.occupancy[fromIdx]

	switch {
	case dst.Pool:
		c.occupancy[fromIdx] = nil
		if !c.withReplacement {
			c.pool = append(c.pool, &placed{item: item.item, replacementID: item.item.ID})
		}
		return MoveOutcome{Changed: true, Emit: true}, nil
	case dst.Item != "":
		if toIdx := c.poolIndex(dst.Item); toIdx >= 0 {
			target := c.pool[toIdx]
			if c.withReplacement && target.item.ID == item.item.ID {
				// Dropping a clone back onto its own pool original just clears the zone.
				c.occupancy[fromIdx] = nil
				return MoveOutcome{Changed: true, Emit: true}, nil
			}
			c.occupancy[fromIdx] = &placed{item: target.item, replacementID: c.placementID(target.item)}
			if !c.withReplacement {
				c.pool[toIdx] = &placed{item: item.item, replacementID: item.item.ID}
			}
			return MoveOutcome{Changed: true, Emit: true}, nil
		}
		toIdx := c.zoneIndexOfItem(dst.Item)
		if toIdx < 0 {
			return MoveOutcome{}, ErrUnknownSlot
		}
		return c.swapZones(fromIdx, toIdx), nil
	case dst.Zone != "":
		toIdx, ok := c.zoneIndex[dst.Zone]
		if !ok {
			return MoveOutcome{}, ErrUnknownSlot
		}
		return c.swapZones(fromIdx, toIdx), nil
	default:
		return MoveOutcome{}, ErrUnknownSlot
	}
}

// swapZones exchanges two zones' occupants. A two-slot exchange, not a shift.
func (c *Coordinator) swapZones(fromIdx, toIdx int) MoveOutcome {
	if fromIdx == toIdx {
		return MoveOutcome{}
	}
	c.occupancy[fromIdx], c.occupancy[toIdx] = c.occupancy[toIdx], c.occupancy[fromIdx]
	return MoveOutcome{Changed: true, Emit: true}
}

func (c *Coordinator) resolveSource(src Slot) (fromPool bool, idx int, err error) {
	switch {
	case src.Item != "":
		if i := c.poolIndex(src.Item); i >= 0 {
			return true, i, nil
		}
		if i := c.zoneIndexOfItem(src.Item); i >= 0 {
			return false, i, nil
		}
		return false, 0, fmt.Errorf("source item %q: %w", src.Item, ErrUnknownSlot)
	case src.Zone != "":
		i, ok := c.zoneIndex[src.Zone]
		if !ok || c.occupancy[i] == nil {
			return false, 0, fmt.Errorf("source zone %q: %w", src.Zone, ErrUnknownSlot)
		}
		return false, i, nil
	default:
		return false, 0, ErrUnknownSlot
	}
}

func (c *Coordinator) removeFromPoolByID(itemID string) {
	for i, p := range c.pool {
		if p.item.ID == itemID {
			c.pool = append(c.pool[:i], c.pool[i+1:]...)
			return
		}
	}
}

func (c *Coordinator) poolIndex(replacementID string) int {
	for i, p := range c.pool {
		if p.replacementID == replacementID {
			return i
		}
	}
	return -1
}

func (c *Coordinator) zoneIndexOfItem(replacementID string) int {
	for i, p := range c.occupancy {
		if p != nil && p.replacementID == replacementID {
			return i
		}
	}
	return -1
}

// placementID mints the identity a placed instance is targeted by. With
// replacement every placement is a distinct clone.
func (c *Coordinator) placementID(it content.Item) string {
	if c.withReplacement {
		return it.ID + "|" + uuid.NewString()
	}
	return it.ID
}

// Keyboard interaction: a discrete pick-up / move-focus / drop model driving
// the same move protocol as pointer drags.

// Pick starts a keyboard drag from a slot. The focus starts on the picked
// slot's position among the focus targets (each zone, then the pool area).
func (c *Coordinator) Pick(src Slot) error {
	if _, _, err := c.resolveSource(src); err != nil {
		return err
	}
	held := src
	c.held = &held
	c.focus = 0
	if src.Zone != "" {
		c.focus = c.zoneIndex[src.Zone]
	} else if i := c.zoneIndexOfItem(src.Item); i >= 0 {
		c.focus = i
	} else {
		c.focus = len(c.zoneIDs)
	}
	return nil
}

// MoveFocus cycles the keyboard focus across the zones and the pool area.
func (c *Coordinator) MoveFocus(delta int) {
	targets := len(c.zoneIDs) + 1
	if targets == 0 || c.held == nil {
		return
	}
	c.focus = ((c.focus+delta)%targets + targets) % targets
}

// Drop releases the held item onto the focused slot via Move.
func (c *Coordinator) Drop() (MoveOutcome, error) {
	if c.held == nil {
		return MoveOutcome{}, ErrNothingHeld
	}
	src := *c.held
	c.held = nil

	dst := Slot{Pool: true}
	if c.focus < len(c.zoneIDs) {
		dst = Slot{Zone: c.zoneIDs[c.focus]}
	}
	return c.Move(src, dst)
}
