package localof

import (
	"weak"
)

// initialCapacity is the slot count of a freshly created table.
// Must be a power of two.
const initialCapacity = 16

// entry is one table slot: a weakly referenced local identity and the
// value stored under it. The weak key is what lets a reclaimed LocalOf
// be noticed at all: its entries keep sitting in the table as stale
// slots until probing or cleanup walks over them.
type entry struct {
	key   weak.Pointer[localState]
	value any
}

// dead reports whether the entry's local has been reclaimed, or the
// reference explicitly unlinked by remove.
func (e *entry) dead() bool {
	return e.key.Value() == nil
}

// unlink drops the weak reference. A zero weak.Pointer resolves to nil,
// which is exactly the stale state probing looks for.
func (e *entry) unlink() {
	e.key = weak.Pointer[localState]{}
}

// ownerTable is an open-addressed hash table with linear probing and
// weakly referenced keys. It is owned by exactly one Owner and has no
// internal synchronization; the owning context is the only caller.
//
// An entry's natural index is hash & (capacity-1); on collision probing
// continues forward with wraparound. Deletion never leaves tombstones:
// expungeStaleEntry rehashes the remainder of the run in place, so a
// run stays a maximal contiguous stretch of occupied slots and every
// entry stays reachable from its natural index.
type ownerTable struct {
	slots     []*entry // always a power-of-two length
	size      int      // occupied slots, including stale ones not yet expunged
	threshold int      // resize trigger, 2/3 of capacity
}

func newOwnerTable() *ownerTable {
	t := &ownerTable{slots: make([]*entry, initialCapacity)}
	t.setThreshold(initialCapacity)
	return t
}

func (t *ownerTable) setThreshold(capacity int) {
	if capacity&(capacity-1) != 0 {
		panic("localof: table capacity must be a power of two")
	}
	t.threshold = capacity * 2 / 3
}

func nextIndex(i, capacity int) int {
	if i+1 < capacity {
		return i + 1
	}
	return 0
}

func prevIndex(i, capacity int) int {
	if i > 0 {
		return i - 1
	}
	return capacity - 1
}

// getEntry returns the live entry for s, or nil. The common case is a
// direct hit at the natural index; everything else falls through to
// getEntryAfterMiss.
func (t *ownerTable) getEntry(s *localState) *entry {
	i := int(s.hash & uint32(len(t.slots)-1))
	e := t.slots[i]
	if e != nil && e.key.Value() == s {
		return e
	}
	return t.getEntryAfterMiss(s, i, e)
}

// getEntryAfterMiss continues the probe for s from slot i. Stale slots
// walked over are expunged on the spot; note that after an expunge the
// current index is re-read rather than advanced, since the expunge may
// have pulled a later entry of the run into it.
func (t *ownerTable) getEntryAfterMiss(s *localState, i int, e *entry) *entry {
	capacity := len(t.slots)
	for e != nil {
		k := e.key.Value()
		if k == s {
			return e
		}
		if k == nil {
			t.expungeStaleEntry(i)
		} else {
			i = nextIndex(i, capacity)
		}
		e = t.slots[i]
	}
	return nil
}

// set stores value under s, probing forward from the natural index.
// A live match is overwritten in place; a stale slot on the way is
// recycled via replaceStaleEntry; otherwise the entry goes into the
// first empty slot, followed by a bounded cleanup scan and, if that
// found nothing to do and occupancy crossed the threshold, a rehash.
func (t *ownerTable) set(s *localState, value any) {
	capacity := len(t.slots)
	i := int(s.hash & uint32(capacity-1))

	for e := t.slots[i]; e != nil; e = t.slots[i] {
		k := e.key.Value()
		if k == s {
			e.value = value
			return
		}
		if k == nil {
			t.replaceStaleEntry(s, value, i)
			return
		}
		i = nextIndex(i, capacity)
	}

	t.slots[i] = &entry{key: weak.Make(s), value: value}
	t.size++
	if !t.cleanSomeSlots(i, t.size) && t.size >= t.threshold {
		t.rehash()
	}
}

// remove deletes the entry for s if present; removing an absent local
// is a no-op. The weak reference is unlinked first so the slot is
// stale, then expunged like any other stale slot, which also repairs
// the rest of its run.
func (t *ownerTable) remove(s *localState) {
	capacity := len(t.slots)
	i := int(s.hash & uint32(capacity-1))
	for e := t.slots[i]; e != nil; e = t.slots[i] {
		if e.key.Value() == s {
			e.unlink()
			t.expungeStaleEntry(i)
			return
		}
		i = nextIndex(i, capacity)
	}
}

// replaceStaleEntry installs (s, value) into the stale slot set ran
// into. The run containing staleSlot is scanned in both directions so
// all of its stale entries get expunged in the same pass, and if the
// run already holds an entry for s further on, that entry is swapped
// into staleSlot so future lookups hit it directly.
//
// slotToExpunge tracks the earliest stale slot of the run other than
// the one being recycled; if it still equals staleSlot after both
// scans, the run held no other stale entry and no expunge is needed.
func (t *ownerTable) replaceStaleEntry(s *localState, value any, staleSlot int) {
	capacity := len(t.slots)

	slotToExpunge := staleSlot
	for i := prevIndex(staleSlot, capacity); t.slots[i] != nil; i = prevIndex(i, capacity) {
		if t.slots[i].dead() {
			slotToExpunge = i
		}
	}

	for i := nextIndex(staleSlot, capacity); t.slots[i] != nil; i = nextIndex(i, capacity) {
		e := t.slots[i]
		k := e.key.Value()

		if k == s {
			e.value = value

			t.slots[i] = t.slots[staleSlot]
			t.slots[staleSlot] = e

			if slotToExpunge == staleSlot {
				slotToExpunge = i
			}
			t.cleanSomeSlots(t.expungeStaleEntry(slotToExpunge), capacity)
			return
		}

		if k == nil && slotToExpunge == staleSlot {
			slotToExpunge = i
		}
	}

	// No entry for s in the run; the new entry reuses the stale slot.
	t.slots[staleSlot].value = nil
	t.slots[staleSlot] = &entry{key: weak.Make(s), value: value}

	if slotToExpunge != staleSlot {
		t.cleanSomeSlots(t.expungeStaleEntry(slotToExpunge), capacity)
	}
}

// expungeStaleEntry clears the stale slot, then rehashes the remainder
// of its run in place: further stale entries are cleared, and a live
// entry whose natural index differs from its current one is reinserted
// by probing from the natural index. The reinsertion is what keeps
// every entry of the run reachable; with multiple interleaved stale and
// live entries, just leaving the gap would cut off entries whose
// natural index lies before it. Returns the index of the empty slot
// terminating the run.
func (t *ownerTable) expungeStaleEntry(staleSlot int) int {
	capacity := len(t.slots)

	t.slots[staleSlot].value = nil
	t.slots[staleSlot] = nil
	t.size--

	i := nextIndex(staleSlot, capacity)
	for e := t.slots[i]; e != nil; e = t.slots[i] {
		k := e.key.Value()
		if k == nil {
			e.value = nil
			t.slots[i] = nil
			t.size--
		} else {
			h := int(k.hash & uint32(capacity-1))
			if h != i {
				t.slots[i] = nil
				for t.slots[h] != nil {
					h = nextIndex(h, capacity)
				}
				t.slots[h] = e
			}
		}
		i = nextIndex(i, capacity)
	}
	return i
}

// cleanSomeSlots inspects a handful of slots for stale entries,
// starting just past i. The scan runs log2(n) iterations, and widens n
// back to the full capacity whenever it finds something, so a dirty
// table earns itself a deeper sweep. Called with n = size after an
// insertion and n = capacity after replaceStaleEntry's forced expunge;
// this sits between doing no cleanup (arbitrary garbage retention) and
// sweeping the whole table on every operation. Reports whether any
// stale entry was expunged.
func (t *ownerTable) cleanSomeSlots(i, n int) bool {
	removed := false
	capacity := len(t.slots)
	for {
		i = nextIndex(i, capacity)
		if e := t.slots[i]; e != nil && e.dead() {
			n = capacity
			removed = true
			i = t.expungeStaleEntry(i)
		}
		n >>= 1
		if n == 0 {
			break
		}
	}
	return removed
}

// rehash sweeps every stale slot out of the table, then grows only if
// the surviving occupancy still crosses three quarters of the threshold
// (about half the capacity). Sweeping first avoids doubling a table
// whose occupancy was mostly stale slots.
func (t *ownerTable) rehash() {
	t.expungeStaleEntries()

	if t.size >= t.threshold-t.threshold/4 {
		t.resize()
	}
}

// resize doubles the capacity and reinserts every surviving live entry
// by probing from its natural index in the new slot array. Entries
// whose local died since the sweep are dropped here.
func (t *ownerTable) resize() {
	oldSlots := t.slots
	oldCapacity := len(oldSlots)
	newCapacity := oldCapacity * 2
	newSlots := make([]*entry, newCapacity)
	count := 0

	for _, e := range oldSlots {
		if e == nil {
			continue
		}
		k := e.key.Value()
		if k == nil {
			e.value = nil
			continue
		}
		h := int(k.hash & uint32(newCapacity-1))
		for newSlots[h] != nil {
			h = nextIndex(h, newCapacity)
		}
		newSlots[h] = e
		count++
	}

	t.setThreshold(newCapacity)
	t.size = count
	t.slots = newSlots
}

// expungeStaleEntries expunges every stale slot in the table.
func (t *ownerTable) expungeStaleEntries() {
	for i, e := range t.slots {
		if e != nil && e.dead() {
			t.expungeStaleEntry(i)
		}
	}
}

// newInheritedTable builds a child table from a snapshot of a parent
// owner's inheritable locals. Live entries only; each value is run
// through its local's childValue transform and inserted by probing
// forward from its natural index, the same way set places new entries.
// The result keeps the parent's capacity and shares nothing with it.
func newInheritedTable(parent *ownerTable) *ownerTable {
	capacity := len(parent.slots)
	t := &ownerTable{slots: make([]*entry, capacity)}
	t.setThreshold(capacity)

	for _, e := range parent.slots {
		if e == nil {
			continue
		}
		k := e.key.Value()
		if k == nil {
			continue
		}
		h := int(k.hash & uint32(capacity-1))
		for t.slots[h] != nil {
			h = nextIndex(h, capacity)
		}
		t.slots[h] = &entry{key: weak.Make(k), value: k.childValue(e.value)}
		t.size++
	}
	return t
}
