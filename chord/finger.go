// Package chord implements a Chord-style finger table: a fixed-size
// routing structure that lets a ring node address peers roughly
// exponentially farther away with each entry, giving O(log n) routing
// hops. It exists as a concrete, non-trivial algorithm exercised by the
// simulator's deterministic clock, not as a full Chord protocol stack
// (no successor lists, no stabilization, no replication).
package chord

import "errors"

// ErrSelfID is returned by Put when asked to insert the base id itself.
var ErrSelfID = errors.New("chord: cannot insert base id into its own finger table")

// ErrNoSuchPointer is returned by Remove when id names no entry currently
// pointing at it.
var ErrNoSuchPointer = errors.New("chord: no entry points to id")

// entry is one finger-table slot: the id this slot is expected to point
// to (fixed at construction) and the id it currently points to. self is
// true when the slot has never been assigned, or has been cleared back
// to, the base node.
type entry struct {
	expected uint64
	id       uint64
	self     bool
}

// Table is a Chord finger table rooted at base, over a ring of size
// 2^bitCount. Entry i's expected id is base+2^i (mod 2^bitCount); a
// freshly constructed Table has every entry pointing at base itself.
//
// Table is not safe for concurrent use.
type Table struct {
	base     uint64
	bitCount uint
	modulus  uint64
	entries  []entry
}

// NewTable constructs a Table rooted at base with bitCount entries. Ring
// arithmetic wraps modulo 2^bitCount; bitCount must be small enough that
// 1<<bitCount does not overflow uint64 (bitCount <= 63 in practice).
func NewTable(base uint64, bitCount uint) *Table {
	modulus := uint64(1) << bitCount
	base %= modulus
	t := &Table{base: base, bitCount: bitCount, modulus: modulus, entries: make([]entry, bitCount)}
	for i := range t.entries {
		t.entries[i] = entry{expected: (base + (uint64(1) << uint(i))) % modulus, id: base, self: true}
	}
	return t
}

// Base returns the ring id this Table is rooted at.
func (t *Table) Base() uint64 { return t.base }

// Len returns the number of entries (the bit count this Table was
// constructed with).
func (t *Table) Len() int { return len(t.entries) }

// ComparePosition returns the signed distance, on the full 64-bit ring
// rooted at base, between a and b: positive when a lies farther around
// the ring from base than b, negative when closer, zero when equal.
// Unlike Table's internal distance (which wraps modulo the table's own
// 2^bitCount), this compares raw ids and is meant for callers outside
// any particular Table's bit width.
func ComparePosition(base, a, b uint64) int64 {
	return int64(a-base) - int64(b-base)
}

func (t *Table) distance(id uint64) uint64 { return (id - t.base) % t.modulus }

// Ids returns the current pointer id of every entry, in index order. It
// is a defensive copy, useful for assertions in tests.
func (t *Table) Ids() []uint64 {
	ids := make([]uint64, len(t.entries))
	for i, e := range t.entries {
		ids[i] = e.id
	}
	return ids
}

// Expected returns the expected id of entry i.
func (t *Table) Expected(i int) uint64 { return t.entries[i].expected }

// SelfTail reports whether entry i currently points at the base node
// rather than a discovered peer.
func (t *Table) SelfTail(i int) bool { return t.entries[i].self }

// Put inserts a pointer to peer id p: it locates the smallest-index
// entry whose expected id is at or beyond p's ring position, writes p
// there, then propagates backwards over neighbours that are either
// still self-pointing or whose current id lies farther around the ring
// than p, stopping at the first neighbour already closer than p.
func (t *Table) Put(p uint64) error {
	p %= t.modulus
	if p == t.base {
		return ErrSelfID
	}
	d := t.distance(p)
	idx := t.indexAtOrBeyond(d)
	if idx == len(t.entries) {
		idx = len(t.entries) - 1
	}
	t.entries[idx].id = p
	t.entries[idx].self = false
	for i := idx - 1; i >= 0; i-- {
		e := &t.entries[i]
		if !e.self && t.distance(e.id) <= d {
			break
		}
		e.id = p
		e.self = false
	}
	return nil
}

// indexAtOrBeyond returns the smallest index i such that entry i's
// expected ring distance (2^i) is >= d, or len(entries) if none
// qualifies.
func (t *Table) indexAtOrBeyond(d uint64) int {
	for i := range t.entries {
		if uint64(1)<<uint(i) >= d {
			return i
		}
	}
	return len(t.entries)
}

// Remove clears every finger-table slot currently pointing at ptr. It
// first locates the highest-index slot holding ptr, then overwrites
// that whole contiguous run of matching slots (scanning down towards
// index 0) with whatever value sat in the slot immediately above the
// run — the virtual slot past the last index is the base node itself.
// It fails with ErrNoSuchPointer if no slot points at ptr.
func (t *Table) Remove(ptr uint64) error {
	ptr %= t.modulus
	top := len(t.entries) - 1
	for top >= 0 && t.entries[top].id != ptr {
		top--
	}
	if top < 0 {
		return ErrNoSuchPointer
	}
	next := entry{id: t.base, self: true}
	if top+1 < len(t.entries) {
		next = t.entries[top+1]
	}
	for i := top; i >= 0 && t.entries[i].id == ptr; i-- {
		t.entries[i].id = next.id
		t.entries[i].self = next.self
	}
	return nil
}

// FindClosestPreceding scans entries from the highest index to the
// lowest and returns the first pointer that lies strictly within the
// open ring interval (base, id) and is not present in ignored. If no
// entry qualifies, it returns the base id itself (self is the closest
// known predecessor of id).
func (t *Table) FindClosestPreceding(id uint64, ignored map[uint64]struct{}) uint64 {
	target := t.distance(id)
	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		d := t.distance(e.id)
		if d == 0 || d >= target {
			continue
		}
		if _, skip := ignored[e.id]; skip {
			continue
		}
		return e.id
	}
	return t.base
}

// MaximumNonBase returns the id held by the highest-index entry that
// does not currently point at the base node, and true. It returns
// (0, false) when every entry is still self-pointing.
func (t *Table) MaximumNonBase() (uint64, bool) {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if !t.entries[i].self {
			return t.entries[i].id, true
		}
	}
	return 0, false
}

// RouterID returns the pointer a message destined elsewhere on the ring
// should be forwarded to: the current id of the closest (lowest-index)
// finger.
func (t *Table) RouterID() uint64 { return t.entries[0].id }

// ClearBefore resets every entry whose current pointer lies strictly
// before id in ring order (and is not already self) back to the base
// node. It's used when a node learns its predecessor has changed and
// any finger pointing at a peer now behind that boundary is stale.
func (t *Table) ClearBefore(id uint64) {
	d := t.distance(id)
	for i := range t.entries {
		e := &t.entries[i]
		if !e.self && t.distance(e.id) < d {
			e.id = t.base
			e.self = true
		}
	}
}
