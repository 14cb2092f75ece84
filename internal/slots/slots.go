// File: internal/slots/slots.go
// Author: momentics <momentics@gmail.com>
//
// Index-stable growable table of wait packets and the registration each one
// currently serves.

// Package slots implements the engine's slot registry. A slot index doubles
// as the correlation key of its packet's completions, so dispatch finds the
// firing registration without a lookup structure.
//
// The table is not self-locking. Structural changes (Grow, Shrink, Drain)
// and registration assignment require the owner's exclusive lock; Load and
// the compare-and-swap transitions are safe under the shared lock.
package slots

import (
	"sync/atomic"

	"github.com/momentics/unlimited-wait/api"
)

// Slot pairs one packet with the registration it is armed for.
type Slot[R any] struct {
	Packet api.Packet

	current atomic.Pointer[R]
	pending atomic.Bool
}

// Load returns the active registration, nil when the slot is free.
func (s *Slot[R]) Load() *R { return s.current.Load() }

// Assign binds r to the slot.
func (s *Slot[R]) Assign(r *R) { s.current.Store(r) }

// Release frees the slot if it still serves r.
func (s *Slot[R]) Release(r *R) bool { return s.current.CompareAndSwap(r, nil) }

// Clear frees the slot unconditionally.
func (s *Slot[R]) Clear() { s.current.Store(nil) }

// Pending reports whether a completion of a removed registration is still
// queued for this slot's packet.
func (s *Slot[R]) Pending() bool { return s.pending.Load() }

// SetPending marks or unmarks the slot as waiting for a queued completion.
func (s *Slot[R]) SetPending(v bool) { s.pending.Store(v) }

// Free reports whether the slot can take a new registration.
func (s *Slot[R]) Free() bool {
	return s.Packet != 0 && s.current.Load() == nil && !s.pending.Load()
}

// Table is the registry. The zero value is empty and ready to use.
type Table[R any] struct {
	slots []*Slot[R]
}

// Len returns the current slot count.
func (t *Table[R]) Len() int { return len(t.slots) }

// At returns slot i, nil when out of range.
func (t *Table[R]) At(i int) *Slot[R] {
	if i < 0 || i >= len(t.slots) {
		return nil
	}
	return t.slots[i]
}

// FindFree returns the first reusable slot.
func (t *Table[R]) FindFree() (int, bool) {
	for i, s := range t.slots {
		if s.Free() {
			return i, true
		}
	}
	return -1, false
}

// Find returns the first slot whose registration satisfies match.
func (t *Table[R]) Find(match func(*R) bool) (int, bool) {
	for i, s := range t.slots {
		if r := s.Load(); r != nil && match(r) {
			return i, true
		}
	}
	return -1, false
}

// Grow appends one slot without a packet and returns its index.
func (t *Table[R]) Grow() int {
	t.slots = append(t.slots, &Slot[R]{})
	return len(t.slots) - 1
}

// Shrink drops the last slot, undoing a Grow whose packet never armed.
func (t *Table[R]) Shrink() {
	if n := len(t.slots); n > 0 {
		t.slots[n-1] = nil
		t.slots = t.slots[:n-1]
	}
}

// Count returns the number of slots with an active registration.
func (t *Table[R]) Count() int {
	n := 0
	for _, s := range t.slots {
		if s.Load() != nil {
			n++
		}
	}
	return n
}

// Drain detaches every slot, leaving the table empty.
func (t *Table[R]) Drain() []*Slot[R] {
	out := t.slots
	t.slots = nil
	return out
}
