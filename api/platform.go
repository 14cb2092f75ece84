// File: api/platform.go
// Author: momentics <momentics@gmail.com>
//
// Contract for the wait completion packet primitive and the completion queue
// it reports into. Implemented natively by package reactor and in memory by
// package fake.

package api

import "time"

// Infinite disables the timeout of a blocking retrieval.
const Infinite time.Duration = -1

// MaximumWaitObjects is the native multi-object wait ceiling this library
// exists to lift.
const MaximumWaitObjects = 64

// Handle is a borrowed reference to a waitable kernel object. Zero is never
// a valid object.
type Handle uintptr

// Packet is an owned wait completion packet.
type Packet uintptr

// Queue is an owned completion queue.
type Queue uintptr

// Correlation is attached to an association and echoed back verbatim in the
// resulting Completion. Key identifies the position (slot index for the
// engine, object index for the one-shot wait); Tag disambiguates reuse of the
// same position.
type Correlation struct {
	Key uintptr
	Tag uintptr
}

// Completion is one notification retrieved from a queue.
type Completion struct {
	Correlation
	Status      uint32
	Information uintptr
}

// CancelResult is what Cancel found a packet doing.
type CancelResult int

const (
	// CancelDisarmed: the packet was waiting, or its queued completion was
	// withdrawn. Nothing of it remains in the queue.
	CancelDisarmed CancelResult = iota
	// CancelQueued: the packet fired and its completion is still queued.
	CancelQueued
	// CancelInactive: no association was active. Either the packet fired
	// and its completion has already been retrieved, or it was never armed.
	CancelInactive
)

func (r CancelResult) String() string {
	switch r {
	case CancelDisarmed:
		return "disarmed"
	case CancelQueued:
		return "queued"
	case CancelInactive:
		return "inactive"
	}
	return "unknown"
}

// Platform is the primitive adapter. Implementations translate platform
// status codes into *Error values and never retry.
type Platform interface {
	// CreateQueue allocates a completion queue.
	CreateQueue() (Queue, error)

	// CloseQueue releases the queue. Blocked retrievals on it fail with
	// ErrAbandoned.
	CloseQueue(q Queue) error

	// CreatePacket allocates an unassociated wait packet.
	CreatePacket() (Packet, error)

	// ClosePacket releases a packet, implicitly cancelling any association.
	ClosePacket(p Packet) error

	// Associate arms p so that the next signal of obj posts c to q. It
	// reports whether obj was already signalled, in which case the
	// completion has been queued already.
	Associate(p Packet, q Queue, obj Handle, c Correlation) (alreadySignalled bool, err error)

	// Cancel disarms p. If p already fired and its completion is still
	// queued, removeIfSignalled drops it; otherwise it is left queued and
	// the result is CancelQueued.
	Cancel(p Packet, removeIfSignalled bool) (CancelResult, error)

	// Retrieve dequeues up to len(out) completions, blocking at most timeout.
	// It returns ErrTimeout, ErrInterruptedByAlert or ErrAbandoned for the
	// distinguished outcomes.
	Retrieve(q Queue, out []Completion, timeout time.Duration, alertable bool) (int, error)
}
