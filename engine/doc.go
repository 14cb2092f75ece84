// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package engine implements the unbounded wait engine: any number of kernel
// objects registered against one completion queue, each through its own
// reusable wait packet, with batched retrieval, per-object callbacks and
// level-triggered re-arming.
//
// Registrations are tracked in an index-stable slot table guarded by a
// reader/writer lock. AddObject, RemoveObject, Destroy and deferred-operation
// drains take the lock exclusively; dispatch of retrieved completions takes
// it shared, so any number of goroutines may call WaitMany on one engine.
// Every association carries the slot index and a per-registration
// generation, so a completion is never dispatched to a registration other
// than the one that produced it.
//
// Object callbacks run while dispatch holds the shared lock. They must not
// call AddObject, RemoveObject, FlushDeferred or Destroy on the same engine;
// use DeferAdd and DeferRemove, which are applied once dispatch ends.
// Slots and Registered are safe in callbacks: they read counters kept
// outside the lock, since a recursive shared lock blocks behind a waiting
// writer.
package engine
