// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package fake provides an in-memory api.Platform: simulated kernel objects,
// wait packets and completion queues with fault injection. It backs the test
// suites and the portable backend of the stress driver.
package fake

import (
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/unlimited-wait/api"
)

type packet struct {
	id      api.Packet
	armed   bool
	target  *object
	queue   *completionQueue
	corr    api.Correlation
	pending *entry // fired completion still sitting in a queue
}

type entry struct {
	completion api.Completion
	from       *packet
}

type completionQueue struct {
	id     api.Queue
	items  *queue.Queue // of *entry
	closed bool
}

// Platform is a simulated api.Platform. All methods are safe for concurrent
// use.
type Platform struct {
	mu      sync.Mutex
	changed chan struct{}
	next    uintptr

	objects map[api.Handle]*object
	packets map[api.Packet]*packet
	queues  map[api.Queue]*completionQueue

	alerts int

	failCreateAfter int // -1 disables
	failAssociate   error
	failClose       error
}

var _ api.Platform = (*Platform)(nil)

// New returns an empty simulated platform.
func New() *Platform {
	return &Platform{
		changed:         make(chan struct{}),
		next:            0x100,
		objects:         make(map[api.Handle]*object),
		packets:         make(map[api.Packet]*packet),
		queues:          make(map[api.Queue]*completionQueue),
		failCreateAfter: -1,
	}
}

// allocID hands out handle-like values, never zero. Callers hold mu.
func (p *Platform) allocID() uintptr {
	p.next += 4
	return p.next
}

// broadcast wakes every blocked Retrieve. Callers hold mu.
func (p *Platform) broadcast() {
	close(p.changed)
	p.changed = make(chan struct{})
}

// FailPacketCreationAfter lets n more CreatePacket calls succeed and fails
// every later one with ErrOutOfMemory. A negative n disables the fault.
func (p *Platform) FailPacketCreationAfter(n int) {
	p.mu.Lock()
	p.failCreateAfter = n
	p.mu.Unlock()
}

// FailNextAssociate makes the next Associate call return err.
func (p *Platform) FailNextAssociate(err error) {
	p.mu.Lock()
	p.failAssociate = err
	p.mu.Unlock()
}

// FailNextClose makes the next ClosePacket or CloseQueue call return err
// without releasing the resource.
func (p *Platform) FailNextClose(err error) {
	p.mu.Lock()
	p.failClose = err
	p.mu.Unlock()
}

// Alert queues one alert. The next alertable Retrieve, current or future,
// returns ErrInterruptedByAlert.
func (p *Platform) Alert() {
	p.mu.Lock()
	p.alerts++
	p.broadcast()
	p.mu.Unlock()
}

// LivePackets counts packets created and not yet closed.
func (p *Platform) LivePackets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.packets)
}

// LiveQueues counts queues created and not yet closed.
func (p *Platform) LiveQueues() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queues)
}

// ArmedPackets counts packets currently associated and waiting.
func (p *Platform) ArmedPackets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, pk := range p.packets {
		if pk.armed {
			n++
		}
	}
	return n
}

// Queued counts completions waiting in q.
func (p *Platform) Queued(q api.Queue) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cq, ok := p.queues[q]; ok {
		return cq.items.Length()
	}
	return 0
}

func (p *Platform) CreateQueue() (api.Queue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cq := &completionQueue{id: api.Queue(p.allocID()), items: queue.New()}
	p.queues[cq.id] = cq
	return cq.id, nil
}

func (p *Platform) CloseQueue(q api.Queue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cq, ok := p.queues[q]
	if !ok {
		return api.NewError(api.KindInvalidHandle, "fake.CloseQueue")
	}
	if err := p.takeCloseFault(); err != nil {
		return err
	}
	for _, pk := range p.packets {
		if pk.armed && pk.queue == cq {
			p.disarm(pk)
		}
		if pk.pending != nil && pk.queue == cq {
			pk.pending = nil
		}
	}
	cq.closed = true
	delete(p.queues, q)
	p.broadcast()
	return nil
}

func (p *Platform) CreatePacket() (api.Packet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCreateAfter == 0 {
		return 0, api.NewError(api.KindOutOfMemory, "fake.CreatePacket")
	}
	if p.failCreateAfter > 0 {
		p.failCreateAfter--
	}
	pk := &packet{id: api.Packet(p.allocID())}
	p.packets[pk.id] = pk
	return pk.id, nil
}

func (p *Platform) ClosePacket(id api.Packet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pk, ok := p.packets[id]
	if !ok {
		return api.NewError(api.KindInvalidHandle, "fake.ClosePacket")
	}
	if err := p.takeCloseFault(); err != nil {
		return err
	}
	if pk.armed {
		p.disarm(pk)
	}
	delete(p.packets, id)
	return nil
}

func (p *Platform) takeCloseFault() error {
	err := p.failClose
	p.failClose = nil
	return err
}

func (p *Platform) Associate(id api.Packet, q api.Queue, obj api.Handle, c api.Correlation) (bool, error) {
	const op = "fake.Associate"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failAssociate; err != nil {
		p.failAssociate = nil
		return false, err
	}
	pk, ok := p.packets[id]
	if !ok {
		return false, api.NewError(api.KindInvalidHandle, op).WithContext("packet", id)
	}
	cq, ok := p.queues[q]
	if !ok {
		return false, api.NewError(api.KindInvalidParameter, op).WithContext("queue", q)
	}
	if obj == 0 {
		return false, api.NewError(api.KindInvalidParameter, op).WithContext("object", obj)
	}
	o, ok := p.objects[obj]
	if !ok {
		return false, api.NewError(api.KindInvalidHandle, op).WithContext("object", obj)
	}
	if pk.armed || pk.pending != nil {
		return false, api.NewError(api.KindInvalidParameter, op).WithContext("packet", "busy")
	}
	pk.armed = true
	pk.target = o
	pk.queue = cq
	pk.corr = c
	if len(o.waiters) == 0 && o.tryAcquire() {
		p.fire(pk)
		return true, nil
	}
	o.waiters = append(o.waiters, pk)
	return false, nil
}

func (p *Platform) Cancel(id api.Packet, removeIfSignalled bool) (api.CancelResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pk, ok := p.packets[id]
	if !ok {
		return api.CancelDisarmed, api.NewError(api.KindInvalidHandle, "fake.Cancel").WithContext("packet", id)
	}
	if pk.armed {
		p.disarm(pk)
		return api.CancelDisarmed, nil
	}
	if pk.pending == nil {
		return api.CancelInactive, nil
	}
	if !removeIfSignalled {
		return api.CancelQueued, nil
	}
	cq := pk.queue
	kept := queue.New()
	for cq.items.Length() > 0 {
		e := cq.items.Remove().(*entry)
		if e != pk.pending {
			kept.Add(e)
		}
	}
	cq.items = kept
	pk.pending = nil
	return api.CancelDisarmed, nil
}

// disarm removes pk from its object's waiters. Callers hold mu.
func (p *Platform) disarm(pk *packet) {
	pk.armed = false
	if o := pk.target; o != nil {
		for i, w := range o.waiters {
			if w == pk {
				o.waiters = append(o.waiters[:i], o.waiters[i+1:]...)
				break
			}
		}
	}
}

// fire posts pk's completion to its queue. Callers hold mu.
func (p *Platform) fire(pk *packet) {
	pk.armed = false
	e := &entry{completion: api.Completion{Correlation: pk.corr}, from: pk}
	pk.pending = e
	pk.queue.items.Add(e)
	p.broadcast()
}

func (p *Platform) Retrieve(q api.Queue, out []api.Completion, timeout time.Duration, alertable bool) (int, error) {
	const op = "fake.Retrieve"
	if len(out) == 0 {
		return 0, api.NewError(api.KindInvalidParameter, op).WithContext("count", 0)
	}
	p.mu.Lock()
	cq, ok := p.queues[q]
	if !ok {
		p.mu.Unlock()
		return 0, api.NewError(api.KindInvalidHandle, op).WithContext("queue", q)
	}

	var (
		timer   *time.Timer
		expired bool
	)
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
	}
	for {
		if cq.closed {
			p.mu.Unlock()
			return 0, api.NewError(api.KindAbandoned, op)
		}
		if n := cq.items.Length(); n > 0 {
			if n > len(out) {
				n = len(out)
			}
			for i := 0; i < n; i++ {
				e := cq.items.Remove().(*entry)
				if e.from.pending == e {
					e.from.pending = nil
				}
				out[i] = e.completion
			}
			p.mu.Unlock()
			return n, nil
		}
		if alertable && p.alerts > 0 {
			p.alerts--
			p.mu.Unlock()
			return 0, api.NewError(api.KindInterruptedByAlert, op)
		}
		if timeout == 0 || expired {
			p.mu.Unlock()
			return 0, api.NewError(api.KindTimeout, op)
		}
		ch := p.changed
		p.mu.Unlock()
		if timer != nil {
			select {
			case <-ch:
			case <-timer.C:
				expired = true
			}
		} else {
			<-ch
		}
		p.mu.Lock()
	}
}
