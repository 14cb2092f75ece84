// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import "github.com/momentics/unlimited-wait/api"

type objectKind int

const (
	kindEvent objectKind = iota
	kindSemaphore
)

// object is a simulated waitable kernel object.
type object struct {
	kind      objectKind
	manual    bool // manual-reset event
	signalled bool // events
	count     int  // semaphores
	max       int
	waiters   []*packet
}

// tryAcquire consumes one unit of signalled state, as a satisfied wait does.
func (o *object) tryAcquire() bool {
	switch o.kind {
	case kindSemaphore:
		if o.count == 0 {
			return false
		}
		o.count--
		return true
	default:
		if !o.signalled {
			return false
		}
		if !o.manual {
			o.signalled = false
		}
		return true
	}
}

// satisfy fires waiting packets in FIFO order while o stays signalled.
// Callers hold mu.
func (p *Platform) satisfy(o *object) {
	for len(o.waiters) > 0 && o.tryAcquire() {
		pk := o.waiters[0]
		o.waiters = o.waiters[1:]
		p.fire(pk)
	}
}

// NewEvent creates an event object.
func (p *Platform) NewEvent(manualReset, initialState bool) api.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := api.Handle(p.allocID())
	p.objects[h] = &object{kind: kindEvent, manual: manualReset, signalled: initialState}
	return h
}

// NewSemaphore creates a counting semaphore.
func (p *Platform) NewSemaphore(initial, maximum int) (api.Handle, error) {
	if maximum <= 0 || initial < 0 || initial > maximum {
		return 0, api.NewError(api.KindInvalidParameter, "fake.NewSemaphore").
			WithContext("initial", initial).WithContext("maximum", maximum)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	h := api.Handle(p.allocID())
	p.objects[h] = &object{kind: kindSemaphore, count: initial, max: maximum}
	return h, nil
}

func (p *Platform) lookup(op string, h api.Handle, kind objectKind) (*object, error) {
	o, ok := p.objects[h]
	if !ok {
		return nil, api.NewError(api.KindInvalidHandle, op).WithContext("object", h)
	}
	if o.kind != kind {
		return nil, api.NewError(api.KindInvalidParameter, op).WithContext("object", "type mismatch")
	}
	return o, nil
}

// SetEvent signals an event.
func (p *Platform) SetEvent(h api.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, err := p.lookup("fake.SetEvent", h, kindEvent)
	if err != nil {
		return err
	}
	o.signalled = true
	p.satisfy(o)
	return nil
}

// ResetEvent clears an event.
func (p *Platform) ResetEvent(h api.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, err := p.lookup("fake.ResetEvent", h, kindEvent)
	if err != nil {
		return err
	}
	o.signalled = false
	return nil
}

// ReleaseSemaphore adds n to a semaphore's count.
func (p *Platform) ReleaseSemaphore(h api.Handle, n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, err := p.lookup("fake.ReleaseSemaphore", h, kindSemaphore)
	if err != nil {
		return err
	}
	if n <= 0 || o.count+n > o.max {
		return api.NewError(api.KindInvalidParameter, "fake.ReleaseSemaphore").
			WithContext("count", o.count).WithContext("release", n)
	}
	o.count += n
	p.satisfy(o)
	return nil
}

// Signal sets an event or releases one semaphore unit.
func (p *Platform) Signal(h api.Handle) error {
	p.mu.Lock()
	o, ok := p.objects[h]
	p.mu.Unlock()
	if !ok {
		return api.NewError(api.KindInvalidHandle, "fake.Signal").WithContext("object", h)
	}
	if o.kind == kindSemaphore {
		return p.ReleaseSemaphore(h, 1)
	}
	return p.SetEvent(h)
}

// IsSignalled reports whether h currently holds signalled state.
func (p *Platform) IsSignalled(h api.Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.objects[h]
	if !ok {
		return false
	}
	if o.kind == kindSemaphore {
		return o.count > 0
	}
	return o.signalled
}

// CloseObject invalidates h. Packets already associated keep waiting on the
// underlying object, which can no longer be signalled.
func (p *Platform) CloseObject(h api.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.objects[h]; !ok {
		return api.NewError(api.KindInvalidHandle, "fake.CloseObject").WithContext("object", h)
	}
	delete(p.objects, h)
	return nil
}
