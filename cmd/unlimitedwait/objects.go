// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/momentics/unlimited-wait/affinity"
	"github.com/momentics/unlimited-wait/api"
	"github.com/momentics/unlimited-wait/control"
	"github.com/momentics/unlimited-wait/fake"
)

// Object kinds accepted by --kind.
const (
	kindEvent     = "event"
	kindSemaphore = "semaphore"
)

// objectSource creates and signals the waitable objects the driver
// registers.
type objectSource interface {
	Create(kind string) (api.Handle, error)
	Signal(h api.Handle) error
	Close(h api.Handle) error
	// Alert interrupts alertable waits, when the backend can.
	Alert()
	// BindThread names the dispatch thread that Alert targets.
	BindThread(th *affinity.Thread)
}

func newObjectSource(backend string, p api.Platform) (objectSource, error) {
	if backend == control.BackendSim {
		fp, ok := p.(*fake.Platform)
		if !ok {
			return nil, fmt.Errorf("sim backend without simulated platform (%T)", p)
		}
		return simObjects{fp}, nil
	}
	return newNativeObjects()
}

type simObjects struct {
	p *fake.Platform
}

func (s simObjects) Create(kind string) (api.Handle, error) {
	switch kind {
	case kindEvent:
		return s.p.NewEvent(false, false), nil
	case kindSemaphore:
		return s.p.NewSemaphore(0, 1<<20)
	default:
		return 0, fmt.Errorf("unknown object kind %q", kind)
	}
}

func (s simObjects) Signal(h api.Handle) error   { return s.p.Signal(h) }
func (s simObjects) Close(h api.Handle) error    { return s.p.CloseObject(h) }
func (s simObjects) Alert()                      { s.p.Alert() }
func (s simObjects) BindThread(*affinity.Thread) {}
