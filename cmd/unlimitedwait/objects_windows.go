//go:build windows
// +build windows

// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/windows"

	"github.com/momentics/unlimited-wait/affinity"
	"github.com/momentics/unlimited-wait/api"
)

// nativeObjects creates real auto-reset events and semaphores.
type nativeObjects struct {
	mu     sync.Mutex
	kinds  map[api.Handle]string
	thread atomic.Pointer[affinity.Thread]
}

func newNativeObjects() (objectSource, error) {
	return &nativeObjects{kinds: make(map[api.Handle]string)}, nil
}

func (n *nativeObjects) Create(kind string) (api.Handle, error) {
	var (
		h   windows.Handle
		err error
	)
	switch kind {
	case kindEvent:
		h, err = windows.CreateEvent(nil, 0, 0, nil)
	case kindSemaphore:
		h, err = createSemaphore(0, 1<<20)
	default:
		return 0, fmt.Errorf("unknown object kind %q", kind)
	}
	if err != nil {
		return 0, err
	}
	n.mu.Lock()
	n.kinds[api.Handle(h)] = kind
	n.mu.Unlock()
	return api.Handle(h), nil
}

func (n *nativeObjects) Signal(h api.Handle) error {
	n.mu.Lock()
	kind := n.kinds[h]
	n.mu.Unlock()
	if kind == kindSemaphore {
		return releaseSemaphore(windows.Handle(h), 1)
	}
	return windows.SetEvent(windows.Handle(h))
}

func (n *nativeObjects) Close(h api.Handle) error {
	n.mu.Lock()
	delete(n.kinds, h)
	n.mu.Unlock()
	return windows.CloseHandle(windows.Handle(h))
}

// Alert queues a user APC to the bound dispatch thread.
func (n *nativeObjects) Alert() {
	if th := n.thread.Load(); th != nil {
		_ = th.Alert()
	}
}

func (n *nativeObjects) BindThread(th *affinity.Thread) { n.thread.Store(th) }

var (
	modkernel32          = windows.NewLazySystemDLL("kernel32.dll")
	procCreateSemaphoreW = modkernel32.NewProc("CreateSemaphoreW")
	procReleaseSemaphore = modkernel32.NewProc("ReleaseSemaphore")
)

func createSemaphore(initial, maximum int32) (windows.Handle, error) {
	r, _, err := procCreateSemaphoreW.Call(0, uintptr(initial), uintptr(maximum), 0)
	if r == 0 {
		return 0, err
	}
	return windows.Handle(r), nil
}

func releaseSemaphore(h windows.Handle, n int32) error {
	r, _, err := procReleaseSemaphore.Call(uintptr(h), uintptr(n), 0)
	if r == 0 {
		return err
	}
	return nil
}
