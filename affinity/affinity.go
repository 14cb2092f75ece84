// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for dispatch threads. Platform-specific
// implementations are located in separate files (affinity_linux.go,
// affinity_windows.go, etc.) guarded by build tags.

package affinity

import (
	"runtime"
	"sync"
)

// Thread is the calling goroutine locked to its OS thread, optionally pinned
// to one logical CPU. Alertable waits are interrupted per thread, so a wait
// loop that should be alertable runs on a Thread.
type Thread struct {
	cpu int

	mu     sync.Mutex
	handle uintptr // platform thread reference used by Alert
}

// LockThread locks the calling goroutine to its OS thread and, when cpu is
// non-negative, pins that thread to cpu.
func LockThread(cpu int) (*Thread, error) {
	runtime.LockOSThread()
	t := &Thread{cpu: cpu}
	if cpu >= 0 {
		if err := setAffinityPlatform(cpu); err != nil {
			runtime.UnlockOSThread()
			return nil, err
		}
	}
	if err := t.open(); err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	return t, nil
}

// CPU returns the pinned CPU, negative when unpinned.
func (t *Thread) CPU() int { return t.cpu }

// Alert interrupts the thread's current or next alertable wait. It may be
// called from any goroutine.
func (t *Thread) Alert() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alert()
}

// Unlock releases the thread. A pinned thread stays locked and exits with
// its goroutine, so its affinity never leaks into the scheduler's pool.
func (t *Thread) Unlock() {
	t.mu.Lock()
	t.close()
	t.mu.Unlock()
	if t.cpu < 0 {
		runtime.UnlockOSThread()
	}
}
