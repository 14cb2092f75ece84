//go:build windows
// +build windows

// File: affinity/affinity_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows-specific implementation: SetThreadAffinityMask for pinning and
// user APCs for alerts.

package affinity

import (
	"golang.org/x/sys/windows"

	"github.com/momentics/unlimited-wait/api"
)

var (
	kernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
	procQueueUserAPC          = kernel32.NewProc("QueueUserAPC")

	// apcNoop only exists to complete the alertable wait it interrupts.
	apcNoop = windows.NewCallback(func(uintptr) uintptr { return 0 })
)

// setAffinityPlatform sets thread affinity to a given CPU for Windows.
func setAffinityPlatform(cpuID int) error {
	mask := uintptr(1) << cpuID
	ret, _, err := procSetThreadAffinityMask.Call(uintptr(windows.CurrentThread()), mask)
	if ret == 0 {
		return api.NewError(api.KindInvalidParameter, "affinity.LockThread").
			WithContext("cpu", cpuID).Wrap(err)
	}
	return nil
}

// open duplicates the current-thread pseudo handle into a real one that
// other goroutines can queue APCs to.
func (t *Thread) open() error {
	var h windows.Handle
	proc := windows.CurrentProcess()
	err := windows.DuplicateHandle(proc, windows.CurrentThread(), proc, &h, 0, false, windows.DUPLICATE_SAME_ACCESS)
	if err != nil {
		return api.NewError(api.KindUnderlying, "affinity.LockThread").Wrap(err)
	}
	t.handle = uintptr(h)
	return nil
}

func (t *Thread) alert() error {
	if t.handle == 0 {
		return api.NewError(api.KindInvalidHandle, "affinity.Alert")
	}
	ret, _, err := procQueueUserAPC.Call(apcNoop, t.handle, 0)
	if ret == 0 {
		return api.NewError(api.KindUnderlying, "affinity.Alert").Wrap(err)
	}
	return nil
}

func (t *Thread) close() {
	if t.handle != 0 {
		_ = windows.CloseHandle(windows.Handle(t.handle))
		t.handle = 0
	}
}
