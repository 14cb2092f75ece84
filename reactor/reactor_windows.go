//go:build windows
// +build windows

// File: reactor/reactor_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows adapter over NtCreateWaitCompletionPacket /
// NtAssociateWaitCompletionPacket / NtCancelWaitCompletionPacket and an
// I/O completion port drained with GetQueuedCompletionStatusEx.

package reactor

import (
	"errors"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/momentics/unlimited-wait/api"
)

var (
	modntdll    = windows.NewLazySystemDLL("ntdll.dll")
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procNtCreateWaitCompletionPacket    = modntdll.NewProc("NtCreateWaitCompletionPacket")
	procNtAssociateWaitCompletionPacket = modntdll.NewProc("NtAssociateWaitCompletionPacket")
	procNtCancelWaitCompletionPacket    = modntdll.NewProc("NtCancelWaitCompletionPacket")
	procGetQueuedCompletionStatusEx     = modkernel32.NewProc("GetQueuedCompletionStatusEx")
)

// overlappedEntry matches OVERLAPPED_ENTRY.
type overlappedEntry struct {
	CompletionKey            uintptr
	Overlapped               uintptr
	Internal                 uintptr
	NumberOfBytesTransferred uint32
}

// smallBatch entries are retrieved without heap allocation.
const smallBatch = 16

// nativePlatform implements api.Platform on Windows 8 and later.
type nativePlatform struct{}

// Native returns the Windows adapter, or ErrNotSupported when ntdll lacks
// the wait completion packet calls.
func Native() (api.Platform, error) {
	for _, p := range []*windows.LazyProc{
		procNtCreateWaitCompletionPacket,
		procNtAssociateWaitCompletionPacket,
		procNtCancelWaitCompletionPacket,
		procGetQueuedCompletionStatusEx,
	} {
		if err := p.Find(); err != nil {
			return nil, api.NewError(api.KindNotSupported, "reactor.Native").
				WithContext("proc", p.Name).Wrap(err)
		}
	}
	return nativePlatform{}, nil
}

func errnoOf(err error) uint32 {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	return errnoInvalidParameter
}

func (nativePlatform) CreateQueue() (api.Queue, error) {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return 0, MapErrno("CreateIoCompletionPort", errnoOf(err))
	}
	return api.Queue(port), nil
}

func (nativePlatform) CloseQueue(q api.Queue) error {
	if err := windows.CloseHandle(windows.Handle(q)); err != nil {
		return MapErrno("CloseHandle(queue)", errnoOf(err))
	}
	return nil
}

func (nativePlatform) CreatePacket() (api.Packet, error) {
	var h windows.Handle
	r0, _, _ := procNtCreateWaitCompletionPacket.Call(
		uintptr(unsafe.Pointer(&h)),
		uintptr(windows.GENERIC_ALL),
		0,
	)
	if err := MapStatus("NtCreateWaitCompletionPacket", uint32(r0), 0); err != nil {
		return 0, err
	}
	return api.Packet(h), nil
}

func (nativePlatform) ClosePacket(p api.Packet) error {
	if err := windows.CloseHandle(windows.Handle(p)); err != nil {
		return MapErrno("CloseHandle(packet)", errnoOf(err))
	}
	return nil
}

func (nativePlatform) Associate(p api.Packet, q api.Queue, obj api.Handle, c api.Correlation) (bool, error) {
	var already byte
	r0, _, _ := procNtAssociateWaitCompletionPacket.Call(
		uintptr(p),
		uintptr(q),
		uintptr(obj),
		c.Key, // KeyContext -> lpCompletionKey
		c.Tag, // ApcContext -> lpOverlapped, never dereferenced
		0,     // IoStatus
		0,     // IoStatusInformation
		uintptr(unsafe.Pointer(&already)),
	)
	if err := MapStatus("NtAssociateWaitCompletionPacket", uint32(r0), obj); err != nil {
		return false, err
	}
	return already != 0, nil
}

func (nativePlatform) Cancel(p api.Packet, removeIfSignalled bool) (api.CancelResult, error) {
	var remove uintptr
	if removeIfSignalled {
		remove = 1
	}
	r0, _, _ := procNtCancelWaitCompletionPacket.Call(uintptr(p), remove)
	status := uint32(r0)
	// STATUS_CANCELLED: nothing was associated. The packet may never have
	// been armed, or its completion has already been dequeued.
	if status != StatusCancelled {
		if err := MapStatus("NtCancelWaitCompletionPacket", status, 0); err != nil {
			return api.CancelDisarmed, err
		}
	}
	return cancelResult(status), nil
}

func (nativePlatform) Retrieve(q api.Queue, out []api.Completion, timeout time.Duration, alertable bool) (int, error) {
	if len(out) == 0 {
		return 0, api.NewError(api.KindInvalidParameter, "GetQueuedCompletionStatusEx").
			WithContext("count", 0)
	}
	var small [smallBatch]overlappedEntry
	var entries []overlappedEntry
	if len(out) <= smallBatch {
		entries = small[:len(out)]
	} else {
		entries = make([]overlappedEntry, len(out))
	}
	var alert uintptr
	if alertable {
		alert = 1
	}
	var removed uint32
	r1, _, e1 := procGetQueuedCompletionStatusEx.Call(
		uintptr(q),
		uintptr(unsafe.Pointer(&entries[0])),
		uintptr(len(entries)),
		uintptr(unsafe.Pointer(&removed)),
		uintptr(timeoutMillis(timeout)),
		alert,
	)
	if r1 == 0 {
		return 0, MapErrno("GetQueuedCompletionStatusEx", errnoOf(e1))
	}
	for i := 0; i < int(removed); i++ {
		out[i] = api.Completion{
			Correlation: api.Correlation{
				Key: entries[i].CompletionKey,
				Tag: entries[i].Overlapped,
			},
			Status:      uint32(entries[i].Internal),
			Information: uintptr(entries[i].NumberOfBytesTransferred),
		}
	}
	return int(removed), nil
}
