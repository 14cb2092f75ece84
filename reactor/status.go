// File: reactor/status.go
// Author: momentics <momentics@gmail.com>
//
// Translation of NTSTATUS and Win32 error codes into the api taxonomy.
// Kept free of build tags so the table is checked on every platform.

package reactor

import "github.com/momentics/unlimited-wait/api"

// NTSTATUS values returned by the wait completion packet calls.
const (
	StatusSuccess            uint32 = 0x00000000
	StatusPending            uint32 = 0x00000103
	StatusInvalidHandle      uint32 = 0xC0000008
	StatusNoMemory           uint32 = 0xC0000017
	StatusObjectTypeMismatch uint32 = 0xC0000024
	StatusInvalidParameter1  uint32 = 0xC00000EF
	StatusInvalidParameter2  uint32 = 0xC00000F0
	StatusInvalidParameter3  uint32 = 0xC00000F1
	StatusCancelled          uint32 = 0xC0000120
)

// Win32 error codes surfaced by the completion port calls.
const (
	errnoInvalidHandle    uint32 = 6
	errnoNotEnoughMemory  uint32 = 8
	errnoOutOfMemory      uint32 = 14
	errnoInvalidParameter uint32 = 87
	errnoWaitIOCompletion uint32 = 0xC0
	errnoWaitTimeout      uint32 = 0x102
	errnoAbandonedWait0   uint32 = 735
)

// ntSuccess mirrors NT_SUCCESS: informational and success codes are
// non-negative.
func ntSuccess(status uint32) bool {
	return int32(status) >= 0
}

// MapStatus converts an NTSTATUS from operation op into an error. object is
// the kernel object handle passed to the call, zero when none was.
func MapStatus(op string, status uint32, object api.Handle) error {
	if ntSuccess(status) {
		return nil
	}
	var kind api.Kind
	switch status {
	case StatusNoMemory:
		kind = api.KindOutOfMemory
	case StatusInvalidHandle, StatusObjectTypeMismatch,
		StatusInvalidParameter1, StatusInvalidParameter2:
		// the queue or packet argument was rejected
		kind = api.KindInvalidParameter
	case StatusInvalidParameter3:
		if object != 0 {
			kind = api.KindInvalidHandle
		} else {
			kind = api.KindInvalidParameter
		}
	default:
		kind = api.KindUnderlying
	}
	return api.NewError(kind, op).WithStatus(status)
}

// MapErrno converts a Win32 error code from operation op into an error.
func MapErrno(op string, errno uint32) error {
	if errno == 0 {
		return nil
	}
	var kind api.Kind
	switch errno {
	case errnoWaitTimeout:
		kind = api.KindTimeout
	case errnoWaitIOCompletion:
		kind = api.KindInterruptedByAlert
	case errnoAbandonedWait0:
		kind = api.KindAbandoned
	case errnoInvalidHandle:
		kind = api.KindInvalidHandle
	case errnoNotEnoughMemory, errnoOutOfMemory:
		kind = api.KindOutOfMemory
	case errnoInvalidParameter:
		kind = api.KindInvalidParameter
	default:
		kind = api.KindUnderlying
	}
	return api.NewError(kind, op).WithStatus(errno)
}

// cancelResult interprets an NtCancelWaitCompletionPacket status that is
// not a failure. STATUS_PENDING means the fired completion is still in the
// queue; STATUS_CANCELLED means no association was active.
func cancelResult(status uint32) api.CancelResult {
	switch status {
	case StatusPending:
		return api.CancelQueued
	case StatusCancelled:
		return api.CancelInactive
	}
	return api.CancelDisarmed
}
