//go:build !windows
// +build !windows

// control/platform_other.go
// Author: momentics <momentics@gmail.com>
//
// Probes for hosts without native wait completion packets.

package control

import (
	"runtime"
)

// RegisterPlatformProbes sets host debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.os", func() any {
		return runtime.GOOS
	})
	dp.RegisterProbe("platform.native", func() any {
		return false
	})
}
