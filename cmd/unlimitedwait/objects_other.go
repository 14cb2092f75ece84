//go:build !windows
// +build !windows

// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package main

import "github.com/momentics/unlimited-wait/api"

func newNativeObjects() (objectSource, error) {
	return nil, api.NewError(api.KindNotSupported, "unlimitedwait").
		WithContext("hint", "use --backend sim")
}
