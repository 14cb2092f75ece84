// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor adapts the platform wait completion packet primitive and
// the I/O completion port it reports into to the api.Platform contract.
// Platform status codes are translated into the api error taxonomy here and
// nowhere else.
package reactor
