// Package pool
// Author: momentics <momentics@gmail.com>
//
// Object pooling for the wait engine: a generic sync.Pool wrapper and the
// completion scratch buffers WaitMany retrieves into.
package pool
