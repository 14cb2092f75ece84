package affinity_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/unlimited-wait/affinity"
	"github.com/momentics/unlimited-wait/api"
)

func TestLockUnpinned(t *testing.T) {
	th, err := affinity.LockThread(-1)
	require.NoError(t, err)
	defer th.Unlock()
	assert.Equal(t, -1, th.CPU())

	err = th.Alert()
	if runtime.GOOS == "windows" {
		assert.NoError(t, err)
	} else {
		assert.ErrorIs(t, err, api.ErrNotSupported)
	}
}

func TestPinToCPUZero(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "windows" {
		t.Skip("pinning unsupported")
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		th, err := affinity.LockThread(0)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, 0, th.CPU())
		th.Unlock()
	}()
	<-done
}
