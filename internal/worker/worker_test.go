package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ExecutesAndWaits(t *testing.T) {
	p, err := New(2)
	require.NoError(t, err)
	defer p.Release()

	var ran atomic.Bool
	require.NoError(t, p.Run(func() {
		time.Sleep(10 * time.Millisecond)
		ran.Store(true)
	}))
	assert.True(t, ran.Load())
}

func TestRun_RecoversPanic(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	defer p.Release()

	err = p.Run(func() { panic("boom") })
	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "boom", perr.Value)
	assert.NotEmpty(t, perr.Stack)

	// The worker survives the panic.
	assert.NoError(t, p.Run(func() {}))
}

func TestRun_BoundsConcurrency(t *testing.T) {
	p, err := New(2)
	require.NoError(t, err)
	defer p.Release()
	assert.Equal(t, 2, p.Cap())

	var (
		current, peak atomic.Int32
		wg            sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Run(func() {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
			})
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_AfterRelease(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	p.Release()

	assert.ErrorIs(t, p.Run(func() {}), ErrPoolClosed)
}
