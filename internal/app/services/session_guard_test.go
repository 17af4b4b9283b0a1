package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devbrain/devbrain/internal/core/checkpoint"
)

func TestParseBusyPolicy(t *testing.T) {
	p, err := ParseBusyPolicy("")
	require.NoError(t, err)
	assert.Equal(t, BusyReject, p)

	p, err = ParseBusyPolicy("WAIT")
	require.NoError(t, err)
	assert.Equal(t, BusyWait, p)

	_, err = ParseBusyPolicy("drop")
	assert.Error(t, err)
}

func TestSessionGuard_Reject(t *testing.T) {
	g := NewSessionGuard(BusyReject)
	ctx := context.Background()

	release, err := g.Acquire(ctx, "s1")
	require.NoError(t, err)

	_, err = g.Acquire(ctx, "s1")
	assert.ErrorIs(t, err, checkpoint.ErrSessionBusy)

	other, err := g.Acquire(ctx, "s2")
	require.NoError(t, err)
	other()

	release()
	release() // idempotent
	assert.Equal(t, 0, g.Active())

	again, err := g.Acquire(ctx, "s1")
	require.NoError(t, err)
	again()
}

func TestSessionGuard_WaitSerializes(t *testing.T) {
	g := NewSessionGuard(BusyWait)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.Acquire(ctx, "shared")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, g.Active())
}

func TestSessionGuard_WaitHonoursContext(t *testing.T) {
	g := NewSessionGuard(BusyWait)
	release, err := g.Acquire(context.Background(), "s")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx, "s")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
