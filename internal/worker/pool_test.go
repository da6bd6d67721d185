package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPool_DefaultSize(t *testing.T) {
	require.Positive(t, NewPool(0).Size())
	require.Equal(t, 3, NewPool(3).Size())
}

func TestDo_ReturnsResult(t *testing.T) {
	p := NewPool(1)
	v, err := Do(context.Background(), p, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, v)

	boom := errors.New("boom")
	_, err = Do(context.Background(), p, func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
}

func TestDo_BoundsConcurrency(t *testing.T) {
	const size = 2
	p := NewPool(size)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Do(context.Background(), p, func() (struct{}, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return struct{}{}, nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, peak.Load(), int32(size))
	require.Positive(t, peak.Load())
}

func TestDo_CancelledWhileQueued(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = Do(context.Background(), p, func() (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	_, err := Do(ctx, p, func() (int, error) { ran = true; return 1, nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, ran)

	close(release)
}

func TestDo_CallerGivesUpJobStillFinishes(t *testing.T) {
	p := NewPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	unblock := make(chan struct{})

	go func() {
		<-unblock
		cancel()
	}()
	_, err := Do(ctx, p, func() (int, error) {
		close(unblock)
		time.Sleep(20 * time.Millisecond)
		close(finished)
		return 7, nil
	})
	require.ErrorIs(t, err, context.Canceled)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("job did not finish in background")
	}

	// The slot is released once the background job completes.
	v, err := Do(context.Background(), p, func() (int, error) { return 9, nil })
	require.NoError(t, err)
	require.Equal(t, 9, v)
}
