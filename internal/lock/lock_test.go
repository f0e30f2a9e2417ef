package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	req := require.New(t)
	l := New()

	g, err := l.Acquire(context.Background(), time.Second)
	req.NoError(err)
	g.Release()
	g.Release()

	g2, err := l.Acquire(context.Background(), time.Second)
	req.NoError(err)
	g2.Release()
}

func TestAcquireTimesOut(t *testing.T) {
	req := require.New(t)
	l := New()

	held, err := l.Acquire(context.Background(), time.Second)
	req.NoError(err)
	defer held.Release()

	_, err = l.Acquire(context.Background(), 20*time.Millisecond)
	req.True(errors.Is(err, ErrTimeout))
}

func TestAcquireCancelled(t *testing.T) {
	req := require.New(t)
	l := New()

	held, err := l.Acquire(context.Background(), time.Second)
	req.NoError(err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, time.Second)
	req.ErrorIs(err, context.Canceled)
}

func TestNilGuardRelease(t *testing.T) {
	var g *Guard
	g.Release()
}

func TestSerializesCriticalSection(t *testing.T) {
	req := require.New(t)
	l := New()

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := l.Acquire(context.Background(), 5*time.Second)
			if err != nil {
				return
			}
			defer g.Release()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	req.Equal(1, maxSeen)
}
