// Package lock provides the document-scoped mutual-exclusion lock that
// serializes writes to a workbook.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var ErrTimeout = errors.New("lock wait timed out")

// DocumentLock is shared by every caller writing to the same document.
type DocumentLock struct {
	sem *semaphore.Weighted
}

func New() *DocumentLock {
	return &DocumentLock{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the lock is held, wait elapses or ctx is done.
func (l *DocumentLock) Acquire(ctx context.Context, wait time.Duration) (*Guard, error) {
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrTimeout, wait)
	}
	return &Guard{lock: l}, nil
}

// Guard is a held lock. Release may be called any number of times, also on a
// nil Guard.
type Guard struct {
	once sync.Once
	lock *DocumentLock
}

func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		g.lock.sem.Release(1)
	})
}
