package venuelock

import (
	"context"
	"sync"
)

// Map hands out an exclusive critical section per venue ID. Rating-affecting
// mutations for the same venue run one at a time; different venues never
// block each other. Entries are reference counted and removed once the last
// waiter is gone, so the map stays bounded by the number of venues currently
// under mutation.
type Map struct {
	mu    sync.Mutex
	locks map[int64]*venueLock
}

type venueLock struct {
	sem  chan struct{}
	refs int
}

func New() *Map {
	return &Map{locks: make(map[int64]*venueLock)}
}

// WithLock runs fn inside the venue's critical section. If ctx is cancelled
// before the section is acquired, fn never runs and ctx.Err() is returned.
// The section is released on every exit path, including a panic in fn.
func (m *Map) WithLock(ctx context.Context, venueID int64, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l := m.retain(venueID)

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(venueID)
		return ctx.Err()
	}

	defer func() {
		<-l.sem
		m.release(venueID)
	}()

	return fn(ctx)
}

func (m *Map) retain(venueID int64) *venueLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[venueID]
	if !ok {
		l = &venueLock{sem: make(chan struct{}, 1)}
		m.locks[venueID] = l
	}
	l.refs++
	return l
}

func (m *Map) release(venueID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.locks[venueID]
	l.refs--
	if l.refs == 0 {
		delete(m.locks, venueID)
	}
}
