package venuelock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLockRunsAction(t *testing.T) {
	m := New()

	ran := false
	err := m.WithLock(context.Background(), 1, func(ctx context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithLockPropagatesError(t *testing.T) {
	m := New()

	want := errors.New("boom")
	err := m.WithLock(context.Background(), 1, func(ctx context.Context) error {
		return want
	})

	assert.ErrorIs(t, err, want)

	// The section must have been released despite the error.
	err = m.WithLock(context.Background(), 1, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestSameVenueIsSerialized(t *testing.T) {
	m := New()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithLock(context.Background(), 42, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				if n > atomic.LoadInt32(&maxInside) {
					atomic.StoreInt32(&maxInside, n)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside, "two goroutines entered the same venue's section")
}

func TestDifferentVenuesRunConcurrently(t *testing.T) {
	m := New()

	release := make(chan struct{})
	entered := make(chan struct{})

	go func() {
		_ = m.WithLock(context.Background(), 1, func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered

	// Venue 2 must not be blocked by venue 1's in-flight section.
	done := make(chan struct{})
	go func() {
		_ = m.WithLock(context.Background(), 2, func(ctx context.Context) error {
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("independent venue was blocked")
	}
	close(release)
}

func TestCancelledBeforeEntryIsNoop(t *testing.T) {
	m := New()

	hold := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = m.WithLock(context.Background(), 7, func(ctx context.Context) error {
			close(entered)
			<-hold
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := m.WithLock(ctx, 7, func(ctx context.Context) error {
		ran = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran, "cancelled acquisition must not run the action")

	close(hold)

	// The holder's release must still leave the venue usable.
	require.Eventually(t, func() bool {
		return m.WithLock(context.Background(), 7, func(ctx context.Context) error { return nil }) == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEntriesAreReclaimed(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = m.WithLock(context.Background(), id, func(ctx context.Context) error {
				return nil
			})
		}(int64(i % 4))
	}
	wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks, "idle venues must not be kept in the map")
}

func TestNoStarvationUnderContention(t *testing.T) {
	m := New()

	const workers = 30
	var done int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock(context.Background(), 5, func(ctx context.Context) error {
				time.Sleep(time.Millisecond)
				return nil
			})
			if err == nil {
				atomic.AddInt32(&done, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(workers), done, "every contender must eventually get the section")
}
