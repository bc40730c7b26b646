package poll

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

func TestPoller_StartRequiresFetch(t *testing.T) {
	p := New(Config[int]{})
	err := p.Start(context.Background())
	require.ErrorIs(t, err, ErrNoFetch)
}

func TestPoller_ImmediateFirstFetch(t *testing.T) {
	fetched := make(chan struct{}, 1)
	p := New(Config[int]{
		// Long interval: only the immediate fetch can fire within the test.
		Interval: time.Hour,
		Fetch: func(ctx context.Context) (int, error) {
			select {
			case fetched <- struct{}{}:
			default:
			}
			return 1, nil
		},
	})
	defer p.Stop()

	require.NoError(t, p.Start(context.Background()))

	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("first fetch did not fire immediately")
	}
}

func TestPoller_NoOverlappingFetches(t *testing.T) {
	var inFlight atomic.Int32
	var maxInFlight atomic.Int32
	var calls atomic.Int32

	p := New(Config[int]{
		Interval: 5 * time.Millisecond,
		Fetch: func(ctx context.Context) (int, error) {
			n := inFlight.Add(1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond) // slower than the interval
			inFlight.Add(-1)
			calls.Add(1)
			return 0, nil
		},
	})

	require.NoError(t, p.Start(context.Background()))
	time.Sleep(300 * time.Millisecond)
	p.Stop()

	assert.Equal(t, int32(1), maxInFlight.Load(), "fetches must be strictly sequential")
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestPoller_OnSuccessBeforeNextTick(t *testing.T) {
	var mu sync.Mutex
	var events []string
	done := make(chan struct{})

	var count atomic.Int32
	p := New(Config[int]{
		Interval: 10 * time.Millisecond,
		Fetch: func(ctx context.Context) (int, error) {
			n := int(count.Add(1))
			mu.Lock()
			events = append(events, "fetch")
			mu.Unlock()
			return n, nil
		},
		OnSuccess: func(v int) {
			mu.Lock()
			events = append(events, "success")
			mu.Unlock()
		},
		ShouldStop: func(v int) bool {
			if v >= 3 {
				close(done)
				return true
			}
			return false
		},
	})
	defer p.Stop()

	require.NoError(t, p.Start(context.Background()))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not reach stop condition")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"fetch", "success", "fetch", "success", "fetch", "success"}, events,
		"every fetch must be followed by its OnSuccess before the next fetch")
}

func TestPoller_StopOnTerminal(t *testing.T) {
	var calls atomic.Int32
	p := New(Config[string]{
		Interval: 10 * time.Millisecond,
		Fetch: func(ctx context.Context) (string, error) {
			if calls.Add(1) == 1 {
				return "running", nil
			}
			return "completed", nil
		},
		ShouldStop: func(s string) bool { return s == "completed" },
	})
	defer p.Stop()

	require.NoError(t, p.Start(context.Background()))

	// Wait well past several intervals; a third fetch must never occur.
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, int32(2), calls.Load())
	assert.False(t, p.Polling())
	assert.NoError(t, p.LastError())
}

func TestPoller_FailStopOnError(t *testing.T) {
	boom := errors.New("backend gone")
	var calls atomic.Int32
	var onErrorCalls atomic.Int32

	p := New(Config[int]{
		Interval: 10 * time.Millisecond,
		Fetch: func(ctx context.Context) (int, error) {
			if calls.Add(1) >= 2 {
				return 0, boom
			}
			return 1, nil
		},
		OnError: func(err error) { onErrorCalls.Add(1) },
	})
	defer p.Stop()

	require.NoError(t, p.Start(context.Background()))
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, int32(2), calls.Load(), "polling must halt after the first failure")
	assert.Equal(t, int32(1), onErrorCalls.Load())
	assert.False(t, p.Polling())
	assert.ErrorIs(t, p.LastError(), boom)
}

func TestPoller_CancellationSafety(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var applied atomic.Int32

	p := New(Config[int]{
		Interval: 10 * time.Millisecond,
		Fetch: func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 42, nil
		},
		OnSuccess: func(v int) { applied.Add(1) },
	})

	require.NoError(t, p.Start(context.Background()))
	<-started

	// Stop while the fetch is in flight, then let it resolve.
	p.Stop()
	close(release)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(0), applied.Load(), "a result resolving after Stop must be discarded")
	assert.False(t, p.Polling())
}

func TestPoller_NoFetchAfterStop(t *testing.T) {
	var calls atomic.Int32
	p := New(Config[int]{
		Interval: 10 * time.Millisecond,
		Fetch: func(ctx context.Context) (int, error) {
			calls.Add(1)
			return 0, nil
		},
	})

	require.NoError(t, p.Start(context.Background()))
	time.Sleep(35 * time.Millisecond)
	p.Stop()
	n := calls.Load()

	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), n+1, "no new tick may be scheduled after Stop")
	assert.False(t, p.Polling())
}

func TestPoller_RefetchImmediate(t *testing.T) {
	fetches := make(chan time.Time, 8)
	p := New(Config[int]{
		Interval: time.Hour, // only explicit refetches can fire a second fetch
		Fetch: func(ctx context.Context) (int, error) {
			fetches <- time.Now()
			return 0, nil
		},
	})
	defer p.Stop()

	require.NoError(t, p.Start(context.Background()))

	select {
	case <-fetches:
	case <-time.After(2 * time.Second):
		t.Fatal("initial fetch missing")
	}

	time.Sleep(20 * time.Millisecond)
	p.Refetch()

	select {
	case <-fetches:
	case <-time.After(2 * time.Second):
		t.Fatal("refetch did not trigger an immediate fetch")
	}
}

func TestPoller_RearmAfterHalt(t *testing.T) {
	t.Run("after stop predicate", func(t *testing.T) {
		var calls atomic.Int32
		p := New(Config[int]{
			Interval:   10 * time.Millisecond,
			Fetch:      func(ctx context.Context) (int, error) { return int(calls.Add(1)), nil },
			ShouldStop: func(int) bool { return true },
		})
		defer p.Stop()

		require.NoError(t, p.Start(context.Background()))
		require.Eventually(t, func() bool { return !p.Polling() }, time.Second, 5*time.Millisecond)
		require.Equal(t, int32(1), calls.Load())

		p.Refetch()
		require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	})

	t.Run("after fetch failure", func(t *testing.T) {
		var calls atomic.Int32
		p := New(Config[int]{
			Interval: 10 * time.Millisecond,
			Fetch: func(ctx context.Context) (int, error) {
				if calls.Add(1) == 1 {
					return 0, errors.New("transient")
				}
				return 1, nil
			},
			ShouldStop: func(int) bool { return true },
		})
		defer p.Stop()

		require.NoError(t, p.Start(context.Background()))
		require.Eventually(t, func() bool { return p.LastError() != nil }, time.Second, 5*time.Millisecond)

		p.Refetch()
		require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
		assert.NoError(t, p.LastError())
	})

	t.Run("restart via Start resets stop state", func(t *testing.T) {
		var calls atomic.Int32
		p := New(Config[int]{
			Interval:   10 * time.Millisecond,
			Fetch:      func(ctx context.Context) (int, error) { return int(calls.Add(1)), nil },
			ShouldStop: func(int) bool { return true },
		})
		defer p.Stop()

		require.NoError(t, p.Start(context.Background()))
		require.Eventually(t, func() bool { return !p.Polling() }, time.Second, 5*time.Millisecond)

		require.NoError(t, p.Start(context.Background()))
		require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	})
}

func TestPoller_JitterNeverShortensInterval(t *testing.T) {
	p := New(Config[int]{
		Interval: 50 * time.Millisecond,
		Jitter:   20 * time.Millisecond,
		Fetch:    func(ctx context.Context) (int, error) { return 0, nil },
	})

	for i := 0; i < 1000; i++ {
		d := p.nextDelay()
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.Less(t, d, 70*time.Millisecond)
	}
}

func TestPoller_ContextCancelHaltsPolling(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	p := New(Config[int]{
		Interval: 10 * time.Millisecond,
		Fetch: func(ctx context.Context) (int, error) {
			calls.Add(1)
			return 0, nil
		},
	})

	require.NoError(t, p.Start(ctx))
	time.Sleep(35 * time.Millisecond)
	cancel()
	n := calls.Load()

	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), n+1)
}
