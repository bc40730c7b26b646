// Package poll provides a generic, cancelable, interval-driven re-fetch
// primitive. A Poller runs fetches strictly sequentially: the next tick is
// scheduled only after the current fetch resolves, so slow or failed
// responses never pile up. Fetch failures are fail-stop: polling halts and
// the caller must explicitly re-arm via Refetch or Start.
package poll

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrNoFetch is returned by Start when no fetch function is configured.
var ErrNoFetch = errors.New("poll: fetch function is required")

// DefaultInterval is the delay between sequential fetches when none is
// configured.
const DefaultInterval = 5 * time.Second

// Config configures a Poller.
type Config[T any] struct {
	// Interval is the delay between the resolution of one fetch and the start
	// of the next. Defaults to DefaultInterval.
	Interval time.Duration

	// Jitter is the maximum random addition to each interval. It spreads
	// request bursts across concurrent pollers and never reduces the
	// interval. Zero disables jitter.
	Jitter time.Duration

	// Fetch performs one fetch. Required.
	Fetch func(ctx context.Context) (T, error)

	// OnSuccess is invoked synchronously with each successful fetch result,
	// before the stop predicate is evaluated and before the next tick is
	// scheduled. Optional.
	OnSuccess func(T)

	// OnError is invoked when a fetch fails. The poller halts afterwards.
	// Optional.
	OnError func(error)

	// ShouldStop is evaluated after each successful fetch (after OnSuccess).
	// When it returns true the poller halts. Optional.
	ShouldStop func(T) bool
}

// Poller drives a fetch function on a sequential interval schedule. A Poller
// is owned by the component that created it and must not be shared across
// concurrent viewers; its callbacks are invoked from a single goroutine.
type Poller[T any] struct {
	cfg Config[T]

	mu      sync.Mutex
	running bool
	gen     uint64
	cancel  context.CancelFunc
	wake    chan struct{}
	parent  context.Context
	lastErr error
}

// New creates a Poller. The poller is idle until Start is called.
func New[T any](cfg Config[T]) *Poller[T] {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &Poller[T]{cfg: cfg}
}

// Start arms the poller: an immediate fetch fires first (no initial delay),
// then fetches repeat on the configured interval until the stop predicate
// fires, a fetch fails, Stop is called, or ctx is canceled. Starting an
// already-armed poller is a no-op. Starting after a previous halt resets the
// stop state and resumes from the immediate fetch.
func (p *Poller[T]) Start(ctx context.Context) error {
	if p.cfg.Fetch == nil {
		return ErrNoFetch
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parent = ctx
	if p.running {
		return nil
	}
	p.armLocked(ctx)
	return nil
}

// armLocked launches the polling goroutine. Callers must hold p.mu.
func (p *Poller[T]) armLocked(ctx context.Context) {
	p.gen++
	p.running = true
	p.lastErr = nil

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wake = make(chan struct{}, 1)

	go p.loop(loopCtx, p.gen, p.wake)
}

// Stop disarms the poller, canceling any pending scheduled tick immediately.
// An in-flight fetch is abandoned: its result is discarded and no callback is
// invoked for it. Stop is idempotent.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller[T]) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.running = false
}

// Refetch clears the halt state and triggers one immediate fetch, independent
// of the schedule. If the poller is currently armed the next fetch fires
// right away; if it previously halted (stop predicate or fetch failure) it is
// re-armed with the context passed to the last Start.
func (p *Poller[T]) Refetch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = nil
	if p.running {
		select {
		case p.wake <- struct{}{}:
		default:
		}
		return
	}
	if p.parent == nil || p.parent.Err() != nil {
		return
	}
	p.armLocked(p.parent)
}

// Polling reports whether the poller is currently armed.
func (p *Poller[T]) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastError returns the error that halted polling, or nil.
func (p *Poller[T]) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// loop performs sequential fetches until halted. gen identifies this arming;
// a result whose generation no longer matches is discarded without applying
// any state, which protects against requests that resolve after Stop or
// after a re-arm.
func (p *Poller[T]) loop(ctx context.Context, gen uint64, wake <-chan struct{}) {
	for {
		value, err := p.cfg.Fetch(ctx)

		p.mu.Lock()
		if ctx.Err() != nil || p.gen != gen {
			// The poller was stopped or re-armed while this fetch was in
			// flight. Discard the result.
			p.mu.Unlock()
			return
		}
		if err != nil {
			// Fail-stop: record the error, halt, and leave restarting to the
			// caller via Refetch or Start.
			p.lastErr = err
			p.stopLocked()
			p.mu.Unlock()
			if p.cfg.OnError != nil {
				p.cfg.OnError(err)
			}
			return
		}
		p.mu.Unlock()

		if p.cfg.OnSuccess != nil {
			p.cfg.OnSuccess(value)
		}

		if p.cfg.ShouldStop != nil && p.cfg.ShouldStop(value) {
			p.mu.Lock()
			if p.gen == gen {
				p.stopLocked()
			}
			p.mu.Unlock()
			return
		}

		timer := time.NewTimer(p.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// nextDelay returns the interval plus a random jitter in [0, Jitter).
func (p *Poller[T]) nextDelay() time.Duration {
	d := p.cfg.Interval
	if p.cfg.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.cfg.Jitter)))
	}
	return d
}
