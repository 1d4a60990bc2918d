package scheduler

import (
	"context"
	"sync"
	"time"
)

// GuardedSlot is a cell holding at most one active timer. Installing into
// an occupied slot is a no-op; clearing an empty slot is a no-op. This is
// the Go shape of the framework's set_guarded/set_guarded_interval timer
// discipline (spec.md §5).
type GuardedSlot struct {
	mu     sync.Mutex
	active bool
	stop   chan struct{}
	done   chan struct{}
}

// Active reports whether the slot currently holds a running timer.
func (g *GuardedSlot) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// SetGuarded installs a one-shot timer that fires task once after delay,
// then clears itself. It returns false without effect if the slot is
// already occupied.
func (g *GuardedSlot) SetGuarded(delay time.Duration, task func(ctx context.Context)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active {
		return false
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	g.stop, g.done, g.active = stop, done, true

	go func() {
		defer close(done)
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-stop:
			return
		case <-timer.C:
		}
		task(context.Background())
		g.mu.Lock()
		if g.stop == stop {
			g.active = false
		}
		g.mu.Unlock()
	}()
	return true
}

// SetGuardedInterval installs a one-shot delay timer that, on firing,
// atomically hands off to a recurring ticker at interval — the "init
// timer -> recurring timer" handover of spec.md §5. It returns false
// without effect if the slot is already occupied.
func (g *GuardedSlot) SetGuardedInterval(initialDelay, interval time.Duration, task func(ctx context.Context)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active {
		return false
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	g.stop, g.done, g.active = stop, done, true

	go func() {
		defer close(done)
		initTimer := time.NewTimer(initialDelay)
		select {
		case <-stop:
			initTimer.Stop()
			return
		case <-initTimer.C:
		}
		task(context.Background())

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				task(context.Background())
			}
		}
	}()
	return true
}

// Clear stops the slot's timer, if any, and blocks until its goroutine
// has exited. Calling Clear on an empty slot is a no-op.
func (g *GuardedSlot) Clear() {
	g.mu.Lock()
	if !g.active {
		g.mu.Unlock()
		return
	}
	stop, done := g.stop, g.done
	g.active = false
	g.mu.Unlock()

	close(stop)
	<-done
}
