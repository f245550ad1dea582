package app

import (
	"fmt"
	"sync"
	"time"

	"dental-quest-service/internal/domain"
)

// Ticker is the tick source driving a Timer.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker is the production TickerFactory.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Timer counts down from a limit in whole seconds and fires exactly one expiry.
type Timer struct {
	limit     int
	newTicker TickerFactory

	mu        sync.Mutex
	remaining int
	started   bool
	stopped   bool
	stop      chan struct{}
	done      chan struct{}
}

func NewTimer(limitSeconds int, newTicker TickerFactory) (*Timer, error) {
	if limitSeconds <= 0 {
		return nil, fmt.Errorf("%w: time limit must be positive, got %d", domain.ErrConfiguration, limitSeconds)
	}
	if newTicker == nil {
		newTicker = NewRealTicker
	}
	return &Timer{
		limit:     limitSeconds,
		newTicker: newTicker,
		remaining: limitSeconds,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start begins the countdown. onTick receives the remaining seconds after each
// decrement above zero; onExpire runs once when zero is reached. Neither
// callback may call Stop. Start on a started timer is a no-op.
func (t *Timer) Start(onTick func(remaining int), onExpire func()) {
	t.mu.Lock()
	if t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	ticker := t.newTicker(time.Second)
	go t.run(ticker, onTick, onExpire)
}

func (t *Timer) run(ticker Ticker, onTick func(int), onExpire func()) {
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			close(t.done)
			return
		case <-ticker.C():
			t.mu.Lock()
			if t.stopped {
				t.mu.Unlock()
				close(t.done)
				return
			}
			t.remaining--
			remaining := t.remaining
			expired := remaining <= 0
			if expired {
				t.remaining = 0
				t.stopped = true
			}
			t.mu.Unlock()

			if expired {
				// done is closed first so that a Stop issued from the expiry
				// path returns immediately.
				close(t.done)
				if onExpire != nil {
					onExpire()
				}
				return
			}
			if onTick != nil {
				onTick(remaining)
			}
		}
	}
}

// Stop cancels the countdown. Once it returns no further tick or expiry fires.
// It reports whether the timer was still counting.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	if t.stopped {
		started := t.started
		t.mu.Unlock()
		if started {
			<-t.done
		}
		return false
	}
	t.stopped = true
	started := t.started
	close(t.stop)
	t.mu.Unlock()

	if started {
		<-t.done
	}
	return true
}

// Remaining returns the seconds left; it never goes below zero.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Elapsed returns the whole seconds counted so far.
func (t *Timer) Elapsed() int {
	return t.limit - t.Remaining()
}

func (t *Timer) Limit() int {
	return t.limit
}
