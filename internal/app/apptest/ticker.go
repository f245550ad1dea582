// Package apptest provides a hand-driven tick source for timer-dependent tests.
package apptest

import (
	"sync"
	"testing"
	"time"
)

// ManualTicker delivers a tick only when Tick is called.
type ManualTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (m *ManualTicker) C() <-chan time.Time { return m.c }

func (m *ManualTicker) Stop() {
	m.once.Do(func() { close(m.stopped) })
}

// Tick blocks until the timer goroutine has received the tick.
func (m *ManualTicker) Tick(t testing.TB) {
	t.Helper()
	select {
	case m.c <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatalf("tick not consumed")
	}
}

// WaitStopped fails the test unless Stop is called within the deadline.
func (m *ManualTicker) WaitStopped(t testing.TB) {
	t.Helper()
	select {
	case <-m.stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("ticker was not stopped")
	}
}

// Tickers hands out ManualTickers and lets the test pick them up in order.
type Tickers struct {
	created chan *ManualTicker
}

func NewTickers() *Tickers {
	return &Tickers{created: make(chan *ManualTicker, 16)}
}

// New is the factory; adapt it to app.TickerFactory at the call site.
func (s *Tickers) New(time.Duration) *ManualTicker {
	m := &ManualTicker{c: make(chan time.Time), stopped: make(chan struct{})}
	s.created <- m
	return m
}

// Next returns the next ticker created by a started timer.
func (s *Tickers) Next(t testing.TB) *ManualTicker {
	t.Helper()
	select {
	case m := <-s.created:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("no ticker created")
		return nil
	}
}
