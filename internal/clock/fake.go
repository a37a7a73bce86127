package clock

import (
	"slices"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Timer callbacks run synchronously inside Advance,
// in deadline order, on the caller's goroutine.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	tickers []*fakeTicker
}

// NewFake returns a Fake clock set to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{clock: f, period: d, next: f.now.Add(d), ch: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, deadline: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// PendingTimers reports the number of armed timers.
func (f *Fake) PendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// Advance moves the clock forward by d, firing due timers and tickers.
// Tickers drop ticks when their buffered channel is full, like time.Ticker.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		next := f.nextDueLocked(target)
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		switch ev := next.(type) {
		case *fakeTimer:
			f.now = ev.deadline
			f.removeTimerLocked(ev)
			f.mu.Unlock()
			ev.fn()
		case *fakeTicker:
			f.now = ev.next
			ev.next = ev.next.Add(ev.period)
			now := f.now
			f.mu.Unlock()
			select {
			case ev.ch <- now:
			default:
			}
		}
	}
}

// nextDueLocked returns the earliest timer or ticker due at or before target.
// Timers win ties so a cooldown that ends on a tick boundary is visible to that tick.
func (f *Fake) nextDueLocked(target time.Time) any {
	var best any
	var bestAt time.Time
	for _, t := range f.timers {
		if !t.deadline.After(target) && (best == nil || t.deadline.Before(bestAt)) {
			best, bestAt = t, t.deadline
		}
	}
	for _, t := range f.tickers {
		if !t.next.After(target) && (best == nil || t.next.Before(bestAt)) {
			best, bestAt = t, t.next
		}
	}
	return best
}

func (f *Fake) removeTimerLocked(t *fakeTimer) bool {
	idx := slices.Index(f.timers, t)
	if idx < 0 {
		return false
	}
	f.timers = slices.Delete(f.timers, idx, idx+1)
	return true
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	fn       func()
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.clock.removeTimerLocked(t)
}

type fakeTicker struct {
	clock  *Fake
	period time.Duration
	next   time.Time
	ch     chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if idx := slices.Index(t.clock.tickers, t); idx >= 0 {
		t.clock.tickers = slices.Delete(t.clock.tickers, idx, idx+1)
	}
}
