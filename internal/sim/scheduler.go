package sim

import (
	"sync"
	"time"
)

// Scheduler runs callbacks periodically. The returned cancel func stops
// future invocations; an invocation already running is not interrupted.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func())
}

// TickerScheduler drives callbacks from real tickers. Callbacks never overlap:
// all of them run under one lock, so the store sees a single cooperative
// thread of simulation.
type TickerScheduler struct {
	mu sync.Mutex
}

// NewTickerScheduler returns a scheduler backed by time.Ticker.
func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{}
}

// Every starts a ticker goroutine for fn.
func (s *TickerScheduler) Every(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				s.mu.Lock()
				fn()
				s.mu.Unlock()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// ManualScheduler runs callbacks against a virtual clock advanced by the
// caller. It makes simulations reproducible.
type ManualScheduler struct {
	mu   sync.Mutex
	now  time.Duration
	jobs []*manualJob
	seq  int
}

type manualJob struct {
	seq       int
	interval  time.Duration
	next      time.Duration
	fn        func()
	cancelled bool
}

// NewManualScheduler returns a scheduler whose clock starts at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Every registers fn to run every interval of virtual time.
func (s *ManualScheduler) Every(interval time.Duration, fn func()) func() {
	if interval <= 0 {
		panic("sim: non-positive interval")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	j := &manualJob{seq: s.seq, interval: interval, next: s.now + interval, fn: fn}
	s.jobs = append(s.jobs, j)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		j.cancelled = true
		for i, other := range s.jobs {
			if other == j {
				s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
				break
			}
		}
	}
}

// Advance moves the clock forward by d, running every callback that falls
// due in time order. Callbacks due at the same instant run in registration
// order. It returns the number of callbacks run.
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	fired := 0
	for {
		s.mu.Lock()
		var due *manualJob
		for _, j := range s.jobs {
			if j.next > target {
				continue
			}
			if due == nil || j.next < due.next || (j.next == due.next && j.seq < due.seq) {
				due = j
			}
		}
		if due == nil {
			s.now = target
			s.mu.Unlock()
			return fired
		}
		s.now = due.next
		due.next += due.interval
		s.mu.Unlock()

		due.fn()
		fired++
	}
}

// Now returns the virtual time elapsed since the scheduler was created.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of registered callbacks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
