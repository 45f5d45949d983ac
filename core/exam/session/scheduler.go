package session

import (
	"sync"
	"time"
)

type (
	// Timer is a cancellable scheduled call.
	Timer interface {
		Stop() bool
	}

	// Scheduler runs `f` once after `d`.
	Scheduler interface {
		AfterFunc(d time.Duration, f func()) Timer
	}
)

type clockScheduler struct{}

// SystemScheduler schedules on the wall clock.
var SystemScheduler Scheduler = clockScheduler{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualScheduler is a Scheduler driven by virtual time: nothing fires until Advance is called.
// Due callbacks run synchronously on the goroutine calling Advance, in due-time order.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	s    *ManualScheduler
	at   time.Duration
	seq  int
	f    func()
	done bool
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{s: m, at: m.now + d, seq: m.seq, f: f}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves virtual time forward by `d`, firing every timer that falls due.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var next *manualTimer
		for _, t := range m.timers {
			if t.done || t.at > target {
				continue
			}
			if next == nil || t.at < next.at || (t.at == next.at && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			m.now = target
			m.compact()
			m.mu.Unlock()
			return
		}
		next.done = true
		if next.at > m.now {
			m.now = next.at
		}
		m.mu.Unlock()

		next.f()
	}
}

// Pending returns the number of timers not fired nor stopped yet.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for _, t := range m.timers {
		if !t.done {
			n++
		}
	}
	return n
}

func (m *ManualScheduler) compact() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.done {
			live = append(live, t)
		}
	}
	m.timers = live
}
