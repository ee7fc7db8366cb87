// Package clock provides the monotonic clock and cancellable delayed callbacks
// that drive every phase transition.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Handle identifies a pending callback.
type Handle interface {
	// Cancel prevents the callback from running. It returns false when the
	// callback already ran or was already cancelled.
	Cancel() bool
}

// Scheduler runs callbacks after a delay on the caller's logical thread.
type Scheduler interface {
	After(d time.Duration, fn func()) Handle
}

// System is the wall clock.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time {
	return time.Now()
}

// Loop is a Scheduler whose callbacks are not run by timer goroutines but
// queued on a channel. The owner of the event loop drains C and calls each
// function, so every state transition happens on one goroutine.
type Loop struct {
	ch   chan func()
	done chan struct{}
	once sync.Once
}

// NewLoop returns a Loop with a small buffer.
func NewLoop() *Loop {
	return &Loop{
		ch:   make(chan func(), 16),
		done: make(chan struct{}),
	}
}

// C returns the queue of due callbacks.
func (l *Loop) C() <-chan func() {
	return l.ch
}

// Close stops delivery of pending callbacks.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}

type loopTask struct {
	timer *time.Timer
	fn    func()
	// finished is only touched on the loop goroutine.
	finished bool
}

func (t *loopTask) Cancel() bool {
	if t.finished {
		return false
	}
	t.finished = true
	t.timer.Stop()
	return true
}

func (t *loopTask) run() {
	if t.finished {
		return
	}
	t.finished = true
	t.fn()
}

// After implements Scheduler.
func (l *Loop) After(d time.Duration, fn func()) Handle {
	task := &loopTask{fn: fn}
	task.timer = time.AfterFunc(d, func() {
		select {
		case l.ch <- task.run:
		case <-l.done:
		}
	})
	return task
}

// Slot holds at most one pending callback. Arming a slot cancels whatever it
// held before.
type Slot struct {
	handle Handle
}

// Arm schedules fn on s after d, replacing any pending callback.
func (s *Slot) Arm(sched Scheduler, d time.Duration, fn func()) {
	s.Cancel()
	var h Handle
	h = sched.After(d, func() {
		if s.handle == h {
			s.handle = nil
		}
		fn()
	})
	s.handle = h
}

// Cancel drops the pending callback, if any.
func (s *Slot) Cancel() bool {
	if s.handle == nil {
		return false
	}
	ok := s.handle.Cancel()
	s.handle = nil
	return ok
}

// Pending reports whether a callback is waiting.
func (s *Slot) Pending() bool {
	return s.handle != nil
}
