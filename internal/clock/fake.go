package clock

import (
	"sort"
	"time"
)

// Fake is a deterministic Clock and Scheduler for tests. Callbacks run inside
// Advance, in due-time order.
type Fake struct {
	now   time.Time
	seq   int
	tasks []*fakeTask
}

type fakeTask struct {
	due      time.Time
	seq      int
	fn       func()
	finished bool
}

func (t *fakeTask) Cancel() bool {
	if t.finished {
		return false
	}
	t.finished = true
	return true
}

// NewFake returns a Fake starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now implements Clock.
func (f *Fake) Now() time.Time {
	return f.now
}

// After implements Scheduler.
func (f *Fake) After(d time.Duration, fn func()) Handle {
	f.seq++
	task := &fakeTask{due: f.now.Add(d), seq: f.seq, fn: fn}
	f.tasks = append(f.tasks, task)
	return task
}

// Pending returns the number of callbacks not yet run or cancelled.
func (f *Fake) Pending() int {
	n := 0
	for _, t := range f.tasks {
		if !t.finished {
			n++
		}
	}
	return n
}

// Advance moves time forward by d, running every callback that falls due,
// including callbacks scheduled by earlier callbacks.
func (f *Fake) Advance(d time.Duration) {
	target := f.now.Add(d)
	for {
		next := f.nextDue(target)
		if next == nil {
			break
		}
		f.now = next.due
		next.finished = true
		next.fn()
	}
	f.now = target
	f.compact()
}

func (f *Fake) nextDue(limit time.Time) *fakeTask {
	var live []*fakeTask
	for _, t := range f.tasks {
		if !t.finished && !t.due.After(limit) {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].due.Equal(live[j].due) {
			return live[i].seq < live[j].seq
		}
		return live[i].due.Before(live[j].due)
	})
	return live[0]
}

func (f *Fake) compact() {
	kept := f.tasks[:0]
	for _, t := range f.tasks {
		if !t.finished {
			kept = append(kept, t)
		}
	}
	f.tasks = kept
}
