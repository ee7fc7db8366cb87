package clock

import (
	"testing"
	"time"
)

func TestFakeRunsCallbacksInOrder(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var order []int
	f.After(300*time.Millisecond, func() { order = append(order, 3) })
	f.After(100*time.Millisecond, func() {
		order = append(order, 1)
		f.After(100*time.Millisecond, func() { order = append(order, 2) })
	})
	f.Advance(time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("unexpected order: %v", order)
	}
	if f.Pending() != 0 {
		t.Fatalf("expected no pending tasks, got %d", f.Pending())
	}
}

func TestFakeCancel(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	fired := false
	h := f.After(time.Second, func() { fired = true })
	if !h.Cancel() {
		t.Fatalf("expected first cancel to succeed")
	}
	if h.Cancel() {
		t.Fatalf("expected second cancel to report false")
	}
	f.Advance(2 * time.Second)
	if fired {
		t.Fatalf("cancelled callback fired")
	}
}

func TestSlotReplacesPendingCallback(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var slot Slot
	var fired []string
	slot.Arm(f, time.Second, func() { fired = append(fired, "first") })
	slot.Arm(f, 2*time.Second, func() { fired = append(fired, "second") })
	if f.Pending() != 1 {
		t.Fatalf("expected exactly one pending callback, got %d", f.Pending())
	}
	f.Advance(3 * time.Second)
	if len(fired) != 1 || fired[0] != "second" {
		t.Fatalf("unexpected callbacks: %v", fired)
	}
	if slot.Pending() {
		t.Fatalf("slot should be empty after firing")
	}
	if slot.Cancel() {
		t.Fatalf("cancel on empty slot should report false")
	}
}

func TestLoopDeliversOnChannel(t *testing.T) {
	l := NewLoop()
	defer l.Close()
	fired := false
	l.After(5*time.Millisecond, func() { fired = true })
	select {
	case fn := <-l.C():
		fn()
	case <-time.After(time.Second):
		t.Fatalf("callback was not delivered")
	}
	if !fired {
		t.Fatalf("expected callback to run")
	}
}

func TestLoopCancelBeforeRun(t *testing.T) {
	l := NewLoop()
	defer l.Close()
	fired := false
	h := l.After(time.Millisecond, func() { fired = true })
	fn := <-l.C()
	if !h.Cancel() {
		t.Fatalf("expected cancel to win before the loop ran the callback")
	}
	fn()
	if fired {
		t.Fatalf("callback ran after cancel")
	}
}
