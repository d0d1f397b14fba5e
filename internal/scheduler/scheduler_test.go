package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebounceCollapsesBurst(t *testing.T) {
	var scans atomic.Int32
	s := New(Options{
		Debounce: 50 * time.Millisecond,
		Scan: func() error {
			scans.Add(1)
			return nil
		},
	})
	s.Start()
	defer s.Stop()

	// Three notifications inside one debounce window.
	s.Notify()
	time.Sleep(10 * time.Millisecond)
	s.Notify()
	time.Sleep(10 * time.Millisecond)
	s.Notify()

	time.Sleep(300 * time.Millisecond)

	if got := scans.Load(); got != 1 {
		t.Errorf("expected exactly 1 scan for a burst of 3 notifications, got %d", got)
	}
}

func TestNotificationResetsDebounceWindow(t *testing.T) {
	var scans atomic.Int32
	s := New(Options{
		Debounce: 80 * time.Millisecond,
		Scan: func() error {
			scans.Add(1)
			return nil
		},
	})
	s.Start()
	defer s.Stop()

	s.Notify()
	// Keep poking before the window can elapse.
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		if got := scans.Load(); got != 0 {
			t.Fatalf("scan ran while notifications kept arriving (after %d pokes)", i)
		}
		s.Notify()
	}

	time.Sleep(300 * time.Millisecond)
	if got := scans.Load(); got != 1 {
		t.Errorf("expected 1 scan after the burst settled, got %d", got)
	}
}

func TestEventDuringScanQueuesFollowUp(t *testing.T) {
	var scans atomic.Int32
	started := make(chan struct{}, 2)
	release := make(chan struct{})

	s := New(Options{
		Debounce: 10 * time.Millisecond,
		Scan: func() error {
			n := scans.Add(1)
			started <- struct{}{}
			if n == 1 {
				<-release
			}
			return nil
		},
	})
	s.Start()
	defer s.Stop()

	s.Notify()
	<-started // first scan is in flight

	if got := s.State(); got != Scanning {
		t.Fatalf("expected Scanning state, got %v", got)
	}

	// Changes landing mid-scan must produce exactly one follow-up scan.
	s.Notify()
	s.Notify()
	close(release)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("follow-up scan never started")
	}

	time.Sleep(200 * time.Millisecond)
	if got := scans.Load(); got != 2 {
		t.Errorf("expected 2 scans (one in flight, one follow-up), got %d", got)
	}
}

func TestScansNeverOverlap(t *testing.T) {
	var inFlight atomic.Int32
	var overlapped atomic.Bool

	s := New(Options{
		Debounce: 5 * time.Millisecond,
		Scan: func() error {
			if inFlight.Add(1) > 1 {
				overlapped.Store(true)
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		},
	})
	s.Start()

	for i := 0; i < 10; i++ {
		s.Notify()
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if overlapped.Load() {
		t.Error("two scans ran concurrently")
	}
}

func TestPeriodicIntervalScansWithoutNotifications(t *testing.T) {
	var scans atomic.Int32
	s := New(Options{
		Debounce: 5 * time.Millisecond,
		Interval: 50 * time.Millisecond,
		Scan: func() error {
			scans.Add(1)
			return nil
		},
	})
	s.Start()
	defer s.Stop()

	time.Sleep(300 * time.Millisecond)

	if got := scans.Load(); got < 2 {
		t.Errorf("expected periodic scans to fire, got %d", got)
	}
}

func TestStopWaitsForInflightScan(t *testing.T) {
	finished := make(chan struct{})
	started := make(chan struct{})

	s := New(Options{
		Debounce: time.Millisecond,
		Scan: func() error {
			close(started)
			time.Sleep(50 * time.Millisecond)
			close(finished)
			return nil
		},
	})
	s.Start()
	s.Notify()
	<-started

	s.Stop()

	select {
	case <-finished:
	default:
		t.Error("Stop returned before the in-flight scan finished")
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || ScanQueued.String() != "scan-queued" || Scanning.String() != "scanning" {
		t.Error("state names changed")
	}
}
