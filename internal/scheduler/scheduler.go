// Package scheduler turns filesystem change notifications into debounced
// scan runs. Bursts of events (an installer rewriting dozens of bundles)
// collapse into a single scan, scheduled after the burst quiets down, and
// scans never overlap.
package scheduler

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// State is the scheduler's position in its scan lifecycle.
type State int

const (
	// Idle: no scan pending, waiting for a change notification.
	Idle State = iota
	// ScanQueued: a change arrived; the debounce timer is running.
	ScanQueued
	// Scanning: a scan is in flight. Further changes queue one follow-up.
	Scanning
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ScanQueued:
		return "scan-queued"
	case Scanning:
		return "scanning"
	default:
		return "unknown"
	}
}

// ScanFunc runs one full scan cycle. Errors are logged, never fatal to the
// scheduler; the next notification gets a fresh attempt.
type ScanFunc func() error

// Options configures a Scheduler.
type Options struct {
	// Debounce is how long the scheduler waits after the last notification
	// before scanning. Each new notification restarts the wait.
	Debounce time.Duration

	// Interval triggers a periodic scan even without notifications, catching
	// changes the event source missed. Zero disables periodic scans.
	Interval time.Duration

	// Scan runs one scan cycle. Required.
	Scan ScanFunc
}

// Scheduler serializes scan runs behind a debounce window.
type Scheduler struct {
	debounce time.Duration
	interval time.Duration
	scan     ScanFunc

	events chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu    sync.Mutex
	state State
}

// New creates a stopped scheduler. Call Start to begin processing.
func New(opts Options) *Scheduler {
	return &Scheduler{
		debounce: opts.Debounce,
		interval: opts.Interval,
		scan:     opts.Scan,
		events:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		state:    Idle,
	}
}

// Notify reports a filesystem change. Never blocks: notifications arriving
// faster than the scheduler drains them coalesce into one.
func (s *Scheduler) Notify() {
	select {
	case s.events <- struct{}{}:
	default:
	}
}

// State reports the scheduler's current lifecycle position.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Start launches the scheduling loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop halts the scheduler. A scan already in flight finishes first.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// The debounce timer starts drained; it only runs while in ScanQueued.
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker = time.NewTicker(s.interval)
		tick = ticker.C
		defer ticker.Stop()
	}

	pending := false
	scanDone := make(chan error, 1)

	for {
		select {
		case <-s.events:
			switch s.State() {
			case Idle:
				s.setState(ScanQueued)
				resetTimer(timer, s.debounce)
			case ScanQueued:
				// Burst in progress: push the window out again.
				resetTimer(timer, s.debounce)
			case Scanning:
				pending = true
			}

		case <-tick:
			// Periodic rescan follows the same path as a notification, so it
			// also debounces and never overlaps.
			switch s.State() {
			case Idle:
				s.setState(ScanQueued)
				resetTimer(timer, s.debounce)
			case Scanning:
				pending = true
			}

		case <-timer.C:
			if s.State() != ScanQueued {
				continue
			}
			s.setState(Scanning)
			go func() {
				scanDone <- s.scan()
			}()

		case err := <-scanDone:
			if err != nil {
				fmt.Fprintf(os.Stderr, "scheduler: scan failed: %v\n", err)
			}
			if pending {
				pending = false
				s.setState(ScanQueued)
				resetTimer(timer, s.debounce)
			} else {
				s.setState(Idle)
			}

		case <-s.stopCh:
			if s.State() == Scanning {
				if err := <-scanDone; err != nil {
					fmt.Fprintf(os.Stderr, "scheduler: scan failed: %v\n", err)
				}
			}
			s.setState(Idle)
			return
		}
	}
}

// resetTimer restarts a timer whose channel is drained only by the run loop.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
