package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watch feeds filesystem events from the plugin folder into a Scheduler.
// The root folder and each bundle directory directly under it are watched;
// deeper changes inside a bundle are caught by the scheduler's periodic
// rescan interval.
type Watch struct {
	fw     *fsnotify.Watcher
	root   string
	notify func()
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWatch creates a watch over root that calls notify on every relevant
// event. Returns an error when the platform watcher cannot be created or the
// root cannot be watched; callers fall back to interval-only scanning.
func NewWatch(root string, notify func()) (*Watch, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	if err := fw.Add(root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}

	w := &Watch{
		fw:     fw,
		root:   root,
		notify: notify,
		stopCh: make(chan struct{}),
	}
	w.watchBundleDirs()

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// watchBundleDirs adds a watch for each directory directly under the root so
// that writes inside a bundle surface as events. Failures are logged and
// skipped; the periodic rescan covers what the watch misses.
func (w *Watch) watchBundleDirs() {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch: cannot list %s: %v\n", w.root, err)
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(w.root, entry.Name())
		if err := w.fw.Add(path); err != nil {
			fmt.Fprintf(os.Stderr, "watch: cannot watch %s: %v\n", path, err)
		}
	}
}

func (w *Watch) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				// A new bundle directory needs its own watch.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.fw.Add(event.Name); err != nil {
						fmt.Fprintf(os.Stderr, "watch: cannot watch %s: %v\n", event.Name, err)
					}
				}
			}
			w.notify()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)

		case <-w.stopCh:
			return
		}
	}
}

// Close stops the watch and releases its platform resources.
func (w *Watch) Close() error {
	close(w.stopCh)
	err := w.fw.Close()
	w.wg.Wait()
	return err
}
