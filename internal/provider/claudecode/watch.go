package claudecode

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay batches the burst of writes a single CLI turn produces
// into one refresh nudge.
const debounceDelay = 2 * time.Second

// Watcher observes the projects tree for JSONL writes and calls onActivity
// (debounced) so the orchestrator can refresh ahead of the next timer tick.
type Watcher struct {
	fsw        *fsnotify.Watcher
	onActivity func()

	mu      sync.Mutex
	pending *time.Timer
	closed  bool
}

func NewWatcher(projectsDir string, onActivity func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{fsw: fsw, onActivity: onActivity}

	// Watch the tree that exists now; newly created project directories
	// are added as their create events arrive.
	_ = filepath.Walk(projectsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if err := fsw.Add(path); err != nil {
				log.Printf("[claudecode] watch %s: %v", path, err)
			}
		}
		return nil
	})

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.fsw.Add(event.Name)
					continue
				}
			}
			if !strings.HasSuffix(event.Name, ".jsonl") {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				w.schedule()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("[claudecode] watcher error: %v", err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(debounceDelay, w.onActivity)
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
