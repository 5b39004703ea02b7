package feature

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last write to a
// file before republishing it. Editors often fire several events per save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher republishes .feature files when they change on disk. Parse and
// publish failures are logged and skipped; a broken file must not stop
// the watcher.
type Watcher struct {
	publisher *Publisher
	dir       string
	debounce  time.Duration
	actor     string

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher creates a watcher over a features directory
func NewWatcher(publisher *Publisher, dir string) *Watcher {
	return &Watcher{
		publisher: publisher,
		dir:       dir,
		debounce:  DefaultDebounce,
		actor:     "feature-watcher",
		timers:    make(map[string]*time.Timer),
	}
}

// Run watches until the context is cancelled. It blocks, so callers run it
// in a goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	log.Printf("[FEATURE] watching %s", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".feature") {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("[FEATURE] watch error: %v", err)
		}
	}
}

// schedule (re)arms the debounce timer for a file
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		result, err := w.publisher.PublishFile(ctx, path, "", w.actor)
		if err != nil {
			log.Printf("[FEATURE] publish %s failed: %v", path, err)
			return
		}
		log.Printf("[FEATURE] republished %s: %d cases", path, len(result.CaseIDs))
	})
}
