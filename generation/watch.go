package generation

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/postpulse/errors"
)

// reloadDebounce collapses editor save bursts into one reload.
const reloadDebounce = 250 * time.Millisecond

// OnReload registers fn to run after every watcher-triggered reload.
func (k *Knowledge) OnReload(fn func()) {
	k.watchMu.Lock()
	defer k.watchMu.Unlock()
	k.onReload = append(k.onReload, fn)
}

// Watch reindexes the knowledge directory when markdown files change, until
// ctx is done. It returns once the watcher is established.
func (k *Knowledge) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fsnotify watcher")
	}
	// types/ may be created later; watching the root catches that
	for _, dir := range []string{k.root, filepath.Join(k.root, typesDir)} {
		if err := w.Add(dir); err != nil && dir == k.root {
			w.Close()
			return errors.Wrapf(err, "failed to watch knowledge dir %s", dir)
		}
	}

	go k.watchLoop(ctx, w)
	return nil
}

func (k *Knowledge) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Name == filepath.Join(k.root, typesDir) && event.Op&fsnotify.Create != 0 {
				if err := w.Add(event.Name); err != nil {
					k.log.Warnw("Failed to watch knowledge types dir", "error", err)
				}
			}
			if !relevant(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			if err := k.Reload(); err != nil {
				k.log.Errorw("Knowledge reload failed", "error", err)
				continue
			}
			k.log.Infow("Knowledge reloaded", "types", len(k.ListTypes()))
			k.watchMu.Lock()
			callbacks := append([]func(){}, k.onReload...)
			k.watchMu.Unlock()
			for _, fn := range callbacks {
				fn()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			k.log.Warnw("Knowledge watcher error", "error", err)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return strings.HasSuffix(event.Name, ".md") || filepath.Base(event.Name) == typesDir
}
