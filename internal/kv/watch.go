package kv

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/quill/internal/apperr"
)

const watchDebounce = 200 * time.Millisecond

// ChangeCallback is called with the key whose file was changed by another
// process (an editor, a second CLI invocation, a sync tool).
type ChangeCallback func(key string)

// Watch observes the data directory until ctx is cancelled and calls cb for
// every key whose file content changed without going through this FS value.
// Bursts of events for the same key are coalesced.
func (f *FS) Watch(ctx context.Context, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(f.root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", f.root))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func(key string) {
		pending[key] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(watchDebounce)
			timerCh = timer.C
		} else {
			timer.Reset(watchDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			for key := range pending {
				delete(pending, key)
				f.dispatch(key, logger, cb)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			key, ok := keyFor(ev.Name)
			if !ok {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			schedule(key)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (f *FS) dispatch(key string, logger *slog.Logger, cb ChangeCallback) {
	data, err := f.Get(key)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		logger.Debug("watcher: key removed", slog.String("key", key))
	case err != nil:
		logger.Warn("watcher: read failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	case f.ownWrite(key, data):
		return
	default:
		logger.Debug("watcher: external change", slog.String("key", key))
	}
	if cb != nil {
		cb(key)
	}
}
