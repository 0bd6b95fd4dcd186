package store

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch calls onChange after the database file at path, or its WAL or
// journal, has been written. Bursts of events within debounce collapse into
// one call. Watch blocks until ctx is done. Errors from onChange are logged
// and do not stop the watch.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *zap.Logger, onChange func() error) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fsnotify watcher")
	}
	defer watcher.Close()

	// SQLite replaces and creates sibling files, so watch the directory.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}

	base := filepath.Base(path)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, base) {
				continue
			}
			logger.Debug("database changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("database watcher error", zap.Error(err))

		case <-timer.C:
			if err := onChange(); err != nil {
				logger.Error("reload after database change failed", zap.Error(err))
			}
		}
	}
}

// relevant reports whether event is a write to the database or one of its
// WAL or rollback journal files.
func relevant(event fsnotify.Event, base string) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Base(event.Name)
	switch {
	case name == base:
		return true
	case strings.HasPrefix(name, base+"-"):
		suffix := strings.TrimPrefix(name, base+"-")
		return suffix == "wal" || suffix == "journal"
	default:
		return false
	}
}
