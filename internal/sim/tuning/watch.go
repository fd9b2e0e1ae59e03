package tuning

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads path whenever it changes and hands valid results to apply. Invalid files
// are logged and ignored. The parent directory is watched so editors that replace the
// file by rename are still seen. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, logger *log.Logger, apply func(Tuning)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if logger != nil {
				logger.Printf("tuning watch: %v", err)
			}
		case <-fire:
			fire = nil
			t, err := Load(abs)
			if err != nil {
				if logger != nil {
					logger.Printf("tuning reload rejected: %v", err)
				}
				continue
			}
			if logger != nil {
				logger.Printf("tuning reloaded from %s", filepath.Base(abs))
			}
			apply(t)
		}
	}
}
