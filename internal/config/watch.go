package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchDebounce is how long Watch waits after the last write before reloading.
var WatchDebounce = 500 * time.Millisecond

// Watch reloads the config file at path whenever it changes and hands each
// successfully loaded version to onChange. prepare, when set, runs on every
// reload before validation so command-line overrides survive. It blocks
// until ctx is done. The parent directory is watched so editors that replace
// the file on save are still seen.
func Watch(ctx context.Context, path string, log *zap.Logger, prepare, onChange func(*Global)) error {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	timer := time.NewTimer(0)
	<-timer.C
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(WatchDebounce)
		case <-timer.C:
			c, err := Load(abs)
			if err != nil {
				log.Error("config reload failed", zap.String("path", abs), zap.Error(err))
				continue
			}
			if prepare != nil {
				prepare(c)
			}
			if err := c.Validate(); err != nil {
				log.Error("reloaded config rejected", zap.String("path", abs), zap.Error(err))
				continue
			}
			log.Info("config reloaded", zap.String("path", abs))
			onChange(c)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("config watcher error", zap.Error(err))
		}
	}
}
