package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher observes the config file and delivers the merged config to a
// callback after a debounce window. Editors tend to emit bursts of
// write/rename events for a single save.
type Watcher struct {
	cfg      Config
	debounce time.Duration
	logger   *zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange func(Config)
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewWatcher(cfg Config, debounce time.Duration, logger *zerolog.Logger, onChange func(Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		cfg:      cfg,
		debounce: debounce,
		logger:   logger,
		watcher:  fsWatcher,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	// Watch the directory: editors replace files on save, which drops the
	// watch when it targets the file itself.
	if err := fsWatcher.Add(filepath.Dir(cfg.ConfigFile)); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	var timer *time.Timer
	var timerC <-chan time.Time
	target := filepath.Clean(w.cfg.ConfigFile)
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("config watch error")
		case <-timerC:
			timerC = nil
			next, err := w.cfg.Reload()
			if err != nil {
				w.logger.Warn().Err(err).Msg("config reload failed, keeping previous values")
				continue
			}
			w.logger.Info().Str("file", w.cfg.ConfigFile).Msg("config reloaded")
			w.onChange(next)
		}
	}
}

func (w *Watcher) Stop() {
	close(w.done)
	_ = w.watcher.Close()
	w.wg.Wait()
}
