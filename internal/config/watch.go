package config

import (
	"context"
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watcher wraps fsnotify the way gravwell's filewatch.WatchManager does
// for its own log-ingestion hot paths: one watcher, a context that
// cancels the run loop, and a callback invoked on any fs event that
// matters to the caller (here: the config file changing, or a policy
// module being added/edited/removed under the policy directory).
type Watcher struct {
	fsw    *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher watches configPath and every file directly under
// policyDir (non-recursive, matching the flat layout spec.md's policy
// directory uses).
func NewWatcher(configPath, policyDir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := fsw.Add(configPath); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	if policyDir != "" {
		if err := fsw.Add(policyDir); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{fsw: fsw, ctx: ctx, cancel: cancel}, nil
}

// Run invokes onChange whenever the watched config file or policy
// directory reports a write/create/remove/rename event, until the
// Watcher is closed. Intended to run in its own goroutine.
func (w *Watcher) Run(onChange func(event fsnotify.Event)) {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				onChange(event)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("WRN config: watcher error: %v", err)
		}
	}
}

// Close stops the run loop and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	w.cancel()
	return w.fsw.Close()
}
