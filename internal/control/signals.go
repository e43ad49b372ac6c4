// Package control lets a running pipeline be halted from outside the
// process by dropping a signal file into the workspace.
package control

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrHalted is the cancellation cause of contexts stopped by a halt signal.
var ErrHalted = errors.New("halted by operator signal")

const haltFile = "halt"

// Signals watches the signals directory for a halt file.
type Signals struct {
	dir string

	mu     sync.RWMutex
	halted bool
	// haltCh is closed on halt and replaced by Clear.
	haltCh chan struct{}

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// SignalsDir returns the signals directory under a workspace root.
func SignalsDir(root string) string {
	return filepath.Join(root, ".forge", "signals")
}

// NewSignals starts watching root's signals directory. A halt file that
// already exists counts as a pending halt; call Clear to discard it.
func NewSignals(root string) (*Signals, error) {
	dir := SignalsDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	s := &Signals{
		dir:    dir,
		haltCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without watcher; Halted still stats the file.
		return s, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return s, nil
	}
	s.watcher = watcher

	go s.watch()

	return s, nil
}

func (s *Signals) watch() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == haltFile && (event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0) {
				s.markHalted()
			}
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// markHalted records a halt when the halt file is present. The check runs
// under the lock so a late watcher event cannot undo a Clear.
func (s *Signals) markHalted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(filepath.Join(s.dir, haltFile)); err == nil && !s.halted {
		s.halted = true
		close(s.haltCh)
	}
	return s.halted
}

// Halted returns true if a halt signal has been received.
func (s *Signals) Halted() bool {
	// Also check the file directly in case the watcher missed it.
	return s.markHalted()
}

// SendHalt creates the halt signal file.
func (s *Signals) SendHalt() error {
	path := filepath.Join(s.dir, haltFile)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes the halt file and re-arms the signal. A halt already
// delivered to a context stays delivered.
func (s *Signals) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	os.Remove(filepath.Join(s.dir, haltFile))
	if s.halted {
		s.halted = false
		s.haltCh = make(chan struct{})
	}
}

// WithHalt returns a context cancelled with ErrHalted when a halt signal
// arrives.
func (s *Signals) WithHalt(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	if s.Halted() {
		cancel(ErrHalted)
		return ctx, func() { cancel(context.Canceled) }
	}
	s.mu.RLock()
	haltCh := s.haltCh
	s.mu.RUnlock()
	go func() {
		select {
		case <-haltCh:
			cancel(ErrHalted)
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

// Dir returns the signals directory.
func (s *Signals) Dir() string {
	return s.dir
}

// Close stops the watcher.
func (s *Signals) Close() {
	close(s.done)
	if s.watcher != nil {
		s.watcher.Close()
	}
}
