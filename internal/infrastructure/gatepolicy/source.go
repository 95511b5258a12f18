package gatepolicy

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"eqms/internal/bootstrap/logging"
	"eqms/internal/domain/capa"
	"eqms/internal/errs"
	"eqms/internal/ports"
)

// Source holds the gate policy in force and swaps it atomically on reload.
type Source struct {
	path    string
	current atomic.Pointer[capa.GatePolicy]
}

var _ ports.GatePolicySource = (*Source)(nil)

// NewSource loads path once. An empty path serves the built-in policy.
func NewSource(path string) (*Source, error) {
	s := &Source{path: strings.TrimSpace(path)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) Path() string {
	return s.path
}

func (s *Source) Current() capa.GatePolicy {
	return *s.current.Load()
}

// Reload re-reads the file. On error the previous policy stays in force.
func (s *Source) Reload() error {
	policy, err := Load(s.path)
	if err != nil {
		return errs.Wrapf(err, "load gate policy %s", s.path)
	}
	s.current.Store(&policy)
	return nil
}

// Watch reloads the policy whenever the file changes until ctx is done.
// The directory is watched so editors that replace the file are picked up.
// Watch returns once the watcher is registered.
func (s *Source) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create gate policy watcher")
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return errs.Wrapf(err, "watch %s", filepath.Dir(s.path))
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "gatepolicy.watch"),
		slog.String("path", s.path),
	)
	logging.Info(logCtx, "watching gate policy file")

	go func() {
		defer watcher.Close()
		target := filepath.Clean(s.path)

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if err := s.Reload(); err != nil {
					logging.Warn(logCtx, "gate policy reload failed, keeping previous policy", slog.Any("err", errs.Loggable(err)))
					continue
				}
				logging.Info(logCtx, "gate policy reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn(logCtx, "gate policy watcher error", slog.Any("err", errs.Loggable(err)))
			}
		}
	}()

	return nil
}
