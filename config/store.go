package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/EthStaker/validator-watcher/labelset"
)

// Store holds the current configuration and reloads it when the file changes.
type Store struct {
	logger  *slog.Logger
	path    string
	current atomic.Pointer[Config]
}

func NewStore(logger *slog.Logger, path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		logger: logger.With("component", "config"),
		path:   path,
	}
	s.current.Store(cfg)
	return s, nil
}

func (s *Store) Current() *Config {
	return s.current.Load()
}

// Pubkeys returns the watched public keys of the current configuration.
func (s *Store) Pubkeys() labelset.Keys {
	return s.Current().Pubkeys()
}

// Reload reads the file again. An invalid file leaves the current
// configuration in place.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(cfg)
	s.logger.Info("configuration reloaded", "watched_keys", len(cfg.WatchedKeys))
	return nil
}

// Watch reloads the configuration on every change to the file until ctx is
// cancelled. The parent directory is watched so that editors replacing the
// file atomically are handled.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("failed to reload configuration, keeping previous", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("file watcher error", "error", err)
		}
	}
}
