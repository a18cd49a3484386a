package file

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/tzurot/tzurot/internal/personality"
)

// PersonalityStore keeps personalities in a single JSON file. Operators
// edit the file directly; Watch picks up those edits without a restart.
type PersonalityStore struct {
	mu   sync.RWMutex
	path string
	byID map[string]personality.Personality
}

// NewPersonalityStore loads (or initializes) the personality file.
func NewPersonalityStore(path string) (*PersonalityStore, error) {
	s := &PersonalityStore{
		path: path,
		byID: make(map[string]personality.Personality),
	}
	if err := s.reload(); err != nil {
		return nil, fmt.Errorf("load personalities: %w", err)
	}
	return s, nil
}

func (s *PersonalityStore) reload() error {
	var list []personality.Personality
	if err := loadJSON(s.path, &list); err != nil {
		return err
	}

	byID := make(map[string]personality.Personality, len(list))
	for _, p := range list {
		if p.Name == "" {
			continue
		}
		byID[p.Name] = p
	}

	s.mu.Lock()
	s.byID = byID
	s.mu.Unlock()
	return nil
}

func (s *PersonalityStore) List(_ context.Context) ([]personality.Personality, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]personality.Personality, 0, len(s.byID))
	for _, p := range s.byID {
		list = append(list, p)
	}
	return list, nil
}

func (s *PersonalityStore) Get(_ context.Context, name string) (personality.Personality, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[name]
	return p, ok, nil
}

func (s *PersonalityStore) Upsert(_ context.Context, p personality.Personality) error {
	if p.Name == "" {
		return fmt.Errorf("personality name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.Name] = p
	return s.saveLocked()
}

func (s *PersonalityStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, name)
	return s.saveLocked()
}

func (s *PersonalityStore) saveLocked() error {
	list := make([]personality.Personality, 0, len(s.byID))
	for _, p := range s.byID {
		list = append(list, p)
	}
	return saveJSON(s.path, list)
}

// Watch reloads the file on change events and invokes onChange. Editors
// that write via rename fire Create rather than Write, so both count.
func (s *PersonalityStore) Watch(onChange func()) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: atomic renames replace the file inode.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	base := filepath.Base(s.path)
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.reload(); err != nil {
					slog.Warn("personality file reload failed", "path", s.path, "error", err)
					continue
				}
				slog.Info("personality file reloaded", "path", s.path)
				if onChange != nil {
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("personality watcher error", "error", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
