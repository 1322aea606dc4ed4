// Package suppress implements the durable notified-id store used by
// alert stages. Presence of an id means "already acted upon"; the store
// survives process restarts so a crash-and-restart cannot re-notify.
package suppress

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/alextrx818/matchpipe/internal/app"
	"github.com/alextrx818/matchpipe/internal/domain/civil"
	mpfs "github.com/alextrx818/matchpipe/internal/infra/fs"
)

// entry is one persisted notified id.
type entry struct {
	ID         string `json:"id"`
	NotifiedAt string `json:"notified_at"`
}

// Store is an append-only notified-id set loaded fully into memory at
// stage start.
type Store struct {
	fs        afero.Fs
	path      string
	retention time.Duration // 0 keeps entries forever
	clock     civil.Clock

	mu  sync.Mutex
	ids map[string]time.Time
}

// Load reads the store from disk, dropping entries older than the
// retention window and compacting the file when anything was dropped.
// A missing file is an empty store.
func Load(fsys afero.Fs, path string, retention time.Duration, clock civil.Clock) (*Store, error) {
	s := &Store{
		fs:        fsys,
		path:      path,
		retention: retention,
		clock:     clock,
		ids:       make(map[string]time.Time),
	}

	file, err := fsys.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open suppression store %s: %w", path, err)
	}
	defer file.Close()

	dropped := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(line, &e); err != nil || e.ID == "" {
			app.GetLogger().Warn("skipping malformed suppression entry in %s", path)
			dropped++
			continue
		}
		at, err := time.Parse(time.RFC3339, e.NotifiedAt)
		if err != nil {
			at = clock.Now()
		}
		if s.expired(at) {
			dropped++
			continue
		}
		s.ids[e.ID] = at
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan suppression store %s: %w", path, err)
	}

	if dropped > 0 {
		if err := s.compact(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// HasBeenNotified reports whether id was already acted upon.
func (s *Store) HasBeenNotified(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.ids[id]
	if !ok {
		return false
	}
	if s.expired(at) {
		delete(s.ids, id)
		return false
	}
	return true
}

// RecordNotified durably records id as acted upon. The append is
// synced before returning so a crash immediately after a notification
// cannot silently disable suppression for that id.
func (s *Store) RecordNotified(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	b, err := json.Marshal(entry{ID: id, NotifiedAt: now.UTC().Format(time.RFC3339)})
	if err != nil {
		return fmt.Errorf("marshal suppression entry: %w", err)
	}

	file, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open suppression store %s: %w", s.path, err)
	}
	defer file.Close()

	if _, err := file.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("append suppression entry: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync suppression store %s: %w", s.path, err)
	}

	s.ids[id] = now
	return nil
}

// Len returns the number of ids currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *Store) expired(at time.Time) bool {
	return s.retention > 0 && s.clock.Now().Sub(at) > s.retention
}

// compact rewrites the file with only the live entries.
func (s *Store) compact() error {
	var buf []byte
	for id, at := range s.ids {
		b, err := json.Marshal(entry{ID: id, NotifiedAt: at.UTC().Format(time.RFC3339)})
		if err != nil {
			return fmt.Errorf("marshal suppression entry: %w", err)
		}
		buf = append(buf, b...)
		buf = append(buf, '\n')
	}
	if err := mpfs.WriteFileAtomic(s.fs, s.path, buf); err != nil {
		return fmt.Errorf("compact suppression store: %w", err)
	}
	return nil
}
