package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

// CycleLocker serializes stage cycles. Triggered and polled invocations of
// the same stage can race on the same frame log and ledger; whoever holds
// the lock runs its full cycle first.
type CycleLocker interface {
	// Acquire blocks until the lock is held and returns its release func.
	Acquire() (release func() error, err error)
}

// FlockLocker is a CycleLocker backed by an exclusive flock on a lock
// file. Advisory locks are dropped by the kernel when the process dies,
// so a crashed stage never wedges the pipeline.
type FlockLocker struct {
	Path string
}

// Acquire opens (creating if needed) the lock file and flocks it.
func (l FlockLocker) Acquire() (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", l.Path, err)
	}
	if err := flockExclusive(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", l.Path, err)
	}
	return func() error {
		defer f.Close()
		return flockUnlock(f)
	}, nil
}

// NopLocker is a CycleLocker that never blocks. Test helper for runners
// driven against an in-memory filesystem.
type NopLocker struct{}

func (NopLocker) Acquire() (func() error, error) {
	return func() error { return nil }, nil
}
