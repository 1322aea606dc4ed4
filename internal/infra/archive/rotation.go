// Package archive implements frame log rotation into day-partitioned
// cold storage. Every successful frame append bumps a persisted
// counter; at the configured threshold the whole local log is shipped
// to the stage's object for the current civil day.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/alextrx818/matchpipe/internal/adapter/gateway/storage"
	"github.com/alextrx818/matchpipe/internal/domain/civil"
	"github.com/alextrx818/matchpipe/internal/infra/framelog"
	mpfs "github.com/alextrx818/matchpipe/internal/infra/fs"
)

// Policy selects what happens to the local log after a successful
// archive upload.
type Policy string

const (
	// PolicyTruncate clears the local log (origin and mid-pipeline
	// stages, which only need recent frames locally).
	PolicyTruncate Policy = "truncate"

	// PolicyRetain leaves the local log intact for operator inspection
	// and resets only the rotation counter, so the next rotation fires
	// after the same number of further appends regardless of log size.
	PolicyRetain Policy = "retain"
)

// state is the persisted rotation counter.
type state struct {
	Count         int    `json:"count"`
	LastRotatedAt string `json:"last_rotated_at,omitempty"`
}

// Rotator watches one stage's frame log and ships it to cold storage.
type Rotator struct {
	fs        afero.Fs
	statePath string
	stage     string
	folder    string
	ext       string
	threshold int
	policy    Policy
	store     storage.ObjectStore
	clock     civil.Clock
	zone      civil.Zone
}

// Config configures a Rotator.
type Config struct {
	FS        afero.Fs
	StatePath string
	Stage     string
	Folder    string // object key prefix, e.g. "merge_rotating_logs"
	Threshold int
	Policy    Policy
	Store     storage.ObjectStore
	Clock     civil.Clock
	Zone      civil.Zone
}

// New creates a Rotator. A zero or negative threshold disables rotation.
func New(cfg Config) *Rotator {
	return &Rotator{
		fs:        cfg.FS,
		statePath: cfg.StatePath,
		stage:     cfg.Stage,
		folder:    cfg.Folder,
		ext:       "ndjson",
		threshold: cfg.Threshold,
		policy:    cfg.Policy,
		store:     cfg.Store,
		clock:     cfg.Clock,
		zone:      cfg.Zone,
	}
}

// DayKey returns the archive object key for the civil day of t.
// Scheme: <folder>/<stage>_log_<YYYY-MM-DD>.<ext>, one object per stage
// per day, content-appended.
func (r *Rotator) DayKey() string {
	return fmt.Sprintf("%s/%s_log_%s.%s", r.folder, r.stage, r.zone.Day(r.clock.Now()), r.ext)
}

// NoteAppend records one successful frame append and rotates when the
// counter reaches the threshold. On upload failure the counter is left
// at or above the threshold, so the next append re-attempts rotation;
// the local log is never touched before the upload succeeds.
func (r *Rotator) NoteAppend(ctx context.Context, log *framelog.Log) error {
	if r.threshold <= 0 {
		return nil
	}

	st, err := r.loadState()
	if err != nil {
		return err
	}
	st.Count++
	if err := r.saveState(st); err != nil {
		return err
	}

	if st.Count < r.threshold {
		return nil
	}
	return r.rotate(ctx, log, st)
}

// Count returns the current rotation counter.
func (r *Rotator) Count() (int, error) {
	st, err := r.loadState()
	if err != nil {
		return 0, err
	}
	return st.Count, nil
}

func (r *Rotator) rotate(ctx context.Context, log *framelog.Log, st state) error {
	content, err := log.ReadAll()
	if err != nil {
		return fmt.Errorf("rotate %s: %w", r.stage, err)
	}
	if len(content) == 0 {
		// Nothing accumulated; just reset the counter.
		return r.saveState(state{LastRotatedAt: r.zone.Timestamp(r.clock.Now())})
	}

	key := r.DayKey()
	merged := content
	existing, err := r.store.Get(ctx, key)
	switch {
	case err == nil:
		// Additive day object: append today's batch to what is already
		// archived, never overwrite it.
		if len(existing) > 0 && existing[len(existing)-1] != '\n' {
			existing = append(existing, '\n')
		}
		merged = append(existing, content...)
	case errors.Is(err, storage.ErrNotFound):
		// First write of the day.
	default:
		return fmt.Errorf("rotate %s: read day object: %w", r.stage, err)
	}

	if err := r.store.Put(ctx, key, merged); err != nil {
		return fmt.Errorf("rotate %s: %w", r.stage, err)
	}

	if r.policy == PolicyTruncate {
		if err := log.Clear(); err != nil {
			return fmt.Errorf("rotate %s: %w", r.stage, err)
		}
	}
	return r.saveState(state{LastRotatedAt: r.zone.Timestamp(r.clock.Now())})
}

func (r *Rotator) loadState() (state, error) {
	var st state
	data, err := afero.ReadFile(r.fs, r.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("load rotation state %s: %w", r.statePath, err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		// A corrupt counter starts over rather than wedging the stage.
		return state{}, nil
	}
	return st, nil
}

func (r *Rotator) saveState(st state) error {
	if err := mpfs.WriteJSONAtomic(r.fs, r.statePath, st); err != nil {
		return fmt.Errorf("save rotation state: %w", err)
	}
	return nil
}
