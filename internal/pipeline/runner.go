package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alextrx818/matchpipe/internal/app"
	"github.com/alextrx818/matchpipe/internal/domain/civil"
	"github.com/alextrx818/matchpipe/internal/domain/frame"
	"github.com/alextrx818/matchpipe/internal/infra/archive"
	"github.com/alextrx818/matchpipe/internal/infra/framelog"
	mpfs "github.com/alextrx818/matchpipe/internal/infra/fs"
	"github.com/alextrx818/matchpipe/internal/infra/ledger"
)

// Transform is the stage-specific payload mapping applied between the
// upstream frame and the stage's own output frame.
type Transform interface {
	Apply(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// TransformFunc adapts a function to the Transform interface.
type TransformFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

func (f TransformFunc) Apply(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return f(ctx, payload)
}

// Result reports one cycle's outcome.
type Result struct {
	FetchID string
	NoWork  bool
}

// Runner executes the common downstream stage cycle. One Runner
// invocation processes at most one frame; triggered and polled
// invocations against the same storage serialize on the cycle lock.
type Runner struct {
	Stage       string
	Predecessor string
	Upstream    *framelog.Log
	Own         *framelog.Log
	Transform   Transform
	Ledger      *ledger.Ledger
	Rotator     *archive.Rotator
	Locker      mpfs.CycleLocker
	Clock       civil.Clock
	Zone        civil.Zone
	Trigger     Trigger
}

// RunOnce performs one cycle. "No unprocessed entry" and "frame not in
// upstream log" are clean no-ops, not errors; a transform or append
// failure aborts before the ledger is marked, leaving the entry to be
// retried by a later invocation.
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	release, err := r.Locker.Acquire()
	if err != nil {
		return Result{}, fmt.Errorf("%s: acquire cycle lock: %w", r.Stage, err)
	}
	defer release()

	entry, err := r.Ledger.FindUnprocessed(ctx, r.Stage, r.Predecessor)
	if errors.Is(err, ledger.ErrNoWork) {
		return Result{NoWork: true}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", r.Stage, err)
	}

	if err := r.Ledger.RecordAttempt(ctx, entry.FetchID, r.Stage); err != nil {
		app.GetLogger().Warn("%s: record attempt for %s: %v", r.Stage, entry.FetchID, err)
	}

	payload, err := r.Upstream.Extract(entry.FetchID)
	if errors.Is(err, framelog.ErrNotFound) {
		// The upstream frame may have rotated away or never landed;
		// nothing to do this cycle.
		app.GetLogger().Warn("%s: no upstream frame for %s", r.Stage, entry.FetchID)
		return Result{NoWork: true}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", r.Stage, err)
	}

	out, err := r.Transform.Apply(ctx, payload)
	if err != nil {
		return Result{}, fmt.Errorf("%s: transform %s: %w", r.Stage, entry.FetchID, err)
	}

	f := frame.New(entry.FetchID, r.Zone.Timestamp(r.Clock.Now()), out)
	if err := r.Own.Append(f); err != nil {
		return Result{}, fmt.Errorf("%s: %w", r.Stage, err)
	}

	if err := r.Ledger.MarkCompleted(ctx, entry.FetchID, r.Stage); err != nil {
		return Result{}, fmt.Errorf("%s: %w", r.Stage, err)
	}

	r.afterAppend(ctx)
	return Result{FetchID: entry.FetchID}, nil
}

// afterAppend runs the non-fatal tail of a cycle: rotation accounting
// and the downstream trigger. Neither can roll back the committed
// append and mark.
func (r *Runner) afterAppend(ctx context.Context) {
	if r.Rotator != nil {
		if err := r.Rotator.NoteAppend(ctx, r.Own); err != nil {
			app.GetLogger().Warn("%s: rotation: %v", r.Stage, err)
		}
	}
	if next := Next(r.Stage); next != "" && r.Trigger != nil {
		if err := r.Trigger.Trigger(next); err != nil {
			app.GetLogger().Warn("%s: trigger %s: %v", r.Stage, next, err)
		}
	}
}

// Producer assembles the origin stage's payload from the remote data
// provider.
type Producer interface {
	Produce(ctx context.Context) (json.RawMessage, error)
}

// OriginRunner is the fetch-stage cycle: produce a snapshot, append it
// as a new frame, create the ledger entry, then kick the pipeline.
type OriginRunner struct {
	Log      *framelog.Log
	Producer Producer
	Ledger   *ledger.Ledger
	Rotator  *archive.Rotator
	Locker   mpfs.CycleLocker
	Clock    civil.Clock
	Zone     civil.Zone
	Trigger  Trigger
}

// RunOnce performs one fetch cycle. The ledger entry is created only
// after the frame is durably appended, so a ledger entry always has a
// frame behind it.
func (r *OriginRunner) RunOnce(ctx context.Context) (Result, error) {
	release, err := r.Locker.Acquire()
	if err != nil {
		return Result{}, fmt.Errorf("fetch: acquire cycle lock: %w", err)
	}
	defer release()

	payload, err := r.Producer.Produce(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch: %w", err)
	}

	createdAt := r.Zone.Timestamp(r.Clock.Now())
	f := frame.New(frame.NewID(), createdAt, payload)
	if err := r.Log.Append(f); err != nil {
		return Result{}, fmt.Errorf("fetch: %w", err)
	}
	if err := r.Ledger.CreateEntry(ctx, f.ID, createdAt); err != nil {
		return Result{}, fmt.Errorf("fetch: %w", err)
	}

	if r.Rotator != nil {
		if err := r.Rotator.NoteAppend(ctx, r.Log); err != nil {
			app.GetLogger().Warn("fetch: rotation: %v", err)
		}
	}
	if r.Trigger != nil {
		if err := r.Trigger.Trigger(StageMerge); err != nil {
			app.GetLogger().Warn("fetch: trigger merge: %v", err)
		}
	}
	return Result{FetchID: f.ID}, nil
}
