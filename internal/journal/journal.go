// Package journal records how to undo state changes while one operation is in flight.
//
// The journal travels in the context. Every component the operation reaches records into
// the same log, including code that re-enters the operation from a receive hook, so a
// failure anywhere reverts all of it in reverse order. Undo steps restore state directly
// and never run hooks.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrRevertFailed marks an operation whose changes could not all be undone.
var ErrRevertFailed = errors.New("revert failed")

// Undo restores the state changed by one recorded step.
type Undo func(ctx context.Context) error

// Snapshot identifies a point in a journal to revert to.
type Snapshot int

type entry struct {
	undo   Undo
	commit func()
}

// Journal is the undo log of one operation.
type Journal struct {
	mu      sync.Mutex
	entries []entry
	ended   bool
}

type ctxKey struct{}

// From returns the live journal carried by ctx. Journals that were committed or
// aborted are ignored.
func From(ctx context.Context) (*Journal, bool) {
	j, ok := ctx.Value(ctxKey{}).(*Journal)
	if !ok || j.Ended() {
		return nil, false
	}
	return j, true
}

// Begin returns the live journal carried by ctx, or starts one. root reports whether the
// journal was started here; the caller then owns Commit or Abort.
func Begin(ctx context.Context) (_ context.Context, j *Journal, root bool) {
	if j, ok := From(ctx); ok {
		return ctx, j, false
	}
	j = &Journal{}
	return context.WithValue(ctx, ctxKey{}, j), j, true
}

// Run runs fn as one unit. Inside a live journal fn joins it and a failure reverts only
// what fn recorded. Otherwise Run starts a journal, commits it when fn succeeds and
// aborts it when fn fails.
func Run(ctx context.Context, fn func(ctx context.Context, j *Journal) error) error {
	ctx, j, root := Begin(ctx)
	snap := j.Snapshot()
	if err := fn(ctx, j); err != nil {
		err = Failed(err, j.RevertTo(context.WithoutCancel(ctx), snap))
		if root {
			j.end()
		}
		return err
	}
	if root {
		j.Commit()
	}
	return nil
}

// Failed combines an operation error with the error of reverting it.
func Failed(err, revertErr error) error {
	if revertErr == nil {
		return err
	}
	return errors.Join(err, fmt.Errorf("%w: %w", ErrRevertFailed, revertErr))
}

// Snapshot returns the current position of the journal.
func (j *Journal) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot(len(j.entries))
}

// Record appends an undo step.
func (j *Journal) Record(undo Undo) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry{undo: undo})
}

// OnCommit queues fn to run when the root operation commits. Reverting past this point
// drops it.
func (j *Journal) OnCommit(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry{commit: fn})
}

// RevertTo undoes every step recorded after snap, most recent first, and drops the
// commit callbacks queued after it. Every step runs even when an earlier one fails.
func (j *Journal) RevertTo(ctx context.Context, snap Snapshot) error {
	j.mu.Lock()
	n := int(snap)
	if n < 0 || n > len(j.entries) {
		j.mu.Unlock()
		return fmt.Errorf("invalid snapshot %d", snap)
	}
	tail := append([]entry(nil), j.entries[n:]...)
	j.entries = j.entries[:n]
	j.mu.Unlock()

	var errs []error
	for i := len(tail) - 1; i >= 0; i-- {
		if tail[i].undo == nil {
			continue
		}
		if err := tail[i].undo(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Commit ends the journal and runs its commit callbacks in the order they were queued.
func (j *Journal) Commit() {
	j.mu.Lock()
	entries := j.entries
	j.entries = nil
	j.ended = true
	j.mu.Unlock()

	for _, e := range entries {
		if e.commit != nil {
			e.commit()
		}
	}
}

// Abort reverts everything and ends the journal.
func (j *Journal) Abort(ctx context.Context) error {
	err := j.RevertTo(ctx, 0)
	j.end()
	return err
}

// Ended reports whether the journal was committed or aborted.
func (j *Journal) Ended() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.ended
}

func (j *Journal) end() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
	j.ended = true
}
