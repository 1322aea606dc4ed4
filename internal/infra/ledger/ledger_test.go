package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T, policy SelectionPolicy, deadLetterAfter int) *Ledger {
	t.Helper()
	l, err := Open(Config{
		Path:            filepath.Join(t.TempDir(), "ledger.db"),
		Policy:          policy,
		DeadLetterAfter: deadLetterAfter,
	})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestFindUnprocessedOldestFirst(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t, SelectOldestFirst, 0)

	require.NoError(t, l.CreateEntry(ctx, "f1", "t1"))
	require.NoError(t, l.CreateEntry(ctx, "f2", "t2"))
	require.NoError(t, l.CreateEntry(ctx, "f3", "t3"))

	e, err := l.FindUnprocessed(ctx, "merge", OriginStage)
	require.NoError(t, err)
	assert.Equal(t, "f1", e.FetchID)

	require.NoError(t, l.MarkCompleted(ctx, "f1", "merge"))
	e, err = l.FindUnprocessed(ctx, "merge", OriginStage)
	require.NoError(t, err)
	assert.Equal(t, "f2", e.FetchID)
}

// Under the legacy newest-first policy, a steady stream of new entries
// starves older ones.
func TestNewestFirstStarvesBacklog(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t, SelectNewestFirst, 0)

	require.NoError(t, l.CreateEntry(ctx, "f1", "t1"))
	require.NoError(t, l.CreateEntry(ctx, "f2", "t2"))

	e, err := l.FindUnprocessed(ctx, "merge", OriginStage)
	require.NoError(t, err)
	assert.Equal(t, "f2", e.FetchID)

	// A newer entry lands before f2 is finished; f1 and f2 lose again.
	require.NoError(t, l.CreateEntry(ctx, "f3", "t3"))
	e, err = l.FindUnprocessed(ctx, "merge", OriginStage)
	require.NoError(t, err)
	assert.Equal(t, "f3", e.FetchID)

	// Only after the stream pauses does the backlog drain, newest first.
	require.NoError(t, l.MarkCompleted(ctx, "f3", "merge"))
	e, err = l.FindUnprocessed(ctx, "merge", OriginStage)
	require.NoError(t, err)
	assert.Equal(t, "f2", e.FetchID)
}

// A stage only sees entries its predecessor has completed.
func TestPredecessorGating(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t, SelectOldestFirst, 0)

	require.NoError(t, l.CreateEntry(ctx, "f1", "t1"))

	_, err := l.FindUnprocessed(ctx, "clean", "merge")
	assert.ErrorIs(t, err, ErrNoWork)

	require.NoError(t, l.MarkCompleted(ctx, "f1", "merge"))
	e, err := l.FindUnprocessed(ctx, "clean", "merge")
	require.NoError(t, err)
	assert.Equal(t, "f1", e.FetchID)
}

// Both alert stages read the monitor stage's output; completing one
// alert stage must not hide the entry from the other.
func TestSiblingStagesShareAPredecessor(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t, SelectOldestFirst, 0)

	require.NoError(t, l.CreateEntry(ctx, "f1", "t1"))
	require.NoError(t, l.MarkCompleted(ctx, "f1", "monitor"))
	require.NoError(t, l.MarkCompleted(ctx, "f1", "alert_overs"))

	e, err := l.FindUnprocessed(ctx, "alert_underdog", "monitor")
	require.NoError(t, err)
	assert.Equal(t, "f1", e.FetchID)
}

// Completion is monotone: marking twice is a no-op and the flag never
// reverts.
func TestMarkCompletedIdempotent(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t, SelectOldestFirst, 0)

	require.NoError(t, l.CreateEntry(ctx, "f1", "t1"))
	require.NoError(t, l.MarkCompleted(ctx, "f1", "merge"))
	require.NoError(t, l.MarkCompleted(ctx, "f1", "merge"))

	done, err := l.Completed(ctx, "f1", "merge")
	require.NoError(t, err)
	assert.True(t, done)

	_, err = l.FindUnprocessed(ctx, "merge", OriginStage)
	assert.ErrorIs(t, err, ErrNoWork)
}

func TestDuplicateEntryRejected(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t, SelectOldestFirst, 0)

	require.NoError(t, l.CreateEntry(ctx, "f1", "t1"))
	assert.Error(t, l.CreateEntry(ctx, "f1", "t2"))
}

// Under fifo, an entry that keeps failing is skipped after the
// dead-letter cutoff so it cannot block the queue forever.
func TestDeadLetterSkipsPoisonEntry(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t, SelectOldestFirst, 2)

	require.NoError(t, l.CreateEntry(ctx, "poison", "t1"))
	require.NoError(t, l.CreateEntry(ctx, "healthy", "t2"))

	for i := 0; i < 2; i++ {
		e, err := l.FindUnprocessed(ctx, "merge", OriginStage)
		require.NoError(t, err)
		assert.Equal(t, "poison", e.FetchID)
		require.NoError(t, l.RecordAttempt(ctx, "poison", "merge"))
	}

	e, err := l.FindUnprocessed(ctx, "merge", OriginStage)
	require.NoError(t, err)
	assert.Equal(t, "healthy", e.FetchID)
}

// The newest policy documents the legacy behavior: no dead-letter
// skipping.
func TestNewestPolicyIgnoresDeadLetterCutoff(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t, SelectNewestFirst, 1)

	require.NoError(t, l.CreateEntry(ctx, "f1", "t1"))
	require.NoError(t, l.RecordAttempt(ctx, "f1", "merge"))
	require.NoError(t, l.RecordAttempt(ctx, "f1", "merge"))

	e, err := l.FindUnprocessed(ctx, "merge", OriginStage)
	require.NoError(t, err)
	assert.Equal(t, "f1", e.FetchID)
}

func TestEntriesIncludeCompletionSets(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t, SelectOldestFirst, 0)

	require.NoError(t, l.CreateEntry(ctx, "f1", "t1"))
	require.NoError(t, l.CreateEntry(ctx, "f2", "t2"))
	require.NoError(t, l.MarkCompleted(ctx, "f1", "merge"))
	require.NoError(t, l.MarkCompleted(ctx, "f1", "clean"))

	entries, err := l.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "f2", entries[0].FetchID)
	assert.Empty(t, entries[0].Completed)
	assert.Equal(t, "f1", entries[1].FetchID)
	assert.Contains(t, entries[1].Completed, "merge")
	assert.Contains(t, entries[1].Completed, "clean")
}
