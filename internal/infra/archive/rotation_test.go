package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alextrx818/matchpipe/internal/adapter/gateway/storage"
	"github.com/alextrx818/matchpipe/internal/domain/civil"
	"github.com/alextrx818/matchpipe/internal/domain/frame"
	"github.com/alextrx818/matchpipe/internal/infra/framelog"
)

func fixedClock() civil.FixedClock {
	return civil.FixedClock{Instant: time.Date(2026, 8, 28, 17, 0, 0, 0, time.UTC)}
}

type fixture struct {
	fsys    afero.Fs
	log     *framelog.Log
	mock    *storage.MockS3Client
	rotator *Rotator
}

func newFixture(t *testing.T, threshold int, policy Policy) *fixture {
	t.Helper()
	fsys := afero.NewMemMapFs()
	zone, err := civil.LoadZone(civil.DefaultZoneName)
	require.NoError(t, err)

	mock := storage.NewMockS3Client()
	return &fixture{
		fsys: fsys,
		log:  framelog.New(fsys, "logs/merge.ndjson"),
		mock: mock,
		rotator: New(Config{
			FS:        fsys,
			StatePath: "rotation/merge.json",
			Stage:     "merge",
			Folder:    "merge_rotating_logs",
			Threshold: threshold,
			Policy:    policy,
			Store:     storage.NewS3ObjectStoreWithClient(mock, "test-bucket"),
			Clock:     fixedClock(),
			Zone:      zone,
		}),
	}
}

func (f *fixture) appendFrame(t *testing.T, n int) {
	t.Helper()
	payload := json.RawMessage(fmt.Sprintf(`{"n":%d}`, n))
	require.NoError(t, f.log.Append(frame.New(fmt.Sprintf("01F%03d", n), "ts", payload)))
	require.NoError(t, f.rotator.NoteAppend(context.Background(), f.log))
}

func TestTruncatePolicyUploadsAndClears(t *testing.T) {
	f := newFixture(t, 3, PolicyTruncate)

	for i := 1; i <= 2; i++ {
		f.appendFrame(t, i)
	}
	_, ok := f.mock.Object("merge_rotating_logs/merge_log_2026-08-28.ndjson")
	assert.False(t, ok, "no upload before the threshold")

	f.appendFrame(t, 3)

	content, ok := f.mock.Object("merge_rotating_logs/merge_log_2026-08-28.ndjson")
	require.True(t, ok)
	assert.Contains(t, string(content), `{"n":1}`)
	assert.Contains(t, string(content), `{"n":3}`)

	// Local log truncated, counter reset.
	n, err := f.log.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	count, err := f.rotator.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRetainPolicyKeepsLocalLog(t *testing.T) {
	f := newFixture(t, 2, PolicyRetain)

	f.appendFrame(t, 1)
	f.appendFrame(t, 2)

	_, ok := f.mock.Object("merge_rotating_logs/merge_log_2026-08-28.ndjson")
	require.True(t, ok)

	n, err := f.log.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n, "retain keeps the local log")

	count, err := f.rotator.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count, "counter resets after upload")

	// The next rotation fires after threshold more appends and the day
	// object grows instead of being replaced.
	f.appendFrame(t, 3)
	f.appendFrame(t, 4)

	content, ok := f.mock.Object("merge_rotating_logs/merge_log_2026-08-28.ndjson")
	require.True(t, ok)
	assert.Contains(t, string(content), `{"n":2}`)
	assert.Contains(t, string(content), `{"n":4}`)
}

// The day object accumulates across rotations instead of being
// overwritten.
func TestDayObjectIsAdditive(t *testing.T) {
	f := newFixture(t, 1, PolicyTruncate)

	f.appendFrame(t, 1)
	f.appendFrame(t, 2)

	content, ok := f.mock.Object("merge_rotating_logs/merge_log_2026-08-28.ndjson")
	require.True(t, ok)
	assert.Contains(t, string(content), `{"n":1}`)
	assert.Contains(t, string(content), `{"n":2}`)
}

// An upload failure leaves both the local log and the counter intact,
// so a later append retries the rotation.
func TestUploadFailureRetriesNextAppend(t *testing.T) {
	f := newFixture(t, 2, PolicyTruncate)

	f.appendFrame(t, 1)
	f.mock.FailPuts = true

	payload := json.RawMessage(`{"n":2}`)
	require.NoError(t, f.log.Append(frame.New("01F002", "ts", payload)))
	err := f.rotator.NoteAppend(context.Background(), f.log)
	require.Error(t, err)

	n, err := f.log.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n, "local log untouched on failed upload")

	f.mock.FailPuts = false
	f.appendFrame(t, 3)

	content, ok := f.mock.Object("merge_rotating_logs/merge_log_2026-08-28.ndjson")
	require.True(t, ok)
	assert.Contains(t, string(content), `{"n":1}`)
	assert.Contains(t, string(content), `{"n":3}`)

	n, err = f.log.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestZeroThresholdDisablesRotation(t *testing.T) {
	f := newFixture(t, 0, PolicyTruncate)

	for i := 1; i <= 5; i++ {
		f.appendFrame(t, i)
	}
	_, ok := f.mock.Object("merge_rotating_logs/merge_log_2026-08-28.ndjson")
	assert.False(t, ok)

	n, err := f.log.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestLocalObjectStoreTwin(t *testing.T) {
	fsys := afero.NewMemMapFs()
	zone, err := civil.LoadZone(civil.DefaultZoneName)
	require.NoError(t, err)

	log := framelog.New(fsys, "logs/fetch.ndjson")
	r := New(Config{
		FS:        fsys,
		StatePath: "rotation/fetch.json",
		Stage:     "fetch",
		Folder:    "fetch_rotating_logs",
		Threshold: 1,
		Policy:    PolicyTruncate,
		Store:     storage.NewLocalObjectStore(fsys, "archive"),
		Clock:     fixedClock(),
		Zone:      zone,
	})

	require.NoError(t, log.Append(frame.New("01X", "ts", json.RawMessage(`{"a":1}`))))
	require.NoError(t, r.NoteAppend(context.Background(), log))

	content, err := afero.ReadFile(fsys, "archive/fetch_rotating_logs/fetch_log_2026-08-28.ndjson")
	require.NoError(t, err)
	assert.Contains(t, string(content), `{"a":1}`)
}
