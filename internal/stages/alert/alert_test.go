package alert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alextrx818/matchpipe/internal/adapter/gateway/notify"
	"github.com/alextrx818/matchpipe/internal/domain/civil"
	"github.com/alextrx818/matchpipe/internal/domain/frame"
	"github.com/alextrx818/matchpipe/internal/infra/framelog"
	"github.com/alextrx818/matchpipe/internal/infra/suppress"
	"github.com/alextrx818/matchpipe/internal/stages/convert"
	"github.com/alextrx818/matchpipe/internal/stages/monitor"
)

var testInstant = time.Date(2026, 8, 28, 19, 45, 0, 0, time.UTC)

type fixture struct {
	transform *Transform
	sender    *notify.CapturingSender
	log       *framelog.Log
	fsys      afero.Fs
}

func newFixture(t *testing.T, rule Rule) *fixture {
	t.Helper()
	fsys := afero.NewMemMapFs()
	clock := civil.FixedClock{Instant: testInstant}
	store, err := suppress.Load(fsys, "/var/notified.ndjson", 24*time.Hour, clock)
	require.NoError(t, err)

	sender := &notify.CapturingSender{}
	log := framelog.New(fsys, "/logs/alert.ndjson")
	return &fixture{
		transform: &Transform{
			Rule:   rule,
			Store:  store,
			OwnLog: log,
			Sender: sender,
			Clock:  clock,
			Zone:   civil.MustLoadZone("UTC"),
		},
		sender: sender,
		log:    log,
		fsys:   fsys,
	}
}

func monitorFrame(t *testing.T, matches ...monitor.Match) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(monitor.Payload{Matches: matches, TotalMatches: len(matches)})
	require.NoError(t, err)
	return raw
}

func halftimeMatch(id string, score string) monitor.Match {
	return monitor.Match{Info: monitor.Info{
		MatchID:   id,
		HomeTeam:  "Alpha FC",
		AwayTeam:  "Beta United",
		StatusID:  3,
		LiveScore: score,
	}}
}

func oversMatch(id string, total any) monitor.Match {
	m := halftimeMatch(id, "Live Score: 0-0 (HT: 0-0)")
	m.Info.CompetitionName = "Premier League"
	m.Odds.OverUnder = &convert.TotalQuote{Over: "-117", Total: total, Under: "-105"}
	return m
}

func decode(t *testing.T, raw json.RawMessage) Payload {
	t.Helper()
	var p Payload
	require.NoError(t, json.Unmarshal(raw, &p))
	return p
}

func TestOversRuleQualifies(t *testing.T) {
	rule := OversRule{}

	assert.True(t, rule.Qualifies(oversMatch("m1", 3.0)))
	assert.True(t, rule.Qualifies(oversMatch("m1", "3.25")))
	assert.False(t, rule.Qualifies(oversMatch("m1", 2.75)), "total below threshold")
	assert.False(t, rule.Qualifies(oversMatch("m1", "n/a")))

	noOdds := halftimeMatch("m1", "Live Score: 0-0 (HT: 0-0)")
	assert.False(t, rule.Qualifies(noOdds))

	scored := oversMatch("m1", 3.0)
	scored.Info.LiveScore = "Live Score: 1-0 (HT: 1-0)"
	assert.False(t, rule.Qualifies(scored))

	firstHalf := oversMatch("m1", 3.0)
	firstHalf.Info.StatusID = 2
	assert.False(t, rule.Qualifies(firstHalf))
}

func TestOversMessage(t *testing.T) {
	msg := OversRule{}.Message(oversMatch("m1", 3.0), "08/28/2026 03:45:00 PM EDT")
	assert.Contains(t, msg, "3OU HALF ALERT")
	assert.Contains(t, msg, "Alpha FC vs Beta United")
	assert.Contains(t, msg, "Premier League")
	assert.Contains(t, msg, "O/U Total: 3")
	assert.Contains(t, msg, "08/28/2026 03:45:00 PM EDT")
}

func underdogMatch(id, score, homePrice, awayPrice string) monitor.Match {
	m := halftimeMatch(id, score)
	m.Odds.MoneyLine = &convert.MoneyLineQuote{Home: homePrice, Tie: "+220", Away: awayPrice}
	return m
}

func TestUnderdogRuleQualifies(t *testing.T) {
	rule := UnderdogRule{}

	// Away side at +180 is the underdog and leads at the break.
	assert.True(t, rule.Qualifies(underdogMatch("m1", "Live Score: 0-1 (HT: 0-1)", "-200", "+180")))
	// Home underdog leading.
	assert.True(t, rule.Qualifies(underdogMatch("m1", "Live Score: 2-0 (HT: 2-0)", "+150", "-170")))
	// Favorite leading does not qualify.
	assert.False(t, rule.Qualifies(underdogMatch("m1", "Live Score: 1-0 (HT: 1-0)", "-200", "+180")))
	// Level at the break does not qualify.
	assert.False(t, rule.Qualifies(underdogMatch("m1", "Live Score: 1-1 (HT: 1-1)", "-200", "+180")))
	// Both sides positive: the longer price is the underdog.
	assert.True(t, rule.Qualifies(underdogMatch("m1", "Live Score: 0-1 (HT: 0-1)", "+110", "+240")))
	assert.False(t, rule.Qualifies(underdogMatch("m1", "Live Score: 1-0 (HT: 1-0)", "+110", "+240")))

	noLine := halftimeMatch("m1", "Live Score: 0-1 (HT: 0-1)")
	assert.False(t, rule.Qualifies(noLine))

	secondHalf := underdogMatch("m1", "Live Score: 0-1 (HT: 0-1)", "-200", "+180")
	secondHalf.Info.StatusID = 4
	assert.False(t, rule.Qualifies(secondHalf))

	unparsable := underdogMatch("m1", "postponed", "-200", "+180")
	assert.False(t, rule.Qualifies(unparsable))
}

func TestUnderdogMessageNamesTheSide(t *testing.T) {
	m := underdogMatch("m1", "Live Score: 0-1 (HT: 0-1)", "-200", "+180")
	msg := UnderdogRule{}.Message(m, "08/28/2026 03:45:00 PM EDT")
	assert.Contains(t, msg, "UNDERDOG HALF ALERT")
	assert.Contains(t, msg, "Beta United leading at +180")
}

func TestApplySendsOncePerMatch(t *testing.T) {
	f := newFixture(t, OversRule{})
	payload := monitorFrame(t, oversMatch("m1", 3.0), halftimeMatch("m2", "Live Score: 1-0 (HT: 1-0)"))

	out, err := f.transform.Apply(context.Background(), payload)
	require.NoError(t, err)

	got := decode(t, out)
	require.Len(t, got.Matches, 1)
	assert.Equal(t, "m1", got.Matches[0].Info.MatchID)
	assert.Equal(t, 1, got.FilteredCount)
	require.Len(t, f.sender.Messages, 1)
	assert.Contains(t, f.sender.Messages[0], "3OU HALF ALERT")

	// The same frame again: m1 is suppressed, nothing is re-sent.
	out, err = f.transform.Apply(context.Background(), payload)
	require.NoError(t, err)
	assert.Empty(t, decode(t, out).Matches)
	assert.Len(t, f.sender.Messages, 1)
}

func TestApplySuppressionSurvivesRestart(t *testing.T) {
	f := newFixture(t, OversRule{})
	payload := monitorFrame(t, oversMatch("m1", 3.0))

	_, err := f.transform.Apply(context.Background(), payload)
	require.NoError(t, err)

	// Rebuild the transform over the same store file, as a process
	// restart would.
	clock := civil.FixedClock{Instant: testInstant.Add(time.Hour)}
	store, err := suppress.Load(f.fsys, "/var/notified.ndjson", 24*time.Hour, clock)
	require.NoError(t, err)
	sender := &notify.CapturingSender{}
	restarted := &Transform{
		Rule:   OversRule{},
		Store:  store,
		OwnLog: framelog.New(f.fsys, "/logs/alert.ndjson"),
		Sender: sender,
		Clock:  clock,
		Zone:   civil.MustLoadZone("UTC"),
	}

	out, err := restarted.Apply(context.Background(), payload)
	require.NoError(t, err)
	assert.Empty(t, decode(t, out).Matches)
	assert.Empty(t, sender.Messages)
}

func TestApplyOwnLogSuppresses(t *testing.T) {
	f := newFixture(t, OversRule{})

	// Seed the frame log with a past alert for m1, with no entry in the
	// notified store. This is the state after store retention expires or
	// the store file is lost.
	past, err := json.Marshal(Payload{Matches: []monitor.Match{halftimeMatch("m1", "")}, FilteredCount: 1})
	require.NoError(t, err)
	require.NoError(t, f.log.Append(frame.New("old-frame", "08/28/2026 02:45:00 PM EDT", past)))

	out, err := f.transform.Apply(context.Background(), monitorFrame(t, oversMatch("m1", 3.0)))
	require.NoError(t, err)
	assert.Empty(t, decode(t, out).Matches)
	assert.Empty(t, f.sender.Messages)
}

func TestApplySendFailureStillCountsNotified(t *testing.T) {
	f := newFixture(t, OversRule{})
	f.sender.Err = assert.AnError

	out, err := f.transform.Apply(context.Background(), monitorFrame(t, oversMatch("m1", 3.0)))
	require.NoError(t, err, "a send failure never fails the cycle")
	assert.Equal(t, 1, decode(t, out).FilteredCount)
	assert.True(t, f.transform.Store.HasBeenNotified("m1"))

	// The broken sender recovers; m1 is not re-sent.
	f.sender.Err = nil
	out, err = f.transform.Apply(context.Background(), monitorFrame(t, oversMatch("m1", 3.0)))
	require.NoError(t, err)
	assert.Empty(t, decode(t, out).Matches)
	assert.Empty(t, f.sender.Messages)
}

func TestApplyRejectsGarbage(t *testing.T) {
	f := newFixture(t, OversRule{})
	_, err := f.transform.Apply(context.Background(), []byte(`{"monitor_display": 7}`))
	require.Error(t, err)
}
