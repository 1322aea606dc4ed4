// Package alert filters the monitor display frame against a betting
// rule and notifies once per qualifying match. Duplicate suppression
// combines the persisted notified-id store with a scan of the stage's
// own frame log, so neither restarts nor log rotation re-alert a
// match.
package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alextrx818/matchpipe/internal/adapter/gateway/notify"
	"github.com/alextrx818/matchpipe/internal/app"
	"github.com/alextrx818/matchpipe/internal/domain/civil"
	"github.com/alextrx818/matchpipe/internal/infra/framelog"
	"github.com/alextrx818/matchpipe/internal/infra/suppress"
	"github.com/alextrx818/matchpipe/internal/stages/monitor"
)

// Rule decides which matches qualify and how their alert reads.
type Rule interface {
	Name() string
	Qualifies(m monitor.Match) bool
	Message(m monitor.Match, at string) string
}

// Payload is the alert frame body: the qualifying matches of one
// monitor frame after suppression.
type Payload struct {
	Matches       []monitor.Match `json:"matches"`
	FilteredCount int             `json:"filtered_match_count"`
}

// Transform runs one alert cycle.
type Transform struct {
	Rule   Rule
	Store  *suppress.Store
	OwnLog *framelog.Log
	Sender notify.Sender
	Clock  civil.Clock
	Zone   civil.Zone
}

// Apply filters the monitor frame, drops already-notified matches,
// and sends one message per survivor. A failed send is logged and the
// match still counts as notified; the operator sees the alert in the
// frame log either way.
func (t *Transform) Apply(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var in monitor.Payload
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("%s: decode monitor payload: %w", t.Rule.Name(), err)
	}

	logged, err := t.loggedMatchIDs()
	if err != nil {
		app.GetLogger().Warn("%s: scan own log: %v", t.Rule.Name(), err)
	}

	out := Payload{Matches: []monitor.Match{}}
	at := t.Zone.Timestamp(t.Clock.Now())

	for _, m := range in.Matches {
		if !t.Rule.Qualifies(m) {
			continue
		}
		id := m.Info.MatchID
		if id == "" || logged[id] || t.Store.HasBeenNotified(id) {
			continue
		}

		if err := t.Store.RecordNotified(id); err != nil {
			return nil, fmt.Errorf("%s: record notified %s: %w", t.Rule.Name(), id, err)
		}
		if err := t.Sender.Send(ctx, t.Rule.Message(m, at)); err != nil {
			app.GetLogger().Error("%s: send alert for %s: %v", t.Rule.Name(), id, err)
		} else {
			app.GetLogger().Info("%s: alert sent for %s", t.Rule.Name(), id)
		}
		out.Matches = append(out.Matches, m)
	}
	out.FilteredCount = len(out.Matches)

	doc, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal payload: %w", t.Rule.Name(), err)
	}
	return doc, nil
}

// loggedMatchIDs collects match ids already present in the stage's own
// frame log.
func (t *Transform) loggedMatchIDs() (map[string]bool, error) {
	ids := make(map[string]bool)
	if t.OwnLog == nil {
		return ids, nil
	}
	frames, err := t.OwnLog.Frames()
	if err != nil {
		return ids, err
	}
	for _, f := range frames {
		var p Payload
		if json.Unmarshal(f.Payload, &p) != nil {
			continue
		}
		for _, m := range p.Matches {
			if m.Info.MatchID != "" {
				ids[m.Info.MatchID] = true
			}
		}
	}
	return ids, nil
}
