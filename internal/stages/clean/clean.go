// Package clean reduces a merge frame to readable per-match summaries:
// enriched details kept, bulk raw reference data dropped, odds trimmed
// to one bookmaker's opening-window ticks, incidents trimmed to VAR
// reviews.
package clean

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/alextrx818/matchpipe/internal/domain/matchstatus"
	"github.com/alextrx818/matchpipe/internal/stages/merge"
)

// preferredCompany is Bet365's provider company id. Its odds are used
// when present; otherwise the first company with any market data.
const preferredCompany = "2"

// goalNote replaces a market whose opening-window ticks were all
// invalidated by an early goal.
const goalNote = "Goal scored - odds invalid"

// marketNames maps provider market keys to display names.
var marketNames = map[string]string{
	"asia": "Spread",
	"eu":   "MoneyLine",
	"bs":   "O/U",
	"cr":   "Corners",
}

// Payload is the clean frame body.
type Payload struct {
	Matches []Match           `json:"matches"`
	Stats   matchstatus.Stats `json:"match_stats"`
}

// Match is the readable summary of one live match.
type Match struct {
	MatchID   string             `json:"match_id"`
	Details   *merge.Details     `json:"match_details,omitempty"`
	ScoreLine string             `json:"score_line"`
	Status    string             `json:"status"`
	Parsed    *merge.ParsedScore `json:"parsed_score,omitempty"`
	Odds      map[string]Market  `json:"odds,omitempty"`
	Incidents []merge.Incident   `json:"var_incidents,omitempty"`
}

// Market holds one market's surviving opening-window ticks, or a note
// explaining why none survived.
type Market struct {
	Rows []merge.OddsRow `json:"rows,omitempty"`
	Note string          `json:"note,omitempty"`
}

// Transform runs the clean reduction for one frame.
type Transform struct{}

func (Transform) Apply(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var in merge.Payload
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("clean: decode merge payload: %w", err)
	}

	out := Payload{Matches: make([]Match, 0, len(in.Matches)), Stats: in.Stats}
	for _, m := range in.Matches {
		cm := Match{
			MatchID:   m.MatchID,
			Details:   m.Details,
			ScoreLine: ScoreLine(m.Live.Parsed),
			Odds:      reduceOdds(m.Odds),
			Incidents: varIncidents(m.Live.Incidents),
		}
		if m.Live.Parsed != nil {
			cm.Status = matchstatus.Display(m.Live.Parsed.Status)
			cm.Parsed = m.Live.Parsed
		}
		out.Matches = append(out.Matches, cm)
	}

	doc, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("clean: marshal payload: %w", err)
	}
	return doc, nil
}

// ScoreLine renders the operator-facing score string, e.g.
// "Live Score: 2-1 (HT: 1-1)".
func ScoreLine(ps *merge.ParsedScore) string {
	if ps == nil {
		return ""
	}
	return fmt.Sprintf("Live Score: %d-%d (HT: %d-%d)",
		ps.Home.Regular, ps.Away.Regular, ps.Home.Halftime, ps.Away.Halftime)
}

// reduceOdds picks one bookmaker and filters each of its markets to
// the opening window.
func reduceOdds(table merge.OddsTable) map[string]Market {
	company := pickCompany(table)
	if company == nil {
		return nil
	}

	out := make(map[string]Market)
	for key, rows := range company {
		name, ok := marketNames[key]
		if !ok {
			name = key
		}
		kept, goalScored := openingWindow(rows)
		switch {
		case len(kept) > 0:
			out[name] = Market{Rows: kept}
		case goalScored:
			out[name] = Market{Note: goalNote}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func pickCompany(table merge.OddsTable) map[string][]merge.OddsRow {
	if hasMarketData(table[preferredCompany]) {
		return table[preferredCompany]
	}
	// Deterministic fallback: lowest company id with data.
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if hasMarketData(table[id]) {
			return table[id]
		}
	}
	return nil
}

func hasMarketData(company map[string][]merge.OddsRow) bool {
	for _, rows := range company {
		if len(rows) > 0 {
			return true
		}
	}
	return false
}

// openingWindow keeps ticks from minutes 0-10 (plus pre-match) while
// the score was still 0-0, one tick per minute, trimmed to the five
// fields downstream stages read. Provider rows arrive newest-first;
// iterating in reverse keeps the earliest tick for each minute.
func openingWindow(rows []merge.OddsRow) (kept []merge.OddsRow, goalScored bool) {
	seen := make(map[string]bool)
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 8 {
			continue
		}
		if row.Score() != "0-0" {
			goalScored = true
			continue
		}

		minute := row.Minute()
		key := minute
		if minute == "" {
			key = "prematch"
		} else {
			n, err := strconv.Atoi(minute)
			if err != nil || n > 10 {
				continue
			}
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, row[:5])
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return minuteOrder(kept[i].Minute()) < minuteOrder(kept[j].Minute())
	})
	return kept, goalScored
}

// minuteOrder sorts pre-match ticks ahead of in-play minutes.
func minuteOrder(minute string) int {
	if minute == "" {
		return -1
	}
	n, err := strconv.Atoi(minute)
	if err != nil {
		return 1 << 20
	}
	return n
}

// varIncidents keeps only VAR reviews (incident type 28) with the
// review outcome fields.
func varIncidents(incidents []merge.Incident) []merge.Incident {
	var out []merge.Incident
	for _, inc := range incidents {
		if inc.Type == 28 {
			out = append(out, merge.Incident{
				Type:      inc.Type,
				VarReason: inc.VarReason,
				VarResult: inc.VarResult,
			})
		}
	}
	return out
}
