// Package merge reorganizes a raw fetch frame match-centrically. Each
// live match is joined with its detail and odds documents and enriched
// with team, competition, and country names from the reference cache.
package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alextrx818/matchpipe/internal/app"
	"github.com/alextrx818/matchpipe/internal/domain/matchstatus"
	"github.com/alextrx818/matchpipe/internal/stages/sportsapi"
)

// Payload is the merge frame body.
type Payload struct {
	Matches []Match           `json:"matches"`
	Stats   matchstatus.Stats `json:"match_stats"`
}

// Match is one live match with everything known about it joined in.
type Match struct {
	MatchID string    `json:"match_id"`
	Live    LiveData  `json:"live_data"`
	Details *Details  `json:"match_details,omitempty"`
	Odds    OddsTable `json:"odds,omitempty"`
}

// LiveData carries the in-play feed for one match plus the parsed view
// of its score array.
type LiveData struct {
	RawScore  []json.RawMessage `json:"raw_score_array,omitempty"`
	Parsed    *ParsedScore      `json:"parsed_score,omitempty"`
	Incidents []Incident        `json:"incidents,omitempty"`
}

// ParsedScore decodes the provider's positional score array.
type ParsedScore struct {
	Status int       `json:"status"`
	Home   TeamScore `json:"home_detailed"`
	Away   TeamScore `json:"away_detailed"`
}

// TeamScore decodes one side's positional stats array.
type TeamScore struct {
	Regular  int `json:"score_regular"`
	Halftime int `json:"score_halftime"`
	RedCards int `json:"red_cards"`
	Yellows  int `json:"yellow_cards"`
	Corners  int `json:"corners"`
	Overtime int `json:"overtime_score"`
	Penalty  int `json:"penalty_score"`
}

// Incident is one live event. Only the fields downstream stages look
// at are typed; var fields are present on type 28 only.
type Incident struct {
	Type      int    `json:"type"`
	VarReason any    `json:"var_reason,omitempty"`
	VarResult any    `json:"var_result,omitempty"`
	Position  int    `json:"position,omitempty"`
	Time      int    `json:"time,omitempty"`
	PlayerID  string `json:"player_id,omitempty"`
}

// Details is the parsed match detail, enriched with names resolved via
// the reference cache.
type Details struct {
	ID              string          `json:"id"`
	SeasonID        string          `json:"season_id,omitempty"`
	CompetitionID   string          `json:"competition_id,omitempty"`
	CompetitionName string          `json:"competition_name,omitempty"`
	CountryID       string          `json:"country_id,omitempty"`
	CountryName     string          `json:"country_name,omitempty"`
	HomeTeamID      string          `json:"home_team_id,omitempty"`
	HomeTeamName    string          `json:"home_team_name,omitempty"`
	AwayTeamID      string          `json:"away_team_id,omitempty"`
	AwayTeamName    string          `json:"away_team_name,omitempty"`
	StatusID        int             `json:"status_id"`
	MatchTime       int64           `json:"match_time,omitempty"`
	Environment     json.RawMessage `json:"environment,omitempty"`
}

// OddsTable is company id -> market key -> odds rows, exactly as the
// provider ships them. Market keys at this stage are the provider's
// (asia, eu, bs, cr).
type OddsTable map[string]map[string][]OddsRow

// OddsRow is one positional odds tick:
// [timestamp, minute, odds1, line, odds2, ..., score].
type OddsRow []any

// Minute returns the elapsed-minutes field, empty for pre-match ticks.
func (r OddsRow) Minute() string {
	if len(r) < 2 {
		return ""
	}
	s, _ := r[1].(string)
	return s
}

// Score returns the running score field ("0-0") when present.
func (r OddsRow) Score() string {
	if len(r) < 8 {
		return ""
	}
	s, _ := r[7].(string)
	return s
}

// fetchPayload mirrors the slice of the origin frame merge consumes.
type fetchPayload struct {
	LiveMatches  json.RawMessage   `json:"live_matches"`
	MatchDetails []json.RawMessage `json:"match_details"`
	MatchOdds    []json.RawMessage `json:"match_odds"`
}

type liveMatch struct {
	ID        string            `json:"id"`
	Score     []json.RawMessage `json:"score"`
	Incidents []Incident        `json:"incidents"`
}

// detailDoc is the match/recent/list response shape.
type detailDoc struct {
	Results []struct {
		ID            string          `json:"id"`
		SeasonID      string          `json:"season_id"`
		CompetitionID string          `json:"competition_id"`
		HomeTeamID    string          `json:"home_team_id"`
		AwayTeamID    string          `json:"away_team_id"`
		StatusID      int             `json:"status_id"`
		MatchTime     int64           `json:"match_time"`
		Environment   json.RawMessage `json:"environment"`
	} `json:"results"`
}

// oddsDoc is the odds/history response shape.
type oddsDoc struct {
	Query struct {
		UUID string `json:"uuid"`
	} `json:"query"`
	Results map[string]map[string][]OddsRow `json:"results"`
}

type namedDoc struct {
	Results []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"results"`
}

// Transform runs the merge for one frame.
type Transform struct {
	Refs *sportsapi.ReferenceCache
}

// Apply joins the raw fetch payload into the match-centric shape.
func (t *Transform) Apply(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var raw fetchPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("merge: decode fetch payload: %w", err)
	}

	var board struct {
		Results []liveMatch `json:"results"`
	}
	if raw.LiveMatches != nil {
		if err := json.Unmarshal(raw.LiveMatches, &board); err != nil {
			return nil, fmt.Errorf("merge: decode live board: %w", err)
		}
	}

	details := indexDetails(raw.MatchDetails)
	odds := indexOdds(raw.MatchOdds)

	out := Payload{Matches: make([]Match, 0, len(board.Results))}
	counts := make(map[int]int)

	for _, lm := range board.Results {
		if lm.ID == "" {
			continue
		}
		m := Match{
			MatchID: lm.ID,
			Live: LiveData{
				RawScore:  lm.Score,
				Parsed:    parseScore(lm.Score),
				Incidents: lm.Incidents,
			},
			Odds: odds[lm.ID],
		}
		if m.Live.Parsed != nil {
			counts[m.Live.Parsed.Status]++
		}
		if d, ok := details[lm.ID]; ok {
			m.Details = t.enrich(ctx, d)
		}
		out.Matches = append(out.Matches, m)
	}
	out.Stats = matchstatus.Summarize(counts)

	doc, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("merge: marshal payload: %w", err)
	}
	if err := t.Refs.Save(); err != nil {
		app.GetLogger().Warn("merge: %v", err)
	}
	return doc, nil
}

// enrich resolves team, competition, and country names through the
// reference cache. Lookup failures degrade to missing names, never to
// a failed cycle.
func (t *Transform) enrich(ctx context.Context, d Details) *Details {
	d.HomeTeamName = t.refName(ctx, t.Refs.Team, d.HomeTeamID)
	d.AwayTeamName = t.refName(ctx, t.Refs.Team, d.AwayTeamID)

	if d.CompetitionID != "" {
		if doc, err := t.Refs.Competition(ctx, d.CompetitionID); err == nil {
			var comp struct {
				Results []struct {
					Name      string `json:"name"`
					CountryID string `json:"country_id"`
				} `json:"results"`
			}
			if json.Unmarshal(doc, &comp) == nil && len(comp.Results) > 0 {
				d.CompetitionName = comp.Results[0].Name
				d.CountryID = comp.Results[0].CountryID
			}
		}
	}

	switch {
	case strings.Contains(d.CompetitionName, "FIFA"):
		// FIFA competitions are world events, not tied to one country.
		d.CountryName = "World Cup"
	case d.CountryID != "":
		d.CountryName = t.countryName(ctx, d.CountryID)
	}
	return &d
}

func (t *Transform) refName(ctx context.Context, fetch func(context.Context, string) (json.RawMessage, error), id string) string {
	if id == "" {
		return ""
	}
	doc, err := fetch(ctx, id)
	if err != nil {
		return ""
	}
	var named namedDoc
	if json.Unmarshal(doc, &named) != nil || len(named.Results) == 0 {
		return ""
	}
	return named.Results[0].Name
}

func (t *Transform) countryName(ctx context.Context, id string) string {
	doc, err := t.Refs.Countries(ctx)
	if err != nil {
		return ""
	}
	var countries namedDoc
	if json.Unmarshal(doc, &countries) != nil {
		return ""
	}
	for _, c := range countries.Results {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

// indexDetails maps match id to its decoded detail doc, skipping
// inline error documents and malformed entries.
func indexDetails(docs []json.RawMessage) map[string]Details {
	out := make(map[string]Details, len(docs))
	for _, raw := range docs {
		var doc detailDoc
		if json.Unmarshal(raw, &doc) != nil || len(doc.Results) == 0 {
			continue
		}
		r := doc.Results[0]
		if r.ID == "" {
			continue
		}
		out[r.ID] = Details{
			ID:            r.ID,
			SeasonID:      r.SeasonID,
			CompetitionID: r.CompetitionID,
			HomeTeamID:    r.HomeTeamID,
			AwayTeamID:    r.AwayTeamID,
			StatusID:      r.StatusID,
			MatchTime:     r.MatchTime,
			Environment:   r.Environment,
		}
	}
	return out
}

// indexOdds maps match id (the query uuid) to its odds table.
func indexOdds(docs []json.RawMessage) map[string]OddsTable {
	out := make(map[string]OddsTable, len(docs))
	for _, raw := range docs {
		var doc oddsDoc
		if json.Unmarshal(raw, &doc) != nil || doc.Query.UUID == "" || doc.Results == nil {
			continue
		}
		out[doc.Query.UUID] = OddsTable(doc.Results)
	}
	return out
}

// parseScore decodes the positional score array:
// [match_id, status, home_stats, away_stats, kickoff, ...] with each
// side's stats as [regular, halftime, red, yellow, corners, ot, pens].
func parseScore(score []json.RawMessage) *ParsedScore {
	if len(score) < 4 {
		return nil
	}
	var ps ParsedScore
	if json.Unmarshal(score[1], &ps.Status) != nil {
		return nil
	}
	parseTeamScore(score[2], &ps.Home)
	parseTeamScore(score[3], &ps.Away)
	return &ps
}

func parseTeamScore(raw json.RawMessage, ts *TeamScore) {
	var stats []int
	if json.Unmarshal(raw, &stats) != nil || len(stats) < 7 {
		return
	}
	ts.Regular = stats[0]
	ts.Halftime = stats[1]
	ts.RedCards = stats[2]
	ts.Yellows = stats[3]
	ts.Corners = stats[4]
	ts.Overtime = stats[5]
	ts.Penalty = stats[6]
}
