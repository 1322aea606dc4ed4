// Package monitor produces the operator display frame: one compact
// block per match with identity, live score, corners, converted odds,
// weather, and VAR incidents. The alert stages consume this shape.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alextrx818/matchpipe/internal/domain/matchstatus"
	"github.com/alextrx818/matchpipe/internal/stages/convert"
	"github.com/alextrx818/matchpipe/internal/stages/merge"
)

// Payload is the monitor frame body.
type Payload struct {
	Matches      []Match           `json:"monitor_display"`
	TotalMatches int               `json:"total_matches"`
	Stats        matchstatus.Stats `json:"match_stats"`
}

// Match is one display block.
type Match struct {
	Info        Info                 `json:"match_info"`
	Corners     Corners              `json:"corners"`
	Odds        convert.Odds         `json:"odds"`
	Environment *convert.Environment `json:"environment,omitempty"`
	Incidents   []merge.Incident     `json:"incidents,omitempty"`
}

// Info identifies the match.
type Info struct {
	MatchID         string `json:"match_id"`
	CompetitionID   string `json:"competition_id,omitempty"`
	CompetitionName string `json:"competition_name,omitempty"`
	Country         string `json:"country_name,omitempty"`
	HomeTeam        string `json:"home_team"`
	AwayTeam        string `json:"away_team"`
	StatusID        int    `json:"status_id"`
	Status          string `json:"status"`
	LiveScore       string `json:"live_score"`
}

// Corners is the corner-kick count per side.
type Corners struct {
	Home  int `json:"home"`
	Away  int `json:"away"`
	Total int `json:"total"`
}

// Transform builds the display frame.
type Transform struct{}

func (Transform) Apply(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var in convert.Payload
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("monitor: decode convert payload: %w", err)
	}

	out := Payload{
		Matches:      make([]Match, 0, len(in.Matches)),
		TotalMatches: len(in.Matches),
		Stats:        in.Stats,
	}
	for _, m := range in.Matches {
		dm := Match{
			Info: Info{
				MatchID:   m.MatchID,
				Status:    m.Status,
				LiveScore: m.ScoreLine,
			},
			Corners: Corners{
				Home:  m.HomeCorners,
				Away:  m.AwayCorners,
				Total: m.HomeCorners + m.AwayCorners,
			},
			Odds:        m.Odds,
			Environment: m.Environment,
			Incidents:   m.Incidents,
		}
		if m.Details != nil {
			dm.Info.CompetitionID = m.Details.CompetitionID
			dm.Info.CompetitionName = m.Details.CompetitionName
			dm.Info.Country = m.Details.CountryName
			dm.Info.HomeTeam = m.Details.HomeTeamName
			dm.Info.AwayTeam = m.Details.AwayTeamName
		}
		if m.Parsed != nil {
			dm.Info.StatusID = m.Parsed.Status
		}
		out.Matches = append(out.Matches, dm)
	}

	doc, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("monitor: marshal payload: %w", err)
	}
	return doc, nil
}
