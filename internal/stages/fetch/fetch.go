// Package fetch is the origin stage. One cycle pulls the live match
// board and fans out per-match detail and odds-history requests, then
// assembles the raw responses into a single frame payload.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/alextrx818/matchpipe/internal/domain/matchstatus"
	"github.com/alextrx818/matchpipe/internal/stages/sportsapi"
)

// Payload is the origin frame body. MatchDetails and MatchOdds are
// positionally aligned with the live board's match order; a failed
// request holds an inline error document at its slot.
type Payload struct {
	LiveMatches  json.RawMessage   `json:"live_matches"`
	MatchDetails []json.RawMessage `json:"match_details"`
	MatchOdds    []json.RawMessage `json:"match_odds"`
	Stats        matchstatus.Stats `json:"match_stats"`
}

// liveBoard is the slice of match/detail_live we need for fan-out and
// stats; everything else passes through raw.
type liveBoard struct {
	Results []struct {
		ID    string            `json:"id"`
		Score []json.RawMessage `json:"score"`
	} `json:"results"`
}

// Producer runs one fetch cycle against the provider API.
type Producer struct {
	Client *sportsapi.Client
}

// Produce fetches the live board, fans out detail and odds requests
// for every live match id, and marshals the combined payload.
func (p *Producer) Produce(ctx context.Context) (json.RawMessage, error) {
	live, err := p.Client.Fetch(ctx, "match/detail_live", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch live board: %w", err)
	}

	payload := Payload{
		LiveMatches:  live,
		MatchDetails: []json.RawMessage{},
		MatchOdds:    []json.RawMessage{},
	}

	var board liveBoard
	if err := json.Unmarshal(live, &board); err == nil && len(board.Results) > 0 {
		ids := make([]string, 0, len(board.Results))
		for _, m := range board.Results {
			if m.ID != "" {
				ids = append(ids, m.ID)
			}
		}

		payload.MatchDetails = p.fanOut(ctx, "match/recent/list", ids)
		payload.MatchOdds = p.fanOut(ctx, "odds/history", ids)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		payload.Stats = boardStats(board)
	}

	out, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal fetch payload: %w", err)
	}
	return out, nil
}

// fanOut issues one request per match id, all concurrent; the client's
// semaphore bounds actual parallelism. Results keep the id order.
func (p *Producer) fanOut(ctx context.Context, endpoint string, ids []string) []json.RawMessage {
	results := make([]json.RawMessage, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			doc, err := p.Client.Fetch(ctx, endpoint, map[string]string{"uuid": id})
			if err != nil {
				doc = json.RawMessage(fmt.Sprintf(`{"error":%q,"endpoint":%q}`, err.Error(), endpoint))
			}
			results[i] = doc
		}(i, id)
	}
	wg.Wait()
	return results
}

// boardStats builds the status breakdown from score[1] of every live
// match.
func boardStats(board liveBoard) matchstatus.Stats {
	counts := make(map[int]int)
	for _, m := range board.Results {
		if len(m.Score) < 2 {
			continue
		}
		var status int
		if err := json.Unmarshal(m.Score[1], &status); err != nil {
			continue
		}
		counts[status]++
	}
	return matchstatus.Summarize(counts)
}
