package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alextrx818/matchpipe/internal/app/config"
	"github.com/alextrx818/matchpipe/internal/stages/sportsapi"
)

// providerStub records request uuids per endpoint and serves canned
// documents.
type providerStub struct {
	mu   sync.Mutex
	seen map[string][]string

	board      string
	detailDocs map[string]string
	oddsFail   bool
}

func (s *providerStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/match/detail_live", func(w http.ResponseWriter, r *http.Request) {
		s.note("match/detail_live", r.URL.Query().Get("uuid"))
		w.Write([]byte(s.board))
	})
	mux.HandleFunc("/match/recent/list", func(w http.ResponseWriter, r *http.Request) {
		uuid := r.URL.Query().Get("uuid")
		s.note("match/recent/list", uuid)
		doc, ok := s.detailDocs[uuid]
		if !ok {
			http.Error(w, "no such match", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(doc))
	})
	mux.HandleFunc("/odds/history", func(w http.ResponseWriter, r *http.Request) {
		uuid := r.URL.Query().Get("uuid")
		s.note("odds/history", uuid)
		if s.oddsFail {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"query":{"uuid":"` + uuid + `"},"results":{}}`))
	})
	return mux
}

func (s *providerStub) note(endpoint, uuid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string][]string)
	}
	s.seen[endpoint] = append(s.seen[endpoint], uuid)
}

func newProducer(t *testing.T, stub *providerStub) *Producer {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	client := sportsapi.NewClient(config.APIConfig{BaseURL: srv.URL + "/", User: "u", Secret: "s"})
	return &Producer{Client: client}
}

func TestProduceFansOutPerMatch(t *testing.T) {
	stub := &providerStub{
		board: `{"results":[
			{"id":"m1","score":["m1",2,[0,0,0,0,0,0,0],[0,0,0,0,0,0,0]]},
			{"id":"m2","score":["m2",8,[1,1,0,0,0,0,0],[0,0,0,0,0,0,0]]},
			{"id":""}
		]}`,
		detailDocs: map[string]string{
			"m1": `{"results":[{"id":"m1"}]}`,
			"m2": `{"results":[{"id":"m2"}]}`,
		},
	}
	p := newProducer(t, stub)

	out, err := p.Produce(context.Background())
	require.NoError(t, err)

	var got Payload
	require.NoError(t, json.Unmarshal(out, &got))

	assert.JSONEq(t, stub.board, string(got.LiveMatches))
	require.Len(t, got.MatchDetails, 2, "blank ids do not fan out")
	require.Len(t, got.MatchOdds, 2)
	assert.JSONEq(t, `{"results":[{"id":"m1"}]}`, string(got.MatchDetails[0]))
	assert.JSONEq(t, `{"results":[{"id":"m2"}]}`, string(got.MatchDetails[1]))

	assert.ElementsMatch(t, []string{"m1", "m2"}, stub.seen["match/recent/list"])
	assert.ElementsMatch(t, []string{"m1", "m2"}, stub.seen["odds/history"])

	assert.Equal(t, 2, got.Stats.TotalMatches)
	assert.Equal(t, 1, got.Stats.MatchesInPlay)
}

func TestProduceRecordsInlineErrors(t *testing.T) {
	stub := &providerStub{
		board:      `{"results":[{"id":"m1","score":["m1",2]}]}`,
		detailDocs: map[string]string{"m1": `{"results":[{"id":"m1"}]}`},
		oddsFail:   true,
	}
	p := newProducer(t, stub)

	out, err := p.Produce(context.Background())
	require.NoError(t, err, "a failed fan-out request never fails the cycle")

	var got Payload
	require.NoError(t, json.Unmarshal(out, &got))
	require.Len(t, got.MatchOdds, 1)

	var errDoc sportsapi.ErrorDoc
	require.NoError(t, json.Unmarshal(got.MatchOdds[0], &errDoc))
	assert.Equal(t, "odds/history", errDoc.Endpoint)
	assert.NotEmpty(t, errDoc.Error)
	assert.Equal(t, "m1", errDoc.Params["uuid"])
}

func TestProduceEmptyBoard(t *testing.T) {
	stub := &providerStub{board: `{"results":[]}`}
	p := newProducer(t, stub)

	out, err := p.Produce(context.Background())
	require.NoError(t, err)

	var got Payload
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Empty(t, got.MatchDetails)
	assert.Empty(t, got.MatchOdds)
	assert.Zero(t, got.Stats.TotalMatches)
	assert.Empty(t, stub.seen["match/recent/list"])
}

func TestProduceLiveBoardErrorDocPassesThrough(t *testing.T) {
	// When the board request itself fails the client records an inline
	// error document, and the cycle still produces a frame.
	p := &Producer{Client: sportsapi.NewClient(config.APIConfig{BaseURL: "http://127.0.0.1:1/"})}

	out, err := p.Produce(context.Background())
	require.NoError(t, err)

	var got Payload
	require.NoError(t, json.Unmarshal(out, &got))

	var errDoc sportsapi.ErrorDoc
	require.NoError(t, json.Unmarshal(got.LiveMatches, &errDoc))
	assert.Equal(t, "match/detail_live", errDoc.Endpoint)
	assert.Empty(t, got.MatchDetails)
}

func TestProduceCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &Producer{Client: sportsapi.NewClient(config.APIConfig{BaseURL: "http://127.0.0.1:1/"})}
	_, err := p.Produce(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
