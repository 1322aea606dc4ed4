package sportsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/alextrx818/matchpipe/internal/app"
	"github.com/alextrx818/matchpipe/internal/domain/civil"
	"github.com/alextrx818/matchpipe/internal/infra/fs"
)

// Reference data changes slowly; teams and competitions are refreshed
// daily, the country list weekly.
const (
	teamTTL    = 24 * time.Hour
	countryTTL = 168 * time.Hour
)

type cachedDoc struct {
	Doc      json.RawMessage `json:"doc"`
	CachedAt time.Time       `json:"cached_at"`
}

type cacheState struct {
	Teams        map[string]cachedDoc `json:"teams"`
	Competitions map[string]cachedDoc `json:"competitions"`
	Countries    *cachedDoc           `json:"countries,omitempty"`
}

// ReferenceCache memoizes team, competition, and country lookups in
// memory and persists them as a JSON snapshot so restarts do not
// re-fetch the whole reference set.
type ReferenceCache struct {
	client *Client
	fsys   afero.Fs
	path   string
	clock  civil.Clock

	mu    sync.Mutex
	state cacheState
}

// NewReferenceCache loads the persisted snapshot if one exists. A
// missing or corrupt snapshot starts empty.
func NewReferenceCache(client *Client, fsys afero.Fs, path string, clock civil.Clock) *ReferenceCache {
	c := &ReferenceCache{
		client: client,
		fsys:   fsys,
		path:   path,
		clock:  clock,
		state: cacheState{
			Teams:        make(map[string]cachedDoc),
			Competitions: make(map[string]cachedDoc),
		},
	}
	c.load()
	return c
}

func (c *ReferenceCache) load() {
	data, err := afero.ReadFile(c.fsys, c.path)
	if err != nil {
		return
	}
	var state cacheState
	if err := json.Unmarshal(data, &state); err != nil {
		app.GetLogger().Warn("reference cache snapshot unreadable, starting empty: %v", err)
		return
	}
	if state.Teams == nil {
		state.Teams = make(map[string]cachedDoc)
	}
	if state.Competitions == nil {
		state.Competitions = make(map[string]cachedDoc)
	}
	c.state = state
}

// Save persists the snapshot. Called once per merge cycle after the
// lookups settle.
func (c *ReferenceCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := fs.WriteJSONAtomic(c.fsys, c.path, c.state); err != nil {
		return fmt.Errorf("save reference cache: %w", err)
	}
	return nil
}

// Team returns the team/additional/list document for a team id,
// fetching on miss or expiry.
func (c *ReferenceCache) Team(ctx context.Context, id string) (json.RawMessage, error) {
	return c.lookup(ctx, c.state.Teams, id, "team/additional/list", teamTTL)
}

// Competition returns the competition/additional/list document for a
// competition id.
func (c *ReferenceCache) Competition(ctx context.Context, id string) (json.RawMessage, error) {
	return c.lookup(ctx, c.state.Competitions, id, "competition/additional/list", teamTTL)
}

// Countries returns the full country/list document.
func (c *ReferenceCache) Countries(ctx context.Context) (json.RawMessage, error) {
	c.mu.Lock()
	cached := c.state.Countries
	c.mu.Unlock()

	now := c.clock.Now()
	if cached != nil && now.Sub(cached.CachedAt) < countryTTL {
		return cached.Doc, nil
	}

	doc, err := c.client.Fetch(ctx, "country/list", nil)
	if err != nil {
		return nil, err
	}
	if isErrorDoc(doc) {
		// Serve a stale snapshot over an inline error when we have one.
		if cached != nil {
			return cached.Doc, nil
		}
		return doc, nil
	}

	c.mu.Lock()
	c.state.Countries = &cachedDoc{Doc: doc, CachedAt: now}
	c.mu.Unlock()
	return doc, nil
}

func (c *ReferenceCache) lookup(ctx context.Context, bucket map[string]cachedDoc, id, endpoint string, ttl time.Duration) (json.RawMessage, error) {
	c.mu.Lock()
	cached, ok := bucket[id]
	c.mu.Unlock()

	now := c.clock.Now()
	if ok && now.Sub(cached.CachedAt) < ttl {
		return cached.Doc, nil
	}

	doc, err := c.client.Fetch(ctx, endpoint, map[string]string{"uuid": id})
	if err != nil {
		return nil, err
	}
	if isErrorDoc(doc) {
		if ok {
			return cached.Doc, nil
		}
		return doc, nil
	}

	c.mu.Lock()
	bucket[id] = cachedDoc{Doc: doc, CachedAt: now}
	c.mu.Unlock()
	return doc, nil
}

// isErrorDoc detects the inline failure payload shape.
func isErrorDoc(doc json.RawMessage) bool {
	var probe struct {
		Error    string `json:"error"`
		Endpoint string `json:"endpoint"`
	}
	if err := json.Unmarshal(doc, &probe); err != nil {
		return false
	}
	return probe.Error != "" && probe.Endpoint != ""
}
