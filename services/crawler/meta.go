package crawler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"fcrank-backend/lib/htmlutil"
	"fcrank-backend/lib/httppool"
)

// metadata resolves the numeric ids found in match details to display
// names using the upstream static metadata files. Loaded once per process
// before the first cycle; a load failure degrades cards to raw ids
// instead of failing the cycle.
type metadata struct {
	once sync.Once

	mu        sync.RWMutex
	players   map[int64]string
	seasons   map[int64]string
	positions map[int64]string
}

func (m *metadata) load(ctx context.Context, pool *httppool.Pool, baseUrl string) {
	m.once.Do(func() {
		players := map[int64]string{}
		seasons := map[int64]string{}
		positions := map[int64]string{}

		var spid []struct {
			Id   int64  `json:"id"`
			Name string `json:"name"`
		}
		err := fetchMetaFile(ctx, pool, baseUrl+"/spid.json", &spid)
		if err != nil {
			slog.WarnContext(ctx, "load player id metadata", "err", err)
		}
		for _, item := range spid {
			players[item.Id] = item.Name
		}

		var seasonid []struct {
			SeasonId  int64  `json:"seasonId"`
			ClassName string `json:"className"`
		}
		err = fetchMetaFile(ctx, pool, baseUrl+"/seasonid.json", &seasonid)
		if err != nil {
			slog.WarnContext(ctx, "load season metadata", "err", err)
		}
		for _, item := range seasonid {
			seasons[item.SeasonId] = htmlutil.StripParentheticals(item.ClassName)
		}

		var spposition []struct {
			Spposition int64  `json:"spposition"`
			Desc       string `json:"desc"`
		}
		err = fetchMetaFile(ctx, pool, baseUrl+"/spposition.json", &spposition)
		if err != nil {
			slog.WarnContext(ctx, "load position metadata", "err", err)
		}
		for _, item := range spposition {
			positions[item.Spposition] = item.Desc
		}

		m.mu.Lock()
		m.players = players
		m.seasons = seasons
		m.positions = positions
		m.mu.Unlock()

		slog.InfoContext(
			ctx, "metadata loaded",
			"players", len(players),
			"seasons", len(seasons),
			"positions", len(positions),
		)
	})
}

func fetchMetaFile(ctx context.Context, pool *httppool.Pool, url string, out interface{}) error {
	res, err := pool.Acquire().R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return err
	}
	if res.StatusCode() != http.StatusOK {
		// same degradation as the upstream returning an empty file
		return nil
	}
	return json.Unmarshal(res.Body(), out)
}

func (m *metadata) PlayerName(spId int64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.players[spId]
	return name, ok
}

func (m *metadata) SeasonClass(seasonId int64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	season, ok := m.seasons[seasonId]
	return season, ok
}

func (m *metadata) PositionDesc(position int64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	desc, ok := m.positions[position]
	return desc, ok
}
