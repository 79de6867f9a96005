package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

type listingRow struct {
	Nickname  string
	Team      string
	Formation string
	ValueAttr string
	Score     string
	OmitTeam  bool
}

func renderListingPage(rows []listingRow) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="tbody">`)
	for _, r := range rows {
		b.WriteString(`<div class="tr">`)
		b.WriteString(`<div class="rank_coach"><span class="name">` + r.Nickname + `</span></div>`)
		if !r.OmitTeam {
			b.WriteString(`<div class="td team_color"><span class="name"><span class="inner">` + r.Team + `</span></span></div>`)
		}
		if r.Formation != "" {
			b.WriteString(`<div class="td formation">` + r.Formation + `</div>`)
		}
		if r.ValueAttr != "" {
			b.WriteString(`<span class="price" alt="` + r.ValueAttr + `"></span>`)
		}
		if r.Score != "" {
			b.WriteString(`<div class="td rank_r_win_point">` + r.Score + `</div>`)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func fullListingPage(start int, transform func(i int, r *listingRow)) string {
	rows := make([]listingRow, rowsPerPage)
	for i := range rows {
		n := start + i
		rows[i] = listingRow{
			Nickname:  fmt.Sprintf("nick%d", n),
			Team:      "Real Madrid (UCL)",
			Formation: "4-3-3",
			ValueAttr: "1,234,500,000,000",
			Score:     "1523.5",
		}
		if transform != nil {
			transform(n, &rows[i])
		}
	}
	return renderListingPage(rows)
}

func newListingServer(pages map[string]string, hits *atomic.Int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/datacenter/rank_inner" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		page, ok := pages[r.URL.Query().Get("n4pageno")]
		if !ok {
			fmt.Fprint(w, renderListingPage(nil))
			return
		}
		fmt.Fprint(w, page)
	}))
}

func TestParseListingPage(t *testing.T) {
	body := renderListingPage([]listingRow{
		{
			Nickname:  "  some  coach ",
			Team:      "Manchester City (22-23)",
			Formation: "4-2-3-1",
			ValueAttr: "987,600,000,000",
			Score:     "1702.25",
		},
		{
			Nickname: "bare",
			Team:     "Arsenal",
		},
	})

	rows, err := parseListingPage(bytes.NewReader([]byte(body)), 3, "all")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, RankedUser{
		Nickname:  "some coach",
		Rank:      41,
		TeamColor: "manchester city",
		Formation: "4-2-3-1",
		Value:     9876,
		Score:     1702.25,
	}, rows[0])

	// missing formation/price/score cells fall back to their defaults
	require.Equal(t, RankedUser{
		Nickname:  "bare",
		Rank:      42,
		TeamColor: "arsenal",
		Formation: "-",
	}, rows[1])
}

func TestCrawlRangeSkipsBrokenRowsWithoutShiftingRanks(t *testing.T) {
	service, cleanup := newTestService(t, Config{PageWorkers: 4})
	defer cleanup()

	pages := map[string]string{
		"1": fullListingPage(1, func(i int, r *listingRow) {
			if i == 17 {
				r.OmitTeam = true
			}
		}),
		"2": fullListingPage(21, nil),
	}
	var hits atomic.Int64
	srv := newListingServer(pages, &hits)
	defer srv.Close()
	service.cfg.ListingBaseUrl = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	users := service.CrawlRange(ctx, 1, 2, "all")
	require.Len(t, users, 39)

	sort.Slice(users, func(i, j int) bool { return users[i].Rank < users[j].Rank })
	ranks := make([]int, 0, len(users))
	for _, u := range users {
		ranks = append(ranks, u.Rank)
	}
	// the broken row still consumes its leaderboard position
	require.NotContains(t, ranks, 17)
	require.Equal(t, 16, ranks[15])
	require.Equal(t, 18, ranks[16])
	require.Equal(t, "nick18", users[16].Nickname)
	require.Equal(t, 40, ranks[len(ranks)-1])
}

func TestCrawlRangeServesRepeatsFromCache(t *testing.T) {
	service, cleanup := newTestService(t, Config{PageWorkers: 2})
	defer cleanup()

	pages := map[string]string{
		"1": fullListingPage(1, nil),
		"2": fullListingPage(21, nil),
	}
	var hits atomic.Int64
	srv := newListingServer(pages, &hits)
	defer srv.Close()
	service.cfg.ListingBaseUrl = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	first := service.CrawlRange(ctx, 1, 2, "all")
	require.Len(t, first, 40)
	require.EqualValues(t, 2, hits.Load())

	second := service.CrawlRange(ctx, 1, 2, "all")
	require.Len(t, second, 40)
	require.EqualValues(t, 2, hits.Load())
}

func TestCrawlRangeTeamFilter(t *testing.T) {
	service, cleanup := newTestService(t, Config{PageWorkers: 2})
	defer cleanup()

	pages := map[string]string{
		"1": fullListingPage(1, func(i int, r *listingRow) {
			if i%2 == 0 {
				r.Team = "Tottenham Hotspur"
			}
		}),
	}
	var hits atomic.Int64
	srv := newListingServer(pages, &hits)
	defer srv.Close()
	service.cfg.ListingBaseUrl = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	users := service.CrawlRange(ctx, 1, 1, "Real Madrid")

	// absolute positions survive filtering: the kept rows sit at every
	// other rank
	var expected []RankedUser
	for rank := 1; rank <= 19; rank += 2 {
		expected = append(expected, RankedUser{
			Nickname:  fmt.Sprintf("nick%d", rank),
			Rank:      rank,
			TeamColor: "real madrid",
			Formation: "4-3-3",
			Value:     12345,
			Score:     1523.5,
		})
	}
	diff := cmp.Diff(
		expected,
		users,
		cmpopts.SortSlices(func(a, b RankedUser) bool {
			return a.Rank < b.Rank
		}),
	)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestNormalizeTeamFilter(t *testing.T) {
	require.Equal(t, "all", NormalizeTeamFilter(" All "))
	require.Equal(t, "realmadrid", NormalizeTeamFilter("Real Madrid"))
}
