package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fcrank-backend/lib/httppool"
	"fcrank-backend/lib/testutil"
	"fcrank-backend/lib/timezone"
	"fcrank-backend/services/crawler/db"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, cfg Config) (*Service, func()) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/crawler",
		DbSchema: db.Schema,
	})
	pool := httppool.New(httppool.Options{
		Size:       2,
		Timeout:    time.Second * 10,
		TracerName: "test/crawler",
	})
	return NewService(setup.DB, pool, cfg), cleanup
}

func serveJson(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		fmt.Fprint(w, body)
	}
}

func TestServiceRunCycle(t *testing.T) {
	api := newFakeOpenApi()
	// the cycle cutoff is "now", so the served matches must land on the
	// current KST day after the nine hour shift
	today := time.Now().UTC().Format("2006-01-02T15:04:05")
	for i := 1; i <= 5; i++ {
		nick := fmt.Sprintf("nick%d", i)
		ouid := "ouid-" + nick
		api.ouids[nick] = ouid
		api.addMatch(ouid, fmt.Sprintf("m%d", i), today,
			fakeRosterEntry{SpId: 251000001, SpPosition: 25, SpGrade: 5},
			fakeRosterEntry{SpId: 251000002, SpPosition: 0, SpGrade: 1},
		)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/datacenter/rank_inner", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fullListingPage(1, nil))
	})
	mux.Handle("/fconline/v1/", api)
	mux.HandleFunc("/spid.json", serveJson(
		`[{"id":251000001,"name":"Kylian Mbappé"},{"id":251000002,"name":"Thibaut Courtois"}]`,
	))
	mux.HandleFunc("/seasonid.json", serveJson(
		`[{"seasonId":251,"className":"TOTS (Team Of The Season)"}]`,
	))
	mux.HandleFunc("/spposition.json", serveJson(
		`[{"spposition":0,"desc":"GK"},{"spposition":25,"desc":"SW"}]`,
	))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	service, cleanup := newTestService(t, Config{
		ListingBaseUrl: srv.URL,
		OpenApiBaseUrl: srv.URL,
		MetaBaseUrl:    srv.URL,
		RankCeiling:    5,
		BatchSize:      2,
		PageWorkers:    2,
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	require.NoError(t, service.RunCycle(ctx))

	status, err := service.Store().Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 100, status.ProgressPercent)
	require.NotNil(t, status.RowCount)
	require.EqualValues(t, 10, *status.RowCount)

	rows, err := service.Store().QueryRows(ctx, 5, "all")
	require.NoError(t, err)
	// five users, two roster cards each
	require.Len(t, rows, 10)

	ref := rows[0].ReferenceTime
	require.Equal(t, status.ReferenceTime, ref)
	resolved := 0
	for _, r := range rows {
		require.Equal(t, ref, r.ReferenceTime)
		require.LessOrEqual(t, r.Rank, 5)
		require.Equal(t, "real madrid", r.TeamColor)
		require.False(t, r.Card.Sentinel())
		if r.Card.PlayerName != nil && *r.Card.PlayerName == "Kylian Mbappé" {
			resolved++
			require.NotNil(t, r.Card.Season)
			require.Equal(t, "TOTS", *r.Card.Season)
		}
	}
	require.Equal(t, 5, resolved)

	// the cycle anchor is floored to the hour
	parsed, err := time.ParseInLocation("2006-01-02 15:04:05", ref, timezone.Location)
	require.NoError(t, err)
	require.Zero(t, parsed.Minute())
	require.Zero(t, parsed.Second())

	// the resolved read surface maps card positions to their upstream
	// descriptions
	views, err := service.QueryRows(ctx, 5, "all")
	require.NoError(t, err)
	require.Len(t, views, 10)
	for _, v := range views {
		require.NotNil(t, v.Card.Position)
		switch *v.Card.Position {
		case 0:
			require.Equal(t, "GK", v.PositionDesc)
		case 25:
			require.Equal(t, "SW", v.PositionDesc)
		default:
			t.Fatalf("unexpected position %d", *v.Card.Position)
		}
	}

	service.Drain(time.Second)
}

func TestServiceRunCycleSentinelUser(t *testing.T) {
	api := newFakeOpenApi()
	api.ouids["nick1"] = "ouid-nick1"
	// nick1 resolves but has no match history at all

	mux := http.NewServeMux()
	mux.HandleFunc("/datacenter/rank_inner", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fullListingPage(1, nil))
	})
	mux.Handle("/fconline/v1/", api)
	mux.HandleFunc("/spid.json", serveJson(`[]`))
	mux.HandleFunc("/seasonid.json", serveJson(`[]`))
	mux.HandleFunc("/spposition.json", serveJson(`[]`))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	service, cleanup := newTestService(t, Config{
		ListingBaseUrl: srv.URL,
		OpenApiBaseUrl: srv.URL,
		MetaBaseUrl:    srv.URL,
		RankCeiling:    2,
		BatchSize:      2,
		PageWorkers:    1,
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	require.NoError(t, service.RunCycle(ctx))

	rows, err := service.Store().QueryRows(ctx, 2, "all")
	require.NoError(t, err)
	// nick1 contributes its sentinel row, nick2 cannot be resolved and
	// drops out entirely
	require.Len(t, rows, 1)
	require.Equal(t, "nick1", rows[0].Nickname)
	require.True(t, rows[0].Card.Sentinel())
}

func TestProgressPercent(t *testing.T) {
	require.Equal(t, 50, progressPercent(1, 2))
	require.Equal(t, 33, progressPercent(1, 3))
	require.Equal(t, 67, progressPercent(2, 3))

	// 100 is never reported while batches are still running, not even by
	// rounding
	require.Equal(t, 99, progressPercent(1, 1))
	require.Equal(t, 99, progressPercent(3, 3))
	require.Equal(t, 99, progressPercent(199, 200))

	last := 0
	for done := 1; done <= 100; done++ {
		progress := progressPercent(done, 100)
		require.GreaterOrEqual(t, progress, last)
		last = progress
	}
}

func TestRunCycleProgressMonotonic(t *testing.T) {
	api := newFakeOpenApi()
	api.detailDelay = time.Millisecond * 20
	today := time.Now().UTC().Format("2006-01-02T15:04:05")
	for i := 1; i <= 4; i++ {
		nick := fmt.Sprintf("nick%d", i)
		ouid := "ouid-" + nick
		api.ouids[nick] = ouid
		api.addMatch(ouid, fmt.Sprintf("m%d", i), today,
			fakeRosterEntry{SpId: 251000001, SpPosition: 25, SpGrade: 5},
		)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/datacenter/rank_inner", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fullListingPage(1, nil))
	})
	mux.Handle("/fconline/v1/", api)
	mux.HandleFunc("/spid.json", serveJson(`[]`))
	mux.HandleFunc("/seasonid.json", serveJson(`[]`))
	mux.HandleFunc("/spposition.json", serveJson(`[]`))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/crawler/progress",
		DbSchema: db.Schema,
	})
	defer cleanup()
	// the poller below reads concurrently with the cycle's writes; an
	// in-memory sqlite database exists per connection, so cap the pool
	setup.DB.SetMaxOpenConns(1)
	pool := httppool.New(httppool.Options{
		Size:       2,
		Timeout:    time.Second * 10,
		TracerName: "test/crawler",
	})
	service := NewService(setup.DB, pool, Config{
		ListingBaseUrl: srv.URL,
		OpenApiBaseUrl: srv.URL,
		MetaBaseUrl:    srv.URL,
		RankCeiling:    4,
		BatchSize:      1,
		PageWorkers:    2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	stop := make(chan struct{})
	polled := make(chan struct{})
	var observed []CrawlStatus
	rowsAtHundred := int64(-1)
	go func() {
		defer close(polled)
		for {
			select {
			case <-stop:
				return
			default:
			}
			status, err := service.Store().Status(ctx)
			if err == nil && status.ReferenceTime != "" {
				observed = append(observed, status)
				if status.ProgressPercent == 100 && rowsAtHundred < 0 {
					count, err := service.Store().CountRows(ctx)
					if err == nil {
						rowsAtHundred = count
					}
				}
			}
			time.Sleep(time.Millisecond)
		}
	}()

	require.NoError(t, service.RunCycle(ctx))
	close(stop)
	<-polled

	require.NotEmpty(t, observed)
	for i := 1; i < len(observed); i++ {
		require.GreaterOrEqual(
			t, observed[i].ProgressPercent, observed[i-1].ProgressPercent,
			"status reads within one cycle must never move backwards",
		)
	}
	if rowsAtHundred >= 0 {
		// by the time 100 became visible the swapped snapshot was
		// already in place
		require.EqualValues(t, 4, rowsAtHundred)
	}

	final, err := service.Store().Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 100, final.ProgressPercent)
}

func TestRunCycleFailedCrawlKeepsSnapshot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/datacenter/rank_inner", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, renderListingPage(nil))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	service, cleanup := newTestService(t, Config{
		ListingBaseUrl: srv.URL,
		OpenApiBaseUrl: srv.URL,
		MetaBaseUrl:    srv.URL,
		RankCeiling:    5,
		BatchSize:      2,
		PageWorkers:    1,
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	seeded := []Row{snapshotRow("keeper", 1, "real madrid", "2026-05-10 14:00:00")}
	require.NoError(t, service.Store().ReplaceAll(ctx, seeded))
	one := int64(1)
	require.NoError(t, service.Store().WriteStatus(ctx, 100, "2026-05-10 14:00:00", &one))

	// an empty listing means the crawl failed outright; the previous
	// snapshot and status must survive untouched
	require.Error(t, service.RunCycle(ctx))

	rows, err := service.Store().QueryRows(ctx, 100, "all")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "keeper", rows[0].Nickname)

	status, err := service.Store().Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 100, status.ProgressPercent)
	require.Equal(t, "2026-05-10 14:00:00", status.ReferenceTime)
}

func TestNextCrawlTime(t *testing.T) {
	base := time.Date(2026, 5, 10, 14, 0, 0, 0, timezone.Location)

	next := nextCrawlTime(base.Add(time.Minute * 5))
	require.Equal(t, base.Add(time.Minute*10), next)

	// exactly ten past rolls over to the next hour
	next = nextCrawlTime(base.Add(time.Minute * 10))
	require.Equal(t, base.Add(time.Hour+time.Minute*10), next)

	next = nextCrawlTime(base.Add(time.Minute * 45))
	require.Equal(t, base.Add(time.Hour+time.Minute*10), next)
}
