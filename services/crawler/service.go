package crawler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"fcrank-backend/lib/hourcache"
	"fcrank-backend/lib/httppool"
	"fcrank-backend/lib/osutil"
	"fcrank-backend/lib/timezone"

	"github.com/remeh/sizedwaitgroup"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/crawler")

type Config struct {
	// host serving the HTML leaderboard listing
	ListingBaseUrl string `json:"listing_base_url"`
	// host serving the account/match REST API
	OpenApiBaseUrl string `json:"open_api_base_url"`
	// host serving the static metadata files
	MetaBaseUrl string `json:"meta_base_url"`
	ApiKey      string `json:"api_key"`
	// crawl the top N ranked players each cycle
	RankCeiling int `json:"rank_ceiling"`
	// players fetched concurrently per batch
	BatchSize int `json:"batch_size"`
	// listing pages in flight at once
	PageWorkers int `json:"page_workers"`
}

func (c *Config) withDefaults() {
	if c.ListingBaseUrl == "" {
		c.ListingBaseUrl = "https://fconline.nexon.com"
	}
	if c.OpenApiBaseUrl == "" {
		c.OpenApiBaseUrl = "https://open.api.nexon.com"
	}
	if c.MetaBaseUrl == "" {
		c.MetaBaseUrl = "https://open.api.nexon.com/static/fconline/meta"
	}
	if c.RankCeiling <= 0 {
		c.RankCeiling = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.PageWorkers <= 0 {
		c.PageWorkers = 100
	}
}

// Service drives the crawl-and-refresh pipeline: one full refresh cycle
// at a time, plus the two recurring timers (hourly refresh at ten past,
// cache sweep at the top of the hour).
type Service struct {
	store      Store
	pool       *httppool.Pool
	rankCache  *hourcache.Cache[[]RankedUser]
	matchCache *hourcache.Cache[[]PlayerCard]
	meta       *metadata
	cfg        Config

	running sync.WaitGroup
}

func NewService(database *sql.DB, pool *httppool.Pool, cfg Config) *Service {
	cfg.withDefaults()
	return &Service{
		store:      NewStore(database),
		pool:       pool,
		rankCache:  hourcache.New[[]RankedUser](),
		matchCache: hourcache.New[[]PlayerCard](),
		meta:       &metadata{},
		cfg:        cfg,
	}
}

func (s *Service) Store() Store {
	return s.store
}

// QueryRows reads the current snapshot filtered by rank ceiling and
// optional team color, resolving each card's position id to its display
// description.
func (s *Service) QueryRows(ctx context.Context, rankCeiling int, teamColor string) ([]RowView, error) {
	rows, err := s.store.QueryRows(ctx, rankCeiling, teamColor)
	if err != nil {
		return nil, err
	}
	out := make([]RowView, len(rows))
	for i, r := range rows {
		out[i] = RowView{StoredRow: r}
		if r.Card.Position == nil {
			continue
		}
		if desc, ok := s.meta.PositionDesc(*r.Card.Position); ok {
			out[i].PositionDesc = desc
		}
	}
	return out, nil
}

// RunCycle performs one complete refresh: crawl the full rank range, walk
// every player's match history in bounded batches, then atomically swap
// the snapshot. Individual page/player failures degrade to missing rows;
// only persistence failures and cancellation surface as errors.
func (s *Service) RunCycle(ctx context.Context) error {
	s.running.Add(1)
	defer s.running.Done()

	ctx, span := tracer.Start(ctx, "RunCycle")
	defer span.End()

	start := time.Now()
	s.meta.load(ctx, s.pool, s.cfg.MetaBaseUrl)

	ceiling := s.cfg.RankCeiling
	pages := (ceiling-1)/rowsPerPage + 1
	slog.InfoContext(ctx, "snapshot refresh started", "rank_ceiling", ceiling, "pages", pages)

	users := s.CrawlRange(ctx, 1, pages, "all")
	kept := users[:0]
	for _, u := range users {
		if u.Rank <= ceiling {
			kept = append(kept, u)
		}
	}
	if len(kept) > ceiling {
		kept = kept[:ceiling]
	}
	span.SetAttributes(attribute.Int("users", len(kept)))

	if len(kept) == 0 {
		// a fully failed crawl must not wipe the previous snapshot
		err := errors.New("listing crawl yielded no users")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	referenceTime := timezone.FloorHour(timezone.Now()).Format("2006-01-02 15:04:05")
	batchSize := s.cfg.BatchSize
	totalBatches := (len(kept) + batchSize - 1) / batchSize

	zero := int64(0)
	err := s.store.WriteStatus(ctx, 0, referenceTime, &zero)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var rows []Row
	for i := 0; i < len(kept); i += batchSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		end := i + batchSize
		if end > len(kept) {
			end = len(kept)
		}
		rows = append(rows, s.fetchBatch(ctx, kept[i:end], referenceTime)...)

		done := i/batchSize + 1
		progress := progressPercent(done, totalBatches)

		count, err := s.store.CountRows(ctx)
		if err != nil {
			slog.WarnContext(ctx, "count snapshot rows", "err", err)
		}
		err = s.store.WriteStatus(ctx, progress, referenceTime, &count)
		if err != nil {
			slog.WarnContext(ctx, "write crawl status", "err", err)
		}
		slog.InfoContext(
			ctx, "cycle progress",
			"percent", progress,
			"batch", done,
			"batches", totalBatches,
			"elapsed_s", int(time.Since(start).Seconds()),
		)
	}

	err = s.store.ReplaceAll(ctx, rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	count, err := s.store.CountRows(ctx)
	if err != nil {
		slog.WarnContext(ctx, "count snapshot rows", "err", err)
	}
	err = s.store.WriteStatus(ctx, 100, referenceTime, &count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	slog.InfoContext(
		ctx, "snapshot refresh finished",
		"rows", len(rows),
		"elapsed_s", int(time.Since(start).Seconds()),
	)
	return nil
}

// progressPercent reports the rounded batch completion percentage. 100
// is held back for the status write that follows the snapshot swap.
func progressPercent(done, total int) int {
	progress := int(math.Round(float64(done) / float64(total) * 100))
	if progress > 99 {
		progress = 99
	}
	return progress
}

// fetchBatch walks one batch of users concurrently and joins every
// returned card back to its owning user's leaderboard fields. Batch-level
// sequencing is the backpressure mechanism: the next batch is not
// submitted until this one has been folded in.
func (s *Service) fetchBatch(ctx context.Context, batch []RankedUser, referenceTime string) []Row {
	cutoff := timezone.Now()

	byNickname := make(map[string]RankedUser, len(batch))
	for _, u := range batch {
		if _, seen := byNickname[u.Nickname]; !seen {
			byNickname[u.Nickname] = u
		}
	}

	results := make(chan []PlayerCard)
	go func() {
		defer close(results)
		swg := sizedwaitgroup.New(len(batch))
		for _, user := range batch {
			swg.Add()
			go func(nickname string) {
				defer swg.Done()
				results <- s.FetchPlayerCards(ctx, nickname, cutoff)
			}(user.Nickname)
		}
		swg.Wait()
	}()

	var rows []Row
	for cards := range results {
		for _, card := range cards {
			owner, ok := byNickname[card.Nickname]
			if !ok {
				continue
			}
			rows = append(rows, Row{
				RankedUser:    owner,
				Card:          card,
				ReferenceTime: referenceTime,
			})
		}
	}
	return rows
}

// Start runs the first cycle synchronously, then hands off to the two
// recurring daemons. Both exit when ctx is canceled.
func (s *Service) Start(ctx context.Context) {
	err := s.RunCycle(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "initial refresh cycle", "err", err)
	}
	go s.crawlDaemon(ctx)
	go s.cacheClearDaemon(ctx)
}

// Drain blocks until any in-flight cycle finishes, or until timeout.
func (s *Service) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	osutil.Drain(done, timeout)
}

// nextCrawlTime computes the next ten-past-the-hour instant after now,
// keeping refresh cycles clear of the top-of-hour cache sweep.
func nextCrawlTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 10, 0, 0, now.Location())
	if !now.Before(next) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s *Service) crawlDaemon(ctx context.Context) {
	for {
		wait := time.Until(nextCrawlTime(timezone.Now()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			err := s.RunCycle(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "refresh cycle", "err", err)
			}
		}
	}
}

func (s *Service) cacheClearDaemon(ctx context.Context) {
	for {
		wait := time.Until(timezone.NextHour(timezone.Now()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			s.rankCache.Clear()
			s.matchCache.Clear()
			slog.InfoContext(ctx, "hour caches cleared")
		}
	}
}
