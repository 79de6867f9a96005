package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"fcrank-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/remeh/sizedwaitgroup"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// rows per leaderboard listing page, fixed by the upstream service
const rowsPerPage = 20

const listingTimeout = time.Second * 3

// NormalizeTeamFilter lower-cases a team color filter and strips its
// whitespace so it can be matched as a substring. "all" is the wildcard.
func NormalizeTeamFilter(filter string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(filter), " ", ""))
}

// CrawlRange fetches and parses leaderboard pages [startPage, endPage]
// concurrently, keeping rows whose team color contains filter. The result
// is concatenated in completion order, not page order; callers that care
// about ordering sort by rank afterwards. A failed page contributes
// nothing and never aborts its siblings.
func (s *Service) CrawlRange(ctx context.Context, startPage, endPage int, filter string) []RankedUser {
	ctx, span := tracer.Start(ctx, "CrawlRange")
	defer span.End()
	span.SetAttributes(
		attribute.Int("start_page", startPage),
		attribute.Int("end_page", endPage),
		attribute.String("filter", filter),
	)

	normalized := NormalizeTeamFilter(filter)

	results := make(chan []RankedUser)
	go func() {
		defer close(results)
		swg := sizedwaitgroup.New(s.cfg.PageWorkers)
		for page := startPage; page <= endPage; page++ {
			if ctx.Err() != nil {
				break
			}
			swg.Add()
			go func(page int) {
				defer swg.Done()
				rows, err := s.fetchListingPage(ctx, page, normalized)
				if err != nil {
					slog.ErrorContext(ctx, "fetch listing page", "page", page, "err", err)
					return
				}
				results <- rows
			}(page)
		}
		swg.Wait()
	}()

	var all []RankedUser
	for rows := range results {
		all = append(all, rows...)
	}
	return all
}

func (s *Service) fetchListingPage(ctx context.Context, page int, normalizedFilter string) ([]RankedUser, error) {
	cacheKey := fmt.Sprintf("%d_%s", page, normalizedFilter)
	if cached, ok := s.rankCache.Get(cacheKey); ok {
		return cached, nil
	}

	ctx, span := tracer.Start(ctx, "fetchListingPage")
	defer span.End()
	span.SetAttributes(attribute.Int("page", page))

	ctx, cancel := context.WithTimeout(ctx, listingTimeout)
	defer cancel()

	res, err := s.pool.Acquire().R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"rt":       "manager",
			"n4pageno": strconv.Itoa(page),
		}).
		Get(s.cfg.ListingBaseUrl + "/datacenter/rank_inner")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch listing page")
		return nil, err
	}

	rows, err := parseListingPage(bytes.NewReader(res.Body()), page, normalizedFilter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse listing page")
		return nil, err
	}

	if len(rows) > 0 {
		s.rankCache.Put(cacheKey, rows)
	}
	return rows, nil
}

func parseListingPage(body *bytes.Reader, page int, normalizedFilter string) ([]RankedUser, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}

	var rows []RankedUser
	// rank reflects absolute leaderboard position: it advances for every
	// scanned row, including ones dropped by the filter or skipped for
	// missing fields
	rank := (page-1)*rowsPerPage + 1

	doc.Find(".tbody .tr").Each(func(_ int, tr *goquery.Selection) {
		defer func() { rank++ }()

		nameTag := tr.Find(".rank_coach .name")
		teamTag := tr.Find(".td.team_color .name .inner")
		if teamTag.Length() == 0 {
			teamTag = tr.Find(".td.team_color .name")
		}
		if nameTag.Length() == 0 || teamTag.Length() == 0 {
			return
		}

		nickname := htmlutil.CleanText(nameTag)
		teamColor := strings.ToLower(htmlutil.StripParentheticals(htmlutil.CleanText(teamTag)))

		formation := "-"
		if formationTag := tr.Find(".td.formation"); formationTag.Length() > 0 {
			formation = htmlutil.CleanText(formationTag)
		}

		var value int64
		if valueTag := tr.Find("span.price"); valueTag.Length() > 0 {
			raw := valueTag.AttrOr("alt", "")
			if raw == "" {
				raw = valueTag.AttrOr("title", "0")
			}
			if digits := htmlutil.DigitsOnly(raw); digits != "" {
				parsed, err := strconv.ParseInt(digits, 10, 64)
				if err == nil {
					value = parsed / 100_000_000
				}
			}
		}

		var score float64
		if scoreTag := tr.Find(".td.rank_r_win_point"); scoreTag.Length() > 0 {
			parsed, err := strconv.ParseFloat(htmlutil.CleanText(scoreTag), 64)
			if err == nil {
				score = parsed
			}
		}

		if normalizedFilter == "all" ||
			strings.Contains(strings.ReplaceAll(teamColor, " ", ""), normalizedFilter) {
			rows = append(rows, RankedUser{
				Nickname:  nickname,
				Rank:      rank,
				TeamColor: teamColor,
				Formation: formation,
				Value:     value,
				Score:     score,
			})
		}
	})

	return rows, nil
}
