package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"fcrank-backend/lib/timezone"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	matchWindowLimit = 100
	lookupTimeout    = time.Second * 3
	matchTimeout     = time.Second * 5
	rateLimitPause   = time.Second
)

const maxFetchAttempts = 5

type matchDetail struct {
	MatchDate string `json:"matchDate"`
	MatchInfo []struct {
		Ouid      string `json:"ouid"`
		MatchDate string `json:"matchDate"`
		Player    []struct {
			SpId       int64 `json:"spId"`
			SpPosition int64 `json:"spPosition"`
			SpGrade    int64 `json:"spGrade"`
		} `json:"player"`
	} `json:"matchInfo"`
}

// FetchPlayerCards walks nickname's match history backward in time and
// extracts one PlayerCard per roster entry of every match played on the
// cutoff date. The whole call is retried on error with a linear backoff;
// a player that cannot be assembled at all yields an empty list.
func (s *Service) FetchPlayerCards(ctx context.Context, nickname string, cutoff time.Time) []PlayerCard {
	ctx, span := tracer.Start(ctx, "FetchPlayerCards")
	defer span.End()
	span.SetAttributes(attribute.String("nickname", nickname))

	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		cards, err := s.fetchPlayerCardsOnce(ctx, nickname, cutoff)
		if err == nil {
			return cards
		}
		if attempt == maxFetchAttempts {
			span.RecordError(err)
			span.SetStatus(codes.Error, "exhausted fetch attempts")
			slog.ErrorContext(ctx, "collect player data", "nickname", nickname, "err", err)
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return nil
}

func (s *Service) fetchPlayerCardsOnce(ctx context.Context, nickname string, cutoff time.Time) ([]PlayerCard, error) {
	if cached, ok := s.matchCache.Get(nickname); ok {
		return cached, nil
	}

	ouid, err := s.resolveAccountId(ctx, nickname)
	if err != nil {
		return nil, err
	}
	if ouid == "" {
		// nickname has no account behind it, nothing to scan and
		// nothing worth caching
		return nil, nil
	}

	// the cutoff day is always a KST calendar day, whatever location the
	// caller's timestamp carries
	cutoffYear, cutoffMonth, cutoffDay := cutoff.In(timezone.Location).Date()

	var cards []PlayerCard
	offset := 0
	foundOlderDate := false

	for {
		matchIds, err := s.fetchMatchWindow(ctx, ouid, offset)
		if err != nil {
			return nil, err
		}
		if len(matchIds) == 0 {
			break
		}

		for _, matchId := range matchIds {
			detail, ok, err := s.fetchMatchDetail(ctx, matchId)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}

			for _, info := range detail.MatchInfo {
				if info.Ouid != ouid {
					continue
				}
				timeStr := info.MatchDate
				if timeStr == "" {
					timeStr = detail.MatchDate
				}
				matchDay, ok := parseMatchDay(timeStr)
				if !ok {
					continue
				}

				y, m, d := matchDay.Date()
				switch {
				case afterDate(y, m, d, cutoffYear, cutoffMonth, cutoffDay):
					// newer than the cutoff day, keep scanning
					continue
				case beforeDate(y, m, d, cutoffYear, cutoffMonth, cutoffDay):
					// history is time-ordered descending, so the
					// first pre-cutoff match ends the whole scan
					foundOlderDate = true
				default:
					for _, roster := range info.Player {
						cards = append(cards, s.cardFromRoster(nickname, roster.SpId, roster.SpGrade, roster.SpPosition))
					}
				}
				if foundOlderDate {
					break
				}
			}
			if foundOlderDate {
				break
			}
		}

		if foundOlderDate || len(matchIds) < matchWindowLimit {
			break
		}
		offset += matchWindowLimit
	}

	if len(cards) == 0 {
		// emit the sentinel so downstream aggregation never drops the user
		cards = append(cards, PlayerCard{Nickname: nickname})
	}

	s.matchCache.Put(nickname, cards)
	return cards, nil
}

func (s *Service) resolveAccountId(ctx context.Context, nickname string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	res, err := s.pool.Acquire().R().
		SetContext(ctx).
		SetQueryParam("nickname", nickname).
		Get(s.cfg.OpenApiBaseUrl + "/fconline/v1/id")
	if err != nil {
		return "", err
	}
	if res.StatusCode() != http.StatusOK {
		return "", nil
	}

	var body struct {
		Ouid string `json:"ouid"`
	}
	err = json.Unmarshal(res.Body(), &body)
	if err != nil {
		return "", fmt.Errorf("unmarshal account lookup: %w", err)
	}
	return body.Ouid, nil
}

func (s *Service) fetchMatchWindow(ctx context.Context, ouid string, offset int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, matchTimeout)
	defer cancel()

	res, err := s.pool.Acquire().R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"matchtype": "52",
			"ouid":      ouid,
			"offset":    strconv.Itoa(offset),
			"limit":     strconv.Itoa(matchWindowLimit),
			"orderby":   "desc",
		}).
		Get(s.cfg.OpenApiBaseUrl + "/fconline/v1/user/match")
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		return nil, nil
	}

	var matchIds []string
	err = json.Unmarshal(res.Body(), &matchIds)
	if err != nil {
		return nil, fmt.Errorf("unmarshal match window: %w", err)
	}
	return matchIds, nil
}

// fetchMatchDetail returns ok=false for a match that should simply be
// skipped. A rate-limited response pauses briefly and re-requests the
// same match id; these retries do not consume the caller's whole-call
// attempts.
func (s *Service) fetchMatchDetail(ctx context.Context, matchId string) (matchDetail, bool, error) {
	for {
		tctx, cancel := context.WithTimeout(ctx, matchTimeout)
		res, err := s.pool.Acquire().R().
			SetContext(tctx).
			SetQueryParam("matchid", matchId).
			Get(s.cfg.OpenApiBaseUrl + "/fconline/v1/match-detail")
		cancel()
		if err != nil {
			return matchDetail{}, false, err
		}
		if res.StatusCode() == http.StatusTooManyRequests {
			select {
			case <-ctx.Done():
				return matchDetail{}, false, ctx.Err()
			case <-time.After(rateLimitPause):
			}
			continue
		}
		if res.StatusCode() != http.StatusOK {
			return matchDetail{}, false, nil
		}

		var detail matchDetail
		err = json.Unmarshal(res.Body(), &detail)
		if err != nil {
			return matchDetail{}, false, fmt.Errorf("unmarshal match detail: %w", err)
		}
		return detail, true, nil
	}
}

// parseMatchDay interprets the upstream timestamp (UTC, second precision)
// and shifts it into KST before reducing to a calendar day.
func parseMatchDay(timestamp string) (time.Time, bool) {
	if len(timestamp) < 19 {
		return time.Time{}, false
	}
	parsed, err := time.Parse("2006-01-02T15:04:05", timestamp[:19])
	if err != nil {
		return time.Time{}, false
	}
	return parsed.Add(9 * time.Hour), true
}

func afterDate(y int, m time.Month, d, ty int, tm time.Month, td int) bool {
	if y != ty {
		return y > ty
	}
	if m != tm {
		return m > tm
	}
	return d > td
}

func beforeDate(y int, m time.Month, d, ty int, tm time.Month, td int) bool {
	if y != ty {
		return y < ty
	}
	if m != tm {
		return m < tm
	}
	return d < td
}

func (s *Service) cardFromRoster(nickname string, spId, spGrade, spPosition int64) PlayerCard {
	card := PlayerCard{
		Nickname: nickname,
		Grade:    &spGrade,
		Position: &spPosition,
	}
	if name, ok := s.meta.PlayerName(spId); ok {
		card.PlayerName = &name
	}
	if season, ok := s.meta.SeasonClass(seasonIdOf(spId)); ok {
		card.Season = &season
	}
	return card
}

// the leading three digits of a card id identify its season
func seasonIdOf(spId int64) int64 {
	return spId / 1_000_000
}
