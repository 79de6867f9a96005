package crawler

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fcrank-backend/services/crawler/db"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Store persists the crawl output: the snapshot table holding exactly one
// completed cycle's rows and the single crawl status record.
type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

func toDBRow(r Row) db.CreateSnapshotRowParams {
	return db.CreateSnapshotRowParams{
		Nickname:      r.Nickname,
		Rank:          int64(r.Rank),
		TeamColor:     r.TeamColor,
		Formation:     r.Formation,
		Value:         r.Value,
		Score:         r.Score,
		PlayerName:    nullString(r.Card.PlayerName),
		Season:        nullString(r.Card.Season),
		Grade:         nullInt64(r.Card.Grade),
		Position:      nullInt64(r.Card.Position),
		ReferenceTime: r.ReferenceTime,
	}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// ReplaceAll swaps in rows as the new snapshot. Delete and bulk insert run
// in one transaction so a concurrent reader never observes a mix of two
// cycles or an empty table.
func (s Store) ReplaceAll(ctx context.Context, rows []Row) error {
	ctx, span := tracer.Start(ctx, "store:ReplaceAll")
	defer span.End()
	span.SetAttributes(attribute.Int("rows", len(rows)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.DeleteAllSnapshotRows(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	for _, r := range rows {
		err = txqry.CreateSnapshotRow(ctx, toDBRow(r))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	return tx.Commit()
}

func (s Store) CountRows(ctx context.Context) (int64, error) {
	return s.qry.CountSnapshotRows(ctx)
}

// WriteStatus overwrites the single status record in place.
func (s Store) WriteStatus(ctx context.Context, progress int, referenceTime string, rowCount *int64) error {
	return s.qry.UpsertCrawlStatus(ctx, db.UpsertCrawlStatusParams{
		Progress:      int64(progress),
		ReferenceTime: referenceTime,
		RowCount:      nullInt64(rowCount),
	})
}

// Status returns the last written crawl status, or a zero status when no
// cycle has run yet.
func (s Store) Status(ctx context.Context) (CrawlStatus, error) {
	row, err := s.qry.GetCrawlStatus(ctx)
	if err == sql.ErrNoRows {
		return CrawlStatus{}, nil
	}
	if err != nil {
		return CrawlStatus{}, err
	}
	status := CrawlStatus{
		ProgressPercent: int(row.Progress),
		ReferenceTime:   row.ReferenceTime,
	}
	if row.RowCount.Valid {
		count := row.RowCount.Int64
		status.RowCount = &count
	}
	return status, nil
}

// StoredRow is a snapshot row together with its rowid identity, used by
// the read and manual-correction paths.
type StoredRow struct {
	ID int64
	Row
}

func fromDBFields(
	nickname string, rank int64, teamColor, formation string,
	value int64, score float64,
	playerName, season sql.NullString, grade, position sql.NullInt64,
	referenceTime string,
) Row {
	row := Row{
		RankedUser: RankedUser{
			Nickname:  nickname,
			Rank:      int(rank),
			TeamColor: teamColor,
			Formation: formation,
			Value:     value,
			Score:     score,
		},
		Card:          PlayerCard{Nickname: nickname},
		ReferenceTime: referenceTime,
	}
	if playerName.Valid {
		v := playerName.String
		row.Card.PlayerName = &v
	}
	if season.Valid {
		v := season.String
		row.Card.Season = &v
	}
	if grade.Valid {
		v := grade.Int64
		row.Card.Grade = &v
	}
	if position.Valid {
		v := position.Int64
		row.Card.Position = &v
	}
	return row
}

// QueryRows returns the current snapshot filtered by rank ceiling and an
// optional exact team color ("all" or empty means no team filter).
func (s Store) QueryRows(ctx context.Context, rankCeiling int, teamColor string) ([]StoredRow, error) {
	if teamColor == "" || teamColor == "all" {
		rows, err := s.qry.GetSnapshotRowsByRank(ctx, int64(rankCeiling))
		if err != nil {
			return nil, err
		}
		out := make([]StoredRow, len(rows))
		for i, r := range rows {
			out[i] = StoredRow{
				ID: r.ID,
				Row: fromDBFields(
					r.Nickname, r.Rank, r.TeamColor, r.Formation,
					r.Value, r.Score,
					r.PlayerName, r.Season, r.Grade, r.Position,
					r.ReferenceTime,
				),
			}
		}
		return out, nil
	}

	rows, err := s.qry.GetSnapshotRowsByRankAndTeam(ctx, db.GetSnapshotRowsByRankAndTeamParams{
		Rank:      int64(rankCeiling),
		TeamColor: teamColor,
	})
	if err != nil {
		return nil, err
	}
	out := make([]StoredRow, len(rows))
	for i, r := range rows {
		out[i] = StoredRow{
			ID: r.ID,
			Row: fromDBFields(
				r.Nickname, r.Rank, r.TeamColor, r.Formation,
				r.Value, r.Score,
				r.PlayerName, r.Season, r.Grade, r.Position,
				r.ReferenceTime,
			),
		}
	}
	return out, nil
}

// SearchRequest drives the administrative row listing.
type SearchRequest struct {
	// substring filters, empty means unfiltered
	Nickname  string
	TeamColor string
	// one of the whitelisted column names, defaults to rank
	SortColumn string
	Descending bool
	Limit      int
	Offset     int
}

var sortColumns = map[string]string{
	"nickname":   "nickname",
	"rank":       "rank",
	"team_color": "team_color",
	"formation":  "formation",
	"value":      "value",
	"score":      "score",
}

// SearchRows serves the administrative view: substring filters on nickname
// and team color, whitelisted sort column, pagination. The dynamic SQL is
// assembled here instead of the generated query layer because the sort
// column cannot be a bind parameter.
func (s Store) SearchRows(ctx context.Context, req SearchRequest) ([]StoredRow, error) {
	column, ok := sortColumns[req.SortColumn]
	if !ok {
		if req.SortColumn != "" {
			return nil, fmt.Errorf("unknown sort column %q", req.SortColumn)
		}
		column = "rank"
	}
	direction := "ASC"
	if req.Descending {
		direction = "DESC"
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	var conds []string
	var args []interface{}
	if req.Nickname != "" {
		conds = append(conds, "nickname LIKE ?")
		args = append(args, "%"+req.Nickname+"%")
	}
	if req.TeamColor != "" {
		conds = append(conds, "team_color LIKE ?")
		args = append(args, "%"+req.TeamColor+"%")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT rowid, nickname, rank, team_color, formation, value, score,
			player_name, season, grade, position, reference_time
		FROM snapshot_rows%s
		ORDER BY %s %s
		LIMIT ? OFFSET ?`,
		where, column, direction,
	)
	args = append(args, limit, req.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredRow
	for rows.Next() {
		var (
			id                 int64
			nickname           string
			rank               int64
			teamColor          string
			formation          string
			value              int64
			score              float64
			playerName, season sql.NullString
			grade, position    sql.NullInt64
			referenceTime      string
		)
		err := rows.Scan(
			&id, &nickname, &rank, &teamColor, &formation, &value, &score,
			&playerName, &season, &grade, &position, &referenceTime,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, StoredRow{
			ID: id,
			Row: fromDBFields(
				nickname, rank, teamColor, formation, value, score,
				playerName, season, grade, position, referenceTime,
			),
		})
	}
	return out, rows.Err()
}

// InsertRow adds a single row outside of the cycle replace path, for
// manual data correction.
func (s Store) InsertRow(ctx context.Context, row Row) error {
	return s.qry.CreateSnapshotRow(ctx, toDBRow(row))
}

// UpdateRow rewrites the row identified by id.
func (s Store) UpdateRow(ctx context.Context, id int64, row Row) error {
	params := toDBRow(row)
	return s.qry.UpdateSnapshotRow(ctx, db.UpdateSnapshotRowParams{
		Nickname:      params.Nickname,
		Rank:          params.Rank,
		TeamColor:     params.TeamColor,
		Formation:     params.Formation,
		Value:         params.Value,
		Score:         params.Score,
		PlayerName:    params.PlayerName,
		Season:        params.Season,
		Grade:         params.Grade,
		Position:      params.Position,
		ReferenceTime: params.ReferenceTime,
		ID:            id,
	})
}

// DeleteRow removes the row identified by id.
func (s Store) DeleteRow(ctx context.Context, id int64) error {
	return s.qry.DeleteSnapshotRow(ctx, id)
}

// GetRow fetches one row by identity.
func (s Store) GetRow(ctx context.Context, id int64) (StoredRow, error) {
	r, err := s.qry.GetSnapshotRow(ctx, id)
	if err != nil {
		return StoredRow{}, err
	}
	return StoredRow{
		ID: r.ID,
		Row: fromDBFields(
			r.Nickname, r.Rank, r.TeamColor, r.Formation,
			r.Value, r.Score,
			r.PlayerName, r.Season, r.Grade, r.Position,
			r.ReferenceTime,
		),
	}, nil
}
