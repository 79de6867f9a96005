package crawler

// RankedUser is one parsed leaderboard row. Immutable once emitted by the
// listing crawl; Rank always reflects absolute leaderboard position, not
// position after team filtering.
type RankedUser struct {
	Nickname string
	Rank     int
	// normalized lower-case, parenthetical suffixes stripped
	TeamColor string
	Formation string
	// club value scaled to hundred-million units
	Value int64
	Score float64
}

// PlayerCard is one roster card seen in a player's match history on the
// cutoff date. A player with no resolvable cards still yields exactly one
// sentinel card whose optional fields are all nil, so downstream joins
// never drop the user silently.
type PlayerCard struct {
	Nickname   string
	PlayerName *string
	Season     *string
	Grade      *int64
	Position   *int64
}

// Sentinel reports whether the card is the placeholder emitted for a
// player without any cards.
func (c PlayerCard) Sentinel() bool {
	return c.PlayerName == nil && c.Season == nil && c.Grade == nil && c.Position == nil
}

// Row is the flattened join of a RankedUser with one of its PlayerCards,
// stamped with the crawl cycle's reference timestamp.
type Row struct {
	RankedUser
	Card PlayerCard
	// hour-floored cycle anchor, identical across every row of a cycle
	ReferenceTime string
}

// RowView is a stored snapshot row with its numeric card position
// resolved against the upstream position metadata.
type RowView struct {
	StoredRow
	PositionDesc string
}

// CrawlStatus is the single progress record external consumers poll.
type CrawlStatus struct {
	ProgressPercent int
	ReferenceTime   string
	RowCount        *int64
}
