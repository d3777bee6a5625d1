package database

import sq "github.com/Masterminds/squirrel"

var PSQL = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	CalendarsTable   = "calendars"
	RawEventsTable   = "raw_events"
	OAuthTokensTable = "oauth_tokens"
)
