package calendars

import "github.com/SergeyKozhin/omnical/internal/database"

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

var baseQuery = database.PSQL.
	Select(
		"id",
		"type",
		"label",
		"color",
		"description",
		"sort_order",
		"enabled",
		"google_cal_id",
		"sync_token",
		"ics_url",
		"ics_etag",
		"ics_last_mod",
		"updated_at",
	).
	From(database.CalendarsTable)
