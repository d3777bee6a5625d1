package rawevents

import "github.com/SergeyKozhin/omnical/internal/database"

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

var columns = []string{
	"calendar_id",
	"uid",
	"recurrence_key",
	"all_day",
	"start_utc",
	"end_utc",
	"timezone",
	"status",
	"summary",
	"location",
	"description",
	"recurrence_json",
	"source_json",
	"updated_at",
}

var baseQuery = database.PSQL.
	Select(columns...).
	From(database.RawEventsTable)
