package calendars

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/SergeyKozhin/omnical/internal/database"
)

func (*Repository) DeleteCalendar(ctx context.Context, q database.Queryable, id string) error {
	return exec(ctx, q, database.PSQL.
		Delete(database.CalendarsTable).
		Where(sq.Eq{"id": id}))
}
