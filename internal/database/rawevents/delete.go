package rawevents

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/SergeyKozhin/omnical/internal/database"
)

// DeleteByUID removes the master, single and every override of uid.
func (*Repository) DeleteByUID(ctx context.Context, q database.Queryable, calendarID, uid string) (int64, error) {
	return deleteWhere(ctx, q, sq.Eq{"calendar_id": calendarID, "uid": uid})
}

func (*Repository) DeleteByCalendar(ctx context.Context, q database.Queryable, calendarID string) (int64, error) {
	return deleteWhere(ctx, q, sq.Eq{"calendar_id": calendarID})
}

func deleteWhere(ctx context.Context, q database.Queryable, predicate sq.Eq) (int64, error) {
	qb := database.PSQL.
		Delete(database.RawEventsTable).
		Where(predicate)

	tag, err := q.Exec(ctx, qb)
	if err != nil {
		return 0, fmt.Errorf("SQL request: %w", err)
	}

	return tag.RowsAffected(), nil
}
