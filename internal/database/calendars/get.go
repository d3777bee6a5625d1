package calendars

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/model"
)

func (*Repository) GetCalendar(ctx context.Context, q database.Queryable, id string) (*model.Calendar, error) {
	cals, err := getCalendars(ctx, q, sq.Eq{"id": id})
	if err != nil {
		return nil, err
	}

	if len(cals) == 0 {
		return nil, model.ErrNoRecord
	}

	return cals[0], nil
}

func (*Repository) ListCalendars(ctx context.Context, q database.Queryable) ([]*model.Calendar, error) {
	return getCalendars(ctx, q, nil)
}

// ListEnabledCalendars returns enabled calendars, optionally limited to the given source types.
func (*Repository) ListEnabledCalendars(ctx context.Context, q database.Queryable, types ...model.CalendarType) ([]*model.Calendar, error) {
	pred := sq.And{sq.Eq{"enabled": true}}
	if len(types) != 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		pred = append(pred, sq.Eq{"type": names})
	}

	return getCalendars(ctx, q, pred)
}

func getCalendars(ctx context.Context, q database.Queryable, predicate interface{}) ([]*model.Calendar, error) {
	qb := baseQuery.OrderBy("sort_order ASC NULLS LAST", "id ASC")
	if predicate != nil {
		qb = qb.Where(predicate)
	}

	var dtos []*calendarDTO
	if err := q.Select(ctx, &dtos, qb); err != nil {
		return nil, fmt.Errorf("SQL request: %w", err)
	}

	res := make([]*model.Calendar, len(dtos))
	for i, d := range dtos {
		res[i] = mapToCalendar(d)
	}

	return res, nil
}
