package rawevents

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/jackc/pgx/v4"
)

// GetMasters returns recurring definitions starting no later than windowEnd.
func (*Repository) GetMasters(ctx context.Context, q database.Queryable, calendarIDs []string, windowEnd time.Time) ([]*model.RawEvent, error) {
	return getRawEvents(ctx, q, sq.And{
		sq.Eq{"calendar_id": calendarIDs},
		sq.Eq{"recurrence_key": model.MasterKey},
		sq.NotEq{"recurrence_json": nil},
		sq.LtOrEq{"start_utc": windowEnd.UTC()},
	})
}

// GetOverrides compares recurrence keys lexically, bounds must be canonical instants.
func (*Repository) GetOverrides(ctx context.Context, q database.Queryable, calendarIDs []string, windowStart, windowEnd time.Time) ([]*model.RawEvent, error) {
	return getRawEvents(ctx, q, sq.And{
		sq.Eq{"calendar_id": calendarIDs},
		sq.NotEq{"recurrence_key": model.MasterKey},
		sq.GtOrEq{"recurrence_key": model.FormatInstant(windowStart)},
		sq.LtOrEq{"recurrence_key": model.FormatInstant(windowEnd)},
	})
}

// GetSingles returns non-recurring rows intersecting [windowStart, windowEnd).
func (*Repository) GetSingles(ctx context.Context, q database.Queryable, calendarIDs []string, windowStart, windowEnd time.Time) ([]*model.RawEvent, error) {
	return getRawEvents(ctx, q, sq.And{
		sq.Eq{"calendar_id": calendarIDs},
		sq.Eq{"recurrence_key": model.MasterKey},
		sq.Eq{"recurrence_json": nil},
		sq.Lt{"start_utc": windowEnd.UTC()},
		sq.Gt{"end_utc": windowStart.UTC()},
	})
}

// GetUpdatedAt locks the row for the identity key and returns its logical update time.
func (*Repository) GetUpdatedAt(ctx context.Context, q database.Queryable, calendarID, uid, recurrenceKey string) (time.Time, error) {
	qb := database.PSQL.
		Select("updated_at").
		From(database.RawEventsTable).
		Where(sq.Eq{
			"calendar_id":    calendarID,
			"uid":            uid,
			"recurrence_key": recurrenceKey,
		}).
		Suffix("FOR UPDATE")

	dto := &updatedAtDTO{}
	if err := q.Get(ctx, dto, qb); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, model.ErrNoRecord
		}
		return time.Time{}, fmt.Errorf("SQL request: %w", err)
	}

	return dto.UpdatedAt.UTC(), nil
}

func (*Repository) GetByCalendar(ctx context.Context, q database.Queryable, calendarID string) ([]*model.RawEvent, error) {
	return getRawEvents(ctx, q, sq.Eq{"calendar_id": calendarID})
}

func getRawEvents(ctx context.Context, q database.Queryable, predicate interface{}) ([]*model.RawEvent, error) {
	qb := baseQuery.
		Where(predicate).
		OrderBy("start_utc ASC", "calendar_id ASC", "uid ASC")

	var dtos []*rawEventDTO
	if err := q.Select(ctx, &dtos, qb); err != nil {
		return nil, fmt.Errorf("SQL request: %w", err)
	}

	res := make([]*model.RawEvent, len(dtos))
	for i, d := range dtos {
		res[i] = mapToRawEvent(d)
	}

	return res, nil
}
