package rawevents

import (
	"context"
	"fmt"
	"strings"

	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/model"
)

var upsertSuffix = func() string {
	set := make([]string, 0, len(columns))
	for _, c := range columns[3:] {
		set = append(set, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return "ON CONFLICT (calendar_id, uid, recurrence_key) DO UPDATE SET " + strings.Join(set, ", ")
}()

// UpsertRawEvent replaces the row stored under the event identity key.
func (*Repository) UpsertRawEvent(ctx context.Context, q database.Queryable, ev *model.RawEvent) error {
	rec, err := recurrenceValue(ev.Recurrence)
	if err != nil {
		return err
	}

	qb := database.PSQL.
		Insert(database.RawEventsTable).
		Columns(columns...).
		Values(
			ev.CalendarID,
			ev.UID,
			ev.RecurrenceKey,
			ev.AllDay,
			ev.Start.UTC(),
			ev.End.UTC(),
			ev.Timezone,
			ev.Status,
			ev.Summary,
			ev.Location,
			ev.Description,
			rec,
			sourceValue(ev.SourcePayload),
			ev.UpdatedAt.UTC(),
		).
		Suffix(upsertSuffix)

	if _, err := q.Exec(ctx, qb); err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("calendar %s: %w", ev.CalendarID, model.ErrNoRecord)
		}
		return fmt.Errorf("SQL request: %w", err)
	}

	return nil
}
