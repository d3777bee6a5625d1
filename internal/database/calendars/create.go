package calendars

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/model"
)

// UpsertCalendar inserts a calendar or, for an existing id, refreshes its label
// (when non-empty) and source pointer. Enabled flag and sync state are kept.
func (*Repository) UpsertCalendar(ctx context.Context, q database.Queryable, id string, info *model.CalendarCreate) error {
	label := info.Label
	if label == "" {
		label = info.GoogleCalID + info.ICSURL
	}

	qb := database.PSQL.
		Insert(database.CalendarsTable).
		Columns("id", "type", "label", "enabled", "google_cal_id", "ics_url", "updated_at").
		Values(
			id,
			string(info.Type),
			label,
			true,
			nullable(info.GoogleCalID),
			nullable(info.ICSURL),
			time.Now().UTC(),
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			label = COALESCE(NULLIF(?, ''), calendars.label),
			google_cal_id = excluded.google_cal_id,
			ics_url = excluded.ics_url,
			updated_at = excluded.updated_at`, info.Label)

	if _, err := q.Exec(ctx, qb); err != nil {
		return fmt.Errorf("SQL request: %w", err)
	}

	return nil
}
