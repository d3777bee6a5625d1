package calendars

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/model"
)

func (*Repository) UpdateCalendar(ctx context.Context, q database.Queryable, id string, upd *model.CalendarUpdate) error {
	set := map[string]interface{}{"updated_at": time.Now().UTC()}
	if upd.Label != nil {
		set["label"] = *upd.Label
	}
	if upd.Color != nil {
		set["color"] = *upd.Color
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Enabled != nil {
		set["enabled"] = *upd.Enabled
	}
	if upd.SortOrder != nil {
		set["sort_order"] = *upd.SortOrder
	}

	return exec(ctx, q, database.PSQL.
		Update(database.CalendarsTable).
		SetMap(set).
		Where(sq.Eq{"id": id}))
}

// UpdateSyncCursor stores the Google sync token, an empty cursor clears it.
func (*Repository) UpdateSyncCursor(ctx context.Context, q database.Queryable, id string, cursor string) error {
	return exec(ctx, q, database.PSQL.
		Update(database.CalendarsTable).
		Set("sync_token", nullable(cursor)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}))
}

func (*Repository) UpdateConditionalValidators(ctx context.Context, q database.Queryable, id string, etag, lastMod string) error {
	return exec(ctx, q, database.PSQL.
		Update(database.CalendarsTable).
		Set("ics_etag", nullable(etag)).
		Set("ics_last_mod", nullable(lastMod)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}))
}

func exec(ctx context.Context, q database.Queryable, qb database.Sqlizer) error {
	tag, err := q.Exec(ctx, qb)
	if err != nil {
		return fmt.Errorf("SQL request: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrNoRecord
	}

	return nil
}
