package syncer

import (
	"context"
	"net/url"
	"time"

	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/model"
)

type calendarsRepository interface {
	ListEnabledCalendars(ctx context.Context, q database.Queryable, types ...model.CalendarType) ([]*model.Calendar, error)
	UpdateSyncCursor(ctx context.Context, q database.Queryable, id string, cursor string) error
	UpdateConditionalValidators(ctx context.Context, q database.Queryable, id string, etag, lastMod string) error
}

type rawEventsRepository interface {
	GetUpdatedAt(ctx context.Context, q database.Queryable, calendarID, uid, recurrenceKey string) (time.Time, error)
	UpsertRawEvent(ctx context.Context, q database.Queryable, ev *model.RawEvent) error
	DeleteByUID(ctx context.Context, q database.Queryable, calendarID, uid string) (int64, error)
}

// redactURL keeps scheme and host only, feed urls often embed secrets.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
