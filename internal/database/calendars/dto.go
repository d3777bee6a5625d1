package calendars

import (
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
)

type calendarDTO struct {
	ID          string    `db:"id"`
	Type        string    `db:"type"`
	Label       string    `db:"label"`
	Color       string    `db:"color"`
	Description string    `db:"description"`
	SortOrder   *int      `db:"sort_order"`
	Enabled     bool      `db:"enabled"`
	GoogleCalID *string   `db:"google_cal_id"`
	SyncToken   *string   `db:"sync_token"`
	ICSURL      *string   `db:"ics_url"`
	ICSEtag     *string   `db:"ics_etag"`
	ICSLastMod  *string   `db:"ics_last_mod"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func mapToCalendar(dto *calendarDTO) *model.Calendar {
	return &model.Calendar{
		ID:          dto.ID,
		Type:        model.CalendarType(dto.Type),
		Label:       dto.Label,
		Enabled:     dto.Enabled,
		Color:       dto.Color,
		Description: dto.Description,
		SortOrder:   dto.SortOrder,
		GoogleCalID: deref(dto.GoogleCalID),
		SyncToken:   deref(dto.SyncToken),
		ICSURL:      deref(dto.ICSURL),
		ICSEtag:     deref(dto.ICSEtag),
		ICSLastMod:  deref(dto.ICSLastMod),
		UpdatedAt:   dto.UpdatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
