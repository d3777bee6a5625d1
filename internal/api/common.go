package api

import (
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
)

const zonedLayout = "2006-01-02T15:04:05.000Z07:00"

type occurrenceResp struct {
	CalendarID  string               `json:"calendarId"`
	UID         string               `json:"uid"`
	Start       string               `json:"start"`
	End         string               `json:"end"`
	AllDay      bool                 `json:"allDay"`
	Summary     string               `json:"summary,omitempty"`
	Location    string               `json:"location,omitempty"`
	Description string               `json:"description,omitempty"`
	Status      string               `json:"status,omitempty"`
	Recurrence  model.RecurrenceInfo `json:"recurrence"`
	Source      model.SourceInfo     `json:"source"`
}

// formatIn renders canonical UTC instants, or local time with offset when a zone is given.
func formatIn(t time.Time, loc *time.Location) string {
	if loc == nil {
		return model.FormatInstant(t)
	}
	return t.In(loc).Format(zonedLayout)
}

func mapToOccurrenceResp(o model.Occurrence, loc *time.Location) occurrenceResp {
	return occurrenceResp{
		CalendarID:  o.CalendarID,
		UID:         o.UID,
		Start:       formatIn(o.Start, loc),
		End:         formatIn(o.End, loc),
		AllDay:      o.AllDay,
		Summary:     o.Summary,
		Location:    o.Location,
		Description: o.Description,
		Status:      o.Status,
		Recurrence:  o.Recurrence,
		Source:      o.Source,
	}
}

type intervalResp struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func mapToIntervalsResp(ivs []model.Interval) []intervalResp {
	res := make([]intervalResp, len(ivs))
	for i, iv := range ivs {
		res[i] = intervalResp{Start: model.FormatInstant(iv.Start), End: model.FormatInstant(iv.End)}
	}
	return res
}

type calendarResp struct {
	ID          string             `json:"id"`
	Type        model.CalendarType `json:"type"`
	Label       string             `json:"label"`
	Enabled     bool               `json:"enabled"`
	Color       string             `json:"color,omitempty"`
	Description string             `json:"description,omitempty"`
	SortOrder   *int               `json:"sortOrder"`
	GoogleCalID string             `json:"googleCalId,omitempty"`
	ICSURL      string             `json:"icsUrl,omitempty"`
	HasCursor   bool               `json:"hasSyncToken"`
	UpdatedAt   string             `json:"updatedAt"`
}

func mapToCalendarResp(c *model.Calendar) (*calendarResp, error) {
	return &calendarResp{
		ID:          c.ID,
		Type:        c.Type,
		Label:       c.Label,
		Enabled:     c.Enabled,
		Color:       c.Color,
		Description: c.Description,
		SortOrder:   c.SortOrder,
		GoogleCalID: c.GoogleCalID,
		ICSURL:      c.ICSURL,
		HasCursor:   c.SyncToken != "",
		UpdatedAt:   model.FormatInstant(c.UpdatedAt),
	}, nil
}
