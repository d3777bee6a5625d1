package model

import "time"

type CalendarType string

const (
	CalendarTypeGoogle CalendarType = "google"
	CalendarTypeICS    CalendarType = "ics"
)

type Calendar struct {
	ID      string
	Type    CalendarType
	Label   string
	Enabled bool

	Color       string
	Description string
	SortOrder   *int

	GoogleCalID string
	SyncToken   string

	ICSURL     string
	ICSEtag    string
	ICSLastMod string

	UpdatedAt time.Time
}

// SourceRef returns the source identity matching the calendar type.
func (c *Calendar) SourceRef() string {
	if c.Type == CalendarTypeGoogle {
		return c.GoogleCalID
	}
	return c.ICSURL
}

type CalendarCreate struct {
	Type        CalendarType
	Label       string
	GoogleCalID string
	ICSURL      string
}

// CalendarUpdate holds optional metadata changes, nil fields are left as is.
type CalendarUpdate struct {
	Label       *string
	Color       *string
	Description *string
	Enabled     *bool
	SortOrder   *int
}

type SyncSummary struct {
	Updated   int      `json:"updated"`
	Calendars []string `json:"calendars"`
}

type SyncResult struct {
	Google SyncSummary `json:"google"`
	ICS    SyncSummary `json:"ics"`
}
