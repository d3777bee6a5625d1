package model

import (
	"strings"
	"time"
)

const StatusCancelled = "cancelled"

// RawEvent is one stored row: a master, a single or an override.
type RawEvent struct {
	CalendarID    string
	UID           string
	RecurrenceKey string

	AllDay      bool
	Start       time.Time
	End         time.Time
	Timezone    string
	Status      string
	Summary     string
	Location    string
	Description string

	Recurrence    *Recurrence
	SourcePayload []byte
	UpdatedAt     time.Time
}

func (e *RawEvent) IsOverride() bool {
	return e.RecurrenceKey != MasterKey
}

func (e *RawEvent) IsMaster() bool {
	return !e.IsOverride() && e.Recurrence != nil
}

func (e *RawEvent) Cancelled() bool {
	return IsCancelled(e.Status)
}

func IsCancelled(status string) bool {
	return strings.EqualFold(status, StatusCancelled)
}

// Recurrence is the payload stored on master rows. Dates are canonical instants.
type Recurrence struct {
	RRule   string   `json:"rrule"`
	ExDates []string `json:"exdates"`
	RDates  []string `json:"rdates"`

	// Err is set when the stored payload could not be decoded.
	Err error `json:"-"`
}

type RecurrenceInfo struct {
	IsRecurring  bool   `json:"isRecurring"`
	MasterUID    string `json:"masterUid,omitempty"`
	RecurrenceID string `json:"recurrenceId,omitempty"`
}

type SourceInfo struct {
	Type CalendarType `json:"type"`
	ID   string       `json:"id"`
}

// Occurrence is one concrete event instance inside a query window.
type Occurrence struct {
	CalendarID  string
	UID         string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Summary     string
	Location    string
	Description string
	Status      string
	Recurrence  RecurrenceInfo
	Source      SourceInfo
}

type EventsFilter struct {
	From             time.Time
	To               time.Time
	IncludeCancelled bool
}

type Interval struct {
	Start time.Time
	End   time.Time
}

type FreeBusy struct {
	Calendars map[string][]Interval
	Merged    []Interval
}
