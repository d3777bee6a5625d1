package syncer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
	"google.golang.org/api/calendar/v3"
)

const googleDate = "2006-01-02"

// googleRecord is a Google event mapped to its store row.
type googleRecord struct {
	event    *model.RawEvent
	override bool
	deletion bool
	// malformed holds EXDATE/RDATE values kept verbatim.
	malformed []string
}

func mapGoogleEvent(calendarID string, ge *calendar.Event, now time.Time) (*googleRecord, error) {
	if ge.Id == "" {
		return nil, fmt.Errorf("event without id")
	}

	override := ge.RecurringEventId != "" && ge.OriginalStartTime != nil

	fallback := now
	var originalStart time.Time
	if override {
		var err error
		originalStart, _, err = googleTime(ge.OriginalStartTime, now)
		if err != nil {
			return nil, fmt.Errorf("original start: %w", err)
		}
		fallback = originalStart
	}

	start, allDay, err := googleTime(ge.Start, fallback)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, _, err := googleTime(ge.End, fallback)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}

	updatedAt := now
	if ge.Updated != "" {
		if t, err := time.Parse(time.RFC3339Nano, ge.Updated); err == nil {
			updatedAt = t.UTC()
		}
	}

	payload, err := json.Marshal(ge)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	ev := &model.RawEvent{
		CalendarID:    calendarID,
		UID:           ge.Id,
		RecurrenceKey: model.MasterKey,
		AllDay:        allDay,
		Start:         start,
		End:           end,
		Timezone:      googleZone(ge),
		Status:        ge.Status,
		Summary:       ge.Summary,
		Location:      ge.Location,
		Description:   ge.Description,
		SourcePayload: payload,
		UpdatedAt:     updatedAt,
	}

	var malformed []string
	if override {
		ev.RecurrenceKey = model.RecurrenceKey(originalStart)
	} else {
		ev.Recurrence, malformed = parseGoogleRecurrence(ge.Recurrence)
	}

	return &googleRecord{
		event:     ev,
		override:  override,
		deletion:  !override && model.IsCancelled(ge.Status),
		malformed: malformed,
	}, nil
}

func googleTime(t *calendar.EventDateTime, fallback time.Time) (time.Time, bool, error) {
	switch {
	case t == nil:
		return fallback.UTC(), false, nil
	case t.Date != "":
		d, err := time.ParseInLocation(googleDate, t.Date, time.UTC)
		return d, true, err
	case t.DateTime != "":
		d, err := time.Parse(time.RFC3339, t.DateTime)
		return d.UTC(), false, err
	default:
		return fallback.UTC(), false, nil
	}
}

func googleZone(ge *calendar.Event) string {
	if ge.Start != nil && ge.Start.TimeZone != "" {
		return ge.Start.TimeZone
	}
	if ge.End != nil && ge.End.TimeZone != "" {
		return ge.End.TimeZone
	}
	return ""
}

// parseGoogleRecurrence reads RRULE, EXDATE and RDATE lines, nil when the event does not recur.
// Dates that do not parse are kept verbatim and returned in malformed, the
// expander rejects such a master at query time.
func parseGoogleRecurrence(lines []string) (*model.Recurrence, []string) {
	rec := &model.Recurrence{ExDates: []string{}, RDates: []string{}}

	var malformed []string
	for _, line := range lines {
		name, params, value := parseContentLine(line)
		switch name {
		case "RRULE":
			rec.RRule = "RRULE:" + value
		case "EXDATE", "RDATE":
			dates, bad := formatDateList(value, zoneFromParams(params))
			malformed = append(malformed, bad...)
			if name == "EXDATE" {
				rec.ExDates = append(rec.ExDates, dates...)
			} else {
				rec.RDates = append(rec.RDates, dates...)
			}
		}
	}

	if rec.RRule == "" && len(rec.RDates) == 0 {
		return nil, nil
	}
	return rec, malformed
}
