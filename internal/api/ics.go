package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
	ical "github.com/arran4/golang-ical"
	"github.com/xhit/go-str2duration/v2"
)

const (
	defaultICSHorizon = 30 * 24 * time.Hour
	icalUTCLayout     = "20060102T150405Z"
	icalDateLayout    = "20060102"
)

// getICSHandler renders the expanded window as a feed. Without start and end it covers now
// plus horizon, 30 days by default.
func (a *Api) getICSHandler(w http.ResponseWriter, r *http.Request) {
	q := &windowQuery{}
	if err := readQuery(r, q); err != nil {
		a.badRequestResponse(w, r, err)
		return
	}

	var start, end time.Time
	var err error
	switch {
	case q.Start != "" || q.End != "":
		start, end, err = parseWindow(q)
		if err != nil {
			a.badRequestResponse(w, r, err)
			return
		}
	default:
		horizon := defaultICSHorizon
		if q.Horizon != "" {
			horizon, err = str2duration.ParseDuration(q.Horizon)
			if err != nil || horizon <= 0 {
				a.badRequestResponse(w, r, fmt.Errorf("invalid horizon %q", q.Horizon))
				return
			}
		}
		start = a.now().UTC()
		end = start.Add(horizon)
	}

	occ, err := a.expander.Expand(r.Context(), model.EventsFilter{From: start, To: end})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidWindow):
			a.badRequestResponse(w, r, err)
		default:
			a.serverErrorResponse(w, r, fmt.Errorf("expand: %w", err))
		}
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(renderICS(occ, a.now())))
}

func renderICS(occ []model.Occurrence, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId("-//omnical//EN")
	cal.SetMethod(ical.MethodPublish)

	for _, o := range occ {
		uid := o.UID
		if o.Recurrence.IsRecurring {
			uid = o.Recurrence.MasterUID
		}

		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(stamp)
		if o.AllDay {
			ev.SetProperty(ical.ComponentPropertyDtStart, o.Start.UTC().Format(icalDateLayout), ical.WithValue(string(ical.ValueDataTypeDate)))
			ev.SetProperty(ical.ComponentPropertyDtEnd, o.End.UTC().Format(icalDateLayout), ical.WithValue(string(ical.ValueDataTypeDate)))
		} else {
			ev.SetProperty(ical.ComponentPropertyDtStart, o.Start.UTC().Format(icalUTCLayout))
			ev.SetProperty(ical.ComponentPropertyDtEnd, o.End.UTC().Format(icalUTCLayout))
		}

		if o.Recurrence.RecurrenceID != "" {
			if rid, err := model.ParseInstant(o.Recurrence.RecurrenceID); err == nil {
				ev.SetProperty(ical.ComponentPropertyRecurrenceId, rid.Format(icalUTCLayout))
			}
		}

		if o.Summary != "" {
			ev.SetSummary(o.Summary)
		}
		if o.Location != "" {
			ev.SetLocation(o.Location)
		}
		if o.Description != "" {
			ev.SetDescription(o.Description)
		}
		if o.Status != "" {
			ev.SetProperty(ical.ComponentPropertyStatus, o.Status)
		}
	}

	return cal.Serialize()
}
