package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
)

func (a *Api) getEventsHandler(w http.ResponseWriter, r *http.Request) {
	q := &windowQuery{}
	if err := readQuery(r, q); err != nil {
		a.badRequestResponse(w, r, err)
		return
	}

	start, end, err := parseWindow(q)
	if err != nil {
		a.badRequestResponse(w, r, err)
		return
	}

	var loc *time.Location
	if q.ClientZone != "" {
		loc, err = time.LoadLocation(q.ClientZone)
		if err != nil {
			a.badRequestResponse(w, r, fmt.Errorf("unknown clientZone %q", q.ClientZone))
			return
		}
	}

	occ, err := a.expander.Expand(r.Context(), model.EventsFilter{
		From:             start,
		To:               end,
		IncludeCancelled: q.IncludeCancelled,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidWindow):
			a.badRequestResponse(w, r, err)
		default:
			a.serverErrorResponse(w, r, fmt.Errorf("expand: %w", err))
		}
		return
	}

	resp := make([]occurrenceResp, len(occ))
	for i, o := range occ {
		resp[i] = mapToOccurrenceResp(o, loc)
	}

	if err := a.writeJSON(w, http.StatusOK, resp, nil); err != nil {
		a.serverErrorResponse(w, r, err)
	}
}

func (a *Api) getFreeBusyHandler(w http.ResponseWriter, r *http.Request) {
	q := &windowQuery{}
	if err := readQuery(r, q); err != nil {
		a.badRequestResponse(w, r, err)
		return
	}

	start, end, err := parseWindow(q)
	if err != nil {
		a.badRequestResponse(w, r, err)
		return
	}

	fb, err := a.expander.FreeBusy(r.Context(), start, end)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidWindow):
			a.badRequestResponse(w, r, err)
		default:
			a.serverErrorResponse(w, r, fmt.Errorf("free busy: %w", err))
		}
		return
	}

	calendars := make(map[string][]intervalResp, len(fb.Calendars))
	for id, ivs := range fb.Calendars {
		calendars[id] = mapToIntervalsResp(ivs)
	}

	resp := &struct {
		Calendars map[string][]intervalResp `json:"calendars"`
		Merged    []intervalResp            `json:"merged"`
	}{
		Calendars: calendars,
		Merged:    mapToIntervalsResp(fb.Merged),
	}

	if err := a.writeJSON(w, http.StatusOK, resp, nil); err != nil {
		a.serverErrorResponse(w, r, err)
	}
}
