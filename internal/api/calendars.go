package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/SergeyKozhin/omnical/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

const maxLabelLength = 200

func (a *Api) listCalendarsHandler(w http.ResponseWriter, r *http.Request) {
	cals, err := a.calendars.ListCalendars(r.Context())
	if err != nil {
		a.serverErrorResponse(w, r, fmt.Errorf("list calendars: %w", err))
		return
	}

	resp, _ := mapSlice(cals, mapToCalendarResp)

	if err := a.writeJSON(w, http.StatusOK, resp, nil); err != nil {
		a.serverErrorResponse(w, r, err)
	}
}

func (a *Api) getCalendarHandler(w http.ResponseWriter, r *http.Request) {
	cal, err := a.calendars.GetCalendar(r.Context(), chi.URLParam(r, "calendarID"))
	if err != nil {
		a.calendarErrorResponse(w, r, fmt.Errorf("get calendar: %w", err))
		return
	}

	resp, _ := mapToCalendarResp(cal)

	if err := a.writeJSON(w, http.StatusOK, resp, nil); err != nil {
		a.serverErrorResponse(w, r, err)
	}
}

func (a *Api) createICSCalendarHandler(w http.ResponseWriter, r *http.Request) {
	req := &struct {
		URL   string `json:"url"`
		Label string `json:"label"`
	}{}

	if err := a.readJSON(w, r, req); err != nil {
		a.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	v.Check(strings.TrimSpace(req.URL) != "", "url", "url must be provided")
	v.Check(len(req.Label) <= maxLabelLength, "label", "label is too long")
	if !v.Valid() {
		a.failedValidationResponse(w, r, v.Errors)
		return
	}

	cal, err := a.calendars.RegisterICS(r.Context(), req.URL, req.Label)
	if err != nil {
		a.calendarErrorResponse(w, r, fmt.Errorf("register ics: %w", err))
		return
	}

	a.writeCalendar(w, r, http.StatusCreated, cal)
}

func (a *Api) createGoogleCalendarHandler(w http.ResponseWriter, r *http.Request) {
	req := &struct {
		CalendarID string `json:"calendarId"`
		Label      string `json:"label"`
	}{}

	if err := a.readJSON(w, r, req); err != nil {
		a.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	v.Check(strings.TrimSpace(req.CalendarID) != "", "calendarId", "calendarId must be provided")
	v.Check(len(req.Label) <= maxLabelLength, "label", "label is too long")
	if !v.Valid() {
		a.failedValidationResponse(w, r, v.Errors)
		return
	}

	cal, err := a.calendars.RegisterGoogle(r.Context(), req.CalendarID, req.Label)
	if err != nil {
		a.calendarErrorResponse(w, r, fmt.Errorf("register google: %w", err))
		return
	}

	a.writeCalendar(w, r, http.StatusCreated, cal)
}

func (a *Api) updateCalendarHandler(w http.ResponseWriter, r *http.Request) {
	req := &struct {
		Label       *string `json:"label"`
		Color       *string `json:"color"`
		Description *string `json:"description"`
		Enabled     *bool   `json:"enabled"`
		SortOrder   *int    `json:"sortOrder"`
	}{}

	if err := a.readJSON(w, r, req); err != nil {
		a.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	v.Check(req.Label == nil || len(*req.Label) <= maxLabelLength, "label", "label is too long")
	if !v.Valid() {
		a.failedValidationResponse(w, r, v.Errors)
		return
	}

	cal, err := a.calendars.UpdateCalendar(r.Context(), chi.URLParam(r, "calendarID"), &model.CalendarUpdate{
		Label:       req.Label,
		Color:       req.Color,
		Description: req.Description,
		Enabled:     req.Enabled,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		a.calendarErrorResponse(w, r, fmt.Errorf("update calendar: %w", err))
		return
	}

	a.writeCalendar(w, r, http.StatusOK, cal)
}

func (a *Api) deleteCalendarHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.calendars.DeleteCalendar(r.Context(), chi.URLParam(r, "calendarID")); err != nil {
		a.calendarErrorResponse(w, r, fmt.Errorf("delete calendar: %w", err))
		return
	}

	resp := map[string]interface{}{"ok": true, "message": "calendar deleted"}
	if err := a.writeJSON(w, http.StatusOK, resp, nil); err != nil {
		a.serverErrorResponse(w, r, err)
	}
}

func (a *Api) writeCalendar(w http.ResponseWriter, r *http.Request, status int, cal *model.Calendar) {
	resp, _ := mapToCalendarResp(cal)
	if err := a.writeJSON(w, status, resp, nil); err != nil {
		a.serverErrorResponse(w, r, err)
	}
}

func (a *Api) calendarErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrNoRecord):
		a.notFoundResponse(w, r)
	case errors.Is(err, model.ErrInvalidCalendar):
		a.badRequestResponse(w, r, err)
	default:
		a.serverErrorResponse(w, r, err)
	}
}
