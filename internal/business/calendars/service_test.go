package calendars_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/SergeyKozhin/omnical/internal/business/calendars"
	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/database/dbtest"
	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeCalendars struct {
	byID map[string]*model.Calendar
}

func newFakeCalendars() *fakeCalendars {
	return &fakeCalendars{byID: map[string]*model.Calendar{}}
}

func (f *fakeCalendars) UpsertCalendar(_ context.Context, _ database.Queryable, id string, info *model.CalendarCreate) error {
	cal, ok := f.byID[id]
	if !ok {
		cal = &model.Calendar{ID: id, Type: info.Type, Enabled: true, Label: info.GoogleCalID + info.ICSURL}
		f.byID[id] = cal
	}
	if info.Label != "" {
		cal.Label = info.Label
	}
	cal.GoogleCalID = info.GoogleCalID
	cal.ICSURL = info.ICSURL
	return nil
}

func (f *fakeCalendars) GetCalendar(_ context.Context, _ database.Queryable, id string) (*model.Calendar, error) {
	cal, ok := f.byID[id]
	if !ok {
		return nil, model.ErrNoRecord
	}
	c := *cal
	return &c, nil
}

func (f *fakeCalendars) ListCalendars(_ context.Context, _ database.Queryable) ([]*model.Calendar, error) {
	var res []*model.Calendar
	for _, c := range f.byID {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (f *fakeCalendars) UpdateCalendar(_ context.Context, _ database.Queryable, id string, upd *model.CalendarUpdate) error {
	cal, ok := f.byID[id]
	if !ok {
		return model.ErrNoRecord
	}
	if upd.Label != nil {
		cal.Label = *upd.Label
	}
	if upd.Color != nil {
		cal.Color = *upd.Color
	}
	if upd.Description != nil {
		cal.Description = *upd.Description
	}
	if upd.Enabled != nil {
		cal.Enabled = *upd.Enabled
	}
	if upd.SortOrder != nil {
		cal.SortOrder = upd.SortOrder
	}
	return nil
}

func (f *fakeCalendars) DeleteCalendar(_ context.Context, _ database.Queryable, id string) error {
	if _, ok := f.byID[id]; !ok {
		return model.ErrNoRecord
	}
	delete(f.byID, id)
	return nil
}

type fakeRawEvents struct {
	deleted []string
}

func (f *fakeRawEvents) DeleteByCalendar(_ context.Context, _ database.Queryable, calendarID string) (int64, error) {
	f.deleted = append(f.deleted, calendarID)
	return 3, nil
}

func newService(t *testing.T) (*calendars.Service, *fakeCalendars, *fakeRawEvents, *dbtest.DB) {
	t.Helper()
	db := dbtest.New()
	cals := newFakeCalendars()
	raw := &fakeRawEvents{}
	return calendars.NewService(db, cals, raw, zaptest.NewLogger(t).Sugar()), cals, raw, db
}

func TestCalendarID(t *testing.T) {
	id := calendars.CalendarID(model.CalendarTypeICS, "https://example.com/a.ics")
	assert.Regexp(t, `^ics_[0-9a-f]{12}$`, id)
	assert.Equal(t, id, calendars.CalendarID(model.CalendarTypeICS, "https://example.com/a.ics"))
	assert.NotEqual(t, id, calendars.CalendarID(model.CalendarTypeICS, "https://example.com/b.ics"))

	g := calendars.CalendarID(model.CalendarTypeGoogle, "primary")
	assert.Regexp(t, `^gcal_[0-9a-f]{12}$`, g)
}

func TestRegisterICS(t *testing.T) {
	s, cals, _, _ := newService(t)
	ctx := context.Background()

	cal, err := s.RegisterICS(ctx, "https://example.com/feed.ics", "")
	require.NoError(t, err)
	assert.Equal(t, model.CalendarTypeICS, cal.Type)
	assert.Equal(t, "https://example.com/feed.ics", cal.Label)
	assert.True(t, cal.Enabled)

	// disabled calendars stay disabled on re-registration
	cals.byID[cal.ID].Enabled = false

	again, err := s.RegisterICS(ctx, "https://example.com/feed.ics", "Work")
	require.NoError(t, err)
	assert.Equal(t, cal.ID, again.ID)
	assert.Equal(t, "Work", again.Label)
	assert.False(t, again.Enabled)
	assert.Len(t, cals.byID, 1)
}

func TestRegisterICS_InvalidURL(t *testing.T) {
	s, _, _, _ := newService(t)

	for _, u := range []string{"", "not a url", "ftp://example.com/a.ics", "/relative.ics"} {
		_, err := s.RegisterICS(context.Background(), u, "")
		assert.ErrorIs(t, err, model.ErrInvalidCalendar, u)
	}
}

func TestRegisterGoogle(t *testing.T) {
	s, _, _, _ := newService(t)

	cal, err := s.RegisterGoogle(context.Background(), " team@group.calendar.google.com ", "Team")
	require.NoError(t, err)
	assert.Equal(t, model.CalendarTypeGoogle, cal.Type)
	assert.Equal(t, "team@group.calendar.google.com", cal.GoogleCalID)
	assert.Equal(t, calendars.CalendarID(model.CalendarTypeGoogle, "team@group.calendar.google.com"), cal.ID)

	_, err = s.RegisterGoogle(context.Background(), "  ", "")
	assert.ErrorIs(t, err, model.ErrInvalidCalendar)
}

func TestUpdateCalendar(t *testing.T) {
	s, _, _, _ := newService(t)
	ctx := context.Background()

	cal, err := s.RegisterICS(ctx, "https://example.com/feed.ics", "")
	require.NoError(t, err)

	color := "#1a2B3c"
	disabled := false
	order := 2
	upd, err := s.UpdateCalendar(ctx, cal.ID, &model.CalendarUpdate{
		Color:     &color,
		Enabled:   &disabled,
		SortOrder: &order,
	})
	require.NoError(t, err)
	assert.Equal(t, color, upd.Color)
	assert.False(t, upd.Enabled)
	require.NotNil(t, upd.SortOrder)
	assert.Equal(t, 2, *upd.SortOrder)

	bad := "red"
	_, err = s.UpdateCalendar(ctx, cal.ID, &model.CalendarUpdate{Color: &bad})
	assert.ErrorIs(t, err, model.ErrInvalidCalendar)

	_, err = s.UpdateCalendar(ctx, "ics_missing", &model.CalendarUpdate{Enabled: &disabled})
	assert.ErrorIs(t, err, model.ErrNoRecord)
}

func TestDeleteCalendar(t *testing.T) {
	s, cals, raw, db := newService(t)
	ctx := context.Background()

	cal, err := s.RegisterICS(ctx, "https://example.com/feed.ics", "")
	require.NoError(t, err)

	require.NoError(t, s.DeleteCalendar(ctx, cal.ID))
	assert.Empty(t, cals.byID)
	assert.Equal(t, []string{cal.ID}, raw.deleted)
	assert.Equal(t, 1, db.Committed)

	err = s.DeleteCalendar(ctx, cal.ID)
	assert.ErrorIs(t, err, model.ErrNoRecord)
	assert.Equal(t, 1, db.RolledBack)
}

func TestSeed(t *testing.T) {
	s, cals, _, _ := newService(t)

	path := filepath.Join(t.TempDir(), "calendars.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
calendars:
  - type: google
    calendarId: primary
    label: Personal
    color: "#ff0000"
    enabled: false
  - type: ics
    url: https://example.com/holidays.ics
    label: Holidays
  - type: carrier-pigeon
    label: Broken
`), 0o600))

	entries, err := calendars.LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	n, err := s.Seed(context.Background(), []string{"https://example.com/a.ics", "nope"}, entries)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, cals.byID, 3)

	personal := cals.byID[calendars.CalendarID(model.CalendarTypeGoogle, "primary")]
	require.NotNil(t, personal)
	assert.Equal(t, "Personal", personal.Label)
	assert.Equal(t, "#ff0000", personal.Color)
	assert.False(t, personal.Enabled)
}

func TestLoadSeedFile_Missing(t *testing.T) {
	_, err := calendars.LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
