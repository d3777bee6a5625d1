package syncer

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
)

func TestParseContentLine(t *testing.T) {
	name, params, value := parseContentLine("EXDATE;TZID=America/Los_Angeles;VALUE=DATE-TIME:20240112T090000,20240113T090000")
	assert.Equal(t, "EXDATE", name)
	assert.Equal(t, []string{"America/Los_Angeles"}, params["TZID"])
	assert.Equal(t, []string{"DATE-TIME"}, params["VALUE"])
	assert.Equal(t, "20240112T090000,20240113T090000", value)

	name, params, value = parseContentLine("RRULE:FREQ=WEEKLY;BYDAY=MO")
	assert.Equal(t, "RRULE", name)
	assert.Empty(t, params)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO", value)
}

func TestParseICalTime(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	ts, allDay, err := parseICalTime("20240112T090000", la)
	require.NoError(t, err)
	assert.False(t, allDay)
	assert.Equal(t, "2024-01-12T17:00:00.000Z", model.FormatInstant(ts))

	ts, _, err = parseICalTime("20240112T090000Z", la)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-12T09:00:00.000Z", model.FormatInstant(ts))

	ts, allDay, err = parseICalTime("20240112", la)
	require.NoError(t, err)
	assert.True(t, allDay)
	assert.Equal(t, "2024-01-12T00:00:00.000Z", model.FormatInstant(ts))

	_, _, err = parseICalTime("yesterday", la)
	assert.Error(t, err)
}

func TestParseGoogleRecurrence(t *testing.T) {
	rec, malformed := parseGoogleRecurrence([]string{
		"RRULE:FREQ=DAILY;UNTIL=20240201T000000Z",
		"EXDATE;TZID=America/Los_Angeles:20240112T090000,20240113T090000",
		"EXDATE;VALUE=DATE:20240120",
		"RDATE:20240301T100000Z",
	})
	assert.Empty(t, malformed)
	require.NotNil(t, rec)
	assert.Equal(t, "RRULE:FREQ=DAILY;UNTIL=20240201T000000Z", rec.RRule)
	assert.Equal(t, []string{
		"2024-01-12T17:00:00.000Z",
		"2024-01-13T17:00:00.000Z",
		"2024-01-20T00:00:00.000Z",
	}, rec.ExDates)
	assert.Equal(t, []string{"2024-03-01T10:00:00.000Z"}, rec.RDates)

	rec, malformed = parseGoogleRecurrence(nil)
	assert.Empty(t, malformed)
	assert.Nil(t, rec)
}

func TestParseGoogleRecurrence_MalformedKeepsMaster(t *testing.T) {
	rec, malformed := parseGoogleRecurrence([]string{"RRULE:FREQ=DAILY", "EXDATE:20240105T090000Z,bogus"})
	require.NotNil(t, rec)
	assert.Equal(t, []string{"bogus"}, malformed)
	assert.Equal(t, []string{"2024-01-05T09:00:00.000Z", "bogus"}, rec.ExDates)
}

func TestMapGoogleEvent_MalformedRecurrenceIsStored(t *testing.T) {
	rec, err := mapGoogleEvent("gcal_1", &calendar.Event{
		Id:         "series",
		Status:     "confirmed",
		Start:      &calendar.EventDateTime{DateTime: "2024-01-01T09:00:00Z"},
		End:        &calendar.EventDateTime{DateTime: "2024-01-01T10:00:00Z"},
		Recurrence: []string{"RRULE:FREQ=DAILY", "RDATE:not-a-date"},
	}, time.Now())
	require.NoError(t, err)
	require.NotNil(t, rec.event.Recurrence)
	assert.Equal(t, []string{"not-a-date"}, rec.malformed)
	assert.Equal(t, []string{"not-a-date"}, rec.event.Recurrence.RDates)
}

func TestParseICalDuration(t *testing.T) {
	cases := []struct {
		in    string
		days  int
		exact time.Duration
	}{
		{"PT1H30M", 0, 90 * time.Minute},
		{"P1D", 1, 0},
		{"P2W", 14, 0},
		{"P1DT12H", 1, 12 * time.Hour},
		{"PT45S", 0, 45 * time.Second},
		{"-PT15M", 0, -15 * time.Minute},
	}
	for _, c := range cases {
		days, exact, err := parseICalDuration(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.days, days, c.in)
		assert.Equal(t, c.exact, exact, c.in)
	}

	for _, bad := range []string{"", "1H", "P", "PT", "P1Y", "P1M", "PT1D", "P1W2D"} {
		_, _, err := parseICalDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestAddICalDuration_KeepsWallClockAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 2024-03-31 is the spring-forward day in Berlin.
	start := time.Date(2024, 3, 30, 9, 0, 0, 0, berlin).UTC()
	end, err := addICalDuration(start, "P1D", berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 31, 9, 0, 0, 0, berlin).UTC(), end)
	assert.Equal(t, 23*time.Hour, end.Sub(start))

	_, err = addICalDuration(start, "-PT1H", berlin)
	assert.Error(t, err)
}

func TestLookupZone(t *testing.T) {
	for name, want := range map[string]string{
		"America/New_York":                        "America/New_York",
		"Eastern Standard Time":                   "America/New_York",
		"W. Europe Standard Time":                 "Europe/Berlin",
		`"Europe/Paris"`:                          "Europe/Paris",
		"/mozilla.org/20050126_1/America/Chicago": "America/Chicago",
	} {
		loc, ok := lookupZone(name)
		require.True(t, ok, name)
		assert.Equal(t, want, loc.String(), name)
	}

	for _, name := range []string{"", "Local", "Mars Standard Time"} {
		_, ok := lookupZone(name)
		assert.False(t, ok, name)
	}
}

func TestMapGoogleEvent_Override(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rec, err := mapGoogleEvent("gcal_1", &calendar.Event{
		Id:                "series_x",
		RecurringEventId:  "series",
		Status:            "confirmed",
		OriginalStartTime: &calendar.EventDateTime{Date: "2024-01-10"},
		Start:             &calendar.EventDateTime{Date: "2024-01-11"},
		End:               &calendar.EventDateTime{Date: "2024-01-12"},
	}, now)
	require.NoError(t, err)
	assert.True(t, rec.override)
	assert.False(t, rec.deletion)
	assert.Equal(t, "2024-01-10T00:00:00.000Z", rec.event.RecurrenceKey)
	assert.True(t, rec.event.AllDay)
	assert.Equal(t, now, rec.event.UpdatedAt)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.com/...(redacted)", redactURL("https://calendar.example.com/private/abc123/basic.ics?token=s3cret"))
	assert.Equal(t, "(redacted)", redactURL("::"))
}
