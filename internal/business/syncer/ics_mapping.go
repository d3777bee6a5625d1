package syncer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
	ical "github.com/arran4/golang-ical"
	"go.uber.org/zap"
)

// icsMapper turns the VEVENTs of one feed into store rows.
type icsMapper struct {
	calendarID string
	now        time.Time
	zones      *zoneResolver
	logger     *zap.SugaredLogger
}

// parseICS maps every VEVENT of the feed. A component that cannot be mapped is
// logged and left out, the rest of the feed is kept.
func parseICS(calendarID string, body []byte, now time.Time, logger *zap.SugaredLogger) ([]*model.RawEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("empty ics body")
	}
	if !bytes.Contains(bytes.ToUpper(body), []byte("BEGIN:VCALENDAR")) {
		return nil, fmt.Errorf("body is not an icalendar document")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	m := &icsMapper{
		calendarID: calendarID,
		now:        now,
		zones:      newZoneResolver(calendarID, cal, logger),
		logger:     logger,
	}

	events := cal.Events()
	res := make([]*model.RawEvent, 0, len(events))
	for i, ve := range events {
		ev, err := m.mapVEvent(i, ve)
		if err != nil {
			logger.Warnw("Skipping unmappable VEVENT",
				"cal", calendarID,
				"index", i,
				"err", err,
			)
			continue
		}
		res = append(res, ev)
	}

	return res, nil
}

func (m *icsMapper) mapVEvent(idx int, ve *ical.VEvent) (*model.RawEvent, error) {
	uid := propValue(ve, ical.ComponentPropertyUniqueId)
	if uid == "" {
		uid = fmt.Sprintf("%s-%d", m.calendarID, idx)
	}

	dtstart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtstart == nil {
		return nil, fmt.Errorf("uid %s: missing DTSTART", uid)
	}

	// Taken before the getters rewrite TZID.
	payload := vEventPayload(ve)

	allDay := isDateValue(dtstart)
	loc := m.pin(dtstart, allDay)

	var start time.Time
	var err error
	if allDay {
		start, err = ve.GetAllDayStartAt()
	} else {
		start, err = ve.GetStartAt()
	}
	if err != nil {
		return nil, fmt.Errorf("uid %s: dtstart: %w", uid, err)
	}
	start = start.UTC()

	end, err := m.eventEnd(ve, start, allDay, loc)
	if err != nil {
		return nil, fmt.Errorf("uid %s: %w", uid, err)
	}
	if end.Sub(start) == 24*time.Hour && start.Equal(start.Truncate(24*time.Hour)) {
		allDay = true
	}

	ev := &model.RawEvent{
		CalendarID:    m.calendarID,
		UID:           uid,
		RecurrenceKey: model.MasterKey,
		AllDay:        allDay,
		Start:         start,
		End:           end,
		Status:        propValue(ve, ical.ComponentPropertyStatus),
		Summary:       propValue(ve, ical.ComponentPropertySummary),
		Location:      propValue(ve, ical.ComponentPropertyLocation),
		Description:   propValue(ve, ical.ComponentPropertyDescription),
		SourcePayload: payload,
		UpdatedAt:     m.updatedAt(ve),
	}
	if loc != time.UTC {
		ev.Timezone = loc.String()
	}

	if rid := ve.GetProperty(ical.ComponentPropertyRecurrenceId); rid != nil {
		t, _, err := parseICalTime(rid.Value, m.zones.fromParams(rid.ICalParameters))
		if err != nil {
			return nil, fmt.Errorf("uid %s: recurrence-id: %w", uid, err)
		}
		ev.RecurrenceKey = model.RecurrenceKey(t)
		return ev, nil
	}

	rec, malformed := m.recurrence(ve, loc)
	if len(malformed) > 0 {
		m.logger.Warnw("Keeping malformed recurrence dates, the series will not expand",
			"cal", m.calendarID,
			"uid", uid,
			"values", malformed,
		)
	}
	ev.Recurrence = rec

	return ev, nil
}

// pin rewrites the TZID of p to the resolved IANA name so the ical getters
// neither fail on a non-IANA zone nor read floating values in time.Local.
// Dates are pinned to UTC.
func (m *icsMapper) pin(p *ical.IANAProperty, date bool) *time.Location {
	loc := time.UTC
	if !date {
		loc = m.zones.fromParams(p.ICalParameters)
	}

	if p.ICalParameters == nil {
		p.ICalParameters = map[string][]string{}
	}
	for k := range p.ICalParameters {
		if strings.EqualFold(k, string(ical.ParameterTzid)) {
			delete(p.ICalParameters, k)
		}
	}
	p.ICalParameters[string(ical.ParameterTzid)] = []string{loc.String()}

	return loc
}

// eventEnd reads DTEND, else DTSTART plus DURATION. Without either a timed
// event has no length and an all-day event lasts one day.
func (m *icsMapper) eventEnd(ve *ical.VEvent, start time.Time, allDay bool, loc *time.Location) (time.Time, error) {
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		var end time.Time
		var err error
		if isDateValue(p) {
			m.pin(p, true)
			end, err = ve.GetAllDayEndAt()
		} else {
			m.pin(p, false)
			end, err = ve.GetEndAt()
		}
		if err != nil {
			return time.Time{}, fmt.Errorf("dtend: %w", err)
		}
		return end.UTC(), nil
	}

	if p := ve.GetProperty(ical.ComponentPropertyDuration); p != nil {
		end, err := addICalDuration(start, p.Value, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("duration: %w", err)
		}
		return end, nil
	}

	if allDay {
		return start.Add(24 * time.Hour), nil
	}
	return start, nil
}

func (m *icsMapper) recurrence(ve *ical.VEvent, loc *time.Location) (*model.Recurrence, []string) {
	rec := &model.Recurrence{
		RRule:   propValue(ve, ical.ComponentPropertyRrule),
		ExDates: []string{},
		RDates:  []string{},
	}

	var malformed []string
	collect := func(prop ical.ComponentProperty, dst *[]string) {
		for _, p := range ve.GetProperties(prop) {
			pl := loc
			if _, ok := tzidParam(p.ICalParameters); ok {
				pl = m.zones.fromParams(p.ICalParameters)
			}
			dates, bad := formatDateList(p.Value, pl)
			*dst = append(*dst, dates...)
			malformed = append(malformed, bad...)
		}
	}
	collect(ical.ComponentPropertyExdate, &rec.ExDates)
	collect(ical.ComponentPropertyRdate, &rec.RDates)

	if rec.RRule == "" && len(rec.RDates) == 0 {
		return nil, nil
	}
	return rec, malformed
}

// updatedAt prefers LAST-MODIFIED, then DTSTAMP, then the sync time.
func (m *icsMapper) updatedAt(ve *ical.VEvent) time.Time {
	getters := []struct {
		prop ical.ComponentProperty
		get  func() (time.Time, error)
	}{
		{ical.ComponentPropertyLastModified, ve.GetLastModifiedAt},
		{ical.ComponentPropertyDtstamp, ve.GetDtStampTime},
	}

	for _, g := range getters {
		p := ve.GetProperty(g.prop)
		if p == nil {
			continue
		}
		m.pin(p, false)
		if t, err := g.get(); err == nil {
			return t.UTC()
		}
	}
	return m.now
}

// isDateValue reports a DATE typed property, by VALUE=DATE or by a value without a time part.
func isDateValue(p *ical.IANAProperty) bool {
	for k, vs := range p.ICalParameters {
		if strings.EqualFold(k, string(ical.ParameterValue)) && len(vs) > 0 {
			return strings.EqualFold(vs[0], string(ical.ValueDataTypeDate))
		}
	}
	return !strings.Contains(p.Value, "T")
}

type propertyGetter interface {
	GetProperty(ical.ComponentProperty) *ical.IANAProperty
}

func propValue(c propertyGetter, prop ical.ComponentProperty) string {
	if p := c.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func vEventPayload(ve *ical.VEvent) []byte {
	props := make(map[string][]string, len(ve.Properties))
	for _, p := range ve.Properties {
		props[p.IANAToken] = append(props[p.IANAToken], p.Value)
	}

	b, err := json.Marshal(props)
	if err != nil {
		return nil
	}
	return b
}
