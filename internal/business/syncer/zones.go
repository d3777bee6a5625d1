package syncer

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"go.uber.org/zap"
)

const propLicLocation = ical.ComponentProperty("X-LIC-LOCATION")

// zoneResolver maps the TZID values of one feed to locations. Results are
// cached, an unknown zone is reported once per feed.
type zoneResolver struct {
	calendarID string
	aliases    map[string]string
	cache      map[string]*time.Location
	logger     *zap.SugaredLogger
}

func newZoneResolver(calendarID string, cal *ical.Calendar, logger *zap.SugaredLogger) *zoneResolver {
	z := &zoneResolver{
		calendarID: calendarID,
		aliases:    map[string]string{},
		cache:      map[string]*time.Location{},
		logger:     logger,
	}

	if cal != nil {
		for _, tz := range cal.Timezones() {
			id := propValue(tz, ical.ComponentPropertyTzid)
			if lic := propValue(tz, propLicLocation); id != "" && lic != "" {
				z.aliases[id] = lic
			}
		}
	}

	return z
}

// fromParams resolves the TZID parameter, UTC when absent.
func (z *zoneResolver) fromParams(params map[string][]string) *time.Location {
	tzid, ok := tzidParam(params)
	if !ok {
		return time.UTC
	}
	return z.resolve(tzid)
}

func (z *zoneResolver) resolve(tzid string) *time.Location {
	if loc, ok := z.cache[tzid]; ok {
		return loc
	}

	loc, ok := lookupZone(z.aliases[strings.Trim(tzid, `"`)])
	if !ok {
		loc, ok = lookupZone(tzid)
	}
	if !ok {
		z.logger.Warnw("Unknown TZID, reading times as UTC",
			"cal", z.calendarID,
			"tzid", tzid,
		)
		loc = time.UTC
	}

	z.cache[tzid] = loc
	return loc
}

// zoneFromParams resolves a TZID parameter without feed context, UTC when
// absent or unknown.
func zoneFromParams(params map[string][]string) *time.Location {
	if tzid, ok := tzidParam(params); ok {
		if loc, ok := lookupZone(tzid); ok {
			return loc
		}
	}
	return time.UTC
}

func tzidParam(params map[string][]string) (string, bool) {
	for k, vs := range params {
		if strings.EqualFold(k, "TZID") && len(vs) > 0 && vs[0] != "" {
			return vs[0], true
		}
	}
	return "", false
}

// lookupZone tries the name as an IANA zone, then as a Windows zone name,
// then every trailing path suffix ("/mozilla.org/20050126_1/America/New_York").
func lookupZone(name string) (*time.Location, bool) {
	name = strings.Trim(strings.TrimSpace(name), `"`)
	if name == "" || strings.EqualFold(name, "Local") {
		return nil, false
	}

	if loc, err := time.LoadLocation(name); err == nil {
		return loc, true
	}
	if iana, ok := windowsZones[name]; ok {
		if loc, err := time.LoadLocation(iana); err == nil {
			return loc, true
		}
	}

	parts := strings.Split(strings.Trim(name, "/"), "/")
	for i := 1; i < len(parts); i++ {
		if loc, err := time.LoadLocation(strings.Join(parts[i:], "/")); err == nil {
			return loc, true
		}
	}

	return nil, false
}
