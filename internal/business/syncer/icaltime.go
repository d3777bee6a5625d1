package syncer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/xhit/go-str2duration/v2"
)

const (
	icalDateTimeUTC = "20060102T150405Z"
	icalDateTime    = "20060102T150405"
	icalDate        = "20060102"
)

// parseICalTime parses DATE, floating DATE-TIME and UTC DATE-TIME values.
// Floating values are read in loc.
func parseICalTime(v string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)

	switch {
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse(icalDateTimeUTC, v)
		return t.UTC(), false, wrapICalErr(v, err)
	case strings.Contains(v, "T"):
		t, err := time.ParseInLocation(icalDateTime, v, loc)
		return t.UTC(), false, wrapICalErr(v, err)
	default:
		t, err := time.ParseInLocation(icalDate, v, time.UTC)
		return t, true, wrapICalErr(v, err)
	}
}

func wrapICalErr(v string, err error) error {
	if err != nil {
		return fmt.Errorf("parse ical time %q: %w", v, err)
	}
	return nil
}

// parseICalDuration splits a DURATION value into nominal days and an exact part.
// Weeks count as seven days.
func parseICalDuration(v string) (int, time.Duration, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	sign := 1
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = -1, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	if !strings.HasPrefix(s, "P") {
		return 0, 0, fmt.Errorf("parse ical duration %q: missing P", v)
	}
	datePart, timePart, hasTime := strings.Cut(s[1:], "T")
	if datePart == "" && timePart == "" {
		return 0, 0, fmt.Errorf("parse ical duration %q: empty", v)
	}

	days := 0
	if datePart != "" {
		n, err := strconv.Atoi(datePart[:len(datePart)-1])
		if err != nil {
			return 0, 0, fmt.Errorf("parse ical duration %q: %w", v, err)
		}
		switch datePart[len(datePart)-1] {
		case 'W':
			days = 7 * n
		case 'D':
			days = n
		default:
			return 0, 0, fmt.Errorf("parse ical duration %q: unknown date unit", v)
		}
	}

	var exact time.Duration
	if hasTime {
		if timePart == "" || strings.Trim(timePart, "0123456789HMS") != "" || strings.Contains(timePart, "MS") {
			return 0, 0, fmt.Errorf("parse ical duration %q: bad time part", v)
		}
		d, err := str2duration.ParseDuration(strings.ToLower(timePart))
		if err != nil {
			return 0, 0, fmt.Errorf("parse ical duration %q: %w", v, err)
		}
		exact = d
	}

	return sign * days, time.Duration(sign) * exact, nil
}

// addICalDuration returns start plus the DURATION value. Days are calendar
// days in loc so a daylight saving shift keeps the wall clock.
func addICalDuration(start time.Time, v string, loc *time.Location) (time.Time, error) {
	days, exact, err := parseICalDuration(v)
	if err != nil {
		return time.Time{}, err
	}
	if days < 0 || exact < 0 {
		return time.Time{}, fmt.Errorf("negative duration %q", v)
	}

	return start.In(loc).AddDate(0, 0, days).Add(exact).UTC(), nil
}

// formatDateList renders a comma separated EXDATE/RDATE value as canonical
// instants. Parts that do not parse are returned verbatim in malformed.
func formatDateList(value string, loc *time.Location) (dates []string, malformed []string) {
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, _, err := parseICalTime(part, loc)
		if err != nil {
			malformed = append(malformed, part)
			dates = append(dates, part)
			continue
		}
		dates = append(dates, model.FormatInstant(t))
	}
	return dates, malformed
}

// parseContentLine splits "NAME;P1=a;P2=b:value" into its parts.
func parseContentLine(line string) (string, map[string][]string, string) {
	head, value, _ := strings.Cut(strings.TrimSpace(line), ":")

	parts := strings.Split(head, ";")
	params := make(map[string][]string, len(parts)-1)
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		params[strings.ToUpper(k)] = strings.Split(v, ",")
	}

	return strings.ToUpper(parts[0]), params, value
}
