package expansion

import (
	"fmt"
	"strings"
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/teambition/rrule-go"
)

// occurrenceStarts enumerates the master's occurrence starts within [from, to], both inclusive.
func occurrenceStarts(m *model.RawEvent, from, to time.Time) ([]time.Time, error) {
	rec := m.Recurrence
	if rec == nil {
		return nil, fmt.Errorf("%w: missing payload", model.ErrMalformedRecurrence)
	}
	if rec.Err != nil {
		return nil, rec.Err
	}

	set, err := buildSet(m.Start, anchorLocation(m.Timezone), rec)
	if err != nil {
		return nil, err
	}

	starts := set.Between(from, to, true)
	for i := range starts {
		starts[i] = starts[i].UTC()
	}

	return starts, nil
}

func buildSet(dtstart time.Time, loc *time.Location, rec *model.Recurrence) (*rrule.Set, error) {
	ruleStr := strings.TrimSpace(rec.RRule)
	ruleStr = strings.TrimPrefix(strings.TrimPrefix(ruleStr, "RRULE:"), "rrule:")
	if ruleStr == "" && len(rec.RDates) == 0 {
		return nil, fmt.Errorf("%w: empty rule", model.ErrMalformedRecurrence)
	}

	set := &rrule.Set{}

	if ruleStr != "" {
		opt, err := rrule.StrToROption(ruleStr)
		if err != nil {
			return nil, fmt.Errorf("%w: parse rule %q: %v", model.ErrMalformedRecurrence, rec.RRule, err)
		}
		opt.Dtstart = dtstart.In(loc)

		rule, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, fmt.Errorf("%w: make rule: %v", model.ErrMalformedRecurrence, err)
		}
		set.RRule(rule)
	} else {
		// RDATE only series, DTSTART is the first instance.
		set.RDate(dtstart.In(loc))
	}

	for _, ex := range rec.ExDates {
		t, err := model.ParseInstant(ex)
		if err != nil {
			return nil, fmt.Errorf("%w: exdate: %v", model.ErrMalformedRecurrence, err)
		}
		set.ExDate(t.In(loc))
	}
	for _, rd := range rec.RDates {
		t, err := model.ParseInstant(rd)
		if err != nil {
			return nil, fmt.Errorf("%w: rdate: %v", model.ErrMalformedRecurrence, err)
		}
		set.RDate(t.In(loc))
	}

	return set, nil
}

// anchorLocation returns the zone the rule is evaluated in, UTC when tz is unknown.
func anchorLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
