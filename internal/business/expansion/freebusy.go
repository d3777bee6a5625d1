package expansion

import (
	"context"
	"sort"
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
)

// FreeBusy coalesces busy intervals of non-cancelled occurrences per calendar and overall.
func (s *Service) FreeBusy(ctx context.Context, from, to time.Time) (*model.FreeBusy, error) {
	occ, err := s.Expand(ctx, model.EventsFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	byCalendar := make(map[string][]model.Interval)
	all := make([]model.Interval, 0, len(occ))
	for _, o := range occ {
		iv := model.Interval{Start: o.Start, End: o.End}
		byCalendar[o.CalendarID] = append(byCalendar[o.CalendarID], iv)
		all = append(all, iv)
	}

	res := &model.FreeBusy{
		Calendars: make(map[string][]model.Interval, len(byCalendar)),
		Merged:    Coalesce(all),
	}
	for id, ivs := range byCalendar {
		res.Calendars[id] = Coalesce(ivs)
	}

	return res, nil
}

// Coalesce merges overlapping and touching intervals.
func Coalesce(intervals []model.Interval) []model.Interval {
	sorted := append([]model.Interval(nil), intervals...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	out := make([]model.Interval, 0, len(sorted))
	for _, iv := range sorted {
		if len(out) == 0 {
			out = append(out, iv)
			continue
		}

		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}

	return out
}
