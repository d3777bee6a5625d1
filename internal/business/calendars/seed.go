package calendars

import (
	"context"
	"fmt"
	"os"

	"github.com/SergeyKozhin/omnical/internal/model"
	"gopkg.in/yaml.v3"
)

// SeedCalendar is one entry of the calendars seed file.
type SeedCalendar struct {
	Type        model.CalendarType `yaml:"type"`
	URL         string             `yaml:"url"`
	CalendarID  string             `yaml:"calendarId"`
	Label       string             `yaml:"label"`
	Color       string             `yaml:"color"`
	Description string             `yaml:"description"`
	Enabled     *bool              `yaml:"enabled"`
	SortOrder   *int               `yaml:"sortOrder"`
}

type seedFile struct {
	Calendars []SeedCalendar `yaml:"calendars"`
}

func LoadSeedFile(path string) ([]SeedCalendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	return f.Calendars, nil
}

// Seed registers ICS urls and seed file entries. Invalid entries are logged and skipped.
func (s *Service) Seed(ctx context.Context, icsURLs []string, entries []SeedCalendar) (int, error) {
	seeded := 0

	for _, u := range icsURLs {
		if _, err := s.RegisterICS(ctx, u, ""); err != nil {
			if isInvalid(err) {
				s.logger.Warnw("Skipping seed ics url", "err", err)
				continue
			}
			return seeded, err
		}
		seeded++
	}

	for _, e := range entries {
		var (
			cal *model.Calendar
			err error
		)
		switch e.Type {
		case model.CalendarTypeICS:
			cal, err = s.RegisterICS(ctx, e.URL, e.Label)
		case model.CalendarTypeGoogle:
			cal, err = s.RegisterGoogle(ctx, e.CalendarID, e.Label)
		default:
			err = fmt.Errorf("%w: unknown type %q", model.ErrInvalidCalendar, e.Type)
		}
		if err != nil {
			if isInvalid(err) {
				s.logger.Warnw("Skipping seed calendar", "label", e.Label, "err", err)
				continue
			}
			return seeded, err
		}

		upd := seedUpdate(e)
		if upd != nil {
			if _, err := s.UpdateCalendar(ctx, cal.ID, upd); err != nil {
				if isInvalid(err) {
					s.logger.Warnw("Skipping seed calendar metadata", "cal", cal.ID, "err", err)
				} else {
					return seeded, err
				}
			}
		}
		seeded++
	}

	return seeded, nil
}

func seedUpdate(e SeedCalendar) *model.CalendarUpdate {
	upd := &model.CalendarUpdate{
		Enabled:   e.Enabled,
		SortOrder: e.SortOrder,
	}
	if e.Color != "" {
		upd.Color = &e.Color
	}
	if e.Description != "" {
		upd.Description = &e.Description
	}

	if upd.Enabled == nil && upd.SortOrder == nil && upd.Color == nil && upd.Description == nil {
		return nil
	}
	return upd
}
