package expansion

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/SergeyKozhin/omnical/internal/pkg/ttlcache"
	"go.uber.org/zap"
)

type Service struct {
	db                  database.PGX
	calendarsRepository calendarsRepository
	rawEventsRepository rawEventsRepository
	cache               *ttlcache.Cache[[]model.Occurrence]
	logger              *zap.SugaredLogger
}

type calendarsRepository interface {
	ListEnabledCalendars(ctx context.Context, q database.Queryable, types ...model.CalendarType) ([]*model.Calendar, error)
}

type rawEventsRepository interface {
	GetMasters(ctx context.Context, q database.Queryable, calendarIDs []string, windowEnd time.Time) ([]*model.RawEvent, error)
	GetOverrides(ctx context.Context, q database.Queryable, calendarIDs []string, windowStart, windowEnd time.Time) ([]*model.RawEvent, error)
	GetSingles(ctx context.Context, q database.Queryable, calendarIDs []string, windowStart, windowEnd time.Time) ([]*model.RawEvent, error)
}

func NewService(
	db database.PGX,
	calendarsRepo calendarsRepository,
	rawEventsRepo rawEventsRepository,
	cache *ttlcache.Cache[[]model.Occurrence],
	logger *zap.SugaredLogger,
) *Service {
	return &Service{
		db:                  db,
		calendarsRepository: calendarsRepo,
		rawEventsRepository: rawEventsRepo,
		cache:               cache,
		logger:              logger,
	}
}

type cacheKey struct {
	Start            string   `json:"s"`
	End              string   `json:"e"`
	IncludeCancelled bool     `json:"c"`
	CalendarIDs      []string `json:"ids"`
}

// Expand returns every occurrence intersecting the window ordered by start.
// Results are cached per window, flag and enabled calendar set, sync does not invalidate them.
func (s *Service) Expand(ctx context.Context, filter model.EventsFilter) ([]model.Occurrence, error) {
	if filter.From.IsZero() || filter.To.IsZero() || !filter.To.After(filter.From) {
		return nil, model.ErrInvalidWindow
	}
	from, to := filter.From.UTC(), filter.To.UTC()

	calendars, err := s.calendarsRepository.ListEnabledCalendars(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("calendarsRepository.ListEnabledCalendars: %w", err)
	}
	if len(calendars) == 0 {
		return []model.Occurrence{}, nil
	}

	ids := make([]string, len(calendars))
	types := make(map[string]model.CalendarType, len(calendars))
	for i, c := range calendars {
		ids[i] = c.ID
		types[c.ID] = c.Type
	}
	sort.Strings(ids)

	key, err := json.Marshal(cacheKey{
		Start:            model.FormatInstant(from),
		End:              model.FormatInstant(to),
		IncludeCancelled: filter.IncludeCancelled,
		CalendarIDs:      ids,
	})
	if err != nil {
		return nil, fmt.Errorf("cache key: %w", err)
	}

	if cached, ok := s.cache.Get(string(key)); ok {
		return clone(cached), nil
	}

	masters, err := s.rawEventsRepository.GetMasters(ctx, s.db, ids, to)
	if err != nil {
		return nil, fmt.Errorf("rawEventsRepository.GetMasters: %w", err)
	}
	overrides, err := s.rawEventsRepository.GetOverrides(ctx, s.db, ids, from, to)
	if err != nil {
		return nil, fmt.Errorf("rawEventsRepository.GetOverrides: %w", err)
	}
	singles, err := s.rawEventsRepository.GetSingles(ctx, s.db, ids, from, to)
	if err != nil {
		return nil, fmt.Errorf("rawEventsRepository.GetSingles: %w", err)
	}

	overridesByKey := make(map[string]*model.RawEvent, len(overrides))
	for _, o := range overrides {
		overridesByKey[identity(o.CalendarID, o.UID, o.RecurrenceKey)] = o
	}

	res := make([]model.Occurrence, 0, len(singles))

	for _, m := range masters {
		starts, err := occurrenceStarts(m, from, to)
		if err != nil {
			s.logger.Warnw("Skipping malformed recurring event",
				"cal", m.CalendarID,
				"uid", m.UID,
				"err", err,
			)
			continue
		}

		duration := m.End.Sub(m.Start)
		for _, start := range starts {
			recurrenceID := model.RecurrenceKey(start)
			recurrence := model.RecurrenceInfo{
				IsRecurring:  true,
				MasterUID:    m.UID,
				RecurrenceID: recurrenceID,
			}

			if o, ok := overridesByKey[identity(m.CalendarID, m.UID, recurrenceID)]; ok {
				if o.Cancelled() && !filter.IncludeCancelled {
					continue
				}
				occ := toOccurrence(o, o.Start, o.End, types[m.CalendarID])
				occ.UID = m.UID
				occ.Recurrence = recurrence
				res = append(res, occ)
				continue
			}

			occ := toOccurrence(m, start, start.Add(duration), types[m.CalendarID])
			occ.Recurrence = recurrence
			res = append(res, occ)
		}
	}

	for _, e := range singles {
		if e.Cancelled() && !filter.IncludeCancelled {
			continue
		}
		res = append(res, toOccurrence(e, e.Start, e.End, types[e.CalendarID]))
	}

	sortOccurrences(res)

	s.cache.Set(string(key), res)
	return clone(res), nil
}

func identity(calendarID, uid, recurrenceKey string) string {
	return calendarID + "::" + uid + "::" + recurrenceKey
}

func toOccurrence(e *model.RawEvent, start, end time.Time, calType model.CalendarType) model.Occurrence {
	return model.Occurrence{
		CalendarID:  e.CalendarID,
		UID:         e.UID,
		Start:       start.UTC(),
		End:         end.UTC(),
		AllDay:      e.AllDay,
		Summary:     e.Summary,
		Location:    e.Location,
		Description: e.Description,
		Status:      e.Status,
		Source: model.SourceInfo{
			Type: calType,
			ID:   e.UID,
		},
	}
}

func sortOccurrences(occ []model.Occurrence) {
	sort.SliceStable(occ, func(i, j int) bool {
		a, b := occ[i], occ[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.CalendarID != b.CalendarID {
			return a.CalendarID < b.CalendarID
		}
		return a.UID < b.UID
	})
}

func clone(occ []model.Occurrence) []model.Occurrence {
	return append(make([]model.Occurrence, 0, len(occ)), occ...)
}
