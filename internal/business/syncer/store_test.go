package syncer_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/model"
)

// memStore serves both repositories the syncers depend on.
type memStore struct {
	mu            sync.Mutex
	calendars     map[string]*model.Calendar
	events        map[string]*model.RawEvent
	cursorUpdates []string
	listErr       error
}

func newMemStore(cals ...*model.Calendar) *memStore {
	s := &memStore{
		calendars: map[string]*model.Calendar{},
		events:    map[string]*model.RawEvent{},
	}
	for _, c := range cals {
		c.Enabled = true
		s.calendars[c.ID] = c
	}
	return s
}

func key(calendarID, uid, recurrenceKey string) string {
	return calendarID + "|" + uid + "|" + recurrenceKey
}

func (s *memStore) ListEnabledCalendars(_ context.Context, _ database.Queryable, types ...model.CalendarType) ([]*model.Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	var res []*model.Calendar
	for _, c := range s.calendars {
		if !c.Enabled {
			continue
		}
		for _, t := range types {
			if c.Type == t {
				cp := *c
				res = append(res, &cp)
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *memStore) UpdateSyncCursor(_ context.Context, _ database.Queryable, id string, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calendars[id]
	if !ok {
		return model.ErrNoRecord
	}
	c.SyncToken = cursor
	s.cursorUpdates = append(s.cursorUpdates, cursor)
	return nil
}

func (s *memStore) UpdateConditionalValidators(_ context.Context, _ database.Queryable, id string, etag, lastMod string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calendars[id]
	if !ok {
		return model.ErrNoRecord
	}
	c.ICSEtag, c.ICSLastMod = etag, lastMod
	return nil
}

func (s *memStore) GetUpdatedAt(_ context.Context, _ database.Queryable, calendarID, uid, recurrenceKey string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[key(calendarID, uid, recurrenceKey)]
	if !ok {
		return time.Time{}, model.ErrNoRecord
	}
	return e.UpdatedAt, nil
}

func (s *memStore) UpsertRawEvent(_ context.Context, _ database.Queryable, ev *model.RawEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *ev
	s.events[key(ev.CalendarID, ev.UID, ev.RecurrenceKey)] = &cp
	return nil
}

func (s *memStore) DeleteByUID(_ context.Context, _ database.Queryable, calendarID, uid string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, e := range s.events {
		if e.CalendarID == calendarID && e.UID == uid {
			delete(s.events, k)
			n++
		}
	}
	return n, nil
}

func (s *memStore) event(calendarID, uid, recurrenceKey string) *model.RawEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[key(calendarID, uid, recurrenceKey)]
}

func (s *memStore) calendar(id string) *model.Calendar {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.calendars[id]
	return &cp
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

var errStore = errors.New("store unavailable")

func mustTime(t *testing.T, v string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t.Fatal(err)
	}
	return ts.UTC()
}
