package syncer_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	_ "time/tzdata"

	"github.com/SergeyKozhin/omnical/internal/business/syncer"
	"github.com/SergeyKozhin/omnical/internal/database/dbtest"
	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type staticToken struct {
	token string
	err   error
}

func (s staticToken) GetValidAccessToken(_ context.Context) (string, error) {
	return s.token, s.err
}

type page struct {
	Items         []map[string]interface{} `json:"items"`
	NextPageToken string                   `json:"nextPageToken,omitempty"`
	NextSyncToken string                   `json:"nextSyncToken,omitempty"`
}

// googleAPI fakes events.list per calendar id.
type googleAPI struct {
	mu       sync.Mutex
	requests []*http.Request
	handle   func(w http.ResponseWriter, calID string, q map[string]string)
}

func (g *googleAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.requests = append(g.requests, r)
	g.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "calendars" || parts[2] != "events" {
		http.NotFound(w, r)
		return
	}

	q := map[string]string{}
	for k, v := range r.URL.Query() {
		q[k] = v[0]
	}
	g.handle(w, parts[1], q)
}

func writePage(w http.ResponseWriter, p page) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}

func writeGone(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusGone)
	_, _ = w.Write([]byte(`{"error":{"code":410,"message":"Sync token is no longer valid, a full sync is required."}}`))
}

func newGoogleSyncer(t *testing.T, store *memStore, api *googleAPI, tokens staticToken) *syncer.GoogleSyncer {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	factory := func(ctx context.Context, _ string) (*calendar.Service, error) {
		return calendar.NewService(ctx,
			option.WithEndpoint(srv.URL+"/"),
			option.WithHTTPClient(srv.Client()),
		)
	}

	return syncer.NewGoogleSyncer(dbtest.New(), store, store, tokens, factory, zaptest.NewLogger(t).Sugar())
}

func googleCal(id, googleID, cursor string) *model.Calendar {
	return &model.Calendar{ID: id, Type: model.CalendarTypeGoogle, GoogleCalID: googleID, SyncToken: cursor}
}

func TestGoogleSync_FullSyncWithPages(t *testing.T) {
	store := newMemStore(googleCal("gcal_1", "primary", ""))
	api := &googleAPI{handle: func(w http.ResponseWriter, calID string, q map[string]string) {
		assert.Equal(t, "primary", calID)
		assert.Equal(t, "true", q["showDeleted"])
		assert.Equal(t, "false", q["singleEvents"])
		assert.Equal(t, "2500", q["maxResults"])
		assert.Empty(t, q["syncToken"])

		if q["pageToken"] == "" {
			writePage(w, page{
				NextPageToken: "p2",
				Items: []map[string]interface{}{
					{
						"id":         "standup",
						"status":     "confirmed",
						"summary":    "Standup",
						"updated":    "2024-01-01T00:00:00Z",
						"start":      map[string]string{"dateTime": "2024-01-01T10:00:00+01:00", "timeZone": "Europe/Berlin"},
						"end":        map[string]string{"dateTime": "2024-01-01T10:30:00+01:00", "timeZone": "Europe/Berlin"},
						"recurrence": []string{"RRULE:FREQ=DAILY;COUNT=5", "EXDATE;TZID=Europe/Berlin:20240102T100000"},
					},
					{
						"id":      "holiday",
						"status":  "confirmed",
						"summary": "Holiday",
						"updated": "2024-01-01T00:00:00Z",
						"start":   map[string]string{"date": "2024-01-06"},
						"end":     map[string]string{"date": "2024-01-07"},
					},
				},
			})
			return
		}

		assert.Equal(t, "p2", q["pageToken"])
		writePage(w, page{
			NextSyncToken: "sync-1",
			Items: []map[string]interface{}{
				{
					"id":                "standup_20240103T090000Z",
					"status":            "confirmed",
					"summary":           "Moved",
					"updated":           "2024-01-02T00:00:00Z",
					"recurringEventId":  "standup",
					"originalStartTime": map[string]string{"dateTime": "2024-01-03T09:00:00Z"},
					"start":             map[string]string{"dateTime": "2024-01-03T13:00:00Z"},
					"end":               map[string]string{"dateTime": "2024-01-03T13:30:00Z"},
				},
			},
		})
	}}

	s := newGoogleSyncer(t, store, api, staticToken{token: "access"})

	sum, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Updated)
	assert.Equal(t, []string{"gcal_1"}, sum.Calendars)
	assert.Equal(t, "sync-1", store.calendar("gcal_1").SyncToken)

	m := store.event("gcal_1", "standup", model.MasterKey)
	require.NotNil(t, m)
	require.NotNil(t, m.Recurrence)
	assert.Equal(t, "RRULE:FREQ=DAILY;COUNT=5", m.Recurrence.RRule)
	assert.Equal(t, []string{"2024-01-02T09:00:00.000Z"}, m.Recurrence.ExDates)
	assert.True(t, m.Start.Equal(mustTime(t, "2024-01-01T09:00:00Z")))
	assert.Equal(t, "Europe/Berlin", m.Timezone)
	assert.NotEmpty(t, m.SourcePayload)

	h := store.event("gcal_1", "holiday", model.MasterKey)
	require.NotNil(t, h)
	assert.True(t, h.AllDay)
	assert.Nil(t, h.Recurrence)
	assert.True(t, h.Start.Equal(mustTime(t, "2024-01-06T00:00:00Z")))

	o := store.event("gcal_1", "standup_20240103T090000Z", "2024-01-03T09:00:00.000Z")
	require.NotNil(t, o)
	assert.Equal(t, "Moved", o.Summary)
	assert.Nil(t, o.Recurrence)
}

func TestGoogleSync_GoneCursorRestartsFullSync(t *testing.T) {
	store := newMemStore(googleCal("gcal_1", "primary", "stale"))
	api := &googleAPI{handle: func(w http.ResponseWriter, _ string, q map[string]string) {
		if q["syncToken"] == "stale" {
			writeGone(w)
			return
		}
		writePage(w, page{
			NextSyncToken: "fresh",
			Items: []map[string]interface{}{
				{
					"id":      "one",
					"status":  "confirmed",
					"updated": "2024-01-01T00:00:00Z",
					"start":   map[string]string{"dateTime": "2024-01-01T10:00:00Z"},
					"end":     map[string]string{"dateTime": "2024-01-01T11:00:00Z"},
				},
			},
		})
	}}

	s := newGoogleSyncer(t, store, api, staticToken{token: "access"})

	sum, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gcal_1"}, sum.Calendars)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, []string{"", "fresh"}, store.cursorUpdates)
	assert.Equal(t, "fresh", store.calendar("gcal_1").SyncToken)
	assert.Len(t, api.requests, 2)
}

func TestGoogleSync_PersistentGoneIsBounded(t *testing.T) {
	store := newMemStore(
		googleCal("gcal_1", "broken", "stale"),
		googleCal("gcal_2", "healthy", ""),
	)
	api := &googleAPI{handle: func(w http.ResponseWriter, calID string, _ map[string]string) {
		if calID == "broken" {
			writeGone(w)
			return
		}
		writePage(w, page{NextSyncToken: "ok"})
	}}

	s := newGoogleSyncer(t, store, api, staticToken{token: "access"})

	sum, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gcal_2"}, sum.Calendars)
	assert.Equal(t, "", store.calendar("gcal_1").SyncToken)
	assert.Equal(t, "ok", store.calendar("gcal_2").SyncToken)
	assert.Len(t, api.requests, 3)
}

func TestGoogleSync_UpstreamErrorIsolated(t *testing.T) {
	store := newMemStore(
		googleCal("gcal_1", "forbidden", ""),
		googleCal("gcal_2", "healthy", ""),
	)
	api := &googleAPI{handle: func(w http.ResponseWriter, calID string, _ map[string]string) {
		if calID == "forbidden" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		writePage(w, page{})
	}}

	s := newGoogleSyncer(t, store, api, staticToken{token: "access"})

	sum, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gcal_2"}, sum.Calendars)
	assert.Equal(t, "", store.calendar("gcal_2").SyncToken)
}

func TestGoogleSync_LastWriteWins(t *testing.T) {
	store := newMemStore(googleCal("gcal_1", "primary", ""))
	require.NoError(t, store.UpsertRawEvent(context.Background(), nil, &model.RawEvent{
		CalendarID:    "gcal_1",
		UID:           "newer",
		RecurrenceKey: model.MasterKey,
		Summary:       "Stored",
		UpdatedAt:     mustTime(t, "2024-02-01T00:00:00Z"),
	}))
	require.NoError(t, store.UpsertRawEvent(context.Background(), nil, &model.RawEvent{
		CalendarID:    "gcal_1",
		UID:           "older",
		RecurrenceKey: model.MasterKey,
		Summary:       "Stored",
		UpdatedAt:     mustTime(t, "2024-01-01T00:00:00Z"),
	}))

	item := func(id, updated string) map[string]interface{} {
		return map[string]interface{}{
			"id":      id,
			"status":  "confirmed",
			"summary": "Incoming",
			"updated": updated,
			"start":   map[string]string{"dateTime": "2024-01-01T10:00:00Z"},
			"end":     map[string]string{"dateTime": "2024-01-01T11:00:00Z"},
		}
	}
	api := &googleAPI{handle: func(w http.ResponseWriter, _ string, _ map[string]string) {
		writePage(w, page{Items: []map[string]interface{}{
			item("newer", "2024-01-15T00:00:00Z"),
			item("older", "2024-01-15T00:00:00Z"),
			item("newer", "2024-02-01T00:00:00Z"),
		}})
	}}

	s := newGoogleSyncer(t, store, api, staticToken{token: "access"})

	sum, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, "Stored", store.event("gcal_1", "newer", model.MasterKey).Summary)
	assert.Equal(t, "Incoming", store.event("gcal_1", "older", model.MasterKey).Summary)
}

func TestGoogleSync_Cancellations(t *testing.T) {
	store := newMemStore(googleCal("gcal_1", "primary", "cursor"))
	ctx := context.Background()
	for _, k := range []string{model.MasterKey, "2024-01-02T09:00:00.000Z"} {
		require.NoError(t, store.UpsertRawEvent(ctx, nil, &model.RawEvent{
			CalendarID:    "gcal_1",
			UID:           "gone",
			RecurrenceKey: k,
			UpdatedAt:     mustTime(t, "2024-01-01T00:00:00Z"),
		}))
	}

	api := &googleAPI{handle: func(w http.ResponseWriter, _ string, q map[string]string) {
		assert.Equal(t, "cursor", q["syncToken"])
		writePage(w, page{
			NextSyncToken: "next",
			Items: []map[string]interface{}{
				{"id": "gone", "status": "cancelled", "updated": "2024-01-05T00:00:00Z"},
				{
					"id":                "series_20240110T090000Z",
					"status":            "cancelled",
					"updated":           "2024-01-05T00:00:00Z",
					"recurringEventId":  "series",
					"originalStartTime": map[string]string{"dateTime": "2024-01-10T09:00:00Z"},
				},
			},
		})
	}}

	s := newGoogleSyncer(t, store, api, staticToken{token: "access"})

	sum, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Updated)

	assert.Nil(t, store.event("gcal_1", "gone", model.MasterKey))
	assert.Nil(t, store.event("gcal_1", "gone", "2024-01-02T09:00:00.000Z"))

	o := store.event("gcal_1", "series_20240110T090000Z", "2024-01-10T09:00:00.000Z")
	require.NotNil(t, o)
	assert.Equal(t, model.StatusCancelled, o.Status)
	assert.True(t, o.Start.Equal(mustTime(t, "2024-01-10T09:00:00Z")))
	assert.Equal(t, 1, store.count())
}

func TestGoogleSync_NoCredentialIsNoop(t *testing.T) {
	store := newMemStore(googleCal("gcal_1", "primary", ""))
	api := &googleAPI{handle: func(w http.ResponseWriter, _ string, _ map[string]string) {
		writePage(w, page{})
	}}

	s := newGoogleSyncer(t, store, api, staticToken{err: model.ErrNoCredential})

	sum, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Updated)
	assert.Empty(t, sum.Calendars)
	assert.Empty(t, api.requests)
}

func TestGoogleSync_StoreUnavailable(t *testing.T) {
	store := newMemStore()
	store.listErr = errStore

	s := newGoogleSyncer(t, store, &googleAPI{}, staticToken{token: "access"})

	_, err := s.Sync(context.Background())
	assert.True(t, errors.Is(err, errStore))
}
