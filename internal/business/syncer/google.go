package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/model"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const googlePageSize = 2500

type tokenSource interface {
	GetValidAccessToken(ctx context.Context) (string, error)
}

// ServiceFactory builds a Calendar API client authorized with accessToken.
type ServiceFactory func(ctx context.Context, accessToken string) (*calendar.Service, error)

// NewServiceFactory returns a factory whose clients time out after timeout.
func NewServiceFactory(timeout time.Duration) ServiceFactory {
	return func(ctx context.Context, accessToken string) (*calendar.Service, error) {
		client := &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}),
				Base:   http.DefaultTransport,
			},
		}
		return calendar.NewService(ctx, option.WithHTTPClient(client))
	}
}

type GoogleSyncer struct {
	db                  database.PGX
	calendarsRepository calendarsRepository
	rawEventsRepository rawEventsRepository
	tokens              tokenSource
	newService          ServiceFactory
	logger              *zap.SugaredLogger
	now                 func() time.Time
}

func NewGoogleSyncer(
	db database.PGX,
	calendarsRepo calendarsRepository,
	rawEventsRepo rawEventsRepository,
	tokens tokenSource,
	newService ServiceFactory,
	logger *zap.SugaredLogger,
) *GoogleSyncer {
	return &GoogleSyncer{
		db:                  db,
		calendarsRepository: calendarsRepo,
		rawEventsRepository: rawEventsRepo,
		tokens:              tokens,
		newService:          newService,
		logger:              logger,
		now:                 time.Now,
	}
}

// Sync pulls changes of every enabled Google calendar. Only a failure to list
// calendars is returned, calendar level failures are logged and left out of the summary.
func (s *GoogleSyncer) Sync(ctx context.Context) (model.SyncSummary, error) {
	summary := model.SyncSummary{Calendars: []string{}}

	cals, err := s.calendarsRepository.ListEnabledCalendars(ctx, s.db, model.CalendarTypeGoogle)
	if err != nil {
		return summary, fmt.Errorf("calendarsRepository.ListEnabledCalendars: %w", err)
	}
	if len(cals) == 0 {
		return summary, nil
	}

	token, err := s.tokens.GetValidAccessToken(ctx)
	if err != nil {
		s.logger.Warnw("No valid Google credential, skipping Google sync", "err", err)
		return summary, nil
	}

	svc, err := s.newService(ctx, token)
	if err != nil {
		s.logger.Errorw("Failed creating Google Calendar client", "err", err)
		return summary, nil
	}

	for _, cal := range cals {
		if cal.GoogleCalID == "" {
			continue
		}

		updated, err := s.syncCalendar(ctx, svc, cal)
		if err != nil {
			s.logger.Errorw("Google sync failed", "cal", cal.ID, "err", err)
			continue
		}

		summary.Updated += updated
		summary.Calendars = append(summary.Calendars, cal.ID)
	}

	return summary, nil
}

func (s *GoogleSyncer) syncCalendar(ctx context.Context, svc *calendar.Service, cal *model.Calendar) (int, error) {
	cursor := cal.SyncToken
	incremental := cursor != ""
	restarted := false
	updated := 0

	var pageToken, nextSyncToken string
	for {
		call := svc.Events.List(cal.GoogleCalID).
			ShowDeleted(true).
			ShowHiddenInvitations(false).
			SingleEvents(false).
			MaxResults(googlePageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		if cursor != "" {
			call = call.SyncToken(cursor)
		}

		page, err := call.Do()
		if err != nil {
			if !isGone(err) {
				return updated, upstreamError(err)
			}
			if restarted {
				return updated, fmt.Errorf("%w: calendar %s", model.ErrCursorInvalid, cal.ID)
			}

			s.logger.Infow("Google sync cursor expired, running full sync", "cal", cal.ID)
			if err := s.calendarsRepository.UpdateSyncCursor(ctx, s.db, cal.ID, ""); err != nil {
				return updated, fmt.Errorf("calendarsRepository.UpdateSyncCursor: %w", err)
			}
			restarted = true
			cursor, pageToken, nextSyncToken = "", "", ""
			continue
		}

		for _, item := range page.Items {
			ok, err := s.apply(ctx, cal.ID, item)
			if err != nil {
				return updated, err
			}
			if ok {
				updated++
			}
		}

		if page.NextSyncToken != "" {
			nextSyncToken = page.NextSyncToken
		}
		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if nextSyncToken != "" {
		if err := s.calendarsRepository.UpdateSyncCursor(ctx, s.db, cal.ID, nextSyncToken); err != nil {
			return updated, fmt.Errorf("calendarsRepository.UpdateSyncCursor: %w", err)
		}
	}

	s.logger.Infow("Google synced",
		"cal", cal.ID,
		"updated", updated,
		"incremental", incremental,
	)

	return updated, nil
}

// apply writes one record unless the stored row is at least as recent.
func (s *GoogleSyncer) apply(ctx context.Context, calendarID string, item *calendar.Event) (bool, error) {
	rec, err := mapGoogleEvent(calendarID, item, s.now().UTC())
	if err != nil {
		s.logger.Warnw("Skipping unmappable Google event",
			"cal", calendarID,
			"uid", item.Id,
			"err", err,
		)
		return false, nil
	}
	ev := rec.event
	if len(rec.malformed) > 0 {
		s.logger.Warnw("Keeping malformed recurrence dates, the series will not expand",
			"cal", calendarID,
			"uid", ev.UID,
			"values", rec.malformed,
		)
	}

	applied := false
	err = database.WithTx(ctx, s.db, func(tx database.Tx) error {
		stored, err := s.rawEventsRepository.GetUpdatedAt(ctx, tx, calendarID, ev.UID, ev.RecurrenceKey)
		switch {
		case err == nil:
			if !stored.Before(ev.UpdatedAt) {
				return nil
			}
		case errors.Is(err, model.ErrNoRecord):
		default:
			return fmt.Errorf("rawEventsRepository.GetUpdatedAt: %w", err)
		}

		if rec.deletion {
			if _, err := s.rawEventsRepository.DeleteByUID(ctx, tx, calendarID, ev.UID); err != nil {
				return fmt.Errorf("rawEventsRepository.DeleteByUID: %w", err)
			}
		} else if err := s.rawEventsRepository.UpsertRawEvent(ctx, tx, ev); err != nil {
			return fmt.Errorf("rawEventsRepository.UpsertRawEvent: %w", err)
		}

		applied = true
		return nil
	})

	return applied, err
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusGone
}

func upstreamError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("events.list: %w", &model.UpstreamHTTPError{Status: gerr.Code, Reason: gerr.Message})
	}
	return fmt.Errorf("events.list: %w", err)
}
