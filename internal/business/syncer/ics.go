package syncer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/model"
	"go.uber.org/zap"
)

const (
	icsAccept    = "text/calendar, text/plain, */*"
	icsUserAgent = "omnical/1.0"
	icsMaxBody   = 32 << 20
)

type ICSSyncer struct {
	db                  database.PGX
	calendarsRepository calendarsRepository
	rawEventsRepository rawEventsRepository
	client              *http.Client
	logger              *zap.SugaredLogger
	now                 func() time.Time
}

func NewICSSyncer(
	db database.PGX,
	calendarsRepo calendarsRepository,
	rawEventsRepo rawEventsRepository,
	client *http.Client,
	logger *zap.SugaredLogger,
) *ICSSyncer {
	return &ICSSyncer{
		db:                  db,
		calendarsRepository: calendarsRepo,
		rawEventsRepository: rawEventsRepo,
		client:              client,
		logger:              logger,
		now:                 time.Now,
	}
}

// Sync fetches every enabled ICS feed. Events present in a feed are upserted,
// events that disappeared from it are kept.
func (s *ICSSyncer) Sync(ctx context.Context) (model.SyncSummary, error) {
	summary := model.SyncSummary{Calendars: []string{}}

	cals, err := s.calendarsRepository.ListEnabledCalendars(ctx, s.db, model.CalendarTypeICS)
	if err != nil {
		return summary, fmt.Errorf("calendarsRepository.ListEnabledCalendars: %w", err)
	}

	for _, cal := range cals {
		if cal.ICSURL == "" {
			continue
		}

		updated, modified, err := s.syncCalendar(ctx, cal)
		if err != nil {
			s.logger.Errorw("ICS sync failed",
				"cal", cal.ID,
				"url", redactURL(cal.ICSURL),
				"err", err,
			)
			continue
		}
		if !modified {
			continue
		}

		summary.Updated += updated
		summary.Calendars = append(summary.Calendars, cal.ID)
	}

	return summary, nil
}

func (s *ICSSyncer) syncCalendar(ctx context.Context, cal *model.Calendar) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cal.ICSURL, nil)
	if err != nil {
		return 0, false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", icsAccept)
	req.Header.Set("User-Agent", icsUserAgent)
	if cal.ICSEtag != "" {
		req.Header.Set("If-None-Match", cal.ICSEtag)
	}
	if cal.ICSLastMod != "" {
		req.Header.Set("If-Modified-Since", cal.ICSLastMod)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		s.logger.Infow("ICS not modified", "cal", cal.ID)
		return 0, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, false, &model.UpstreamHTTPError{Status: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, icsMaxBody))
	if err != nil {
		return 0, false, fmt.Errorf("read body: %w", err)
	}

	events, err := parseICS(cal.ID, body, s.now().UTC(), s.logger)
	if err != nil {
		return 0, false, err
	}

	etag := resp.Header.Get("ETag")
	lastMod := resp.Header.Get("Last-Modified")

	err = database.WithTx(ctx, s.db, func(tx database.Tx) error {
		for _, ev := range events {
			if err := s.rawEventsRepository.UpsertRawEvent(ctx, tx, ev); err != nil {
				return fmt.Errorf("rawEventsRepository.UpsertRawEvent: %w", err)
			}
		}

		if err := s.calendarsRepository.UpdateConditionalValidators(ctx, tx, cal.ID, etag, lastMod); err != nil {
			return fmt.Errorf("calendarsRepository.UpdateConditionalValidators: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	s.logger.Infow("ICS synced", "cal", cal.ID, "updated", len(events))

	return len(events), true, nil
}
