package calendars

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/model"
	"go.uber.org/zap"
)

type Service struct {
	db                  database.PGX
	calendarsRepository calendarsRepository
	rawEventsRepository rawEventsRepository
	logger              *zap.SugaredLogger
}

type calendarsRepository interface {
	UpsertCalendar(ctx context.Context, q database.Queryable, id string, info *model.CalendarCreate) error
	GetCalendar(ctx context.Context, q database.Queryable, id string) (*model.Calendar, error)
	ListCalendars(ctx context.Context, q database.Queryable) ([]*model.Calendar, error)
	UpdateCalendar(ctx context.Context, q database.Queryable, id string, upd *model.CalendarUpdate) error
	DeleteCalendar(ctx context.Context, q database.Queryable, id string) error
}

type rawEventsRepository interface {
	DeleteByCalendar(ctx context.Context, q database.Queryable, calendarID string) (int64, error)
}

func NewService(db database.PGX, calendarsRepo calendarsRepository, rawEventsRepo rawEventsRepository, logger *zap.SugaredLogger) *Service {
	return &Service{
		db:                  db,
		calendarsRepository: calendarsRepo,
		rawEventsRepository: rawEventsRepo,
		logger:              logger,
	}
}

var idPrefixes = map[model.CalendarType]string{
	model.CalendarTypeGoogle: "gcal_",
	model.CalendarTypeICS:    "ics_",
}

// CalendarID derives the stable id of a source: type prefix and the first 12 hex digits of sha1(ref).
func CalendarID(t model.CalendarType, ref string) string {
	sum := sha1.Sum([]byte(ref))
	return idPrefixes[t] + hex.EncodeToString(sum[:])[:12]
}

func (s *Service) RegisterICS(ctx context.Context, rawURL, label string) (*model.Calendar, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: ics url must be an absolute http(s) url", model.ErrInvalidCalendar)
	}

	return s.register(ctx, &model.CalendarCreate{
		Type:   model.CalendarTypeICS,
		Label:  strings.TrimSpace(label),
		ICSURL: rawURL,
	})
}

func (s *Service) RegisterGoogle(ctx context.Context, googleCalID, label string) (*model.Calendar, error) {
	googleCalID = strings.TrimSpace(googleCalID)
	if googleCalID == "" {
		return nil, fmt.Errorf("%w: google calendar id is empty", model.ErrInvalidCalendar)
	}

	return s.register(ctx, &model.CalendarCreate{
		Type:        model.CalendarTypeGoogle,
		Label:       strings.TrimSpace(label),
		GoogleCalID: googleCalID,
	})
}

func (s *Service) register(ctx context.Context, info *model.CalendarCreate) (*model.Calendar, error) {
	ref := info.ICSURL
	if info.Type == model.CalendarTypeGoogle {
		ref = info.GoogleCalID
	}
	id := CalendarID(info.Type, ref)

	if err := s.calendarsRepository.UpsertCalendar(ctx, s.db, id, info); err != nil {
		return nil, fmt.Errorf("calendarsRepository.UpsertCalendar: %w", err)
	}

	cal, err := s.calendarsRepository.GetCalendar(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("calendarsRepository.GetCalendar: %w", err)
	}

	return cal, nil
}

func (s *Service) GetCalendar(ctx context.Context, id string) (*model.Calendar, error) {
	cal, err := s.calendarsRepository.GetCalendar(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("calendarsRepository.GetCalendar: %w", err)
	}

	return cal, nil
}

func (s *Service) ListCalendars(ctx context.Context) ([]*model.Calendar, error) {
	cals, err := s.calendarsRepository.ListCalendars(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("calendarsRepository.ListCalendars: %w", err)
	}

	return cals, nil
}

var colorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func (s *Service) UpdateCalendar(ctx context.Context, id string, upd *model.CalendarUpdate) (*model.Calendar, error) {
	if upd.Color != nil && *upd.Color != "" && !colorRe.MatchString(*upd.Color) {
		return nil, fmt.Errorf("%w: color must be #rrggbb", model.ErrInvalidCalendar)
	}

	if err := s.calendarsRepository.UpdateCalendar(ctx, s.db, id, upd); err != nil {
		return nil, fmt.Errorf("calendarsRepository.UpdateCalendar: %w", err)
	}

	return s.GetCalendar(ctx, id)
}

// DeleteCalendar removes the calendar and all of its raw events.
func (s *Service) DeleteCalendar(ctx context.Context, id string) error {
	return database.WithTx(ctx, s.db, func(tx database.Tx) error {
		removed, err := s.rawEventsRepository.DeleteByCalendar(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("rawEventsRepository.DeleteByCalendar: %w", err)
		}

		if err := s.calendarsRepository.DeleteCalendar(ctx, tx, id); err != nil {
			return fmt.Errorf("calendarsRepository.DeleteCalendar: %w", err)
		}

		s.logger.Infow("Calendar deleted", "cal", id, "events", removed)
		return nil
	})
}

func isInvalid(err error) bool {
	return errors.Is(err, model.ErrInvalidCalendar)
}
