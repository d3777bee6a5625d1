package api

import (
	"context"
	"net/http"
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goddtriffin/helmet"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Api struct {
	handler http.Handler
	logger  *zap.SugaredLogger
	apiKey  string
	origins []string
	now     func() time.Time

	expander  expander
	syncer    syncer
	calendars calendarService
}

type expander interface {
	Expand(ctx context.Context, filter model.EventsFilter) ([]model.Occurrence, error)
	FreeBusy(ctx context.Context, from, to time.Time) (*model.FreeBusy, error)
}

type syncer interface {
	SyncAll(ctx context.Context) (*model.SyncResult, error)
}

type calendarService interface {
	RegisterICS(ctx context.Context, rawURL, label string) (*model.Calendar, error)
	RegisterGoogle(ctx context.Context, googleCalID, label string) (*model.Calendar, error)
	GetCalendar(ctx context.Context, id string) (*model.Calendar, error)
	ListCalendars(ctx context.Context) ([]*model.Calendar, error)
	UpdateCalendar(ctx context.Context, id string, upd *model.CalendarUpdate) (*model.Calendar, error)
	DeleteCalendar(ctx context.Context, id string) error
}

func NewApi(
	logger *zap.SugaredLogger,
	apiKey string,
	corsOrigins []string,
	expander expander,
	syncer syncer,
	calendars calendarService,
) *Api {
	a := &Api{
		logger:    logger,
		apiKey:    apiKey,
		origins:   corsOrigins,
		now:       time.Now,
		expander:  expander,
		syncer:    syncer,
		calendars: calendars,
	}
	a.setupHandler()

	return a
}

func (a *Api) setupHandler() {
	middleware.DefaultLogger = func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.logger.Debugw(r.URL.Path,
				"addr", r.RemoteAddr,
				"protocol", r.Proto,
				"method", r.Method,
			)
			next.ServeHTTP(w, r)
		})
	}

	r := chi.NewMux()

	r.Use(middleware.Logger, middleware.Recoverer, middleware.StripSlashes, helmet.Default().Secure)
	if len(a.origins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: a.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Api-Key"},
		}).Handler)
	}
	r.NotFound(a.notFoundResponse)
	r.MethodNotAllowed(a.methodNotAllowedResponse)

	r.Get("/healthcheck", a.healthcheckHandler)
	r.Get("/metrics", a.metricsHandler)

	r.With(a.auth).Route("/v1", func(r chi.Router) {
		r.Get("/events", a.getEventsHandler)
		r.Get("/freebusy", a.getFreeBusyHandler)
		r.Get("/ics", a.getICSHandler)
		r.Post("/sync", a.syncHandler)

		r.Route("/calendars", func(r chi.Router) {
			r.Get("/", a.listCalendarsHandler)
			r.Post("/ics", a.createICSCalendarHandler)
			r.Post("/google", a.createGoogleCalendarHandler)
			r.Get("/{calendarID}", a.getCalendarHandler)
			r.Put("/{calendarID}", a.updateCalendarHandler)
			r.Delete("/{calendarID}", a.deleteCalendarHandler)
		})
	})

	a.handler = r
}

func (a *Api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *Api) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"ok":  true,
		"now": a.now().UnixMilli(),
	}
	if err := a.writeJSON(w, http.StatusOK, resp, nil); err != nil {
		a.serverErrorResponse(w, r, err)
	}
}
