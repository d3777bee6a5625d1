package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	calendars_service "github.com/SergeyKozhin/omnical/internal/business/calendars"
	"github.com/SergeyKozhin/omnical/internal/business/syncer"
	"github.com/SergeyKozhin/omnical/internal/config"
	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/database/calendars"
	"github.com/SergeyKozhin/omnical/internal/database/rawevents"
	"github.com/SergeyKozhin/omnical/internal/database/tokens"
	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/SergeyKozhin/omnical/internal/pkg/oauth"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const usage = `usage: omnical-admin <command> [args]

commands:
  add-ics <url> [label]            register an ICS feed
  add-google <calendarId> [label]  register a Google calendar
  auth-google                      authorize Google access with a user code and store the token set
  auth-google-code                 authorize Google access through a loopback redirect
  revoke-google                    forget the stored Google token set
  list                             list calendars
  events <calendarId>              list stored raw events of a calendar
  delete <calendarId>              delete a calendar and its events
  sync                             run one full sync
`

type app struct {
	db        database.PGX
	logger    *zap.SugaredLogger
	calendars *calendars_service.Service
	calRepo   *calendars.Repository
	rawRepo   *rawevents.Repository
	tokenRepo *tokens.Repository
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := config.Load(); err != nil {
		log.Fatalf("unable to load config: %v", err)
	}

	logger, err := initLogger()
	if err != nil {
		log.Fatalf("unable to initializae logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := database.NewPGX(ctx, config.PostgresURL())
	if err != nil {
		logger.Fatalw("unable to initializae db", "err", err)
	}
	if err := database.Migrate(ctx, db, logger); err != nil {
		logger.Fatalw("unable to apply migrations", "err", err)
	}

	a := &app{
		db:        db,
		logger:    logger,
		calRepo:   calendars.NewRepository(),
		rawRepo:   rawevents.NewRepository(),
		tokenRepo: tokens.NewRepository(),
	}
	a.calendars = calendars_service.NewService(db, a.calRepo, a.rawRepo, logger)

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "add-ics":
		if len(args) < 1 {
			return errors.New("add-ics requires a url")
		}
		return a.printCalendar(a.calendars.RegisterICS(ctx, args[0], optional(args, 1)))
	case "add-google":
		if len(args) < 1 {
			return errors.New("add-google requires a calendar id")
		}
		return a.printCalendar(a.calendars.RegisterGoogle(ctx, args[0], optional(args, 1)))
	case "auth-google":
		return a.authGoogle(ctx)
	case "auth-google-code":
		return a.authGoogleCode(ctx)
	case "revoke-google":
		if err := a.tokenRepo.DeletePayload(ctx, a.db, "google"); err != nil {
			return err
		}
		fmt.Println("Google token set removed")
		return nil
	case "list":
		return a.list(ctx)
	case "events":
		if len(args) < 1 {
			return errors.New("events requires a calendar id")
		}
		return a.events(ctx, args[0])
	case "delete":
		if len(args) < 1 {
			return errors.New("delete requires a calendar id")
		}
		if err := a.calendars.DeleteCalendar(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	case "sync":
		return a.sync(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) vault() (*oauth.Vault, error) {
	box, err := oauth.NewBox(config.EncryptionKey())
	if err != nil {
		return nil, fmt.Errorf("OAUTH_ENCRYPTION_KEY: %w", err)
	}

	return oauth.NewVault(a.db, a.tokenRepo, box, oauth.Config{
		ClientID:     config.GoogleClientID(),
		ClientSecret: config.GoogleClientSecret(),
		RedirectURL:  config.GoogleRedirectURL(),
		Scopes:       config.GoogleScopes(),
	}, a.logger), nil
}

const loopbackTimeout = 5 * time.Minute

func (a *app) googleVault() (*oauth.Vault, error) {
	if config.GoogleClientID() == "" || config.GoogleClientSecret() == "" {
		return nil, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}
	return a.vault()
}

func (a *app) authGoogle(ctx context.Context) error {
	v, err := a.googleVault()
	if err != nil {
		return err
	}

	da, err := v.StartDeviceAuth(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Open %s and enter the code %s\n", da.VerificationURI, da.UserCode)
	if !da.Expiry.IsZero() {
		fmt.Printf("The code expires at %s\n", da.Expiry.Local().Format(time.Kitchen))
	}
	fmt.Println("Waiting for approval...")

	if err := v.CompleteDeviceAuth(ctx, da); err != nil {
		return err
	}

	fmt.Println("Google token set stored")
	return nil
}

// authGoogleCode serves GOOGLE_REDIRECT_URL on the loopback interface and
// exchanges the code Google redirects back with.
func (a *app) authGoogleCode(ctx context.Context) error {
	v, err := a.googleVault()
	if err != nil {
		return err
	}

	redirect, err := url.Parse(config.GoogleRedirectURL())
	if err != nil || redirect.Scheme != "http" || redirect.Port() == "" {
		return fmt.Errorf("GOOGLE_REDIRECT_URL must be a loopback url with a port, got %q", config.GoogleRedirectURL())
	}
	if ip := net.ParseIP(redirect.Hostname()); redirect.Hostname() != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return fmt.Errorf("GOOGLE_REDIRECT_URL host %q is not a loopback address", redirect.Hostname())
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("listen %s: %w", redirect.Host, err)
	}

	state := uuid.NewString()
	codes := make(chan string, 1)
	failures := make(chan error, 1)

	path := redirect.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			http.Error(w, "authorization failed", http.StatusBadRequest)
			failures <- fmt.Errorf("authorization failed: %s", q.Get("error"))
			return
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		fmt.Fprintln(w, "omnical authorized, you can close this tab")
		select {
		case codes <- q.Get("code"):
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	fmt.Printf("Open this URL and grant access:\n\n%s\n\n", v.AuthCodeURL(state))

	ctx, cancel := context.WithTimeout(ctx, loopbackTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return fmt.Errorf("waiting for redirect: %w", ctx.Err())
	case err := <-failures:
		return err
	case code := <-codes:
		if err := v.Exchange(ctx, code); err != nil {
			return err
		}
	}

	fmt.Println("Google token set stored")
	return nil
}

func (a *app) list(ctx context.Context) error {
	cals, err := a.calendars.ListCalendars(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tENABLED\tLABEL\tSOURCE")
	for _, c := range cals {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", c.ID, c.Type, c.Enabled, c.Label, c.SourceRef())
	}
	return w.Flush()
}

func (a *app) events(ctx context.Context, id string) error {
	evs, err := a.rawRepo.GetByCalendar(ctx, a.db, id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UID\tKEY\tSTART\tSTATUS\tSUMMARY")
	for _, e := range evs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.UID, e.RecurrenceKey, model.FormatInstant(e.Start), e.Status, e.Summary)
	}
	return w.Flush()
}

type noCredential struct{}

func (noCredential) GetValidAccessToken(context.Context) (string, error) {
	return "", model.ErrNoCredential
}

func (a *app) sync(ctx context.Context) error {
	var googleTokens interface {
		GetValidAccessToken(ctx context.Context) (string, error)
	} = noCredential{}
	if config.EncryptionKey() != "" {
		v, err := a.vault()
		if err != nil {
			return err
		}
		googleTokens = v
	}

	orchestrator := syncer.NewOrchestrator(
		syncer.NewGoogleSyncer(a.db, a.calRepo, a.rawRepo, googleTokens, syncer.NewServiceFactory(config.HttpTimeout()), a.logger),
		syncer.NewICSSyncer(a.db, a.calRepo, a.rawRepo, &http.Client{Timeout: config.HttpTimeout()}, a.logger),
		a.logger,
	)

	ctx, cancel := context.WithTimeout(ctx, config.SyncTimeout())
	defer cancel()

	res, err := orchestrator.SyncAll(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("google: %d updated, calendars %v\n", res.Google.Updated, res.Google.Calendars)
	fmt.Printf("ics:    %d updated, calendars %v\n", res.ICS.Updated, res.ICS.Calendars)
	return nil
}

func (a *app) printCalendar(cal *model.Calendar, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s\n", cal.ID, cal.Type, cal.SourceRef())
	return nil
}

func optional(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func initLogger() (*zap.SugaredLogger, error) {
	conf := zap.NewDevelopmentConfig()
	conf.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	conf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if config.Production() {
		conf = zap.NewProductionConfig()
	}

	logger, err := conf.Build()
	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}
