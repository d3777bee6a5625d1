package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/SergeyKozhin/omnical/internal/api"
	calendars_service "github.com/SergeyKozhin/omnical/internal/business/calendars"
	"github.com/SergeyKozhin/omnical/internal/business/expansion"
	"github.com/SergeyKozhin/omnical/internal/business/syncer"
	"github.com/SergeyKozhin/omnical/internal/config"
	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/database/calendars"
	"github.com/SergeyKozhin/omnical/internal/database/rawevents"
	"github.com/SergeyKozhin/omnical/internal/database/tokens"
	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/SergeyKozhin/omnical/internal/pkg/oauth"
	"github.com/SergeyKozhin/omnical/internal/pkg/ttlcache"
	"github.com/SergeyKozhin/omnical/internal/redis"
	"github.com/SergeyKozhin/omnical/internal/scheduler"
	"github.com/getsentry/sentry-go"
	"github.com/xlab/closer"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	minApiKeyLength = 8
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx := context.Background()

	if err := config.Load(); err != nil {
		log.Fatalf("unable to load config: %v", err)
	}

	logger, err := initLogger()
	if err != nil {
		log.Fatalf("unable to initializae logger: %v", err)
	}

	if len(config.ApiKey()) < minApiKeyLength {
		logger.Fatalw("API_KEY must be set and at least 8 characters long")
	}

	if err := initSentry(); err != nil {
		logger.Fatalw("unable to initialize sentry", "err", err)
	}

	db, err := database.NewPGX(ctx, config.PostgresURL())
	if err != nil {
		logger.Fatalw("unable to initializae db", "err", err)
	}
	if err := database.Migrate(ctx, db, logger); err != nil {
		logger.Fatalw("unable to apply migrations", "err", err)
	}

	calendarsRepository := calendars.NewRepository()
	rawEventsRepository := rawevents.NewRepository()
	tokensRepository := tokens.NewRepository()

	var googleTokens interface {
		GetValidAccessToken(ctx context.Context) (string, error)
	} = noCredential{}
	if config.EncryptionKey() != "" {
		box, err := oauth.NewBox(config.EncryptionKey())
		if err != nil {
			logger.Fatalw("invalid OAUTH_ENCRYPTION_KEY", "err", err)
		}
		googleTokens = oauth.NewVault(db, tokensRepository, box, oauth.Config{
			ClientID:     config.GoogleClientID(),
			ClientSecret: config.GoogleClientSecret(),
			RedirectURL:  config.GoogleRedirectURL(),
			Scopes:       config.GoogleScopes(),
		}, logger)
	} else {
		logger.Warnw("OAUTH_ENCRYPTION_KEY is not set, Google calendars will not be synced")
	}

	calendarsService := calendars_service.NewService(db, calendarsRepository, rawEventsRepository, logger)
	seedCalendars(ctx, calendarsService, logger)

	cache := ttlcache.New[[]model.Occurrence](config.CacheSize(), config.CacheTTL())
	expander := expansion.NewService(db, calendarsRepository, rawEventsRepository, cache, logger)

	googleSyncer := syncer.NewGoogleSyncer(db, calendarsRepository, rawEventsRepository, googleTokens,
		syncer.NewServiceFactory(config.HttpTimeout()), logger)
	icsSyncer := syncer.NewICSSyncer(db, calendarsRepository, rawEventsRepository,
		&http.Client{Timeout: config.HttpTimeout()}, logger)

	var opts []syncer.OrchestratorOption
	if config.RedisURL() != "" {
		pool := redis.NewRedisPool(config.RedisURL(), logger)
		opts = append(opts, syncer.WithLocker(redis.NewSyncLock(pool, config.SyncTimeout(), logger)))
		logger.Infow("Using redis sync lock")
	}
	orchestrator := syncer.NewOrchestrator(googleSyncer, icsSyncer, logger, opts...)

	sch, err := scheduler.New(config.SyncSchedule(), config.SyncTimeout(), orchestrator, logger)
	if err != nil {
		logger.Fatalw("unable to initialize scheduler", "err", err)
	}
	sch.Start()
	closer.Bind(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		sch.Stop(ctx)
	})

	handler := api.NewApi(logger, config.ApiKey(), config.CorsOrigins(), expander, orchestrator, calendarsService)

	errLogger, err := zap.NewStdLogAt(logger.Desugar(), zap.ErrorLevel)
	if err != nil {
		logger.Fatalw("error initiating server logger", "err", err)
	}

	server := &http.Server{
		Addr:              ":" + config.Port(),
		Handler:           handler,
		ErrorLog:          errLogger,
		ReadHeaderTimeout: 10 * time.Second,
	}
	closer.Bind(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Failed shutting down server", "err", err)
		}
	})

	go func() {
		logger.Infow("Started server", "port", config.Port())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("server error", "err", err)
			closer.Close()
		}
	}()

	closer.Hold()
}

type noCredential struct{}

func (noCredential) GetValidAccessToken(context.Context) (string, error) {
	return "", model.ErrNoCredential
}

func seedCalendars(ctx context.Context, s *calendars_service.Service, logger *zap.SugaredLogger) {
	var entries []calendars_service.SeedCalendar
	if path := config.CalendarsFile(); path != "" {
		var err error
		entries, err = calendars_service.LoadSeedFile(path)
		if err != nil {
			logger.Fatalw("unable to load calendars file", "err", err, "path", path)
		}
	}

	n, err := s.Seed(ctx, config.IcsURLs(), entries)
	if err != nil {
		logger.Fatalw("unable to seed calendars", "err", err)
	}
	if n > 0 {
		logger.Infow("Calendars seeded", "count", n)
	}
}

func initSentry() error {
	if config.SentryDSN() == "" {
		return nil
	}

	env := "development"
	if config.Production() {
		env = "production"
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         config.SentryDSN(),
		Environment: env,
	}); err != nil {
		return err
	}

	closer.Bind(func() {
		sentry.Flush(2 * time.Second)
	})

	return nil
}

func initLogger() (*zap.SugaredLogger, error) {
	var logger *zap.Logger
	var err error

	if config.Production() {
		logger, err = zap.NewProduction()
	} else {
		conf := zap.NewDevelopmentConfig()
		conf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err = conf.Build()
	}

	if err != nil {
		return nil, err
	}

	closer.Bind(func() {
		_ = logger.Sync()
	})

	return logger.Sugar(), nil
}
