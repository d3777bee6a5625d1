package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migrate применяет недостающие миграции, goose хранит примененные версии в своей таблице.
func Migrate(ctx context.Context, db PGX, logger *zap.SugaredLogger) error {
	sqlDB := stdlib.OpenDB(*db.GetPool(ctx).Config().ConnConfig)
	defer sqlDB.Close()

	goose.SetLogger(gooseLogger{logger})
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect(string(goose.DialectPostgres)); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

type gooseLogger struct {
	logger *zap.SugaredLogger
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatalf(format, v...)
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Infof(format, v...)
}
