package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/jackc/pgx/v4"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// GetPayload returns the encrypted token set stored for provider.
func (*Repository) GetPayload(ctx context.Context, q database.Queryable, provider string) (string, error) {
	qb := database.PSQL.
		Select("payload_encrypted").
		From(database.OAuthTokensTable).
		Where(sq.Eq{"provider": provider})

	var payload string
	if err := q.Get(ctx, &payload, qb); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", model.ErrNoRecord
		}
		return "", fmt.Errorf("SQL request: %w", err)
	}

	return payload, nil
}

func (*Repository) SavePayload(ctx context.Context, q database.Queryable, provider, payload string) error {
	qb := database.PSQL.
		Insert(database.OAuthTokensTable).
		Columns("provider", "payload_encrypted", "updated_at").
		Values(provider, payload, time.Now().UTC()).
		Suffix("ON CONFLICT (provider) DO UPDATE SET payload_encrypted = excluded.payload_encrypted, updated_at = excluded.updated_at")

	if _, err := q.Exec(ctx, qb); err != nil {
		return fmt.Errorf("SQL request: %w", err)
	}

	return nil
}

func (*Repository) DeletePayload(ctx context.Context, q database.Queryable, provider string) error {
	qb := database.PSQL.
		Delete(database.OAuthTokensTable).
		Where(sq.Eq{"provider": provider})

	if _, err := q.Exec(ctx, qb); err != nil {
		return fmt.Errorf("SQL request: %w", err)
	}

	return nil
}
