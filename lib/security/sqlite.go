package security

import (
	"context"
	"database/sql"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// SqliteTokenCache persists negotiated tokens so that token reuse survives
// process restarts and is shared between workers pointed at the same
// database.
type SqliteTokenCache struct {
	db *sql.DB
}

func NewSqliteTokenCache(db *sql.DB) SqliteTokenCache {
	return SqliteTokenCache{db: db}
}

func (c SqliteTokenCache) Get(ctx context.Context, key string) (CachedToken, error) {
	row := c.db.QueryRowContext(
		ctx,
		"SELECT token, created_at FROM oauth_token WHERE cache_key = ?",
		key,
	)

	var token string
	var createdAt int64
	err := row.Scan(&token, &createdAt)
	if err == sql.ErrNoRows {
		return CachedToken{}, ErrTokenNotFound
	}
	if err != nil {
		return CachedToken{}, err
	}
	return CachedToken{
		Token:     token,
		Timestamp: time.Unix(createdAt, 0),
	}, nil
}

func (c SqliteTokenCache) Set(ctx context.Context, key string, token CachedToken) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO oauth_token (cache_key, token, created_at) VALUES (?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET token = excluded.token, created_at = excluded.created_at`,
		key, token.Token, token.Timestamp.Unix(),
	)
	return err
}
