package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-retry"
)

var client *sqlx.DB

// NewPostgresClient connects with fibonacci backoff: at boot the database
// container may still be coming up.
func NewPostgresClient(ctx context.Context, dsn string) error {
	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		client, err = sqlx.ConnectContext(ctx, "postgres", dsn)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func Client() *sqlx.DB {
	return client
}
