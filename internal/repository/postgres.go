package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// RetryPolicy controls linear-backoff retries of reads on connection-class
// errors. The zero value disables retries.
type RetryPolicy struct {
	Count int
	Delay time.Duration
}

type PostgresRepository struct {
	db     *sql.DB
	logger zerolog.Logger
	retry  RetryPolicy
}

func NewPostgresRepository(db *sql.DB, logger zerolog.Logger, retry RetryPolicy) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger,
		retry:  retry,
	}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// read runs fn, retrying transient failures. Errors that are not transient
// (including sql.ErrNoRows) are returned on the first attempt.
func (r *PostgresRepository) read(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i <= r.retry.Count; i++ {
		if i > 0 {
			r.logger.Warn().Err(err).Str("op", op).Int("attempt", i).Msg("Retrying database read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.retry.Delay * time.Duration(i)):
			}
		}

		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57": // connection exception, insufficient resources, operator intervention
			return true
		}
	}
	return false
}
