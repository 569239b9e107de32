package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	auditstore "supplytrail/internal/audit/store"
	dErrors "supplytrail/pkg/domain-errors"
	"supplytrail/pkg/platform/sentinel"
)

const defaultTxTimeout = 5 * time.Second

type auditPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newAuditPostgresTx(db *sql.DB) *auditPostgresTx {
	return &auditPostgresTx{db: db}
}

func (t *auditPostgresTx) RunInTx(ctx context.Context, fn func(store auditstore.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(auditstore.NewPostgresTx(tx)); err != nil {
		return asRetryable(err)
	}
	if err := tx.Commit(); err != nil {
		return asRetryable(err)
	}
	return nil
}

// asRetryable surfaces transactions the database aborted for concurrency
// reasons as sentinel.ErrConflict, which services retry a bounded number of
// times. Everything else passes through untouched.
func asRetryable(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: sqlstate %s", sentinel.ErrConflict, pgErr.Code)
		}
	}
	return err
}
