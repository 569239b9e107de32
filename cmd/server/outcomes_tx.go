package main

import (
	"context"
	"database/sql"
	"time"

	auditstore "supplytrail/internal/audit/store"
	"supplytrail/internal/outcomes"
	dErrors "supplytrail/pkg/domain-errors"
)

// outcomesPostgresTx gives an outcome update and the audit events it emits
// one shared database transaction.
type outcomesPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newOutcomesPostgresTx(db *sql.DB) *outcomesPostgresTx {
	return &outcomesPostgresTx{db: db}
}

func (t *outcomesPostgresTx) RunInTx(ctx context.Context, fn func(outcomeStore outcomes.Store, auditStore auditstore.Store) error) error {
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

	if err := fn(outcomes.NewPostgresTx(tx), auditstore.NewPostgresTx(tx)); err != nil {
		return asRetryable(err)
	}
	if err := tx.Commit(); err != nil {
		return asRetryable(err)
	}
	return nil
}
