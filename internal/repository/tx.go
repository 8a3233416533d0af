package repository

import (
	"context"
	"database/sql"
	"fmt"

	"recommerce/internal/domain"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repository methods resolve their querier from the context, so the same
// method works standalone or inside a transaction started by TxManager.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxManager runs a function inside a single database transaction. Every
// repository call made through the function's context joins that transaction;
// any returned error rolls the whole unit back.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type txManager struct {
	db *sql.DB
}

// NewTxManager creates a TxManager over the given database handle
func NewTxManager(db *sql.DB) TxManager {
	return &txManager{db: db}
}

// RunInTx opens a read-committed transaction, injects it into the context and
// commits iff fn returns nil. Read committed is sufficient because every
// contended status change is expressed as a compare-and-commit update rather
// than a blind overwrite.
func (tm *txManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := tm.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v: %w", err, domain.ErrUnavailable)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ctx = context.WithValue(ctx, txKey{}, tx)

	if err = fn(ctx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// querier returns the transaction carried by ctx, or the plain handle when no
// transaction is open.
func querier(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}
