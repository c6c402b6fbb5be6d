package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// querier is the subset of *sql.DB and *sql.Conn used by store methods.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// txState is the open transaction carried in a context.
type txState struct {
	store      *Store
	conn       *sql.Conn
	savepoints int
}

func txFrom(ctx context.Context, s *Store) *txState {
	tx, ok := ctx.Value(txKey{}).(*txState)
	if !ok || tx.store != s {
		return nil
	}
	return tx
}

// q returns the connection to use for ctx: the open transaction if there
// is one, otherwise the pool.
func (s *Store) q(ctx context.Context) querier {
	if tx := txFrom(ctx, s); tx != nil {
		return tx.conn
	}
	return s.db
}

// InTx reports whether ctx carries an open transaction of this store.
func (s *Store) InTx(ctx context.Context) bool {
	return txFrom(ctx, s) != nil
}

// RunInTx executes fn within a database transaction.
//
// The transaction is carried in the context passed to fn. When ctx already
// carries a transaction of this store, fn joins it and commit or rollback
// is left to the outermost call.
//
// Transaction lifecycle:
//  1. Acquire dedicated connection from pool
//  2. BEGIN IMMEDIATE with retry on SQLITE_BUSY
//  3. Execute fn
//  4. On success: COMMIT
//  5. On error or panic: ROLLBACK (panics are re-raised)
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.InTx(ctx) {
		return fn(ctx)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for transaction: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn, 5, 10*time.Millisecond); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// Background context so the rollback completes even if ctx is canceled.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	txCtx := context.WithValue(ctx, txKey{}, &txState{store: s, conn: conn})
	if err := fn(txCtx); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// Savepoint runs fn inside a savepoint of the current transaction. If fn
// fails or panics, everything fn wrote is rolled back while the enclosing
// transaction stays usable. Without an open transaction, Savepoint behaves
// like RunInTx.
func (s *Store) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	tx := txFrom(ctx, s)
	if tx == nil {
		return s.RunInTx(ctx, fn)
	}

	tx.savepoints++
	name := fmt.Sprintf("sp_%d", tx.savepoints)
	if _, err := tx.conn.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}

	released := false
	defer func() {
		if released {
			return
		}
		bg := context.Background()
		_, _ = tx.conn.ExecContext(bg, "ROLLBACK TO "+name)
		_, _ = tx.conn.ExecContext(bg, "RELEASE "+name)
	}()

	if err := fn(ctx); err != nil {
		return err
	}

	if _, err := tx.conn.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}
	released = true
	return nil
}

// beginImmediateWithRetry starts an IMMEDIATE transaction, retrying with
// exponential backoff while the database is busy.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if _, err = conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
