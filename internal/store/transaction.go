package store

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey int

const (
	transactionKey contextKey = iota
)

var txCounter atomic.Int64

type Tx struct {
	txId int64
	tx   *gorm.DB
}

// Commit commits the transaction carried by ctx. It is a no-op when ctx
// carries none.
func Commit(ctx context.Context) (context.Context, error) {
	tx, ok := ctx.Value(transactionKey).(*Tx)
	if !ok {
		return ctx, nil
	}

	newCtx := context.WithValue(ctx, transactionKey, nil)
	return newCtx, tx.Commit()
}

// Rollback rolls back the transaction carried by ctx. Calling it on a
// transaction already committed returns ErrNoTransaction and changes nothing,
// so it is safe to defer right after NewTransactionContext.
func Rollback(ctx context.Context) (context.Context, error) {
	tx, ok := ctx.Value(transactionKey).(*Tx)
	if !ok {
		return ctx, nil
	}

	newCtx := context.WithValue(ctx, transactionKey, nil)
	return newCtx, tx.Rollback()
}

func FromContext(ctx context.Context) *gorm.DB {
	if tx, found := ctx.Value(transactionKey).(*Tx); found {
		if dbTx, err := tx.Db(); err == nil {
			return dbTx
		}
	}
	return nil
}

func newTransactionContext(ctx context.Context, db *gorm.DB) (context.Context, error) {
	//look into the context to see if we have another tx
	if FromContext(ctx) != nil {
		return ctx, nil
	}

	// create a new session
	conn := db.Session(&gorm.Session{
		Context: ctx,
	})

	tx, err := newTransaction(conn)
	if err != nil {
		return ctx, err
	}

	ctx = context.WithValue(ctx, transactionKey, tx)
	return ctx, nil
}

// newTransaction begins an exclusive write transaction. On sqlite the
// connection is opened with _txlock=immediate so BEGIN takes the write lock
// right away. On postgres the estimate table is locked in EXCLUSIVE mode,
// which still admits plain readers.
func newTransaction(db *gorm.DB) (*Tx, error) {
	// must call begin on 'db', which is Gorm.
	tx := db.Begin()
	if tx.Error != nil {
		return nil, NewErrStorage("begin transaction", tx.Error)
	}

	if tx.Dialector.Name() == "postgres" {
		if err := tx.Exec(fmt.Sprintf("LOCK TABLE %s IN EXCLUSIVE MODE", estimateTable)).Error; err != nil {
			_ = tx.Rollback()
			return nil, NewErrStorage("lock estimate table", err)
		}
	}

	t := &Tx{
		txId: txCounter.Add(1),
		tx:   tx,
	}
	zap.S().Named("store").Debugf("transaction %d started", t.txId)
	return t, nil
}

func (t *Tx) Db() (*gorm.DB, error) {
	if t.tx != nil {
		return t.tx, nil
	}
	return nil, ErrNoTransaction
}

func (t *Tx) Commit() error {
	if t.tx == nil {
		return ErrNoTransaction
	}

	if err := t.tx.Commit().Error; err != nil {
		zap.S().Named("store").Errorw("failed to commit transaction", "tx", t.txId, "error", err)
		// the driver has already given up on the transaction
		_ = t.tx.Rollback()
		t.tx = nil
		return NewErrStorage("commit", err)
	}
	zap.S().Named("store").Debugf("transaction %d commited", t.txId)
	t.tx = nil // in case we call commit twice
	return nil
}

func (t *Tx) Rollback() error {
	if t.tx == nil {
		return ErrNoTransaction
	}

	if err := t.tx.Rollback().Error; err != nil {
		zap.S().Named("store").Errorw("failed to rollback transaction", "tx", t.txId, "error", err)
		t.tx = nil
		return NewErrStorage("rollback", err)
	}
	t.tx = nil // in case we call commit twice

	zap.S().Named("store").Debugf("transaction %d rollback", t.txId)
	return nil
}
