package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"duo-chat/errors"

	"github.com/dgraph-io/badger/v4"
)

// maxTxnAttempts bounds the optimistic retry loop. Every round lets at least
// one of the competing writers commit.
const maxTxnAttempts = 32

// txnRunner runs badger transactions under a caller context and maps storage
// failures to errors.ErrStoreUnavailable. Domain errors returned by fn pass through.
type txnRunner struct {
	db  *badger.DB
	log *slog.Logger
}

func (r txnRunner) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	return storeError(r.db.View(fn))
}

// update retries fn when badger reports a conflict with a concurrent writer.
func (r txnRunner) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 1; attempt <= maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return unavailable(err)
		}
		err := r.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return storeError(err)
		}
		r.log.Debug("Transaction conflict, retrying", "attempt", attempt)
		select {
		case <-ctx.Done():
			return unavailable(ctx.Err())
		case <-time.After(time.Duration(attempt) * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: too many transaction conflicts", errors.ErrStoreUnavailable)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
}

func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.ErrInvalidParticipant),
		errors.Is(err, errors.ErrUnknownUser),
		errors.Is(err, errors.ErrUserAlreadyExists),
		errors.Is(err, errors.ErrStoreUnavailable):
		return err
	default:
		return unavailable(err)
	}
}

// exists reports whether key is present in txn's snapshot.
func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}
