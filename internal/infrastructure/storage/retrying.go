package storage

import (
	"context"
	"io"

	"github.com/classbook/classbook/internal/domain/shared"
	"github.com/classbook/classbook/pkg/logger"
	"github.com/classbook/classbook/pkg/retry"
)

// RetryingStore retries failed writes on the wrapped store. Reads pass
// through unchanged.
type RetryingStore struct {
	next    shared.Store
	retrier *retry.Retrier
	log     *logger.Logger
}

// NewRetryingStore wraps next. A nil retrier makes 3 attempts with a
// linear 1s step.
func NewRetryingStore(next shared.Store, retrier *retry.Retrier, log *logger.Logger) *RetryingStore {
	if retrier == nil {
		retrier = retry.New(3, retry.Linear(defaultRetryStep))
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RetryingStore{next: next, retrier: retrier, log: log}
}

// Get reads from the wrapped store.
func (s *RetryingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.next.Get(ctx, key)
}

// Set writes value, retrying on failure.
func (s *RetryingStore) Set(ctx context.Context, key string, value []byte) error {
	return s.do(ctx, "set", key, func(ctx context.Context) error {
		return s.next.Set(ctx, key, value)
	})
}

// Remove deletes key, retrying on failure.
func (s *RetryingStore) Remove(ctx context.Context, key string) error {
	return s.do(ctx, "remove", key, func(ctx context.Context) error {
		return s.next.Remove(ctx, key)
	})
}

// Close closes the wrapped store when it holds resources.
func (s *RetryingStore) Close() error {
	if c, ok := s.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *RetryingStore) do(ctx context.Context, op, key string, fn func(context.Context) error) error {
	attempt := 0
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil {
			s.log.Warn("store write failed",
				logger.Operation(op),
				logger.StoreKey(key),
				logger.Int("attempt", attempt),
				logger.Int("max_attempts", s.retrier.MaxAttempts()),
				logger.Err(err),
			)
		}
		return err
	})
	if err != nil {
		s.log.Error("store write gave up", logger.Operation(op), logger.StoreKey(key), logger.Err(err))
	}
	return err
}
