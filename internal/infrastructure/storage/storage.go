// Package storage implements the key-value store the roster and attendance
// ledger persist through. Each backend stores whole JSON documents under a
// small set of string keys ("students", "attendance").
//
// Backends:
//   - MemoryStore: process-local map, used by tests and one-shot runs
//   - BadgerStore: embedded on-disk store, the default
//   - RedisStore: shared store over go-redis
//   - PostgresStore: a single key/value table over pgx
//
// Every backend returned by Open is wrapped in a RetryingStore.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/classbook/classbook/internal/domain/shared"
	"github.com/classbook/classbook/pkg/logger"
	"github.com/classbook/classbook/pkg/retry"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverBadger   = "badger"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Backoff policies accepted in Options.RetryBackoff.
const (
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("storage: unknown driver")

// ErrUnknownBackoff is returned by Open for an unsupported backoff policy.
var ErrUnknownBackoff = errors.New("storage: unknown retry backoff")

const (
	defaultRetryStep = time.Second

	// Exponential retries double the wait and spread it by 10%.
	exponentialMultiplier = 2.0
	exponentialJitter     = 0.1
)

// Backend is a Store that holds resources until closed.
type Backend interface {
	shared.Store
	io.Closer
}

// Options selects and configures a backend.
type Options struct {
	Driver string

	BadgerDir string

	Redis     RedisConfig
	KeyPrefix string

	Postgres PostgresConfig

	// Writes are tried RetryAttempts times. The first wait is RetryDelay;
	// later waits grow linearly (the default) or exponentially up to
	// RetryMaxDelay.
	RetryAttempts int
	RetryDelay    time.Duration
	RetryBackoff  string
	RetryMaxDelay time.Duration

	Logger *logger.Logger
}

// Open builds the backend named by opts.Driver and wraps it with write retries.
func Open(ctx context.Context, opts Options) (Backend, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("storage"), logger.Driver(opts.Driver))

	retrier, err := newRetrier(opts)
	if err != nil {
		return nil, err
	}

	var backend Backend
	switch opts.Driver {
	case DriverMemory, "":
		backend = NewMemoryStore()
	case DriverBadger:
		backend, err = OpenBadger(BadgerConfig{Dir: opts.BadgerDir, Logger: log})
	case DriverRedis:
		backend, err = NewRedisStore(ctx, opts.Redis, opts.KeyPrefix)
	case DriverPostgres:
		backend, err = NewPostgresStore(ctx, opts.Postgres)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	log.Debug("store opened")
	return NewRetryingStore(backend, retrier, log), nil
}

func newRetrier(opts Options) (*retry.Retrier, error) {
	switch opts.RetryBackoff {
	case BackoffLinear, "":
		return retry.New(opts.RetryAttempts, retry.Linear(opts.RetryDelay)), nil
	case BackoffExponential:
		return retry.New(opts.RetryAttempts, retry.Exponential(
			opts.RetryDelay, opts.RetryMaxDelay, exponentialMultiplier, exponentialJitter)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackoff, opts.RetryBackoff)
	}
}
