// Package main - точка входа classbook: реестр учеников и журнал посещаемости
// небольшой школы. Одна команда обслуживает и CLI, и HTTP API (classbook serve).
//
// Порядок запуска каждой команды:
//  1. конфигурация из окружения и .env
//  2. логгер
//  3. хранилище (memory, badger, redis или postgres) с повтором записи
//  4. tracker.Service и загрузка сохранённого состояния
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/classbook/classbook/config"
	"github.com/classbook/classbook/internal/application/tracker"
	"github.com/classbook/classbook/internal/infrastructure/storage"
	"github.com/classbook/classbook/internal/infrastructure/validation"
	"github.com/classbook/classbook/pkg/logger"
	"github.com/classbook/classbook/pkg/timeutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, newApp(os.Stdout, os.Stderr), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// execute запускает одну команду и закрывает хранилище при любом исходе.
func execute(ctx context.Context, a *app, args []string) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION WIRING
// ══════════════════════════════════════════════════════════════════════════════

// app держит всё, что открывается перед командой и закрывается после неё.
type app struct {
	out    io.Writer
	errOut io.Writer

	// Флаги корневой команды, перекрывают конфигурацию.
	envFiles []string
	driver   string
	dataDir  string
	logLevel string

	// clock подменяется в тестах.
	clock timeutil.Clock

	cfg   *config.Config
	log   *logger.Logger
	store storage.Backend
	svc   *tracker.Service
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut}
}

// open загружает конфигурацию и поднимает хранилище и сервис.
func (a *app) open(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.driver != "" {
		cfg.Store.Driver = a.driver
	}
	if a.dataDir != "" {
		cfg.Store.BadgerDir = a.dataDir
	}
	if a.logLevel != "" {
		cfg.Observability.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	a.log = logger.New(logger.Options{
		Output: a.errOut,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	}).With(logger.String("app", cfg.App.Name), logger.String("env", string(cfg.App.Environment)))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	a.store, err = storage.Open(ctx, storage.Options{
		Driver:    cfg.Store.Driver,
		BadgerDir: cfg.Store.BadgerDir,
		Redis: storage.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		},
		KeyPrefix: cfg.Store.KeyPrefix,
		Postgres: storage.PostgresConfig{
			URL:             cfg.Database.URL,
			MaxConns:        int32(cfg.Database.MaxConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		},
		RetryAttempts: cfg.Store.RetryAttempts,
		RetryDelay:    cfg.Store.RetryDelay,
		RetryBackoff:  cfg.Store.RetryBackoff,
		RetryMaxDelay: cfg.Store.RetryMaxDelay,
		Logger:        a.log,
	})
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. СЕРВИС
	// ─────────────────────────────────────────────────────────────────────────
	a.svc = tracker.New(a.store, tracker.Options{
		Validator:   validation.New(),
		Clock:       a.clock,
		Location:    cfg.App.Location,
		MonthsShown: cfg.App.MonthsShown,
		Logger:      a.log,
	})

	// Повреждённые записи уже залогированы; сервис работает с тем, что прочитал.
	if err := a.svc.Load(ctx); err != nil {
		fmt.Fprintf(a.errOut, "warning: saved data could not be fully read: %v\n", err)
	}
	return nil
}

// close освобождает хранилище. Повторный вызов ничего не делает.
func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
