package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/coder/quartz"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/csgen/Airi/internal/retry"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the store's tables when they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InitConfig bounds how long Open waits for the database to come up.
type InitConfig struct {
	Attempts int
	Interval time.Duration
	Clock    quartz.Clock
	Logger   *log.Logger
}

func (c InitConfig) withDefaults() InitConfig {
	if c.Attempts <= 0 {
		c.Attempts = 10
	}
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.Clock == nil {
		c.Clock = quartz.NewReal()
	}
	if c.Logger == nil {
		c.Logger = log.New(log.Writer(), "[store] ", log.LstdFlags|log.Lshortfile)
	}
	return c
}

// Open connects to url and initialises the schema, retrying while the
// database is unreachable. The returned pool is owned by the caller.
func Open(ctx context.Context, url string, cfg InitConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	err = retryInit(ctx, cfg, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		return EnsureSchema(ctx, pool)
	})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func retryInit(ctx context.Context, cfg InitConfig, fn func(context.Context) error) error {
	cfg = cfg.withDefaults()

	attempt := 0
	op := func() error {
		attempt++
		return fn(ctx)
	}
	notify := func(err error, _ time.Duration) {
		cfg.Logger.Printf("store not ready (attempt %d/%d): %v", attempt, cfg.Attempts, err)
	}

	err := retry.Do(cfg.Clock, retry.Constant(ctx, cfg.Interval, cfg.Attempts), op, notify, "store", "init")
	switch {
	case err == nil:
		if attempt > 1 {
			cfg.Logger.Printf("store ready after %d attempts", attempt)
		}
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return fmt.Errorf("store unavailable after %d attempts: %w", attempt, err)
}
