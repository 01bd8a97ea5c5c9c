// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

// Package store manages the PostgreSQL connection pool and schema.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// connectBackoffBase is the first delay between connection attempts; it doubles each retry.
const connectBackoffBase = 250 * time.Millisecond

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pgx pool for databaseURL and waits until the database answers
// a ping, retrying up to attempts times with exponential backoff.
func Connect(ctx context.Context, databaseURL string, attempts int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := waitForPing(ctx, pool, attempts, connectBackoffBase); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForPing(ctx context.Context, p pinger, attempts int, base time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base)) //nolint:gosec // attempts >= 1

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", attempts).
			Wrap(err)
	}
	return nil
}
