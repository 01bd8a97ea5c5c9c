// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"net"

	"github.com/thingful/thingful/internal/auth/postgres"
	"github.com/thingful/thingful/internal/config"
	"github.com/thingful/thingful/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// DatabaseFactory opens the user database.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, url string, attempts int) (Database, error)

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)

	// TLSConfigLoader returns the API TLS config, or nil for plain HTTP.
	// Default: loadTLSConfig
	TLSConfigLoader func(cfg config.HTTPConfig) (*cryptotls.Config, error)
}

// MigrateDeps contains injectable dependencies for the migrate command.
type MigrateDeps struct {
	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)
}

// Database wraps the methods serve uses from *pgxpool.Pool.
type Database interface {
	postgres.Querier
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	PendingMigrations() ([]uint, error)
	Close() error
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.DatabaseFactory == nil {
		out.DatabaseFactory = func(ctx context.Context, url string, attempts int) (Database, error) {
			return store.Connect(ctx, url, attempts)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	if out.TLSConfigLoader == nil {
		out.TLSConfigLoader = loadTLSConfig
	}
	return &out
}

func (d *MigrateDeps) withDefaults() *MigrateDeps {
	out := MigrateDeps{}
	if d != nil {
		out = *d
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	return &out
}
