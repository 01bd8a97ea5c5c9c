// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

// Package postgres provides a PostgreSQL-backed auth.UserDirectory.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/thingful/thingful/internal/auth"
)

// Querier is the subset of pgxpool.Pool used by UserRepository.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserDirectory on the thingful_users table.
type UserRepository struct {
	pool Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool Querier) *UserRepository {
	return &UserRepository{pool: pool}
}

const selectUserColumns = `
	SELECT id, user_name, full_name, nickname, password, date_created, date_modified
	FROM thingful_users`

// FindByUsername retrieves a user by exact username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, selectUserColumns+` WHERE user_name = $1`, username)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("user_name", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("user_name", username).Wrap(err)
	}
	return user, nil
}

// ExistsByUsername reports whether a user with this username exists.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM thingful_users WHERE user_name = $1)`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, oops.Code("USER_QUERY_FAILED").
			With("operation", "check username exists").
			With("user_name", username).
			Wrap(err)
	}
	return exists, nil
}

// Insert stores a new user and sets CreatedAt from the database clock.
// A unique violation on user_name is reported as auth.ErrDuplicateUsername.
func (r *UserRepository) Insert(ctx context.Context, user *auth.User) error {
	var created time.Time
	err := r.pool.QueryRow(ctx, `
		INSERT INTO thingful_users (id, user_name, full_name, nickname, password)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING date_created
	`,
		user.ID.String(),
		user.Username,
		user.FullName,
		user.Nickname,
		user.PasswordHash,
	).Scan(&created)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_INSERT_FAILED").
				With("user_name", user.Username).
				With("constraint", pgErr.ConstraintName).
				Wrap(auth.ErrDuplicateUsername)
		}
		return oops.Code("USER_INSERT_FAILED").
			With("operation", "insert user").
			With("user_name", user.Username).
			Wrap(err)
	}
	user.CreatedAt = created.UTC()
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, selectUserColumns+` WHERE id = $1`, id.String())
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("id", id.String()).Wrap(err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u        auth.User
		idStr    string
		created  time.Time
		modified *time.Time
	)
	if err := row.Scan(&idStr, &u.Username, &u.FullName, &u.Nickname, &u.PasswordHash, &created, &modified); err != nil {
		return nil, err
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	u.ID = id
	u.CreatedAt = created.UTC()
	if modified != nil {
		m := modified.UTC()
		u.ModifiedAt = &m
	}
	return &u, nil
}

var _ auth.UserDirectory = (*UserRepository)(nil)
