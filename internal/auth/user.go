// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User represents a registered account.
type User struct {
	ID           ulid.ULID
	Username     string
	FullName     string
	Nickname     *string
	PasswordHash string
	CreatedAt    time.Time
	ModifiedAt   *time.Time
}

// NewUser creates a User with a fresh ID. passwordHash must already be a
// digest produced by a PasswordHasher.
func NewUser(fullName, username string, nickname *string, passwordHash string) (*User, error) {
	if username == "" {
		return nil, oops.Code(CodeMissingField).With("field", "user_name").Errorf("username cannot be empty")
	}
	if fullName == "" {
		return nil, oops.Code(CodeMissingField).With("field", "full_name").Errorf("full name cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if nickname != nil && *nickname == "" {
		nickname = nil
	}
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		FullName:     fullName,
		Nickname:     nickname,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// UserDirectory provides lookup and insertion of users keyed by username.
// Implementations must enforce username uniqueness on Insert.
type UserDirectory interface {
	// FindByUsername returns the user with exactly this username.
	// Returns ErrNotFound if no user matches.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// ExistsByUsername reports whether a user with this username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// Insert stores a new user and fills in storage-assigned fields.
	// Returns ErrDuplicateUsername if the username is already stored.
	Insert(ctx context.Context, user *User) error

	// GetByID returns the user with the given ID.
	// Returns ErrNotFound if no user matches.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)
}

type userContextKey struct{}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext returns the authenticated user attached by WithUser.
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*User)
	return u, ok && u != nil
}
