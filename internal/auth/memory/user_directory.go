// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

// Package memory provides an in-process auth.UserDirectory.
package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/thingful/thingful/internal/auth"
)

// UserDirectory stores users in process memory. Usernames are unique and
// compared exactly. Stored records are copied on the way in and out.
type UserDirectory struct {
	mu         sync.RWMutex
	byID       map[ulid.ULID]*auth.User
	byUsername map[string]ulid.ULID
}

// NewUserDirectory returns an empty UserDirectory.
func NewUserDirectory() *UserDirectory {
	return &UserDirectory{
		byID:       make(map[ulid.ULID]*auth.User),
		byUsername: make(map[string]ulid.ULID),
	}
}

func clone(u *auth.User) *auth.User {
	c := *u
	if u.Nickname != nil {
		n := *u.Nickname
		c.Nickname = &n
	}
	return &c
}

// FindByUsername returns the user with exactly this username.
func (d *UserDirectory) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byUsername[username]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("user_name", username).Wrap(auth.ErrNotFound)
	}
	return clone(d.byID[id]), nil
}

// ExistsByUsername reports whether username is taken.
func (d *UserDirectory) ExistsByUsername(_ context.Context, username string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byUsername[username]
	return ok, nil
}

// Insert stores user. The uniqueness check and the write happen under one lock.
func (d *UserDirectory) Insert(_ context.Context, user *auth.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byUsername[user.Username]; exists {
		return oops.Code("USER_INSERT_FAILED").With("user_name", user.Username).Wrap(auth.ErrDuplicateUsername)
	}
	d.byID[user.ID] = clone(user)
	d.byUsername[user.Username] = user.ID
	return nil
}

// GetByID returns the user with the given ID.
func (d *UserDirectory) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return clone(u), nil
}

var _ auth.UserDirectory = (*UserDirectory)(nil)
