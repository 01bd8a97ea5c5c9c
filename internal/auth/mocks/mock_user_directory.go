// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

// Package mocks provides testify mocks for auth interfaces.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/thingful/thingful/internal/auth"
)

// MockUserDirectory is a mock implementation of auth.UserDirectory.
type MockUserDirectory struct {
	mock.Mock
}

// NewMockUserDirectory creates a MockUserDirectory whose expectations are
// asserted when the test ends.
func NewMockUserDirectory(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockUserDirectory {
	m := &MockUserDirectory{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// FindByUsername provides a mock function.
func (m *MockUserDirectory) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*auth.User) //nolint:errcheck // type assertion
	return user, args.Error(1)
}

// ExistsByUsername provides a mock function.
func (m *MockUserDirectory) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

// Insert provides a mock function.
func (m *MockUserDirectory) Insert(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// GetByID provides a mock function.
func (m *MockUserDirectory) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User) //nolint:errcheck // type assertion
	return user, args.Error(1)
}

var _ auth.UserDirectory = (*MockUserDirectory)(nil)
