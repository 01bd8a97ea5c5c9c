// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned by a UserDirectory when no user matches the lookup.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUsername is returned by UserDirectory.Insert when the username
// collides with an existing record at the storage layer.
var ErrDuplicateUsername = errors.New("duplicate username")

// Error codes attached to errors produced by this package.
const (
	CodeMissingToken       = "AUTH_MISSING_TOKEN"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeLookupFailed       = "AUTH_LOOKUP_FAILED"
	CodeMissingField       = "AUTH_MISSING_FIELD"
	CodeInvalidField       = "AUTH_INVALID_FIELD"
	CodeInvalidPassword    = "AUTH_INVALID_PASSWORD"
	CodeUsernameTaken      = "AUTH_USERNAME_TAKEN"
	CodeRegisterFailed     = "AUTH_REGISTER_FAILED"
	CodeInvalidBody        = "AUTH_INVALID_BODY"
)

func oopsInvalidPassword(v PasswordViolation) error {
	return oops.Code(CodeInvalidPassword).
		With("violation", v).
		Errorf("password rejected: %s", v)
}

// Violation extracts the PasswordViolation carried by an AUTH_INVALID_PASSWORD
// error. It returns PasswordOK when err carries none.
func Violation(err error) PasswordViolation {
	oopsErr, ok := oops.AsOops(err)
	if !ok || oopsErr.Code() != CodeInvalidPassword {
		return PasswordOK
	}
	if v, ok := oopsErr.Context()["violation"].(PasswordViolation); ok {
		return v
	}
	return PasswordOK
}

// MissingField returns the request field named by an AUTH_MISSING_FIELD error,
// or "" when err is not one.
func MissingField(err error) string {
	return fieldOf(err, CodeMissingField)
}

// InvalidField returns the request field named by an AUTH_INVALID_FIELD error,
// or "" when err is not one.
func InvalidField(err error) string {
	return fieldOf(err, CodeInvalidField)
}

func fieldOf(err error, code string) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok || oopsErr.Code() != code {
		return ""
	}
	field, _ := oopsErr.Context()["field"].(string) //nolint:errcheck // type assertion, not an error
	return field
}
