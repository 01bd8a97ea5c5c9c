// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("thingful/auth")

// basicScheme is the Authorization scheme prefix, compared case-insensitively.
const basicScheme = "basic "

// Authenticator verifies HTTP Basic credentials against a UserDirectory.
type Authenticator struct {
	users   UserDirectory
	hasher  PasswordHasher
	metrics *Metrics
	logger  *slog.Logger
	dummy   string
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithAuthenticatorLogger sets the logger used for infrastructure failures.
func WithAuthenticatorLogger(logger *slog.Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAuthenticatorMetrics records each decision on m.
func WithAuthenticatorMetrics(m *Metrics) AuthenticatorOption {
	return func(a *Authenticator) { a.metrics = m }
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(users UserDirectory, hasher PasswordHasher, opts ...AuthenticatorOption) (*Authenticator, error) {
	if users == nil {
		return nil, oops.Errorf("user directory is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	a := &Authenticator{
		users:  users,
		hasher: hasher,
		logger: slog.New(slog.DiscardHandler),
		dummy:  dummyDigestFor(hasher),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ParseBasicToken decodes the credential part of a Basic Authorization header
// into a username and password. The pair is split on the first colon, so
// passwords may contain colons. ok is false when the token does not decode,
// either half is empty, or the username is not valid UTF-8 or contains NUL.
func ParseBasicToken(token string) (username, password string, ok bool) {
	token = strings.TrimSpace(token)
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		// Tolerate clients that drop the padding.
		raw, err = base64.RawStdEncoding.DecodeString(token)
		if err != nil {
			return "", "", false
		}
	}
	username, password, found := strings.Cut(string(raw), ":")
	if !found || username == "" || password == "" {
		return "", "", false
	}
	if !ValidText(username) {
		return "", "", false
	}
	return username, password, true
}

// ValidText reports whether s can be stored as a text value: valid UTF-8 with
// no NUL bytes.
func ValidText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

// Authenticate resolves the user named by an Authorization header value.
//
// Denials carry AUTH_MISSING_TOKEN when the header is absent or uses another
// scheme, and AUTH_INVALID_CREDENTIALS for every other credential problem:
// a malformed token, an unknown user and a wrong password are deliberately
// indistinguishable. Storage failures carry AUTH_LOOKUP_FAILED.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*User, error) {
	ctx, span := tracer.Start(ctx, "auth.authenticate")
	defer span.End()

	user, result, err := a.authenticate(ctx, header)
	a.metrics.recordDecision(result)
	span.SetAttributes(attribute.String("auth.result", result))
	if err != nil && result == resultError {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credential lookup failed")
	}
	return user, err
}

func (a *Authenticator) authenticate(ctx context.Context, header string) (*User, string, error) {
	if len(header) < len(basicScheme) || !strings.EqualFold(header[:len(basicScheme)], basicScheme) {
		return nil, resultMissingToken, oops.Code(CodeMissingToken).Errorf("missing basic token")
	}

	username, password, ok := ParseBasicToken(header[len(basicScheme):])
	if !ok {
		return nil, resultDenied, invalidCredentials()
	}

	user, err := a.users.FindByUsername(ctx, username)
	digest := ""
	switch {
	case err == nil:
		digest = user.PasswordHash
	case errors.Is(err, ErrNotFound):
		// Verify against a throwaway digest so unknown usernames cost the same as wrong passwords.
		user = nil
		digest = a.dummy
	default:
		wrapped := oops.Code(CodeLookupFailed).
			With("operation", "find user by username").
			Wrap(err)
		a.logger.ErrorContext(ctx, "credential lookup failed", "error", wrapped)
		return nil, resultError, wrapped
	}

	match, err := a.hasher.Verify(ctx, password, digest)
	if err != nil {
		return nil, resultError, oops.Code(CodeLookupFailed).
			With("operation", "verify password").
			Wrap(err)
	}
	if user == nil || !match {
		return nil, resultDenied, invalidCredentials()
	}
	return user, resultAllowed, nil
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid username or password")
}
