// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Registration is an account-creation request. Empty strings count as missing.
type Registration struct {
	FullName string
	Username string
	Password string
	Nickname *string
}

// requiredFields lists the mandatory registration fields, in the order they
// are checked, under their request-body names.
func (r Registration) requiredFields() []struct{ name, value string } {
	return []struct{ name, value string }{
		{"full_name", r.FullName},
		{"user_name", r.Username},
		{"password", r.Password},
	}
}

// textFields lists the stored free-text fields under their request-body names.
func (r Registration) textFields() []struct{ name, value string } {
	fields := []struct{ name, value string }{
		{"full_name", r.FullName},
		{"user_name", r.Username},
	}
	if r.Nickname != nil {
		fields = append(fields, struct{ name, value string }{"nickname", *r.Nickname})
	}
	return fields
}

// RegistrationService creates user accounts.
type RegistrationService struct {
	users   UserDirectory
	hasher  PasswordHasher
	metrics *Metrics
	logger  *slog.Logger
}

// RegistrationOption configures a RegistrationService.
type RegistrationOption func(*RegistrationService)

// WithRegistrationLogger sets the logger for the service.
func WithRegistrationLogger(logger *slog.Logger) RegistrationOption {
	return func(s *RegistrationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistrationMetrics records each attempt on m.
func WithRegistrationMetrics(m *Metrics) RegistrationOption {
	return func(s *RegistrationService) { s.metrics = m }
}

// NewRegistrationService creates a RegistrationService.
func NewRegistrationService(users UserDirectory, hasher PasswordHasher, opts ...RegistrationOption) (*RegistrationService, error) {
	if users == nil {
		return nil, oops.Errorf("user directory is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	s := &RegistrationService{
		users:  users,
		hasher: hasher,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register validates req, hashes the password and stores a new user.
//
// Client errors carry AUTH_MISSING_FIELD or AUTH_INVALID_FIELD (with "field"),
// AUTH_INVALID_PASSWORD (with "violation") or AUTH_USERNAME_TAKEN. A unique-constraint rejection
// from the directory is reported as AUTH_USERNAME_TAKEN as well, which covers
// two registrations racing between the existence check and the insert.
func (s *RegistrationService) Register(ctx context.Context, req Registration) (*User, error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer span.End()

	user, result, err := s.register(ctx, req)
	s.metrics.recordRegistration(result)
	span.SetAttributes(attribute.String("registration.result", result))
	if result == registrationError {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration failed")
	}
	return user, err
}

func (s *RegistrationService) register(ctx context.Context, req Registration) (*User, string, error) {
	for _, f := range req.requiredFields() {
		if f.value == "" {
			return nil, registrationRejected, oops.Code(CodeMissingField).
				With("field", f.name).
				Errorf("missing %s", f.name)
		}
	}
	for _, f := range req.textFields() {
		if !ValidText(f.value) {
			return nil, registrationRejected, oops.Code(CodeInvalidField).
				With("field", f.name).
				Errorf("invalid characters in %s", f.name)
		}
	}

	if err := CheckPassword(req.Password); err != nil {
		return nil, registrationRejected, err
	}

	exists, err := s.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, registrationError, oops.Code(CodeRegisterFailed).
			With("operation", "check username").
			Wrap(err)
	}
	if exists {
		return nil, registrationTaken, usernameTaken(req.Username)
	}

	digest, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, registrationError, oops.Code(CodeRegisterFailed).
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(req.FullName, req.Username, req.Nickname, digest)
	if err != nil {
		return nil, registrationRejected, err
	}

	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			s.logger.InfoContext(ctx, "registration lost username race", "user_name", req.Username)
			return nil, registrationTaken, usernameTaken(req.Username)
		}
		return nil, registrationError, oops.Code(CodeRegisterFailed).
			With("operation", "insert user").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String(), "user_name", user.Username)
	return user, registrationCreated, nil
}

func usernameTaken(username string) error {
	return oops.Code(CodeUsernameTaken).
		With("user_name", username).
		Errorf("username already taken")
}
