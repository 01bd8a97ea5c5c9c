// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

// Package auth verifies HTTP Basic credentials and registers new accounts.
//
// # Domain Types
//
// A User is created with NewUser from a digest produced by a PasswordHasher;
// plaintext passwords never reach a UserDirectory. ValidatePassword applies
// the registration password policy and reports the first rule that fails.
//
// # Services
//
//   - Authenticator - resolves an Authorization header to a User
//   - RegistrationService - validates and stores new accounts
//
// Both report failures as oops errors tagged with the Code* constants. The
// HTTP layer turns those codes into response messages.
package auth
