// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

// Package httpapi exposes registration and Basic-authenticated user lookup
// over HTTP.
//
// Routes:
//   - POST /api/users - register an account
//   - GET /api/users/me - the authenticated user
//   - GET /api/users/{id} - a user by ID (authenticated)
//   - GET /healthz - liveness
//
// Every error body has the shape {"error": "..."}. Internal errors carry oops
// codes; the user-facing text for each code lives in errors.go.
package httpapi
