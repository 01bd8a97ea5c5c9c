// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package auth

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 12

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher turns plaintext passwords into stored digests and checks
// plaintexts against them.
type PasswordHasher interface {
	// Hash produces a salted digest of the password. Two calls with the same
	// password return different digests.
	Hash(ctx context.Context, password string) (string, error)

	// Verify reports whether password matches digest.
	// Returns (false, nil) on mismatch or for a malformed digest; an error
	// means the check did not run to completion.
	Verify(ctx context.Context, password, digest string) (bool, error)
}

// BcryptHasher implements PasswordHasher using bcrypt. At most maxConcurrent
// hash computations run at once; callers beyond that wait for a slot or for
// their context to end.
type BcryptHasher struct {
	cost    int
	sem     *semaphore.Weighted
	metrics *Metrics
	dummy   string
}

// BcryptOption configures a BcryptHasher.
type BcryptOption func(*BcryptHasher)

// WithHasherMetrics records hash durations on m.
func WithHasherMetrics(m *Metrics) BcryptOption {
	return func(h *BcryptHasher) { h.metrics = m }
}

// NewBcryptHasher creates a BcryptHasher. A cost outside bcrypt's accepted range
// is rejected. maxConcurrent <= 0 means GOMAXPROCS. The dummy digest is
// computed here, so construction takes one hash at cost.
func NewBcryptHasher(cost, maxConcurrent int, opts ...BcryptOption) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("AUTH_INVALID_COST").
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}
	h := &BcryptHasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(maxConcurrent)),
	}
	for _, opt := range opts {
		opt(h)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, oops.Code("AUTH_HASH_FAILED").With("operation", "dummy digest").Wrap(err)
	}
	h.dummy = string(dummy)
	return h, nil
}

// DummyDigest returns a digest at the hasher's cost that no real password is
// expected to match.
func (h *BcryptHasher) DummyDigest() string {
	return h.dummy
}

// Hash produces a bcrypt digest of the password.
func (h *BcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	var digest []byte
	err := h.run(ctx, "hash", func() error {
		var hashErr error
		digest, hashErr = bcrypt.GenerateFromPassword([]byte(password), h.cost)
		return hashErr
	})
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify checks if the password matches the digest.
func (h *BcryptHasher) Verify(ctx context.Context, password, digest string) (bool, error) {
	if digest == "" {
		return false, nil
	}

	var match bool
	err := h.run(ctx, "verify", func() error {
		// CompareHashAndPassword compares in constant time once the digest parses.
		cmpErr := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
		match = cmpErr == nil
		return nil
	})
	if err != nil {
		return false, err
	}
	return match, nil
}

// run executes fn on its own goroutine once a semaphore slot is free. If ctx
// ends first the caller returns immediately; fn finishes in the background and
// its result is discarded.
func (h *BcryptHasher) run(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("AUTH_HASH_CANCELED").With("operation", op).Wrap(err)
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return oops.Code("AUTH_HASH_CANCELED").With("operation", op).Wrap(err)
	}

	done := make(chan error, 1)
	go func() {
		defer h.sem.Release(1)
		start := time.Now()
		done <- fn()
		h.metrics.observeHash(op, time.Since(start))
	}()

	select {
	case err := <-done:
		if err != nil {
			return oops.Code("AUTH_HASH_FAILED").With("operation", op).Wrap(err)
		}
		return nil
	case <-ctx.Done():
		return oops.Code("AUTH_HASH_CANCELED").With("operation", op).Wrap(ctx.Err())
	}
}

// dummyPassword is the plaintext behind every dummy digest.
const dummyPassword = "thingful-timing-equalization"

// fallbackDummyDigest is a bcrypt digest of dummyPassword at bcrypt.DefaultCost,
// used for hashers that do not provide their own.
const fallbackDummyDigest = "$2b$10$ingHXmyJuixB4BCPQM3vquk.0IZIM4hoFAkuvexQRWgLjugbKI1fS"

// dummyDigester is implemented by hashers that can produce a digest at their
// own cost for verifying unknown users.
type dummyDigester interface {
	DummyDigest() string
}

// dummyDigestFor returns the digest verified when a username does not exist,
// so that lookups for unknown users take as long as a wrong password.
func dummyDigestFor(h PasswordHasher) string {
	if d, ok := h.(dummyDigester); ok {
		if digest := d.DummyDigest(); digest != "" {
			return digest
		}
	}
	return fallbackDummyDigest
}

// IsCanceled reports whether err came from the hasher giving up on a context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
