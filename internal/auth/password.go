// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package auth

import (
	"strings"
	"unicode/utf8"
)

// Password length bounds. The upper bound is measured in bytes because bcrypt
// silently ignores anything past its 72-byte input limit.
const (
	PasswordMinLength = 8
	PasswordMaxLength = 72
)

// passwordSpecials is the set of punctuation that satisfies the special-character rule.
const passwordSpecials = "!@#$%^&"

// PasswordViolation names the first rule a candidate password fails.
type PasswordViolation int

// Password violations in evaluation order.
const (
	PasswordOK PasswordViolation = iota
	PasswordTooShort
	PasswordTooLong
	PasswordLeadingSpace
	PasswordTrailingSpace
	PasswordComplexity
)

var violationNames = map[PasswordViolation]string{
	PasswordOK:            "none",
	PasswordTooShort:      "too_short",
	PasswordTooLong:       "too_long",
	PasswordLeadingSpace:  "leading_space",
	PasswordTrailingSpace: "trailing_space",
	PasswordComplexity:    "complexity",
}

// String returns a stable machine-readable name for the violation.
func (v PasswordViolation) String() string {
	if name, ok := violationNames[v]; ok {
		return name
	}
	return "unknown"
}

// ValidatePassword checks password against the registration policy and returns
// the first violation found, or PasswordOK.
func ValidatePassword(password string) PasswordViolation {
	switch {
	case utf8.RuneCountInString(password) < PasswordMinLength:
		return PasswordTooShort
	case len(password) > PasswordMaxLength:
		return PasswordTooLong
	case strings.HasPrefix(password, " "):
		return PasswordLeadingSpace
	case strings.HasSuffix(password, " "):
		return PasswordTrailingSpace
	case !hasRequiredClasses(password):
		return PasswordComplexity
	}
	return PasswordOK
}

func hasRequiredClasses(password string) bool {
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return lower && upper && digit && special
}

// CheckPassword runs ValidatePassword and converts a violation into a coded error.
func CheckPassword(password string) error {
	v := ValidatePassword(password)
	if v == PasswordOK {
		return nil
	}
	return oopsInvalidPassword(v)
}
