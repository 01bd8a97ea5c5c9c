// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thingful/thingful/internal/auth"
	"github.com/thingful/thingful/pkg/errutil"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     auth.PasswordViolation
	}{
		{"empty", "", auth.PasswordTooShort},
		{"seven characters", "Aa1!aaa", auth.PasswordTooShort},
		{"exactly eight", "Aa1!aaaa", auth.PasswordOK},
		{"exactly seventy-two", "Aa1!" + strings.Repeat("a", 68), auth.PasswordOK},
		{"seventy-three", "Aa1!" + strings.Repeat("a", 69), auth.PasswordTooLong},
		{"too long wins over spaces", " " + strings.Repeat("a", 80) + " ", auth.PasswordTooLong},
		{"leading space", " Aa1!aaaa", auth.PasswordLeadingSpace},
		{"trailing space", "Aa1!aaaa ", auth.PasswordTrailingSpace},
		{"leading space wins over complexity", " aaaaaaaa", auth.PasswordLeadingSpace},
		{"interior space allowed", "Aa1! aaaa", auth.PasswordOK},
		{"no uppercase", "aa1!aaaa", auth.PasswordComplexity},
		{"no lowercase", "AA1!AAAA", auth.PasswordComplexity},
		{"no digit", "Aab!aaaa", auth.PasswordComplexity},
		{"no special", "Aa1aaaaa", auth.PasswordComplexity},
		{"special outside set", "Aa1*aaaa", auth.PasswordComplexity},
		{"several specials", "Aa1^&$%#@", auth.PasswordOK},
		{"multibyte short", "Ää1!ää", auth.PasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.ValidatePassword(tt.password))
		})
	}
}

func TestValidatePassword_ShortAlwaysTooShort(t *testing.T) {
	for n := 0; n < auth.PasswordMinLength; n++ {
		p := strings.Repeat("A", n)
		assert.Equal(t, auth.PasswordTooShort, auth.ValidatePassword(p), "length %d", n)
	}
}

func TestValidatePassword_LongAlwaysTooLong(t *testing.T) {
	for _, fill := range []string{"a", " ", "Aa1!", "é"} {
		p := strings.Repeat(fill, 80)
		assert.Equal(t, auth.PasswordTooLong, auth.ValidatePassword(p), "fill %q", fill)
	}
}

func TestPasswordViolation_String(t *testing.T) {
	assert.Equal(t, "none", auth.PasswordOK.String())
	assert.Equal(t, "too_short", auth.PasswordTooShort.String())
	assert.Equal(t, "complexity", auth.PasswordComplexity.String())
	assert.Equal(t, "unknown", auth.PasswordViolation(99).String())
}

func TestCheckPassword(t *testing.T) {
	t.Run("valid password returns nil", func(t *testing.T) {
		assert.NoError(t, auth.CheckPassword("Aa1!aaaa"))
	})

	t.Run("violation is carried on the error", func(t *testing.T) {
		err := auth.CheckPassword("Aa1!aaaa ")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidPassword)
		assert.Equal(t, auth.PasswordTrailingSpace, auth.Violation(err))
	})

	t.Run("violation of unrelated error is none", func(t *testing.T) {
		assert.Equal(t, auth.PasswordOK, auth.Violation(assert.AnError))
	})
}
