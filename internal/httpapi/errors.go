// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package httpapi

import (
	"fmt"
	"net/http"

	"github.com/thingful/thingful/internal/auth"
	"github.com/thingful/thingful/pkg/errutil"
)

// Response messages.
const (
	msgMissingToken    = "Missing basic token"
	msgUnauthorized    = "Unauthorized request"
	msgMissingField    = "Missing %s in request body"
	msgInvalidField    = "Invalid characters in %s"
	msgUsernameTaken   = "Username has already been taken"
	msgInvalidBody     = "Invalid request body"
	msgUserNotFound    = "User doesn't exist"
	msgInternalError   = "Internal server error"
	msgPasswordInvalid = "Password is invalid"
)

var passwordMessages = map[auth.PasswordViolation]string{
	auth.PasswordTooShort:      "Password must be longer than 8 characters",
	auth.PasswordTooLong:       "Password must not be longer than 72 characters",
	auth.PasswordLeadingSpace:  "Password must not start or end with a space",
	auth.PasswordTrailingSpace: "Password must not start or end with a space",
	auth.PasswordComplexity:    "Password must contain at least 1 uppercase, 1 lowercase, 1 number, and 1 special character",
}

// errorResponse maps a coded error to its HTTP status and message. ok is false
// for errors that are not the client's fault.
func errorResponse(err error) (status int, message string, ok bool) {
	switch errutil.Code(err) {
	case auth.CodeMissingToken:
		return http.StatusUnauthorized, msgMissingToken, true
	case auth.CodeInvalidCredentials:
		return http.StatusUnauthorized, msgUnauthorized, true
	case auth.CodeMissingField:
		return http.StatusBadRequest, fmt.Sprintf(msgMissingField, auth.MissingField(err)), true
	case auth.CodeInvalidField:
		return http.StatusBadRequest, fmt.Sprintf(msgInvalidField, auth.InvalidField(err)), true
	case auth.CodeInvalidPassword:
		if msg, found := passwordMessages[auth.Violation(err)]; found {
			return http.StatusBadRequest, msg, true
		}
		return http.StatusBadRequest, msgPasswordInvalid, true
	case auth.CodeUsernameTaken:
		return http.StatusBadRequest, msgUsernameTaken, true
	case auth.CodeInvalidBody:
		return http.StatusBadRequest, msgInvalidBody, true
	}
	return http.StatusInternalServerError, msgInternalError, false
}
