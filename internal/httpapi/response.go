// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package httpapi

import (
	"encoding/json"
	"html"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/thingful/thingful/internal/auth"
)

// sanitizer strips all markup from free-text fields before they are echoed back.
var sanitizer = bluemonday.StrictPolicy()

type errorBody struct {
	Error string `json:"error"`
}

// userResponse is the public view of a user. It has no password field.
type userResponse struct {
	ID          string  `json:"id"`
	FullName    string  `json:"full_name"`
	UserName    string  `json:"user_name"`
	Nickname    *string `json:"nickname"`
	DateCreated string  `json:"date_created"`
}

func newUserResponse(u *auth.User) userResponse {
	resp := userResponse{
		ID:          u.ID.String(),
		FullName:    stripMarkup(u.FullName),
		UserName:    stripMarkup(u.Username),
		DateCreated: u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if u.Nickname != nil {
		nick := stripMarkup(*u.Nickname)
		resp.Nickname = &nick
	}
	return resp
}

// stripMarkup removes tags and leaves the text unescaped; the JSON encoder
// handles escaping for the wire.
func stripMarkup(s string) string {
	return html.UnescapeString(sanitizer.Sanitize(s))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
