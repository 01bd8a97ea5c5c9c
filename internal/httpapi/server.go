// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"

	"github.com/thingful/thingful/internal/auth"
	"github.com/thingful/thingful/internal/observability"
	"github.com/thingful/thingful/pkg/errutil"
)

var tracer = otel.Tracer("thingful/httpapi")

// maxBodyBytes bounds a registration request body.
const maxBodyBytes = 1 << 20

// Config holds the collaborators of a Server.
type Config struct {
	Authenticator *auth.Authenticator
	Registration  *auth.RegistrationService
	Users         auth.UserDirectory
	Realm         string
	Logger        *slog.Logger
	Metrics       *observability.HTTPMetrics
}

// Server is the API HTTP handler.
type Server struct {
	authn    *auth.Authenticator
	register *auth.RegistrationService
	users    auth.UserDirectory
	realm    string
	logger   *slog.Logger
	metrics  *observability.HTTPMetrics
	handler  http.Handler
}

// New creates a Server. Authenticator, Registration and Users are required.
func New(cfg Config) (*Server, error) {
	if cfg.Authenticator == nil {
		return nil, oops.Errorf("authenticator is required")
	}
	if cfg.Registration == nil {
		return nil, oops.Errorf("registration service is required")
	}
	if cfg.Users == nil {
		return nil, oops.Errorf("user directory is required")
	}
	if cfg.Realm == "" {
		cfg.Realm = "thingful"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		authn:    cfg.Authenticator,
		register: cfg.Registration,
		users:    cfg.Users,
		realm:    cfg.Realm,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	s.handler = s.instrument(s.routes())
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/users", s.handleRegister)
	mux.Handle("GET /api/users/me", s.RequireBasicAuth(http.HandlerFunc(s.handleMe)))
	mux.Handle("GET /api/users/{id}", s.RequireBasicAuth(http.HandlerFunc(s.handleGetUser)))
	return mux
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	FullName string  `json:"full_name"`
	UserName string  `json:"user_name"`
	Password string  `json:"password"`
	Nickname *string `json:"nickname"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close() //nolint:errcheck // request body close

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, oops.Code(auth.CodeInvalidBody).Wrap(err))
		return
	}

	user, err := s.register.Register(r.Context(), auth.Registration{
		FullName: req.FullName,
		Username: req.UserName,
		Password: req.Password,
		Nickname: req.Nickname,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/users/"+user.ID.String())
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.writeError(w, r, oops.Errorf("authenticated route reached without a user"))
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := ulid.Parse(r.PathValue("id"))
	if err != nil {
		writeMessage(w, http.StatusNotFound, msgUserNotFound)
		return
	}
	user, err := s.users.GetByID(r.Context(), id)
	if errors.Is(err, auth.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, msgUserNotFound)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// writeError answers with the status and message for err. Errors that are not
// the client's fault are logged and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message, clientErr := errorResponse(err)
	if !clientErr {
		if auth.IsCanceled(err) && r.Context().Err() != nil {
			s.logger.InfoContext(r.Context(), "request canceled by client", "path", r.URL.Path)
		} else {
			errutil.LogErrorContext(r.Context(), s.logger, "request failed", err)
		}
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="`+s.realm+`", charset="UTF-8"`)
	}
	writeMessage(w, status, message)
}
