// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package main

import (
	"bytes"
	"context"
	cryptotls "crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thingful/thingful/pkg/errutil"
)

type serveResult struct {
	addr string
	done chan error
}

// startServe runs the serve command with args until the test ends.
func startServe(t *testing.T, deps *ServeDeps, args ...string) (*serveResult, context.CancelFunc) {
	t.Helper()
	if deps == nil {
		deps = &ServeDeps{}
	}
	addrCh := make(chan string, 1)
	deps.ListenerFactory = func(network, address string) (net.Listener, error) {
		l, err := net.Listen(network, address)
		if err == nil {
			addrCh <- l.Addr().String()
		}
		return l, err
	}

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""
	ctx, cancel := context.WithCancel(context.Background())
	cmd := newServeCmd(deps)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)

	res := &serveResult{done: make(chan error, 1)}
	go func() { res.done <- cmd.ExecuteContext(ctx) }()

	select {
	case res.addr = <-addrCh:
	case err := <-res.done:
		cancel()
		t.Fatalf("serve exited before listening: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("serve did not start listening")
	}
	return res, cancel
}

func TestServe_MemoryStorageEndToEnd(t *testing.T) {
	res, cancel := startServe(t, nil,
		"--storage=memory",
		"--http-addr=127.0.0.1:0",
		"--metrics-addr=",
		"--bcrypt-cost=4",
		"--log-level=error",
	)
	defer cancel()

	base := "http://" + res.addr
	body := `{"full_name":"Alice","user_name":"alice","password":"Secret1!"}`
	resp, err := http.Post(base+"/api/users", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, base+"/api/users/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("alice:Secret1!")))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-res.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad log format", []string{"--storage=memory", "--log-format=xml"}},
		{"bcrypt cost too low", []string{"--storage=memory", "--bcrypt-cost=2"}},
		{"unknown storage", []string{"--storage=redis"}},
		{"postgres without url", []string{"--storage=postgres", "--database-url="}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv("XDG_CONFIG_HOME", t.TempDir())
			configFile = ""
			cmd := newServeCmd(nil)
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetErr(new(bytes.Buffer))
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		})
	}
}

func TestServe_DatabaseFailure(t *testing.T) {
	connectErr := errors.New("connection refused")
	var gotURL string
	var gotAttempts int
	deps := &ServeDeps{
		DatabaseFactory: func(_ context.Context, url string, attempts int) (Database, error) {
			gotURL, gotAttempts = url, attempts
			return nil, connectErr
		},
	}

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""
	cmd := newServeCmd(deps)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{
		"--storage=postgres",
		"--database-url=postgres://u:p@localhost:1/db",
		"--database-connect-attempts=2",
		"--log-level=error",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, connectErr)
	assert.Equal(t, "postgres://u:p@localhost:1/db", gotURL)
	assert.Equal(t, 2, gotAttempts)
}

func TestServe_ListenFailure(t *testing.T) {
	listenErr := errors.New("address in use")
	deps := &ServeDeps{
		ListenerFactory: func(string, string) (net.Listener, error) { return nil, listenErr },
	}

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""
	cmd := newServeCmd(deps)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--storage=memory", "--metrics-addr=", "--bcrypt-cost=4", "--log-level=error"})

	err := cmd.Execute()
	errutil.AssertErrorCode(t, err, "LISTEN_FAILED")
	assert.ErrorIs(t, err, listenErr)
}

func TestServe_SelfSignedTLS(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)

	res, cancel := startServe(t, nil,
		"--storage=memory",
		"--http-addr=127.0.0.1:0",
		"--metrics-addr=",
		"--bcrypt-cost=4",
		"--log-level=error",
		"--tls-self-signed",
	)
	defer cancel()

	certPEM, err := os.ReadFile(filepath.Join(dataHome, "thingful", "certs", "self-signed.crt"))
	require.NoError(t, err)
	roots := x509.NewCertPool()
	require.True(t, roots.AppendCertsFromPEM(certPEM))
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &cryptotls.Config{
		RootCAs:    roots,
		MinVersion: cryptotls.VersionTLS12,
	}}}
	defer client.CloseIdleConnections()

	resp, err := client.Get("https://" + res.addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-res.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestCertHosts(t *testing.T) {
	assert.Equal(t, []string{"localhost", "127.0.0.1", "::1"}, certHosts("127.0.0.1:8000"))
	assert.Equal(t, []string{"localhost", "127.0.0.1", "::1"}, certHosts(":8000"))
	assert.Equal(t, []string{"localhost", "127.0.0.1", "::1", "api.example.com"}, certHosts("api.example.com:443"))
}

func TestMonitorServerErrors(t *testing.T) {
	t.Run("error cancels", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error, 1)
		errCh <- errors.New("boom")

		monitorServerErrors(ctx, cancel, errCh, "test")
		assert.Error(t, ctx.Err())
	})

	t.Run("closed channel does not cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error)
		close(errCh)

		monitorServerErrors(ctx, cancel, errCh, "test")
		assert.NoError(t, ctx.Err())
	})
}
