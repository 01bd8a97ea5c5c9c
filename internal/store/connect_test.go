// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thingful/thingful/pkg/errutil"
)

type fakePinger struct {
	failures int
	calls    int
}

func (p *fakePinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForPing(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		p := &fakePinger{failures: 2}
		require.NoError(t, waitForPing(ctx, p, 5, time.Millisecond))
		assert.Equal(t, 3, p.calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		p := &fakePinger{failures: 100}
		err := waitForPing(ctx, p, 3, time.Millisecond)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
		assert.Equal(t, 3, p.calls)
	})

	t.Run("zero attempts still tries once", func(t *testing.T) {
		p := &fakePinger{}
		require.NoError(t, waitForPing(ctx, p, 0, time.Millisecond))
		assert.Equal(t, 1, p.calls)
	})
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "://not a url", 1)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}
