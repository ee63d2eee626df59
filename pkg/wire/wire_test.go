// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// ============================================================
// SimLine Tests
// ============================================================

func TestSimLine_SetGet(t *testing.T) {
	l := NewSimLine()

	v, err := l.Get()
	require.NoError(t, err)
	require.Equal(t, bitlink.Low, v, "idle line should be low")

	require.NoError(t, l.Set(bitlink.High))
	v, err = l.Get()
	require.NoError(t, err)
	require.Equal(t, bitlink.High, v)
}

func TestSimLine_Closed(t *testing.T) {
	l := NewSimLine()
	require.NoError(t, l.Close())

	require.True(t, errors.Is(l.Set(bitlink.High), ErrLineClosed))
	_, err := l.Get()
	require.True(t, errors.Is(err, ErrLineClosed))
}

func TestSimLine_Noise(t *testing.T) {
	l := NewSimLine()
	l.SetNoise(1.0, 1)
	require.NoError(t, l.Set(bitlink.High))

	v, err := l.Get()
	require.NoError(t, err)
	require.Equal(t, bitlink.Low, v, "noise probability 1 flips every sample")

	l.SetNoise(0.5, 42)
	flips := 0
	for i := 0; i < 1000; i++ {
		v, _ := l.Get()
		if v == bitlink.Low {
			flips++
		}
	}
	require.InDelta(t, 500, flips, 100)
}

// ============================================================
// Relay / WSLine Tests
// ============================================================

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitLevel(t *testing.T, l Input, want bitlink.Bit) {
	t.Helper()
	require.Eventually(t, func() bool {
		v, err := l.Get()
		return err == nil && v == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRelay_ForwardsLevels(t *testing.T) {
	relay := NewRelay(zerolog.Nop())
	srv := httptest.NewServer(relay)
	defer srv.Close()

	ctx := context.Background()
	a, err := DialWSLine(ctx, wsURL(srv), "", "", false)
	require.NoError(t, err)
	defer a.Close()
	b, err := DialWSLine(ctx, wsURL(srv), "", "", false)
	require.NoError(t, err)
	defer b.Close()

	require.Eventually(t, func() bool { return relay.Clients() == 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, a.Set(bitlink.High))
	waitLevel(t, b, bitlink.High)

	v, err := a.Get()
	require.NoError(t, err)
	require.Equal(t, bitlink.Low, v, "sender should not hear its own level")

	require.NoError(t, a.Set(bitlink.Low))
	waitLevel(t, b, bitlink.Low)
}

func TestRelay_LateJoinerSeesLevel(t *testing.T) {
	relay := NewRelay(zerolog.Nop())
	srv := httptest.NewServer(relay)
	defer srv.Close()

	ctx := context.Background()
	a, err := DialWSLine(ctx, wsURL(srv), "", "", false)
	require.NoError(t, err)
	defer a.Close()
	require.Eventually(t, func() bool { return relay.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, a.Set(bitlink.High))

	// Wait for the relay to record the level before the second client joins
	require.Eventually(t, func() bool {
		relay.mu.Lock()
		defer relay.mu.Unlock()
		return relay.level == 1
	}, 2*time.Second, 5*time.Millisecond)

	c, err := DialWSLine(ctx, wsURL(srv), "", "", false)
	require.NoError(t, err)
	defer c.Close()
	waitLevel(t, c, bitlink.High)
}

func TestRelay_BasicAuth(t *testing.T) {
	relay := NewRelay(zerolog.Nop())
	relay.Username = "board"
	relay.Password = "secret"
	srv := httptest.NewServer(relay)
	defer srv.Close()

	ctx := context.Background()
	_, err := DialWSLine(ctx, wsURL(srv), "", "", false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "HTTP 401")

	l, err := DialWSLine(ctx, wsURL(srv), "board", "secret", false)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = l.Get()
	require.True(t, errors.Is(err, ErrLineClosed))
}

func TestDialWSLine_BadScheme(t *testing.T) {
	_, err := DialWSLine(context.Background(), "http://localhost:1", "", "", false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported URL scheme")
}
