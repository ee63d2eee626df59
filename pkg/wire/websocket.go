// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/gorilla/websocket"
)

// WSLine is a virtual wire carried over a WebSocket to a Relay.
// Each level change is sent as a one-byte binary message. Get returns the
// last level received from the other end.
type WSLine struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	sent    int32 // last level written, -1 before the first Set
	remote  atomic.Uint32
	closed  atomic.Bool
	done    chan struct{}
}

// DialWSLine connects to a relay with optional HTTP Basic auth
func DialWSLine(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (*WSLine, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	l := &WSLine{
		conn: conn,
		sent: -1,
		done: make(chan struct{}),
	}
	go l.readLoop()
	return l, nil
}

func (l *WSLine) readLoop() {
	defer close(l.done)
	for {
		messageType, data, err := l.conn.ReadMessage()
		if err != nil {
			l.closed.Store(true)
			return
		}
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		l.remote.Store(uint32(data[len(data)-1] & 1))
	}
}

// Set sends the level to the relay when it changes
func (l *WSLine) Set(level bitlink.Bit) error {
	if l.closed.Load() {
		return ErrLineClosed
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.sent == int32(level) {
		return nil
	}
	if err := l.conn.WriteMessage(websocket.BinaryMessage, []byte{byte(level)}); err != nil {
		l.closed.Store(true)
		return fmt.Errorf("send level: %w", err)
	}
	l.sent = int32(level)
	return nil
}

// Get returns the last level relayed from the peer
func (l *WSLine) Get() (bitlink.Bit, error) {
	if l.closed.Load() {
		return bitlink.Low, ErrLineClosed
	}
	return bitlink.Bit(l.remote.Load()), nil
}

// Close closes the WebSocket and waits for the reader to stop
func (l *WSLine) Close() error {
	l.closed.Store(true)
	l.writeMu.Lock()
	l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	l.writeMu.Unlock()
	err := l.conn.Close()
	<-l.done
	return err
}
