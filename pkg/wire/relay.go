// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Relay is an http.Handler that joins WSLine clients into one virtual wire.
// A level sent by one client is forwarded to every other client. A client
// that joins late receives the current level of the wire.
type Relay struct {
	Username string // HTTP Basic auth, disabled when empty
	Password string
	Logger   zerolog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*relayClient]struct{}
	level   byte
}

type relayClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *relayClient) send(level byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	return c.conn.WriteMessage(websocket.BinaryMessage, []byte{level})
}

// NewRelay creates a relay without authentication
func NewRelay(logger zerolog.Logger) *Relay {
	return &Relay{
		Logger:  logger,
		clients: make(map[*relayClient]struct{}),
	}
}

// Clients returns the number of connected clients
func (r *Relay) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Relay) authorized(req *http.Request) bool {
	if r.Username == "" {
		return true
	}
	user, pass, ok := req.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(r.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(r.Password)) == 1
	return userOK && passOK
}

// ServeHTTP upgrades the request and relays levels until the client leaves
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !r.authorized(req) {
		w.Header().Set("WWW-Authenticate", `Basic realm="bitlink"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.Logger.Warn().Err(err).Str("remote", req.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	c := &relayClient{conn: conn}
	r.mu.Lock()
	r.clients[c] = struct{}{}
	level := r.level
	count := len(r.clients)
	r.mu.Unlock()
	r.Logger.Info().Str("remote", req.RemoteAddr).Int("clients", count).Msg("wire client joined")

	if err := c.send(level); err != nil {
		r.drop(c, err)
		return
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			r.drop(c, err)
			return
		}
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		r.broadcast(c, data[len(data)-1]&1)
	}
}

func (r *Relay) broadcast(from *relayClient, level byte) {
	r.mu.Lock()
	r.level = level
	peers := make([]*relayClient, 0, len(r.clients))
	for c := range r.clients {
		if c != from {
			peers = append(peers, c)
		}
	}
	r.mu.Unlock()

	for _, c := range peers {
		if err := c.send(level); err != nil {
			r.drop(c, err)
		}
	}
}

func (r *Relay) drop(c *relayClient, err error) {
	r.mu.Lock()
	_, present := r.clients[c]
	delete(r.clients, c)
	count := len(r.clients)
	r.mu.Unlock()
	c.conn.Close()
	if present {
		r.Logger.Info().Err(err).Int("clients", count).Msg("wire client left")
	}
}
