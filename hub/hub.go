// Copyright 2026 The Atlas Linq Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hub broadcasts share events to WebSocket subscribers. Late
// joiners immediately receive the last tag event so a UI attaching after
// a tap still shows it.
package hub

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atlas-linq/tapcard/internal/logging"
	"github.com/atlas-linq/tapcard/internal/syncutil"
	"github.com/atlas-linq/tapcard/session"
)

// Event message types.
const (
	EventTagWritten = "tagWritten"
	EventTagRead    = "tagRead"
	EventProximity  = "proximity"
	EventEmulation  = "emulation"
)

// Event is the wire envelope for hub broadcasts.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub manages WebSocket subscribers and fans events out to them.
type Hub struct {
	upgrader websocket.Upgrader

	mu      syncutil.RWMutex
	clients map[*websocket.Conn]bool

	lastMu  syncutil.RWMutex
	lastTag *Event

	log logging.Logger
}

// New returns an empty hub. A nil logger discards logs.
func New(log logging.Logger) *Hub {
	if log == nil {
		log = logging.Nop{}
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*websocket.Conn]bool),
		log:     log,
	}
}

// ServeHTTP upgrades the request and keeps the subscriber registered until
// it disconnects. The last tag event, if any, is replayed immediately.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	if err := h.register(conn); err != nil {
		conn.Close()
		return
	}
	defer func() {
		h.unregister(conn)
		conn.Close()
	}()

	// Drain incoming frames; subscribers are read-only.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// register adds the subscriber and replays the last tag event inside one
// critical section. All writes to a connection happen under h.mu, so the
// replay can never interleave with a concurrent broadcast on the same
// connection.
func (h *Hub) register(conn *websocket.Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	if last := h.LastTagEvent(); last != nil {
		if err := conn.WriteJSON(last); err != nil {
			delete(h.clients, conn)
			return err
		}
	}
	return nil
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LastTagEvent returns the most recent tag event, or nil.
func (h *Hub) LastTagEvent() *Event {
	h.lastMu.RLock()
	defer h.lastMu.RUnlock()
	return h.lastTag
}

// CloseAll disconnects every subscriber.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

// BroadcastResult publishes the outcome of a tag write or read. Tag
// events are retained for replay to late joiners.
func (h *Hub) BroadcastResult(ctx context.Context, typ string, res *session.Result) {
	ev := Event{
		Type: typ,
		Payload: map[string]any{
			"success":     res.Success,
			"kind":        res.Kind.String(),
			"message":     res.Message,
			"tagId":       res.TagID,
			"payloadType": string(res.PayloadType),
			"occurredAt":  time.Now().UTC().Format(time.RFC3339),
		},
	}
	h.lastMu.Lock()
	h.lastTag = &ev
	h.lastMu.Unlock()
	h.broadcast(ctx, ev)
}

// BroadcastProximity publishes a proximity edge from the discovery poller.
func (h *Hub) BroadcastProximity(ctx context.Context, present bool) {
	h.broadcast(ctx, Event{Type: EventProximity, Payload: map[string]any{"present": present}})
}

// BroadcastEmulation publishes an emulation state change.
func (h *Hub) BroadcastEmulation(ctx context.Context, active bool) {
	h.broadcast(ctx, Event{Type: EventEmulation, Payload: map[string]any{"active": active}})
}

// broadcast writes the event to every subscriber, dropping subscribers
// whose writes fail.
func (h *Hub) broadcast(ctx context.Context, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(ev); err != nil {
			h.log.Warn(ctx, "websocket write failed, dropping subscriber", "error", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
