package main

import (
	"log/slog"
	"net"
	"sync"

	"github.com/oliverjantar/tcpchat/model"
)

// How many broadcast envelopes may queue up before producers block.
const broadcastBacklog = 1024

// envelope pairs a message with the address of the session that produced it,
// so the broadcaster can skip the sender during fan-out.
type envelope struct {
	sender string
	msg    *model.Message
}

// Hub owns the session registry and fans incoming messages out to every
// other connected peer. The registry maps a peer address to the connection
// the broadcaster writes frames to; sessions insert themselves after
// authenticating and remove themselves on exit, the broadcaster removes
// peers whose writes fail. All mutation happens under one mutex, and the
// mutex is held for the whole of a fan-out so membership stays consistent
// while it is iterated.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]net.Conn
	inbox    chan envelope
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]net.Conn),
		inbox:    make(chan envelope, broadcastBacklog),
	}
}

// Run consumes the broadcast channel forever. It is the only consumer and
// processes one envelope at a time, which preserves per-sender ordering.
func (h *Hub) Run() {
	for env := range h.inbox {
		h.dispatch(env)
	}
}

// Broadcast enqueues a message for fan-out to every peer except the one at
// sender's address.
func (h *Hub) Broadcast(sender string, msg *model.Message) {
	h.inbox <- envelope{sender: sender, msg: msg}
}

// Count returns the current number of registered sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Register inserts a session's write half into the registry.
func (h *Hub) Register(addr string, conn net.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[addr] = conn
}

// Unregister removes a session from the registry. Safe to call after the
// broadcaster already dropped the peer.
func (h *Hub) Unregister(addr string) {
	slog.Debug("removing session from registry", "peer", addr)
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, addr)
}

func (h *Hub) dispatch(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	messagesCounter.Inc()

	var stale []string
	for addr, conn := range h.sessions {
		if addr == env.sender {
			continue
		}
		slog.Debug("sending message to peer", "peer", addr)
		if err := model.WriteFrame(conn, env.msg); err != nil {
			slog.Error("broadcasting to peer failed", "peer", addr, "error", err)
			stale = append(stale, addr)
		}
	}

	for _, addr := range stale {
		delete(h.sessions, addr)
	}
}
