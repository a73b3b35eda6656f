package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/oliverjantar/tcpchat/model"
)

// ChatServer accepts TCP connections and runs one session per peer, all
// wired to a shared hub and store.
type ChatServer struct {
	addr  string
	hub   *Hub
	store ChatStore
}

func NewChatServer(addr string, store ChatStore) *ChatServer {
	return &ChatServer{
		addr:  addr,
		hub:   NewHub(),
		store: store,
	}
}

// Run binds the listener, starts the broadcaster and accepts connections
// until the listener fails for good. A failed bind is fatal and returned;
// transient accept errors are logged and skipped.
func (s *ChatServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind chat listener on %s: %w", s.addr, err)
	}
	return s.serve(ctx, listener)
}

// serve accepts sessions from an already bound listener.
func (s *ChatServer) serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	go s.hub.Run()

	slog.Info("chat server listening", "addr", s.addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			slog.Error("accepting connection failed", "error", err)
			continue
		}

		go func() {
			activeConnections.Inc()
			defer activeConnections.Dec()
			defer conn.Close()

			sess := newSession(conn, s.hub, s.store)
			if err := sess.run(ctx); err != nil && !errors.Is(err, model.ErrConnClosed) {
				sess.log.Error("session ended with error", "error", err)
			}
			sess.log.Debug("connection ended")
		}()
	}
}
