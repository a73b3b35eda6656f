package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/oliverjantar/tcpchat/model"
)

// session is the per-connection state machine: it authenticates the peer,
// joins the hub and relays every received frame to the broadcaster. During
// the relay phase the session only reads from the connection; writes go
// through the hub so they never race with the broadcaster.
type session struct {
	conn  net.Conn
	addr  string
	hub   *Hub
	store ChatStore
	log   *slog.Logger
}

func newSession(conn net.Conn, hub *Hub, store ChatStore) *session {
	addr := conn.RemoteAddr().String()
	return &session{
		conn:  conn,
		addr:  addr,
		hub:   hub,
		store: store,
		log:   slog.With("peer", addr),
	}
}

// run drives the session from handshake to disconnect.
func (s *session) run(ctx context.Context) error {
	s.log.Info("new connection, authenticating")

	user, err := s.authenticate(ctx)
	if err != nil {
		return err
	}
	s.log = s.log.With("user", user.Username)
	s.log.Info("user authenticated, listening for messages")

	// The welcome goes out before the session joins the registry, so the
	// count excludes the new peer and the write cannot race the broadcaster.
	count := s.hub.Count()
	welcome := model.NewServerMsg(fmt.Sprintf("Active users: %d", count))
	if err := model.WriteFrame(s.conn, welcome); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}

	s.hub.Register(s.addr, s.conn)
	s.hub.Broadcast(s.addr, model.NewServerMsg("New user connected: "+user.Username))

	for {
		msg, err := model.ReadFrame(s.conn)
		if err != nil {
			s.log.Debug("receive loop ended", "error", err)
			break
		}

		// A store outage must not stall the chat: log and broadcast anyway.
		if err := s.store.InsertMessage(ctx, msg, user.ID); err != nil {
			s.log.Error("persisting message failed", "error", err)
		}

		msg.SetSender(user.Username)
		s.hub.Broadcast(s.addr, msg)
	}

	s.hub.Unregister(s.addr)
	return nil
}

// authenticate reads frames until a Login payload arrives and the
// credentials check out. Unknown users are registered on the spot. Failed
// attempts get an error response and another try on the same connection;
// only a broken connection ends the loop.
func (s *session) authenticate(ctx context.Context) (*User, error) {
	for {
		msg, err := model.ReadFrame(s.conn)
		if err != nil {
			s.log.Debug("receiving frame during authentication failed", "error", err)
			return nil, model.ErrConnClosed
		}

		login, ok := msg.Data.(model.Login)
		if !ok {
			// Anything but a Login frame is consumed and ignored here.
			continue
		}
		s.log.Debug("received login request", "username", login.Name)

		user, registered, err := s.verifyOrCreateUser(ctx, login)
		if err != nil {
			s.log.Error("login attempt failed", "username", login.Name, "error", err)
			if err := model.WriteFrame(s.conn, model.NewLoginError()); err != nil {
				return nil, fmt.Errorf("send login response: %w", err)
			}
			continue
		}
		if user == nil {
			s.log.Debug("incorrect password", "username", login.Name)
			if err := model.WriteFrame(s.conn, model.NewLoginError()); err != nil {
				return nil, fmt.Errorf("send login response: %w", err)
			}
			continue
		}

		response := model.NewLoginSuccess()
		if registered {
			response = model.NewRegisterSuccess()
		}
		if err := model.WriteFrame(s.conn, response); err != nil {
			return nil, fmt.Errorf("send login response: %w", err)
		}
		return user, nil
	}
}

// verifyOrCreateUser resolves a login attempt against the store. It returns
// the user on success, with registered true when the account was created by
// this attempt. A wrong password yields a nil user without an error; errors
// mean the store misbehaved.
func (s *session) verifyOrCreateUser(ctx context.Context, login model.Login) (user *User, registered bool, err error) {
	user, err = s.store.GetUser(ctx, login.Name)
	if err != nil {
		return nil, false, fmt.Errorf("fetch user: %w", err)
	}

	if user != nil {
		if !verifyPassword(user.Password, user.Salt, login.Password) {
			return nil, false, nil
		}
		return user, false, nil
	}

	s.log.Debug("registering new user", "username", login.Name)
	user, err = newUser(login.Name, login.Password)
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}
	return user, true, nil
}
