package main

import (
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/oliverjantar/tcpchat/model"
)

// pipePeer registers a fake session under addr and returns the peer end the
// test reads broadcast frames from.
func pipePeer(t *testing.T, h *Hub, addr string) net.Conn {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	h.Register(addr, server)
	return client
}

func readFrameAsync(conn net.Conn) <-chan *model.Message {
	out := make(chan *model.Message, 1)
	go func() {
		msg, err := model.ReadFrame(conn)
		if err != nil {
			close(out)
			return
		}
		out <- msg
	}()
	return out
}

func TestFanOutSkipsSender(t *testing.T) {
	h := NewHub()
	sender := pipePeer(t, h, "a")
	peerB := pipePeer(t, h, "b")
	peerC := pipePeer(t, h, "c")

	go h.Run()

	want := &model.Message{Sender: "alice", Timestamp: 1, Data: model.Text{Text: "hi"}}

	fromB := readFrameAsync(peerB)
	fromC := readFrameAsync(peerC)
	h.Broadcast("a", want)

	for name, ch := range map[string]<-chan *model.Message{"b": fromB, "c": fromC} {
		select {
		case got := <-ch:
			if got.Sender != "alice" {
				t.Errorf("peer %s: sender = %q, want alice", name, got.Sender)
			}
			if text, ok := got.Data.(model.Text); !ok || text.Text != "hi" {
				t.Errorf("peer %s: payload = %#v", name, got.Data)
			}
		case <-time.After(time.Second):
			t.Fatalf("peer %s did not receive the broadcast", name)
		}
	}

	// The sender must not receive its own message.
	sender.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, err := model.ReadFrame(sender); err == nil {
		t.Error("sender received its own broadcast")
	}
}

func TestPerSenderOrdering(t *testing.T) {
	h := NewHub()
	pipePeer(t, h, "a")
	peerB := pipePeer(t, h, "b")

	go h.Run()

	for i, text := range []string{"m1", "m2"} {
		h.Broadcast("a", &model.Message{Sender: "alice", Timestamp: int64(i), Data: model.Text{Text: text}})
	}

	// The peer drains late; both messages must still arrive in order.
	time.Sleep(200 * time.Millisecond)
	for _, want := range []string{"m1", "m2"} {
		peerB.SetReadDeadline(time.Now().Add(time.Second))
		msg, err := model.ReadFrame(peerB)
		if err != nil {
			t.Fatalf("reading %q: %v", want, err)
		}
		if text := msg.Data.(model.Text).Text; text != want {
			t.Fatalf("got %q, want %q", text, want)
		}
	}
}

func TestBroadcastDropsDeadPeer(t *testing.T) {
	h := NewHub()
	peerB := pipePeer(t, h, "b")

	dead, deadPeer := net.Pipe()
	dead.Close()
	deadPeer.Close()
	h.Register("dead", dead)

	if h.Count() != 2 {
		t.Fatalf("registry size = %d, want 2", h.Count())
	}

	fromB := readFrameAsync(peerB)
	h.dispatch(envelope{sender: "a", msg: model.NewServerMsg("ping")})

	select {
	case <-fromB:
	case <-time.After(time.Second):
		t.Fatal("live peer did not receive the broadcast")
	}

	if h.Count() != 1 {
		t.Errorf("registry size after failed write = %d, want 1", h.Count())
	}
}

func TestDispatchCountsMessages(t *testing.T) {
	h := NewHub()

	before := testutil.ToFloat64(messagesCounter)
	h.dispatch(envelope{sender: "a", msg: model.NewServerMsg("one")})
	h.dispatch(envelope{sender: "a", msg: model.NewServerMsg("two")})

	if got := testutil.ToFloat64(messagesCounter) - before; got != 2 {
		t.Errorf("messages_counter advanced by %v, want 2", got)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	h := NewHub()
	pipePeer(t, h, "a")

	h.Unregister("a")
	h.Unregister("a")
	if h.Count() != 0 {
		t.Errorf("registry size = %d, want 0", h.Count())
	}
}
