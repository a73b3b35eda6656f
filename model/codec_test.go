package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"reflect"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{"text", &Message{Sender: "alice", Timestamp: 1700000000, Data: Text{Text: "hello there"}}},
		{"text without sender", &Message{Timestamp: 42, Data: Text{Text: "hi"}}},
		{"image", &Message{Sender: "bob", Timestamp: 1, Data: Image{Data: []byte{0x89, 'P', 'N', 'G'}}}},
		{"file", &Message{Sender: "bob", Timestamp: 2, Data: File{Name: "notes.txt", Data: []byte("contents")}}},
		{"server info", &Message{Timestamp: 3, Data: ServerInfo{Text: "Active users: 2"}}},
		{"login", &Message{Timestamp: 4, Data: Login{Name: "alice", Password: "pw1"}}},
		{"login ok", NewLoginSuccess()},
		{"registered", NewRegisterSuccess()},
		{"login error", NewLoginError()},
		{"negative timestamp", &Message{Timestamp: -1, Data: Text{Text: "before the epoch"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(got, tt.msg) {
				t.Errorf("round trip mismatch:\ngot  %#v\nwant %#v", got, tt.msg)
			}
		})
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatal("expected an error decoding an empty body")
	}
}

func TestDecodeMalformed(t *testing.T) {
	valid, err := Encode(NewServerMsg("hi"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", valid[:len(valid)-1]},
		{"trailing bytes", append(append([]byte{}, valid...), 0x00)},
		{"bad sender flag", append([]byte{7}, valid[1:]...)},
		{"unknown tag", func() []byte {
			b := append([]byte{}, valid...)
			// Payload tag sits after the presence byte and the timestamp.
			binary.BigEndian.PutUint32(b[9:13], 99)
			return b
		}()},
		{"oversized string length", func() []byte {
			b := append([]byte{}, valid...)
			binary.BigEndian.PutUint32(b[13:17], 1<<30)
			return b
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); err == nil {
				t.Error("expected a decode error")
			}
		})
	}
}

func TestDecodeUnknownAuthTags(t *testing.T) {
	success, err := Encode(NewLoginSuccess())
	if err != nil {
		t.Fatal(err)
	}
	failure, err := Encode(NewLoginError())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		data   []byte
		offset int
	}{
		// Presence byte, timestamp, payload tag, OK byte, then the
		// presence byte of the populated branch before its u32 tag.
		{"unknown auth message", success, 15},
		{"unknown auth error", failure, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte{}, tt.data...)
			binary.BigEndian.PutUint32(b[tt.offset:tt.offset+4], 7)
			if _, err := Decode(b); err == nil {
				t.Error("expected a decode error for an out-of-range tag")
			}
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := &Message{Sender: "alice", Timestamp: 99, Data: Text{Text: "framed"}}

	if err := WriteFrame(&buf, want); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if got := binary.BigEndian.Uint32(buf.Bytes()[:4]); int(got) != buf.Len()-4 {
		t.Errorf("frame length prefix = %d, body is %d bytes", got, buf.Len()-4)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("frame round trip: got %#v, want %#v", got, want)
	}
}

func TestReadFrameClosed(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	if !errors.Is(err, ErrConnClosed) {
		t.Fatalf("EOF at frame boundary: got %v, want ErrConnClosed", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	// A partial length prefix is a protocol error, not a clean close.
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0}))
	if err == nil || errors.Is(err, ErrConnClosed) {
		t.Fatalf("partial length prefix: got %v", err)
	}

	// Declared length larger than the remaining stream.
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(100))
	buf.WriteString("short")
	_, err = ReadFrame(&buf)
	if err == nil || errors.Is(err, ErrConnClosed) {
		t.Fatalf("EOF mid-frame: got %v", err)
	}
}

func TestReadFrameZeroLength(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(0))
	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("a zero-length frame must not decode to a message")
	}
}

func TestHandshake(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		msg, err := ReadFrame(server)
		if err != nil {
			done <- err
			return
		}
		login, ok := msg.Data.(Login)
		if !ok || login.Name != "alice" || login.Password != "pw1" {
			done <- errors.New("unexpected login frame")
			return
		}
		done <- WriteFrame(server, NewLoginSuccess())
	}()

	reply, err := Handshake(client, "alice", "pw1")
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server side: %v", err)
	}
	resp, ok := reply.Data.(LoginResponse)
	if !ok || !resp.OK || resp.Message != LoginSuccessful {
		t.Errorf("unexpected handshake reply: %#v", reply.Data)
	}
}
