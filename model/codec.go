package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrConnClosed reports a clean end of stream at a frame boundary. EOF in the
// middle of a frame is a protocol error instead.
var ErrConnClosed = errors.New("connection closed")

// Frame layout: a big-endian uint32 length followed by exactly that many
// bytes of encoded Message. The body encodes, in order: sender (presence byte
// plus length-prefixed string), timestamp (big-endian int64) and the payload
// (big-endian uint32 tag plus its fields). Strings and byte blobs are
// length-prefixed with a big-endian uint32; bools are a single 0/1 byte.
// Clients and the server must use this encoding bit for bit.

// Encode serializes a message into its canonical binary form.
func Encode(m *Message) ([]byte, error) {
	if m.Data == nil {
		return nil, errors.New("encode: message has no payload")
	}

	buf := new(bytes.Buffer)
	writeBool(buf, m.Sender != "")
	if m.Sender != "" {
		writeString(buf, m.Sender)
	}
	binary.Write(buf, binary.BigEndian, m.Timestamp)
	binary.Write(buf, binary.BigEndian, uint32(m.Data.Kind()))

	switch data := m.Data.(type) {
	case Text:
		writeString(buf, data.Text)
	case Image:
		writeBytes(buf, data.Data)
	case File:
		writeString(buf, data.Name)
		writeBytes(buf, data.Data)
	case ServerInfo:
		writeString(buf, data.Text)
	case Login:
		writeString(buf, data.Name)
		writeString(buf, data.Password)
	case LoginResponse:
		writeBool(buf, data.OK)
		writeBool(buf, data.OK)
		if data.OK {
			binary.Write(buf, binary.BigEndian, uint32(data.Message))
		}
		writeBool(buf, !data.OK)
		if !data.OK {
			binary.Write(buf, binary.BigEndian, uint32(data.Err))
		}
	default:
		return nil, fmt.Errorf("encode: unknown payload %T", m.Data)
	}

	return buf.Bytes(), nil
}

// Decode parses a canonical binary body back into a message. It fails on
// truncated input, unknown payload tags and trailing garbage.
func Decode(data []byte) (*Message, error) {
	r := bytes.NewReader(data)
	m := &Message{}

	hasSender, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if hasSender {
		if m.Sender, err = readString(r); err != nil {
			return nil, err
		}
	}
	if err := binary.Read(r, binary.BigEndian, &m.Timestamp); err != nil {
		return nil, fmt.Errorf("decode: timestamp: %w", err)
	}

	var tag uint32
	if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
		return nil, fmt.Errorf("decode: payload tag: %w", err)
	}

	switch PayloadKind(tag) {
	case KindText:
		text, err := readString(r)
		if err != nil {
			return nil, err
		}
		m.Data = Text{Text: text}
	case KindImage:
		blob, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		m.Data = Image{Data: blob}
	case KindFile:
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		blob, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		m.Data = File{Name: name, Data: blob}
	case KindServerInfo:
		text, err := readString(r)
		if err != nil {
			return nil, err
		}
		m.Data = ServerInfo{Text: text}
	case KindLogin:
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		password, err := readString(r)
		if err != nil {
			return nil, err
		}
		m.Data = Login{Name: name, Password: password}
	case KindLoginResponse:
		resp, err := readLoginResponse(r)
		if err != nil {
			return nil, err
		}
		m.Data = resp
	default:
		return nil, fmt.Errorf("decode: unknown payload tag %d", tag)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("decode: %d trailing bytes", r.Len())
	}
	return m, nil
}

// WriteFrame encodes the message and writes it as one length-prefixed frame.
func WriteFrame(w io.Writer, m *Message) error {
	body, err := Encode(m)
	if err != nil {
		return err
	}

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(body)))
	if _, err := w.Write(length[:]); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame and decodes it. A clean EOF
// before the length prefix yields ErrConnClosed.
func ReadFrame(r io.Reader) (*Message, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		if err == io.EOF {
			return nil, ErrConnClosed
		}
		return nil, fmt.Errorf("read frame length: %w", err)
	}

	body := make([]byte, binary.BigEndian.Uint32(length[:]))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	return Decode(body)
}

// Handshake sends a Login frame over the connection and returns the server's
// decoded reply. Used by clients; the next attempt reuses the same stream.
func Handshake(rw io.ReadWriter, name, password string) (*Message, error) {
	msg := NewMessage(Login{Name: name, Password: password})
	if err := WriteFrame(rw, msg); err != nil {
		return nil, err
	}
	return ReadFrame(rw)
}

func readLoginResponse(r *bytes.Reader) (LoginResponse, error) {
	var resp LoginResponse
	var err error

	if resp.OK, err = readBool(r); err != nil {
		return resp, err
	}
	hasMessage, err := readBool(r)
	if err != nil {
		return resp, err
	}
	if hasMessage {
		var tag uint32
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return resp, fmt.Errorf("decode: auth message: %w", err)
		}
		if AuthMessage(tag) > UserRegistered {
			return resp, fmt.Errorf("decode: unknown auth message %d", tag)
		}
		resp.Message = AuthMessage(tag)
	}
	hasErr, err := readBool(r)
	if err != nil {
		return resp, err
	}
	if hasErr {
		var tag uint32
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return resp, fmt.Errorf("decode: auth error: %w", err)
		}
		if AuthError(tag) > IncorrectPassword {
			return resp, fmt.Errorf("decode: unknown auth error %d", tag)
		}
		resp.Err = AuthError(tag)
	}
	return resp, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(b)))
	buf.Write(b)
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("decode: length prefix: %w", err)
	}
	if int(length) > r.Len() {
		return nil, fmt.Errorf("decode: declared length %d exceeds remaining %d bytes", length, r.Len())
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return b, nil
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, fmt.Errorf("decode: bool: %w", err)
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("decode: invalid bool byte %d", b)
	}
}
