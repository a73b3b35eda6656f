package model

import "time"

// Message is the envelope exchanged between clients and the server.
// Sender is empty on freshly sent client frames; the server stamps it with
// the authenticated username before relaying.
type Message struct {
	Sender    string
	Timestamp int64 // Unix seconds
	Data      Payload
}

// NewMessage wraps a payload with the current timestamp and no sender.
func NewMessage(data Payload) *Message {
	return &Message{
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
}

// NewServerMsg builds a server-originated announcement. Sender stays empty.
func NewServerMsg(text string) *Message {
	return NewMessage(ServerInfo{Text: text})
}

// SetSender stamps the message with the authenticated username, overwriting
// whatever the client supplied.
func (m *Message) SetSender(name string) {
	m.Sender = name
}

// PayloadKind is the wire discriminant of a payload variant.
type PayloadKind uint32

const (
	KindText PayloadKind = iota
	KindImage
	KindFile
	KindServerInfo
	KindLogin
	KindLoginResponse
)

// Payload is the tagged union carried by a Message.
type Payload interface {
	Kind() PayloadKind
}

// Text is a plain UTF-8 chat message.
type Text struct {
	Text string
}

// Image carries raw PNG bytes.
type Image struct {
	Data []byte
}

// File carries the original filename and raw file bytes.
type File struct {
	Name string
	Data []byte
}

// ServerInfo is a server-originated announcement.
type ServerInfo struct {
	Text string
}

// Login is the client credentials frame. Client to server only.
type Login struct {
	Name     string
	Password string
}

// LoginResponse is the server's reply to a Login frame. When OK is true,
// Message says whether the user logged in or was just registered; when OK is
// false, Err carries the failure reason.
type LoginResponse struct {
	OK      bool
	Message AuthMessage
	Err     AuthError
}

func (Text) Kind() PayloadKind          { return KindText }
func (Image) Kind() PayloadKind         { return KindImage }
func (File) Kind() PayloadKind          { return KindFile }
func (ServerInfo) Kind() PayloadKind    { return KindServerInfo }
func (Login) Kind() PayloadKind         { return KindLogin }
func (LoginResponse) Kind() PayloadKind { return KindLoginResponse }

// AuthMessage is the success detail of a LoginResponse.
type AuthMessage uint32

const (
	LoginSuccessful AuthMessage = iota
	UserRegistered
)

// AuthError is the failure detail of a LoginResponse.
type AuthError uint32

const (
	IncorrectPassword AuthError = iota
)

// NewLoginSuccess builds the response for a verified returning user.
func NewLoginSuccess() *Message {
	return NewMessage(LoginResponse{OK: true, Message: LoginSuccessful})
}

// NewRegisterSuccess builds the response for a freshly registered user.
func NewRegisterSuccess() *Message {
	return NewMessage(LoginResponse{OK: true, Message: UserRegistered})
}

// NewLoginError builds the response for a failed login attempt.
func NewLoginError() *Message {
	return NewMessage(LoginResponse{OK: false, Err: IncorrectPassword})
}

// String renders the response the way the client shows it to the user.
func (r LoginResponse) String() string {
	if !r.OK {
		return "Login failed, incorrect password."
	}
	if r.Message == UserRegistered {
		return "You were successfully registered."
	}
	return "Login was successful."
}
