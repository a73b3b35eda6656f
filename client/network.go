package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oliverjantar/tcpchat/model"
)

const defaultPort = "11111"

// Network owns the TCP connection to the chat server. Reads happen from the
// bubbletea command loop only, so a single goroutine at a time touches the
// read side.
type Network struct {
	conn net.Conn
}

func NewNetwork() *Network {
	return &Network{}
}

func (n *Network) Connect(host string) error {
	if n.conn != nil {
		n.conn.Close()
	}

	if !strings.Contains(host, ":") {
		host = host + ":" + defaultPort
	}

	conn, err := net.Dial("tcp", host)
	if err != nil {
		return err
	}
	n.conn = conn
	return nil
}

func (n *Network) Disconnect() {
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
}

// Login runs the handshake and reports the server's verdict.
func (n *Network) Login(name, password string) tea.Cmd {
	return func() tea.Msg {
		if n.conn == nil {
			return errMsg(fmt.Errorf("not connected"))
		}

		reply, err := model.Handshake(n.conn, name, password)
		if err != nil {
			n.Disconnect()
			return errMsg(err)
		}
		resp, ok := reply.Data.(model.LoginResponse)
		if !ok {
			return errMsg(fmt.Errorf("unexpected handshake reply %T", reply.Data))
		}
		return loginResultMsg(resp)
	}
}

// WaitForMessage is a tea.Cmd that blocks on the next frame from the server.
func (n *Network) WaitForMessage() tea.Msg {
	if n.conn == nil {
		return nil
	}

	msg, err := model.ReadFrame(n.conn)
	if err != nil {
		n.Disconnect()
		return errMsg(err)
	}
	return msg
}

func (n *Network) SendText(content string) tea.Cmd {
	return n.send(model.Text{Text: content})
}

// SendFile reads the file and ships its name and raw bytes.
func (n *Network) SendFile(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return noticeMsg(fmt.Sprintf("Cannot read %s: %v", path, err))
		}
		return n.send(model.File{Name: filepath.Base(path), Data: data})()
	}
}

// SendImage ships the file's raw bytes as an image payload.
func (n *Network) SendImage(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return noticeMsg(fmt.Sprintf("Cannot read %s: %v", path, err))
		}
		return n.send(model.Image{Data: data})()
	}
}

func (n *Network) send(payload model.Payload) tea.Cmd {
	return func() tea.Msg {
		if n.conn == nil {
			return errMsg(fmt.Errorf("not connected"))
		}
		if err := model.WriteFrame(n.conn, model.NewMessage(payload)); err != nil {
			n.Disconnect()
			return errMsg(err)
		}
		return nil
	}
}

type errMsg error

// noticeMsg is a local status line for the chat view.
type noticeMsg string

// loginResultMsg carries the server's reply to a login attempt.
type loginResultMsg model.LoginResponse
