package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/oliverjantar/tcpchat/model"
)

type connectionMsg struct {
	connected bool
}

var systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))

type modelState struct {
	network   *Network
	viewport  viewport.Model
	textInput textinput.Model
	messages  []string
	loggedIn  bool
	err       error
	ready     bool
}

func initialModel(net *Network) modelState {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 20

	return modelState{
		network:   net,
		textInput: ti,
		messages:  []string{},
	}
}

func (m modelState) Init() tea.Cmd {
	return textinput.Blink
}

func (m *modelState) appendLine(line string) {
	m.messages = append(m.messages, line)
	m.viewport.SetContent(strings.Join(m.messages, "\n"))
	m.viewport.GotoBottom()
}

func (m modelState) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.textInput.Value() != "" {
				content := m.textInput.Value()
				m.textInput.SetValue("")
				return m.handleInput(content)
			}
		}

	case connectionMsg:
		if msg.connected {
			m.appendLine(systemStyle.Render("Connected. Log in with /login <name> <password>."))
			return m, nil
		}

	case tea.WindowSizeMsg:
		headerHeight := 0
		footerHeight := 3
		verticalMarginHeight := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMarginHeight)
			m.viewport.YPosition = headerHeight
			m.viewport.SetContent(strings.Join(m.messages, "\n"))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMarginHeight
		}
		m.textInput.Width = msg.Width

	case loginResultMsg:
		resp := model.LoginResponse(msg)
		m.appendLine(systemStyle.Render(resp.String()))
		if resp.OK {
			m.loggedIn = true
			// The read loop starts only after auth; during the handshake the
			// Login command owns the connection.
			return m, m.network.WaitForMessage
		}
		return m, nil

	case *model.Message:
		if msg != nil {
			m.appendLine(formatMessage(msg))
		}
		return m, m.network.WaitForMessage

	case noticeMsg:
		m.appendLine(systemStyle.Render(string(msg)))
		return m, nil

	case errMsg:
		m.err = msg
		return m, tea.Quit
	}

	m.textInput, tiCmd = m.textInput.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

// handleInput routes slash commands and plain chat lines.
func (m modelState) handleInput(content string) (tea.Model, tea.Cmd) {
	switch {
	case strings.HasPrefix(content, "/connect"):
		parts := strings.Fields(content)
		if len(parts) != 2 {
			m.appendLine("Usage: /connect <host>")
			return m, nil
		}
		host := parts[1]
		return m, func() tea.Msg {
			if err := m.network.Connect(host); err != nil {
				return errMsg(err)
			}
			return connectionMsg{connected: true}
		}

	case strings.HasPrefix(content, "/login"):
		parts := strings.Fields(content)
		if len(parts) != 3 {
			m.appendLine("Usage: /login <name> <password>")
			return m, nil
		}
		return m, m.network.Login(parts[1], parts[2])

	case strings.HasPrefix(content, "/file"):
		parts := strings.Fields(content)
		if len(parts) != 2 {
			m.appendLine("Usage: /file <path>")
			return m, nil
		}
		return m, m.network.SendFile(parts[1])

	case strings.HasPrefix(content, "/image"):
		parts := strings.Fields(content)
		if len(parts) != 2 {
			m.appendLine("Usage: /image <path>")
			return m, nil
		}
		return m, m.network.SendImage(parts[1])

	case content == "/disconnect":
		m.network.Disconnect()
		m.loggedIn = false
		m.appendLine(systemStyle.Render("Disconnected."))
		return m, nil

	case content == "/quit":
		return m, tea.Quit
	}

	if !m.loggedIn {
		m.appendLine("Not logged in. Use /connect <host> then /login <name> <password>.")
		return m, nil
	}

	// Local echo: the server never reflects a message back to its sender.
	m.appendLine(fmt.Sprintf("%s you: %s", time.Now().Format("15:04"), content))
	return m, m.network.SendText(content)
}

func (m modelState) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	return fmt.Sprintf("%s\n%s\n%s",
		m.viewport.View(),
		strings.Repeat("─", m.viewport.Width),
		m.textInput.View(),
	)
}

func formatMessage(msg *model.Message) string {
	timeStr := time.Unix(msg.Timestamp, 0).Format("15:04")

	sender := msg.Sender
	if sender == "" {
		sender = "anonymous"
	}

	var body string
	switch data := msg.Data.(type) {
	case model.Text:
		body = fmt.Sprintf("%s: %s", sender, data.Text)
	case model.Image:
		body = fmt.Sprintf("%s sent an image", sender)
	case model.File:
		body = fmt.Sprintf("%s sent a file %s", sender, data.Name)
	case model.ServerInfo:
		body = systemStyle.Render(fmt.Sprintf("--      %s      --", data.Text))
	case model.LoginResponse:
		body = systemStyle.Render(data.String())
	default:
		body = fmt.Sprintf("%s sent an unsupported message", sender)
	}

	return fmt.Sprintf("%s %s", timeStr, body)
}
