package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	host := flag.String("host", "", "server host:port to connect to on startup")
	flag.Parse()

	net := NewNetwork()

	m := initialModel(net)
	if *host != "" {
		if err := net.Connect(*host); err != nil {
			fmt.Printf("cannot connect to %s: %v\n", *host, err)
			os.Exit(1)
		}
		m.messages = append(m.messages, systemStyle.Render("Connected. Log in with /login <name> <password>."))
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
