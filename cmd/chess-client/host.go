package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"llmchess/internal/client/commands"
	"llmchess/internal/client/widget"
	"llmchess/internal/opponent"
	"llmchess/internal/session"
)

// host implements commands.Host for the terminal client
type host struct {
	board  *widget.Widget
	client *opponent.Client
	post   func(session.Event)
	out    io.Writer
}

func (h *host) Post(ev session.Event) {
	h.post(ev)
}

func (h *host) Board() commands.Board {
	return h.board
}

func (h *host) Client() *opponent.Client {
	return h.client
}

func (h *host) Out() io.Writer {
	return h.out
}

func (h *host) ReadSecret(prompt string) (string, error) {
	fmt.Fprint(h.out, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(h.out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
