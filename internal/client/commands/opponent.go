package commands

import (
	"fmt"
	"strings"

	"llmchess/internal/client/display"
	"llmchess/internal/core"
	"llmchess/internal/session"
)

func (r *Registry) registerOpponentCommands() {
	r.Register(&Command{
		Name:        "pause",
		ShortName:   "p",
		Description: "Pause automated play",
		Usage:       "pause",
		Group:       groupOpponent,
		Handler:     postHandler(session.SetPaused{Paused: true}),
	})

	r.Register(&Command{
		Name:        "resume",
		ShortName:   "u",
		Description: "Resume automated play",
		Usage:       "resume",
		Group:       groupOpponent,
		Handler:     postHandler(session.SetPaused{Paused: false}),
	})

	r.Register(&Command{
		Name:        "retry",
		ShortName:   "t",
		Description: "Retry the failed automated move",
		Usage:       "retry",
		Group:       groupOpponent,
		Handler:     postHandler(session.Retry{}),
	})

	r.Register(&Command{
		Name:        "model",
		ShortName:   "d",
		Description: "Select the model for a side",
		Usage:       "model <white|black> <model>",
		Group:       groupOpponent,
		Handler:     modelHandler,
	})

	r.Register(&Command{
		Name:        "models",
		ShortName:   "ls",
		Description: "List models offered by the backend",
		Usage:       "models [refresh]",
		Group:       groupOpponent,
		Handler:     modelsHandler,
	})

	r.Register(&Command{
		Name:        "key",
		ShortName:   "k",
		Description: "Enter the provider API key",
		Usage:       "key",
		Group:       groupOpponent,
		Handler:     keyHandler,
	})

	r.Register(&Command{
		Name:        "dismiss",
		ShortName:   "-",
		Description: "Dismiss the current notice",
		Usage:       "dismiss",
		Group:       groupOpponent,
		Handler:     postHandler(session.DismissNotice{}),
	})
}

func modelHandler(h Host, args []string) error {
	p := h.Board().Last()
	if len(args) == 0 {
		fmt.Fprintf(h.Out(), "White: %s\nBlack: %s\n", p.Models.White, p.Models.Black)
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: model <white|black> <model>")
	}

	side, ok := core.ParseColor(strings.ToLower(args[0]))
	if !ok {
		return fmt.Errorf("unknown side %q", args[0])
	}
	model := args[1]
	if len(p.AvailableModels) > 0 && !contains(p.AvailableModels, model) {
		fmt.Fprintf(h.Out(), "%sWarning: %s is not in the backend's model list%s\n", display.Yellow, model, display.Reset)
	}
	h.Post(session.SelectModel{Side: side, Model: model})
	return nil
}

func modelsHandler(h Host, args []string) error {
	if len(args) > 0 && args[0] == "refresh" {
		h.Post(session.RefreshModels{})
		fmt.Fprintln(h.Out(), "Refreshing model list")
		return nil
	}

	p := h.Board().Last()
	if len(p.AvailableModels) == 0 {
		fmt.Fprintln(h.Out(), "No models known yet; try 'models refresh'")
		return nil
	}
	fmt.Fprintf(h.Out(), "%sModels:%s\n", display.Cyan, display.Reset)
	for _, m := range p.AvailableModels {
		marker := "  "
		if m == p.Models.White || m == p.Models.Black {
			marker = "* "
		}
		fmt.Fprintf(h.Out(), "%s%s\n", marker, m)
	}
	return nil
}

func keyHandler(h Host, args []string) error {
	key, err := h.ReadSecret(display.Yellow + "API key: " + display.Reset)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		h.Post(session.CancelCredential{})
		return fmt.Errorf("no key entered")
	}
	h.Post(session.SubmitCredential{Key: key})
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
