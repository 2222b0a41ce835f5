package commands

import (
	"fmt"
	"strings"

	"llmchess/internal/client/display"
	"llmchess/internal/core"
	"llmchess/internal/position"
	"llmchess/internal/session"
)

func (r *Registry) registerGameCommands() {
	r.Register(&Command{
		Name:        "move",
		ShortName:   "m",
		Description: "Make a move, or queue a premove",
		Usage:       "move <uci-move> | move <from> <to> [promotion]",
		Group:       groupGame,
		Handler:     moveHandler,
	})

	r.Register(&Command{
		Name:        "cancel",
		ShortName:   "c",
		Description: "Cancel the queued premove",
		Usage:       "cancel",
		Group:       groupGame,
		Handler:     cancelPremoveHandler,
	})

	r.Register(&Command{
		Name:        "show",
		ShortName:   "h",
		Description: "Show board and game state",
		Usage:       "show",
		Group:       groupGame,
		Handler:     showBoardHandler,
	})

	r.Register(&Command{
		Name:        "state",
		ShortName:   "s",
		Description: "Show raw board projection JSON",
		Usage:       "state",
		Group:       groupGame,
		Handler:     stateHandler,
	})

	r.Register(&Command{
		Name:        "flip",
		ShortName:   "f",
		Description: "Flip the board orientation",
		Usage:       "flip",
		Group:       groupGame,
		Handler:     postHandler(session.Flip{}),
	})

	r.Register(&Command{
		Name:        "reset",
		ShortName:   "r",
		Description: "Start a new game",
		Usage:       "reset",
		Group:       groupGame,
		Handler:     postHandler(session.Reset{}),
	})

	r.Register(&Command{
		Name:        "mode",
		ShortName:   "o",
		Description: "Switch game mode",
		Usage:       "mode <hh|ha|aa>",
		Group:       groupGame,
		Handler:     modeHandler,
	})
}

// postHandler returns a handler that posts a fixed event
func postHandler(ev session.Event) func(Host, []string) error {
	return func(h Host, args []string) error {
		h.Post(ev)
		return nil
	}
}

// parseMove accepts "e2e4", "e7e8q" and "e2 e4 [q]"
func parseMove(args []string) (position.Move, error) {
	switch len(args) {
	case 1:
		return position.ParseUCI(args[0])
	case 2, 3:
		return position.ParseUCI(strings.Join(args, ""))
	default:
		return position.Move{}, fmt.Errorf("usage: move <uci-move>")
	}
}

func moveHandler(h Host, args []string) error {
	mv, err := parseMove(args)
	if err != nil {
		return err
	}
	return h.Board().Move(mv)
}

func cancelPremoveHandler(h Host, args []string) error {
	if !h.Board().CancelPremove() {
		fmt.Fprintln(h.Out(), "No premove queued")
		return nil
	}
	fmt.Fprintf(h.Out(), "%sPremove cancelled%s\n", display.Cyan, display.Reset)
	return nil
}

func showBoardHandler(h Host, args []string) error {
	h.Board().Show()
	return nil
}

func stateHandler(h Host, args []string) error {
	display.PrettyPrintJSON(h.Out(), h.Board().Last())
	return nil
}

func modeHandler(h Host, args []string) error {
	if len(args) != 1 {
		fmt.Fprintf(h.Out(), "Current mode: %s\n", h.Board().Last().Mode)
		return nil
	}
	mode, ok := core.ParseMode(args[0])
	if !ok {
		return fmt.Errorf("unknown mode %q, use hh, ha or aa", args[0])
	}
	h.Post(session.SwitchMode{Mode: mode})
	return nil
}
