package commands

import (
	"fmt"
	"strconv"

	"llmchess/internal/session"
)

func (r *Registry) registerHistoryCommands() {
	r.Register(&Command{
		Name:        "first",
		ShortName:   "<<",
		Description: "Go to the starting position",
		Usage:       "first",
		Group:       groupHistory,
		Handler:     postHandler(session.Navigate{To: session.TargetFirst}),
	})

	r.Register(&Command{
		Name:        "prev",
		ShortName:   "<",
		Description: "Step back one move",
		Usage:       "prev",
		Group:       groupHistory,
		Handler:     postHandler(session.Navigate{To: session.TargetPrevious}),
	})

	r.Register(&Command{
		Name:        "next",
		ShortName:   ">",
		Description: "Step forward one move",
		Usage:       "next",
		Group:       groupHistory,
		Handler:     postHandler(session.Navigate{To: session.TargetNext}),
	})

	r.Register(&Command{
		Name:        "last",
		ShortName:   ">>",
		Description: "Go to the latest position",
		Usage:       "last",
		Group:       groupHistory,
		Handler:     postHandler(session.Navigate{To: session.TargetLast}),
	})

	r.Register(&Command{
		Name:        "goto",
		ShortName:   "g",
		Description: "Go to a ply (0 is the start)",
		Usage:       "goto <ply>",
		Group:       groupHistory,
		Handler:     gotoHandler,
	})
}

func gotoHandler(h Host, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: goto <ply>")
	}
	ply, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid ply %q", args[0])
	}
	if last := h.Board().Last(); ply < 0 || ply >= last.Length {
		return fmt.Errorf("ply %d out of range 0-%d", ply, last.Length-1)
	}
	h.Post(session.Seek{Index: ply})
	return nil
}
