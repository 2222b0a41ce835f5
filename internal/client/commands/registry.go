package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"llmchess/internal/client/display"
	"llmchess/internal/opponent"
	"llmchess/internal/position"
	"llmchess/internal/projection"
	"llmchess/internal/session"
)

// ErrExit is returned by Execute when the user asked to leave
var ErrExit = errors.New("exit requested")

// Board is the terminal widget as seen by commands
type Board interface {
	Move(mv position.Move) error
	Last() projection.Projection
	Show()
	CancelPremove() bool
}

// Host is what command handlers act on
type Host interface {
	Post(ev session.Event)
	Board() Board
	Client() *opponent.Client
	Out() io.Writer
	ReadSecret(prompt string) (string, error)
}

// Command defines a client command with its handler
type Command struct {
	Name        string
	ShortName   string
	Description string
	Usage       string
	Group       string
	Handler     func(Host, []string) error
}

type Registry struct {
	host     Host
	commands map[string]*Command
}

// NewRegistry registers every command against host
func NewRegistry(host Host) *Registry {
	r := &Registry{
		host:     host,
		commands: make(map[string]*Command),
	}

	r.registerGameCommands()
	r.registerHistoryCommands()
	r.registerOpponentCommands()
	r.registerDebugCommands()

	r.Register(&Command{
		Name:        "help",
		ShortName:   "?",
		Description: "Show available commands",
		Usage:       "help [command]",
		Group:       groupUtility,
		Handler:     r.helpHandler,
	})

	r.Register(&Command{
		Name:        "exit",
		ShortName:   "x",
		Description: "Exit the client",
		Usage:       "exit",
		Group:       groupUtility,
		Handler:     exitHandler,
	})

	return r
}

const (
	groupGame     = "Game Commands"
	groupHistory  = "History Commands"
	groupOpponent = "Opponent Commands"
	groupUtility  = "Utility Commands"
)

func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	if cmd.ShortName != "" {
		r.commands[cmd.ShortName] = cmd
	}
}

// Names returns command names for readline completion
func (r *Registry) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, cmd := range r.commands {
		if !seen[cmd.Name] {
			seen[cmd.Name] = true
			names = append(names, cmd.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Execute runs one input line. Only ErrExit is returned; other handler
// errors are printed.
func (r *Registry) Execute(input string) error {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	out := r.host.Out()
	cmdName := parts[0]
	args := parts[1:]

	cmd, exists := r.commands[cmdName]
	if !exists {
		// bare UCI moves are accepted without the move command
		if _, err := position.ParseUCI(cmdName); err == nil && len(args) == 0 {
			cmd = r.commands["move"]
			args = parts
		} else {
			fmt.Fprintf(out, "%sUnknown command: %s%s\n", display.Red, cmdName, display.Reset)
			fmt.Fprintf(out, "Type 'help' for available commands\n")
			return nil
		}
	}

	if err := cmd.Handler(r.host, args); err != nil {
		if errors.Is(err, ErrExit) {
			return err
		}
		fmt.Fprintf(out, "%sError: %s%s\n", display.Red, err.Error(), display.Reset)
	}
	return nil
}

func (r *Registry) helpHandler(h Host, args []string) error {
	out := h.Out()
	if len(args) > 0 {
		cmd, exists := r.commands[args[0]]
		if !exists {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		fmt.Fprintf(out, "\n%s%s%s - %s\n", display.Cyan, cmd.Name, display.Reset, cmd.Description)
		if cmd.ShortName != "" {
			fmt.Fprintf(out, "Short form: %s%s%s\n", display.Cyan, cmd.ShortName, display.Reset)
		}
		fmt.Fprintf(out, "Usage: %s\n", cmd.Usage)
		return nil
	}

	fmt.Fprintf(out, "\n%sAvailable Commands:%s\n", display.Cyan, display.Reset)

	groups := map[string][]*Command{}
	for _, name := range r.Names() {
		cmd := r.commands[name]
		groups[cmd.Group] = append(groups[cmd.Group], cmd)
	}

	for _, group := range []string{groupGame, groupHistory, groupOpponent, groupUtility} {
		fmt.Fprintf(out, "\n%s%s:%s\n", display.Yellow, group, display.Reset)
		for _, cmd := range groups[group] {
			shortPart := "    "
			if cmd.ShortName != "" {
				shortPart = fmt.Sprintf("[%s%s%s] ", display.Cyan, cmd.ShortName, display.Reset)
			}
			fmt.Fprintf(out, "  %s%-10s %s\n", shortPart, cmd.Name, cmd.Description)
		}
	}

	fmt.Fprintf(out, "\nType 'help <command>' for detailed usage\n")
	fmt.Fprintf(out, "A bare UCI move such as e2e4 is the same as 'move e2e4'\n")
	return nil
}

func exitHandler(h Host, args []string) error {
	fmt.Fprintf(h.Out(), "%sGoodbye!%s\n", display.Cyan, display.Reset)
	return ErrExit
}
