package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"llmchess/internal/client/display"
)

func (r *Registry) registerDebugCommands() {
	r.Register(&Command{
		Name:        "health",
		ShortName:   ".",
		Description: "Check server health",
		Usage:       "health",
		Group:       groupUtility,
		Handler:     healthHandler,
	})

	r.Register(&Command{
		Name:        "clear",
		ShortName:   "cls",
		Description: "Clear screen",
		Usage:       "clear",
		Group:       groupUtility,
		Handler:     clearHandler,
	})
}

func clearHandler(h Host, args []string) error {
	cmd := exec.Command("clear")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func healthHandler(h Host, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := h.Client().Health(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(h.Out(), "%sServer Health:%s\n", display.Cyan, display.Reset)
	fmt.Fprintf(h.Out(), "  Status:  %s\n", resp.Status)
	fmt.Fprintf(h.Out(), "  API key: %t\n", resp.OpenAIKeyConfigured)
	if resp.Storage != "" {
		fmt.Fprintf(h.Out(), "  Storage: %s\n", resp.Storage)
	}
	return nil
}
