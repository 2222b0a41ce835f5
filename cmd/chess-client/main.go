// Package main implements the interactive terminal client: it hosts the
// session controller, draws the board, and optionally feeds a graphical
// board over a websocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"llmchess/internal/client/commands"
	"llmchess/internal/client/display"
	"llmchess/internal/client/feed"
	"llmchess/internal/client/widget"
	"llmchess/internal/core"
	"llmchess/internal/opponent"
	"llmchess/internal/position"
	"llmchess/internal/projection"
	"llmchess/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s%v%s\n", display.Red, err, display.Reset)
		os.Exit(1)
	}
}

func run() error {
	// Command-line flags
	var (
		apiURL         = flag.String("api-url", "http://localhost:8000", "Move service base URL")
		modeFlag       = flag.String("mode", "hh", "Game mode: hh, ha or aa")
		orientation    = flag.String("orientation", "white", "Side shown at the bottom: white or black")
		whiteModel     = flag.String("white-model", core.DefaultModel, "Model playing white when automated")
		blackModel     = flag.String("black-model", core.DefaultModel, "Model playing black when automated")
		noticeTimeout  = flag.Duration("notice-timeout", session.DefaultNoticeTimeout, "Auto-dismiss delay for error notices (negative disables)")
		requestTimeout = flag.Duration("request-timeout", 60*time.Second, "Timeout for one automated move request")
		wsAddr         = flag.String("ws-addr", "", "Serve the board feed on this address (e.g. localhost:8090); empty disables")
		logFile        = flag.String("log-file", "", "Write logs to this file; empty discards them")
		historyFile    = flag.String("history-file", ".chess_history", "Readline history file")
	)
	flag.Parse()

	mode, ok := core.ParseMode(*modeFlag)
	if !ok {
		return fmt.Errorf("invalid mode %q", *modeFlag)
	}
	side, ok := core.ParseColor(*orientation)
	if !ok {
		return fmt.Errorf("invalid orientation %q", *orientation)
	}

	// Logs never go to the terminal, they would corrupt the prompt
	logger := log.New(io.Discard, "", 0)
	var logOut *os.File
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logOut = f
		logger = log.New(f, "", log.LstdFlags)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          display.Prompt("chess"),
		HistoryFile:     *historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	client := opponent.New(*apiURL)

	cfg := session.DefaultConfig()
	cfg.Mode = mode
	cfg.Orientation = side
	cfg.Models = core.Models{White: *whiteModel, Black: *blackModel}
	cfg.NoticeTimeout = *noticeTimeout
	cfg.RequestTimeout = *requestTimeout
	cfg.Logger = logger

	controller := session.New(cfg, position.New(), client)
	board := widget.New(rl.Stdout(), controller.Post)
	controller.AddRenderer(board)
	controller.AddRenderer(session.RenderFunc(func(p projection.Projection) {
		rl.SetPrompt(buildPrompt(p))
		rl.Refresh()
	}))

	var hub *feed.Hub
	if *wsAddr != "" {
		hub = feed.NewHub(controller.Post, logger)
		controller.AddRenderer(hub)
	}

	fmt.Fprintf(rl.Stdout(), "%sLLM Chess Client%s\n", display.Cyan, display.Reset)
	fmt.Fprintf(rl.Stdout(), "%sAPI: %s%s\n", display.Cyan, *apiURL, display.Reset)
	if hub != nil {
		fmt.Fprintf(rl.Stdout(), "%sBoard feed: ws://%s/ws%s\n", display.Cyan, *wsAddr, display.Reset)
	}
	fmt.Fprintf(rl.Stdout(), "Type 'help' for commands\n")

	host := &host{board: board, client: client, post: controller.Post, out: rl.Stdout()}
	registry := commands.NewRegistry(host)
	rl.Config.AutoComplete = completer(registry)

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	runCtx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	controller.Start()

	g, ctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return controller.Run(ctx)
	})
	if hub != nil {
		g.Go(func() error {
			return hub.Run(ctx)
		})
		g.Go(func() error {
			return feed.ListenAndServe(ctx, *wsAddr, hub)
		})
	}
	g.Go(func() error {
		defer cancel()
		return promptLoop(rl, registry)
	})
	g.Go(func() error {
		<-ctx.Done()
		return rl.Close()
	})

	var result *multierror.Error
	if err := g.Wait(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := controller.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("session: %w", err))
	}
	if logOut != nil {
		if err := logOut.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func promptLoop(rl *readline.Instance, registry *commands.Registry) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			// EOF, or the instance was closed on shutdown
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "q" {
			return nil
		}

		if err := registry.Execute(line); errors.Is(err, commands.ErrExit) {
			return nil
		}
	}
}

func completer(registry *commands.Registry) readline.AutoCompleter {
	var items []readline.PrefixCompleterInterface
	for _, name := range registry.Names() {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

func buildPrompt(p projection.Projection) string {
	var parts []string

	switch p.Mode {
	case core.ModeHumanVsHuman:
		parts = append(parts, "hh")
	case core.ModeHumanVsAutomated:
		parts = append(parts, "ha "+display.ColorForTurn(p.Orientation))
	case core.ModeAutomatedVsAutomated:
		parts = append(parts, "aa")
	}
	if !p.AtLatest() {
		parts = append(parts, fmt.Sprintf("%s%d/%d%s", display.Magenta, p.Cursor, p.Length-1, display.Reset))
	}

	promptStr := "chess" + display.Yellow + " [" + display.Reset + strings.Join(parts, " ") + display.Yellow + "]"
	switch {
	case p.Outcome.Over():
		promptStr += " - " + p.Outcome.String()
	case p.Loading:
		promptStr += " - thinking"
	default:
		promptStr += " - Turn:" + display.ColorForTurn(p.SideToMove)
	}
	return display.Prompt(promptStr)
}
