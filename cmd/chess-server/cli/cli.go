// Package cli implements the chess-server maintenance sub-commands: database
// management for the request journal and provider key checks.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"llmchess/internal/position"
	"llmchess/internal/server/selector"
	"llmchess/internal/server/storage"
)

// Run is the entry point for the db mini-app
func Run(args []string) error {
	return run(args, os.Stdout)
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("subcommand required: init, delete, query, stats")
	}

	switch args[0] {
	case "init":
		return runInit(args[1:], out)
	case "delete":
		return runDelete(args[1:], out)
	case "query":
		return runQuery(args[1:], out)
	case "stats":
		return runStats(args[1:], out)
	default:
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

func openStore(name string, args []string, fs *flag.FlagSet) (*storage.Store, error) {
	path := fs.String("path", "", "Database file path (required)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *path == "" {
		return nil, fmt.Errorf("database path required")
	}

	store, err := storage.NewStore(*path, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open store for %s: %w", name, err)
	}
	return store, nil
}

func runInit(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	store, err := openStore("init", args, fs)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	fmt.Fprintf(out, "Database initialized at: %s\n", fs.Lookup("path").Value)
	return nil
}

func runDelete(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	store, err := openStore("delete", args, fs)
	if err != nil {
		return err
	}

	if err := store.DeleteDB(); err != nil {
		return fmt.Errorf("failed to delete database: %w", err)
	}

	fmt.Fprintf(out, "Database deleted: %s\n", fs.Lookup("path").Value)
	return nil
}

func runQuery(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	requestID := fs.String("id", "", "Request ID to filter (optional, * for all)")
	model := fs.String("model", "", "Model to filter (optional, * for all)")
	failed := fs.Bool("failed", false, "Only failed requests")
	limit := fs.Int("limit", 50, "Maximum rows, 0 for all")

	store, err := openStore("query", args, fs)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.QueryRequests(storage.RequestFilter{
		RequestID:  *requestID,
		Model:      *model,
		FailedOnly: *failed,
		Limit:      *limit,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No requests found")
		return nil
	}

	// Print results in tabular format
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Request ID\tModel\tMove\tStatus\tLatency\tTime")
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for _, r := range records {
		move := r.MoveSAN
		if move == "" {
			move = r.ErrorCode
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dms\t%s\n",
			shortID(r.RequestID),
			r.Model,
			move,
			r.Status,
			r.LatencyMs,
			r.RequestedAt.UTC().Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nFound %d request(s)\n", len(records))
	return nil
}

func runStats(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	store, err := openStore("stats", args, fs)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}
	if len(stats) == 0 {
		fmt.Fprintln(out, "No requests found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Model\tRequests\tFailures\tAvg Latency")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.0fms\n", s.Model, s.Requests, s.Failures, s.AvgLatencyMs)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

// CheckKey validates a provider API key without starting the server
func CheckKey(args []string) error {
	fs := flag.NewFlagSet("key", flag.ContinueOnError)
	providerURL := fs.String("provider-url", "", "Provider base URL (library default if empty)")
	key := fs.String("key", "", "API key (defaults to OPENAI_API_KEY)")
	interactive := fs.Bool("interactive", false, "Interactive key prompt")

	if err := fs.Parse(args); err != nil {
		return err
	}

	apiKey := *key
	switch {
	case *interactive:
		if apiKey != "" {
			return fmt.Errorf("cannot use -interactive with -key")
		}
		fmt.Print("Enter API key: ")
		keyBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		apiKey = strings.TrimSpace(string(keyBytes))
	case apiKey == "":
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	sel := selector.New(position.New(), selector.OpenAI(*providerURL), nil)
	return checkKey(sel, apiKey, os.Stdout)
}

func checkKey(sel *selector.Selector, apiKey string, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sel.Validate(ctx, apiKey); err != nil {
		return fmt.Errorf("key rejected: %w", err)
	}

	models := sel.Models(ctx, apiKey)
	fmt.Fprintf(out, "Key accepted, %d chat model(s) available\n", len(models))
	for _, m := range models {
		fmt.Fprintf(out, "  %s\n", m)
	}
	return nil
}
