// Package main implements the move-selection backend: a REST API that asks a
// language model for moves, with an optional request journal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"llmchess/cmd/chess-server/cli"
	"llmchess/internal/position"
	"llmchess/internal/server/http"
	"llmchess/internal/server/selector"
	"llmchess/internal/server/service"
	"llmchess/internal/server/storage"
)

const (
	gracefulShutdownTimeout = time.Second * 5
)

func main() {
	// Check for CLI sub-commands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "db":
			if err := cli.Run(os.Args[2:]); err != nil {
				log.Fatalf("CLI error: %v", err)
			}
			os.Exit(0)
		case "key":
			if err := cli.CheckKey(os.Args[2:]); err != nil {
				log.Fatalf("CLI error: %v", err)
			}
			os.Exit(0)
		}
	}

	// Command-line flags
	var (
		apiHost      = flag.String("api-host", "localhost", "API server host")
		apiPort      = flag.Int("api-port", 8000, "API server port")
		dev          = flag.Bool("dev", false, "Development mode (relaxed rate limits, WAL journal)")
		storagePath  = flag.String("storage-path", "", "Path to SQLite request journal (disabled if empty)")
		pidPath      = flag.String("pid", "", "Optional path to write PID file")
		pidLock      = flag.Bool("pid-lock", false, "Lock PID file to allow only one instance (requires -pid)")
		defaultModel = flag.String("default-model", selector.DefaultModel, "Model used when a request names none")
		providerURL  = flag.String("provider-url", "", "Provider API base URL (library default if empty)")
		allowOrigins = flag.String("allow-origins", "*", "Comma-separated CORS origins")
	)
	flag.Parse()

	// Validate PID flags
	if *pidLock && *pidPath == "" {
		log.Fatal("Error: -pid-lock flag requires the -pid flag to be set")
	}

	// Manage PID file if requested
	if *pidPath != "" {
		pid, err := acquirePIDFile(*pidPath, *pidLock)
		if err != nil {
			log.Fatalf("Failed to manage PID file: %v", err)
		}
		defer pid.release()
		log.Printf("PID file created at: %s (lock: %v)", *pidPath, *pidLock)
	}

	logger := log.Default()

	// 1. Initialize Storage (optional)
	var store *storage.Store
	if *storagePath != "" {
		log.Printf("Initializing request journal at: %s", *storagePath)
		var err error
		store, err = storage.NewStore(*storagePath, *dev, logger)
		if err != nil {
			log.Fatalf("Failed to initialize storage: %v", err)
		}
		if err := store.InitDB(); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
	} else {
		log.Printf("Request journal disabled (use -storage-path to enable)")
	}

	// 2. Selector and service
	sel := selector.New(position.New(), selector.OpenAI(*providerURL), logger)
	sel.SetDefaultModel(*defaultModel)

	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	svc := service.New(sel, store, apiKey, logger)

	// 3. Fiber app
	app := http.NewFiberApp(svc, http.Config{
		AllowOrigins: *allowOrigins,
		DevMode:      *dev,
	})

	apiAddr := fmt.Sprintf("%s:%d", *apiHost, *apiPort)

	// Start API server in a goroutine
	go func() {
		log.Printf("Chess move server starting...")
		log.Printf("API Listening on: http://%s", apiAddr)
		log.Printf("Default model: %s", sel.Model(""))
		if apiKey != "" {
			log.Printf("Provider key: configured from environment")
		} else {
			log.Printf("Provider key: not configured (POST /config/api-key)")
		}
		if *storagePath != "" {
			log.Printf("Storage: Enabled (%s)", *storagePath)
		} else {
			log.Printf("Storage: Disabled")
		}
		log.Printf("Health: http://%s/health", apiAddr)

		if err := app.Listen(apiAddr); err != nil {
			log.Printf("API server listen error: %v", err)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := svc.Shutdown(gracefulShutdownTimeout); err != nil {
		log.Printf("Service shutdown error: %v", err)
	}

	log.Println("Server exited")
}
