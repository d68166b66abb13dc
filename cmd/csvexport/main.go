// ABOUTME: Entry point for the csvexport admin server and its management commands
// ABOUTME: Dispatches serve, init, the user and permission commands, export, and health

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/csvexport/internal/config"
	"github.com/2389/csvexport/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                              _
  ___ _____   _____ _ __  ___ _ __   ___  _ __| |_
 / __/ __\ \ / / _ \ '_ \/ _ \ '_ \ / _ \| '__| __|
| (__\__ \\ V /  __/ |_) \  __/ |_) | (_) | |  | |_
 \___|___/ \_/ \___| .__/ \___| .__/ \___/|_|   \__|
                   |_|        |_|
`

// getDataPath returns the path to the csvexport data directory.
// Priority: XDG_DATA_HOME/csvexport > ~/.local/share/csvexport
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "csvexport")
}

func usage() {
	fmt.Println("Usage: csvexport <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                                   Start the admin server")
	fmt.Println("  init [--force]                          Write a starter config file")
	fmt.Println("  createuser --username U --password P    Create an admin user (--staff, --superuser)")
	fmt.Println("  users                                   List admin users and their permissions")
	fmt.Println("  grant --username U --perm app.csv_model Grant a permission (--revoke to remove)")
	fmt.Println("  token --username U [--ttl 24h]          Mint an API token")
	fmt.Println("  export --model app.model [--ids 1,2]    Write a model's rows as CSV (--out FILE)")
	fmt.Println("  health                                  Check server health")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(args)
	case "createuser":
		err = runCreateUser(ctx, args)
	case "users":
		err = runUsers(ctx, args, os.Stdout)
	case "grant":
		err = runGrant(ctx, args)
	case "token":
		err = runToken(ctx, args)
	case "export":
		err = runExport(ctx, args, os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Models:    %d\n", len(cfg.Models))

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.HTTPS {
			yellow.Print(" [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	if cfg.Exports.RequirePerm {
		yellow.Println("    ! exports require the <app>.csv_<model> permission")
	}

	fmt.Println()

	logger.Info("starting csvexport",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
