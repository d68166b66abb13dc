// ABOUTME: Management commands: init, createuser, users, grant, token, export
// ABOUTME: Each command loads the config and talks to the store directly

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/csvexport/internal/admin"
	"github.com/2389/csvexport/internal/auth"
	"github.com/2389/csvexport/internal/config"
	"github.com/2389/csvexport/internal/csvexport"
	"github.com/2389/csvexport/internal/model"
	"github.com/2389/csvexport/internal/server"
	"github.com/2389/csvexport/internal/store"
)

const configTemplate = `# csvexport configuration
server:
  http_addr: "localhost:8000"

database:
  driver: "sqlite"
  path: "%s"

auth:
  jwt_secret: "%s"
  token_ttl: "24h"

logging:
  level: "info"
  format: "text"

metrics:
  enabled: true
  path: "/metrics"

exports:
  # Require the <app_label>.csv_<model> permission to export.
  require_perm: false
  # Offer the export action on every registered model.
  global_enabled: false

models: []
#  - app_label: "shop"
#    name: "Order"
#    fields: ["id", "customer", "total"]
#    csv_export: true
#    csv_filename: "orders"
`

// loadCLI loads the config and installs a stderr logger so command output
// on stdout stays clean.
func loadCLI() (*config.Config, error) {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logCfg := cfg.Logging
	if logCfg.Level == "info" {
		logCfg.Level = "warn"
	}
	setupLogger(logCfg, os.Stderr)
	return cfg, nil
}

// openCLIStore loads the config and opens its database.
func openCLIStore() (*config.Config, *store.SQLiteStore, error) {
	cfg, err := loadCLI()
	if err != nil {
		return nil, nil, err
	}
	s, err := server.OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}

func runInit(args []string) error {
	flags, err := parseFlags(args, map[string]bool{"force": false})
	if err != nil {
		return err
	}

	configPath := config.DefaultPath()
	if _, err := os.Stat(configPath); err == nil && flags["force"] == "" {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("generating jwt secret: %w", err)
	}

	dbPath := filepath.Join(getDataPath(), "csvexport.db")
	content := fmt.Sprintf(configTemplate, dbPath, base64.StdEncoding.EncodeToString(secret))

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Wrote %s\n", configPath)
	return nil
}

func runCreateUser(ctx context.Context, args []string) error {
	flags, err := parseFlags(args, map[string]bool{
		"username":  true,
		"password":  true,
		"name":      true,
		"staff":     false,
		"superuser": false,
	})
	if err != nil {
		return err
	}
	if flags["password"] == "" {
		flags["password"] = os.Getenv("CSVEXPORT_PASSWORD")
	}
	if err := requireFlags(flags, "username", "password"); err != nil {
		return err
	}

	_, s, err := openCLIStore()
	if err != nil {
		return err
	}
	defer s.Close()

	hash, err := auth.HashPassword(flags["password"])
	if err != nil {
		return err
	}

	displayName := flags["name"]
	if displayName == "" {
		displayName = flags["username"]
	}
	superuser := flags["superuser"] != ""

	user := &store.User{
		ID:           uuid.New().String(),
		Username:     flags["username"],
		PasswordHash: hash,
		DisplayName:  displayName,
		IsStaff:      superuser || flags["staff"] != "",
		IsSuperuser:  superuser,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	if err := s.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrUsernameExists) {
			return fmt.Errorf("user %q already exists", user.Username)
		}
		return err
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Created user %s (%s)\n", user.Username, user.ID)
	return nil
}

func runGrant(ctx context.Context, args []string) error {
	flags, err := parseFlags(args, map[string]bool{
		"username": true,
		"perm":     true,
		"revoke":   false,
	})
	if err != nil {
		return err
	}
	if err := requireFlags(flags, "username", "perm"); err != nil {
		return err
	}

	_, s, err := openCLIStore()
	if err != nil {
		return err
	}
	defer s.Close()

	user, err := s.GetUserByUsername(ctx, flags["username"])
	if err != nil {
		return fmt.Errorf("looking up %q: %w", flags["username"], err)
	}

	verb := "Granted"
	if flags["revoke"] != "" {
		verb = "Revoked"
		err = s.RevokePermission(ctx, user.ID, flags["perm"])
	} else {
		err = s.GrantPermission(ctx, user.ID, flags["perm"])
	}
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("%s %s for %s\n", verb, flags["perm"], user.Username)
	return nil
}

// runUsers lists admin users with their flags and granted permissions.
func runUsers(ctx context.Context, args []string, stdout io.Writer) error {
	if _, err := parseFlags(args, map[string]bool{}); err != nil {
		return err
	}

	_, s, err := openCLIStore()
	if err != nil {
		return err
	}
	defer s.Close()

	users, err := s.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(os.Stderr, "No users. Create one with: csvexport createuser --username NAME --password PASS --superuser")
		return nil
	}

	for _, u := range users {
		var roles []string
		if u.IsSuperuser {
			roles = append(roles, "superuser")
		}
		if u.IsStaff {
			roles = append(roles, "staff")
		}
		if !u.IsActive {
			roles = append(roles, "inactive")
		}

		perms, err := s.ListPermissions(ctx, u.ID)
		if err != nil {
			return err
		}

		fmt.Fprintf(stdout, "%s\t%s\t%s\n", u.Username, strings.Join(roles, ","), strings.Join(perms, ","))
	}
	return nil
}

func runToken(ctx context.Context, args []string) error {
	flags, err := parseFlags(args, map[string]bool{"username": true, "ttl": true})
	if err != nil {
		return err
	}
	if err := requireFlags(flags, "username"); err != nil {
		return err
	}

	cfg, s, err := openCLIStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}

	ttl := cfg.Auth.TokenTTL
	if raw := flags["ttl"]; raw != "" {
		ttl, err = time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("invalid --ttl %q", raw)
		}
	}

	user, err := s.GetUserByUsername(ctx, flags["username"])
	if err != nil {
		return fmt.Errorf("looking up %q: %w", flags["username"], err)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return err
	}
	token, err := verifier.Generate(user.ID, ttl)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

// runExport writes a registered model's rows as CSV, to --out or stdout.
// Permission checks do not apply; the operator already holds the database.
func runExport(ctx context.Context, args []string, stdout io.Writer) error {
	flags, err := parseFlags(args, map[string]bool{"model": true, "ids": true, "out": true})
	if err != nil {
		return err
	}
	if err := requireFlags(flags, "model"); err != nil {
		return err
	}

	appLabel, modelName, ok := strings.Cut(flags["model"], ".")
	if !ok || appLabel == "" || modelName == "" {
		return fmt.Errorf("--model must be app_label.model, got %q", flags["model"])
	}

	cfg, s, err := openCLIStore()
	if err != nil {
		return err
	}
	defer s.Close()

	site := admin.NewSite()
	exporter := csvexport.New(server.ExportOptions(cfg.Exports), nil)
	if err := server.RegisterModels(ctx, site, exporter, s, cfg.Models); err != nil {
		return err
	}

	ma, err := site.Get(appLabel, strings.ToLower(modelName))
	if err != nil {
		return fmt.Errorf("model %s: %w", flags["model"], err)
	}

	records := s.Records(ctx, ma.Meta(), parseIDs(flags["ids"]))

	var n int
	if path := flags["out"]; path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		n, err = writeAndClose(f, path, ma, records)
		if err != nil {
			return err
		}
	} else {
		n, err = csvexport.WriteCSV(stdout, ma, records)
		if err != nil {
			return err
		}
	}

	green := color.New(color.FgGreen)
	green.Fprint(os.Stderr, "✓ ")
	fmt.Fprintf(os.Stderr, "Exported %d row(s) of %s\n", n, ma.Meta().Label())
	return nil
}

// writeAndClose writes the CSV to w and closes it. A failed close fails the
// export.
func writeAndClose(w io.WriteCloser, path string, ma admin.ModelAdmin, qs model.QuerySet) (int, error) {
	n, err := csvexport.WriteCSV(w, ma, qs)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing %s: %w", path, cerr)
	}
	return n, err
}
