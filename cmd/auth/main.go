// Command auth manages the API keys that guard the query service's write
// endpoints.
//
// Usage:
//
//	auth [-config configs/development.yaml] create --name "ops-dashboard" [--expires-in 720h]
//	auth revoke --key <raw-key>
//	auth list
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/postgres"
)

// keyAdmin is implemented by *apikey.Validator.
type keyAdmin interface {
	CreateKey(ctx context.Context, name string, expiresAt *time.Time) (string, error)
	RevokeKey(ctx context.Context, rawKey string) error
	ListKeys(ctx context.Context) ([]apikey.KeyInfo, error)
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	validator := apikey.NewValidator(db.DB)
	if err := validator.EnsureSchema(ctx); err != nil {
		slog.Error("failed to prepare schema", "error", err)
		db.Close()
		os.Exit(1)
	}

	code := run(ctx, validator, flag.Args(), os.Stdout, os.Stderr, time.Now)
	db.Close()
	os.Exit(code)
}

// run executes one subcommand and returns the process exit code.
func run(ctx context.Context, keys keyAdmin, args []string, stdout, stderr io.Writer, now func() time.Time) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	switch args[0] {
	case "create":
		return cmdCreate(ctx, keys, args[1:], stdout, stderr, now)
	case "revoke":
		return cmdRevoke(ctx, keys, args[1:], stdout, stderr)
	case "list":
		return cmdList(ctx, keys, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func cmdCreate(ctx context.Context, keys keyAdmin, args []string, stdout, stderr io.Writer, now func() time.Time) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	name := fs.String("name", "", "name for the api key")
	expiresIn := fs.Duration("expires-in", 0, "expiry duration, e.g. 720h (optional)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *name == "" {
		fmt.Fprintln(stderr, "error: --name is required")
		return 2
	}

	var expiresAt *time.Time
	if *expiresIn > 0 {
		t := now().Add(*expiresIn)
		expiresAt = &t
	}

	key, err := keys.CreateKey(ctx, *name, expiresAt)
	if err != nil {
		fmt.Fprintf(stderr, "failed to create key: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "API key created. It cannot be retrieved again.")
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Key:     %s\n", key)
	fmt.Fprintf(stdout, "  Name:    %s\n", *name)
	if expiresAt != nil {
		fmt.Fprintf(stdout, "  Expires: %s\n", expiresAt.Format(time.RFC3339))
	} else {
		fmt.Fprintln(stdout, "  Expires: never")
	}
	return 0
}

func cmdRevoke(ctx context.Context, keys keyAdmin, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
	fs.SetOutput(stderr)
	key := fs.String("key", "", "raw api key to revoke")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *key == "" {
		fmt.Fprintln(stderr, "error: --key is required")
		return 2
	}

	if err := keys.RevokeKey(ctx, *key); err != nil {
		fmt.Fprintf(stderr, "failed to revoke key: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "API key revoked.")
	return 0
}

func cmdList(ctx context.Context, keys keyAdmin, stdout, stderr io.Writer) int {
	list, err := keys.ListKeys(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "failed to list keys: %v\n", err)
		return 1
	}
	if len(list) == 0 {
		fmt.Fprintln(stdout, "No active API keys.")
		return 0
	}

	fmt.Fprintf(stdout, "%-36s  %-20s  %-25s  %s\n", "ID", "Name", "Created", "Expires")
	for _, k := range list {
		expires := "never"
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Fprintf(stdout, "%-36s  %-20s  %-25s  %s\n", k.ID, k.Name, k.CreatedAt.Format(time.RFC3339), expires)
	}
	fmt.Fprintf(stdout, "\nTotal: %d active key(s)\n", len(list))
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: auth [-config path] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  create   Create a new API key")
	fmt.Fprintln(w, "  revoke   Revoke an existing API key")
	fmt.Fprintln(w, "  list     List all active API keys")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, `  auth create --name "ops-dashboard" --expires-in 720h`)
	fmt.Fprintln(w, `  auth revoke --key "imk_..."`)
	fmt.Fprintln(w, `  auth list`)
}
