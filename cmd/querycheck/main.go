// Command querycheck lints advanced search queries offline.
//
// Queries come from the arguments, or from stdin one per line when no
// arguments are given. Each query produces one JSON response line, the
// same document the parse endpoint returns. The exit status is 1 when any
// query is invalid and 2 on usage or I/O errors.
//
// Usage:
//
//	querycheck [-fields title,content] [-max-length 2048] [-max-depth 32] [-pretty] [query ...]
//	querycheck -config configs/development.yaml < queries.txt
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/compiler"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/logger"
)

const (
	exitOK      = 0
	exitInvalid = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("querycheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "optional config file supplying search defaults")
	fields := fs.String("fields", "", "comma-separated default fields (overrides config)")
	maxLength := fs.Int("max-length", -1, "maximum query length in characters, 0 for unlimited")
	maxDepth := fs.Int("max-depth", -1, "maximum parenthesis nesting depth, 0 for unlimited")
	pretty := fs.Bool("pretty", false, "indent JSON output")
	logLevel := fs.String("log-level", "warn", "log level for diagnostics on stderr")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	slogger := logger.New(stderr, *logLevel, "text")
	slog.SetDefault(slogger)
	cfg, err := config.Load(*configPath)
	if err != nil {
		slogger.Error("failed to load config", "error", err)
		return exitUsage
	}
	search := cfg.Search
	if *fields != "" {
		search.DefaultFields = splitFields(*fields)
		if len(search.DefaultFields) == 0 {
			fmt.Fprintln(stderr, "querycheck: -fields must name at least one field")
			return exitUsage
		}
	}
	if *maxLength >= 0 {
		search.MaxQueryLength = *maxLength
	}
	if *maxDepth >= 0 {
		search.MaxNestingDepth = *maxDepth
	}

	svc := compiler.New(search)
	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	if *pretty {
		enc.SetIndent("", "  ")
	}

	status := exitOK
	check := func(raw string) error {
		resp, err := svc.Analyze(context.Background(), raw)
		if err != nil {
			return err
		}
		if !resp.IsValid {
			status = exitInvalid
		}
		return enc.Encode(resp)
	}

	if queries := fs.Args(); len(queries) > 0 {
		for _, q := range queries {
			if err := check(q); err != nil {
				slogger.Error("query check failed", "error", err)
				return exitUsage
			}
		}
		return status
	}

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := check(line); err != nil {
			slogger.Error("query check failed", "error", err)
			return exitUsage
		}
	}
	if err := scanner.Err(); err != nil {
		slogger.Error("reading stdin failed", "error", err)
		return exitUsage
	}
	return status
}

func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
