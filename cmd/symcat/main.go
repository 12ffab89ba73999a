package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/medscribe/symcat/internal/approve"
	"github.com/medscribe/symcat/internal/catalog"
	"github.com/medscribe/symcat/internal/config"
	"github.com/medscribe/symcat/internal/extract"
	symmcp "github.com/medscribe/symcat/internal/mcp"
	"github.com/medscribe/symcat/internal/observe"
	"github.com/medscribe/symcat/internal/store"
)

const version = "0.1.0-dev"

var (
	globalDBPath     string
	globalCatalog    string
	globalConfigPath string
	globalVerbose    bool
)

func main() {
	args := parseGlobalFlags(os.Args[1:])

	if len(args) < 1 {
		printUsage()
		os.Exit(0)
	}

	switch args[0] {
	case "extract":
		if err := runExtract(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "approve":
		if err := runApprove(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "pending":
		if err := runPending(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "resolve":
		if err := runResolve(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "catalog":
		if err := runCatalog(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "stats":
		if err := runStats(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "mcp":
		if err := runMCP(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("symcat %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

// parseGlobalFlags strips global flags (valid before or after the command)
// and returns the remaining arguments.
func parseGlobalFlags(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--db" && i+1 < len(args):
			globalDBPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--db="):
			globalDBPath = strings.TrimPrefix(arg, "--db=")
		case arg == "--catalog" && i+1 < len(args):
			globalCatalog = args[i+1]
			i++
		case strings.HasPrefix(arg, "--catalog="):
			globalCatalog = strings.TrimPrefix(arg, "--catalog=")
		case arg == "--config" && i+1 < len(args):
			globalConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			globalConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--verbose":
			globalVerbose = true
		default:
			out = append(out, arg)
		}
	}
	return out
}

func newLogger() *zap.Logger {
	if !globalVerbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// env is the wired-up application: catalog loaded, approvals replayed,
// pipeline and gateway ready.
type env struct {
	cfg      config.ResolvedConfig
	catalog  *catalog.Catalog
	store    store.Store
	pipeline *extract.Pipeline
	gateway  *approve.Gateway
	logger   *zap.Logger
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
	e.logger.Sync()
}

// openEnv resolves configuration, opens the store, loads the vocabulary
// CSV, and replays journaled approvals into the catalog.
func openEnv(ctx context.Context) (*env, error) {
	logger := newLogger()

	cfg, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath: globalConfigPath,
		CLIDBPath:  globalDBPath,
		CLICatalog: globalCatalog,
	})
	if err != nil {
		return nil, err
	}

	cat := catalog.New(logger)
	if cfg.CatalogPath.Value != "" {
		if err := cat.LoadFile(cfg.CatalogPath.Value); err != nil {
			var loadErr *catalog.LoadError
			if !errors.As(err, &loadErr) {
				return nil, err
			}
			// A broken vocabulary file degrades to an empty catalog;
			// extraction still runs and unknowns still get logged.
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	s, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath.Value})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	gateway := approve.NewGateway(cat, s, logger)
	if _, err := gateway.Replay(ctx); err != nil {
		s.Close()
		return nil, err
	}

	patterns, err := extract.CompilePatterns(cfg.ExtraPatterns)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("compiling configured patterns: %w", err)
	}
	pipeline := extract.NewPipeline(cat,
		extract.WithLedger(s),
		extract.WithLogger(logger),
		extract.WithExtraPatterns(patterns),
	)

	return &env{
		cfg:      cfg,
		catalog:  cat,
		store:    s,
		pipeline: pipeline,
		gateway:  gateway,
		logger:   logger,
	}, nil
}

func runExtract(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: symcat extract <transcript> (or - to read stdin)")
	}

	transcript := strings.Join(args, " ")
	if transcript == "-" {
		b, err := os.ReadFile("/dev/stdin")
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		transcript = string(b)
	}
	if strings.TrimSpace(transcript) == "" {
		return fmt.Errorf("transcript is empty")
	}

	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	result := e.pipeline.Process(ctx, transcript)
	return printJSON(result)
}

func runApprove(args []string) error {
	req := approve.Request{}
	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--name" && i+1 < len(args):
			req.Name = args[i+1]
			i++
		case arg == "--category" && i+1 < len(args):
			req.Category = args[i+1]
			i++
		case arg == "--alias" && i+1 < len(args):
			req.Aliases = append(req.Aliases, args[i+1])
			i++
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			positional = append(positional, arg)
		}
	}
	if len(positional) == 0 {
		return fmt.Errorf("usage: symcat approve <mention> [--name <canonical>] [--category <category>] [--alias <alias>]...")
	}
	req.Mention = strings.Join(positional, " ")

	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	code, err := e.gateway.Approve(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("Approved %q as %s\n", req.Mention, code)
	return nil
}

func runPending(args []string) error {
	limit := 0
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--limit" && i+1 < len(args):
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid --limit value: %s", args[i+1])
			}
			limit = n
			i++
		default:
			return fmt.Errorf("unknown argument: %s", arg)
		}
	}

	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	entries, err := e.store.ListPending(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing pending reviews: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No pending reviews.")
		return nil
	}
	for _, entry := range entries {
		fmt.Printf("[%d] %s  %q\n      %s\n", entry.ID, entry.Timestamp, entry.Mention, entry.Excerpt)
	}
	fmt.Printf("\n%d pending\n", len(entries))
	return nil
}

func runResolve(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: symcat resolve <id>|<mention>")
	}

	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	target := strings.Join(args, " ")
	if id, convErr := strconv.ParseInt(target, 10, 64); convErr == nil {
		if err := e.store.Resolve(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Resolved entry %d\n", id)
		return nil
	}

	n, err := e.store.ResolveMention(ctx, target)
	if err != nil {
		return err
	}
	fmt.Printf("Resolved %d entries for %q\n", n, target)
	return nil
}

func runCatalog(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("usage: symcat catalog")
	}

	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	return printJSON(e.catalog.Symptoms())
}

func runStats(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("usage: symcat stats")
	}

	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	engine := observe.NewEngine(e.catalog, e.store, e.cfg.DBPath.Value)
	stats, err := engine.GetStats(ctx)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runMCP() error {
	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	srv := symmcp.NewServer(symmcp.ServerConfig{
		Catalog:  e.catalog,
		Store:    e.store,
		Pipeline: e.pipeline,
		Gateway:  e.gateway,
		DBPath:   e.cfg.DBPath.Value,
		Version:  version,
	})
	return symmcp.ServeStdio(srv)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printUsage() {
	fmt.Printf(`symcat %s — Catalog-driven symptom extraction for clinical text

Usage:
  symcat <command> [arguments]

Commands:
  extract <text>      Extract symptoms from a transcript (use - for stdin)
  approve <mention>   Promote a reviewed unknown mention into the catalog
  pending             List unknown mentions awaiting review
  resolve <id|term>   Mark review entries resolved without approving
  catalog             Print the full symptom catalog as JSON
  stats               Show catalog and review-ledger statistics
  mcp                 Run the MCP server on stdio
  version             Print version

Approve Flags:
  --name <canonical>  Canonical display name (default: the mention)
  --category <name>   Body-system category (default: keyword classification)
  --alias <alias>     Extra alias to register (repeatable)

Global Flags:
  --db <path>         SQLite database path (env: SYMCAT_DB)
  --catalog <path>    Vocabulary CSV path (env: SYMCAT_CATALOG)
  --config <path>     Config file path (default: ~/.symcat/config.yaml)
  --verbose           Enable debug logging
  -h, --help          Show this help message
  -v, --version       Print version
`, version)
}
