package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/hpungsan/arbor/internal/catalog"
	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"inspect": true, "tree": true, "cat": true,
	"export": true, "import": true, "repair": true,
	"index": true, "search": true, "ls": true, "forget": true,
	"serve": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
    _    ____  ____   ___  ____
   / \  |  _ \| __ ) / _ \|  _ \
  / _ \ | |_) |  _ \| | | | |_) |
 / ___ \|  _ <| |_) | |_| |  _ <
/_/   \_\_| \_\____/ \___/|_| \_\

  Hierarchical note documents (.ctd)

  Usage: arbor <command> [options]
         arbor --help

  MCP server mode requires piped input.`)
}

// setupLogging installs a text logger on stderr. Stdout carries JSON output
// and the MCP transport.
func setupLogging(cfg *config.Config) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	if isHelpOrVersion() {
		app := newCLIApp(nil, nil)
		if err := app.Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	// A missing .env is fine.
	_ = godotenv.Load()

	baseDir, err := config.BaseDir()
	if err != nil {
		fatal("could not determine base directory: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	setupLogging(cfg)

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		slog.Warn("unknown tools in disabled_tools", "tools", unknown)
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		slog.Warn("unknown types in disabled_types", "types", unknown, "known", mcp.KnownTypes)
	}

	database, err := catalog.Init(baseDir)
	if err != nil {
		fatal("failed to initialize catalog: %v", err)
	}
	defer database.Close()
	catalog.ConfigurePool(database, cfg)

	if isCLIMode() {
		app := newCLIApp(database, cfg)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument on a terminal is a typo, not an MCP client.
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'arbor --help' for usage.\n")
		database.Close()
		os.Exit(1)
	}

	if err := mcp.Run(database, cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		database.Close()
		os.Exit(1)
	}
}
