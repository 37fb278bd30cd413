package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmorand/pyforge/internal/config"
	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/env"
	"github.com/jmorand/pyforge/internal/loop"
	"github.com/jmorand/pyforge/internal/mcp"
	"github.com/jmorand/pyforge/internal/model"
	"github.com/jmorand/pyforge/internal/ops"
	"github.com/jmorand/pyforge/internal/project"
	"github.com/jmorand/pyforge/internal/runner"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"create": true, "build": true, "cancel": true, "run": true,
	"list": true, "show": true, "history": true,
	"install": true, "recreate": true, "delete": true, "export": true,
	"web": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
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
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___  _  _ / _|___ _ _ __ _ ___
  | '_ \ || |  _/ _ \ '_/ _' / -_)
  | .__/\_, |_| \___/_| \__, \___|
  |_|   |__/            |___/

  Prompt-to-Python project builder

  Usage: pyforge <command> [options]
         pyforge --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".pyforge")

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	deps := buildDeps(context.Background(), database, cfg, baseDir)

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(deps)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'pyforge --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(deps, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// buildDeps wires the operation dependencies. Collaborators that cannot be
// constructed (uv missing, backend credentials absent) are replaced by stubs
// that surface the construction error on first use, so commands that never
// touch them keep working.
func buildDeps(ctx context.Context, database *sql.DB, cfg *config.Config, baseDir string) *ops.Deps {
	sink := func(line string) { fmt.Fprintln(os.Stderr, line) }

	deps := &ops.Deps{
		DB:          database,
		Cfg:         cfg,
		Run:         runner.New(),
		Log:         sink,
		ProjectsDir: cfg.ResolveProjectsDir(baseDir),
	}

	envMgr, envErr := env.NewManager(database, cfg.UVPath, sink)
	if envErr != nil {
		deps.Env = unavailableEnv{err: envErr}
	} else {
		deps.Env = envMgr
	}

	secrets := config.LoadSecrets(baseDir)
	client, clientErr := model.NewClient(ctx, cfg, secrets)
	switch {
	case clientErr != nil:
		deps.Loop = unavailableBuilder{err: clientErr}
	case envErr != nil:
		deps.Loop = unavailableBuilder{err: envErr}
	default:
		ctrl := loop.NewController(database, envMgr, runner.New(), client, cfg, sink)
		ctrl.SetNotifier(func(e loop.Event) {
			if e.Detail != "" {
				fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", e.State, e.Project, e.Detail)
			} else {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", e.State, e.Project)
			}
		})
		deps.Loop = ctrl
	}

	return deps
}

// unavailableEnv reports a deferred environment-manager construction error.
type unavailableEnv struct{ err error }

func (u unavailableEnv) Ensure(context.Context, *project.Project) error { return u.err }
func (u unavailableEnv) Install(context.Context, *project.Project, []string) (*env.InstallResult, error) {
	return nil, u.err
}
func (u unavailableEnv) Remove(context.Context, *project.Project) error { return u.err }

// unavailableBuilder reports a deferred build-pipeline construction error.
type unavailableBuilder struct{ err error }

func (u unavailableBuilder) Build(context.Context, string, string) (*loop.Result, error) {
	return nil, u.err
}
func (u unavailableBuilder) Cancel(string) bool { return false }
func (u unavailableBuilder) Active() []string   { return nil }
