package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/jmorand/pyforge/internal/errors"
	"github.com/jmorand/pyforge/internal/ops"
	"github.com/jmorand/pyforge/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(deps *ops.Deps) *cli.App {
	app := &cli.App{
		Name:    "pyforge",
		Usage:   "Prompt-to-Python project builder",
		Version: Version,
		Commands: []*cli.Command{
			createCmd(deps),
			buildCmd(deps),
			cancelCmd(deps),
			runCmd(deps),
			listCmd(deps),
			showCmd(deps),
			historyCmd(deps),
			installCmd(deps),
			recreateCmd(deps),
			deleteCmd(deps),
			exportCmd(deps),
			webCmd(deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// createCmd creates the create command.
func createCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Register a new empty project",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name, err := requireName(c)
			if err != nil {
				return err
			}

			output, err := ops.Create(c.Context, deps, ops.CreateInput{Name: name})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// buildCmd creates the build command.
func buildCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Generate, run, and auto-correct a project (prompt via --prompt or stdin)",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "prompt", Aliases: []string{"p"}, Usage: "What the program should do; empty re-runs the existing source"},
		},
		Action: func(c *cli.Context) error {
			name, err := requireName(c)
			if err != nil {
				return err
			}

			prompt := c.String("prompt")
			if prompt == "" && stdinHasData() {
				prompt, err = readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
			}

			output, err := ops.Build(c.Context, deps, ops.BuildInput{Name: name, Prompt: prompt})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// cancelCmd creates the cancel command.
func cancelCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Cancel a project's in-flight build",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name, err := requireName(c)
			if err != nil {
				return err
			}

			if err := ops.CancelBuild(deps, name); err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{"cancelled": true, "name": name})
		},
	}
}

// runCmd creates the run command.
func runCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a project's entry script once, without correction",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "timeout", Aliases: []string{"t"}, Usage: "Run timeout in seconds (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			name, err := requireName(c)
			if err != nil {
				return err
			}

			output, err := ops.Run(c.Context, deps, ops.RunInput{
				Name:        name,
				TimeoutSecs: c.Int("timeout"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all projects",
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, deps)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one project's record and revision summary",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "source", Aliases: []string{"s"}, Usage: "Include the newest revision's source"},
		},
		Action: func(c *cli.Context) error {
			name, err := requireName(c)
			if err != nil {
				return err
			}

			output, err := ops.Show(c.Context, deps, ops.ShowInput{
				Name:       name,
				WithSource: c.Bool("source"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List a project's revisions",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "seq", Usage: "Show a single revision (always includes source)"},
			&cli.BoolFlag{Name: "with-source", Usage: "Include source text per revision"},
		},
		Action: func(c *cli.Context) error {
			name, err := requireName(c)
			if err != nil {
				return err
			}

			output, err := ops.History(c.Context, deps, ops.HistoryInput{
				Name:       name,
				Seq:        c.Int("seq"),
				WithSource: c.Bool("with-source"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// installCmd creates the install command.
func installCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "install",
		Usage:     "Install packages into a project's environment",
		ArgsUsage: "<name> <package>...",
		Action: func(c *cli.Context) error {
			name, err := requireName(c)
			if err != nil {
				return err
			}

			output, err := ops.Install(c.Context, deps, ops.InstallInput{
				Name:     name,
				Packages: c.Args().Tail(),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// recreateCmd creates the recreate command.
func recreateCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "recreate",
		Usage:     "Delete and rebuild a project's environment, reinstalling declared dependencies",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name, err := requireName(c)
			if err != nil {
				return err
			}

			output, err := ops.Recreate(c.Context, deps, ops.RecreateInput{Name: name})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a project, its history, and its files",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "keep-files", Usage: "Keep the project directory on disk"},
		},
		Action: func(c *cli.Context) error {
			name, err := requireName(c)
			if err != nil {
				return err
			}

			output, err := ops.Delete(c.Context, deps, ops.DeleteInput{
				Name:      name,
				KeepFiles: c.Bool("keep-files"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a project's files to a zip archive (environment excluded)",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dest", Aliases: []string{"d"}, Usage: "Destination zip path (default: <name>.zip)"},
		},
		Action: func(c *cli.Context) error {
			name, err := requireName(c)
			if err != nil {
				return err
			}

			output, err := ops.Export(c.Context, deps, ops.ExportInput{
				Name: name,
				Dest: c.String("dest"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// webCmd creates the web command.
func webCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the browser UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind to"},
			&cli.IntFlag{Name: "port", Value: 8787, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(deps, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(srv); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// requireName returns the positional project name argument.
func requireName(c *cli.Context) (string, error) {
	name := strings.TrimSpace(c.Args().First())
	if name == "" {
		return "", outputError(errors.NewInvalidRequest("project name is required"))
	}
	return name, nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if fErr, ok := err.(*errors.ForgeError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", fErr.Code, fErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
