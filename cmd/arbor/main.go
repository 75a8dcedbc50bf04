package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/config"
)

// errReported is returned once a command has written its own failure
// output, so main exits non-zero without printing again.
var errReported = errors.New("reported")

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// cli holds the persistent flags and output streams shared by every
// command.
type cli struct {
	db      string
	format  string
	verbose bool

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "arbor",
		Short:         "Incremental name resolution and type inference for Python",
		Long:          "Arbor parses a Python workspace with tree-sitter, resolves every name to the bindings that reach it, and infers types on demand.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(c.format)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&c.db, "db", "", "snapshot database path (default: from arbor.yaml, else .arbor/snapshot.db)")
	root.PersistentFlags().StringVar(&c.format, "format", "text", "output format: json|text")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(c.indexCmd())
	root.AddCommand(c.checkCmd())
	root.AddCommand(c.typeCmd())
	root.AddCommand(c.watchCmd())
	root.AddCommand(c.queryCmd())
	return root
}

func (c *cli) logger() *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))
}

// openEngine loads the workspace settings of root and builds an Engine
// from them. withStore controls whether the snapshot database is opened.
func (c *cli) openEngine(root string, withStore bool) (*arbor.Engine, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if c.db != "" {
		cfg.DB = c.db
	}
	if !withStore {
		cfg.DB = ""
	}
	opts, err := arbor.OptionsFromConfig(root, cfg, c.logger())
	if err != nil {
		return nil, err
	}
	e, err := arbor.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}

func (c *cli) indexCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "index [root]",
		Short: "Check a workspace and write its snapshot database",
		Long:  "Resolves and types every Python file under root, then writes scopes, bindings, uses and diagnostics to the snapshot database. Files whose inputs are unchanged since the last run are kept as stored.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			targetDir, err := resolveTargetDir(args)
			if err != nil {
				return err
			}
			root := targetDir

			if force {
				dbPath, err := c.dbPath(root)
				if err != nil {
					return err
				}
				if err := os.Remove(dbPath); err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("removing database for --force: %w", err)
				}
				fmt.Fprintf(c.stderr, "Cleared database: %s\n", dbPath)
			}

			e, err := c.openEngine(root, true)
			if err != nil {
				return err
			}
			defer e.Close()
			if e.Store() == nil {
				return fmt.Errorf("no snapshot database configured (set db in %s or pass --db)", config.FileName)
			}

			ctx := cmd.Context()
			if err := e.LoadDirectory(ctx, targetDir); err != nil {
				return fmt.Errorf("loading: %w", err)
			}
			res, err := e.Sync(ctx)
			if err != nil {
				return fmt.Errorf("indexing: %w", err)
			}

			fmt.Fprintf(c.stderr, "Indexed %s in %s (written: %d, unchanged: %d, pruned: %d)\n",
				targetDir, time.Since(start).Round(time.Millisecond), res.Written, res.Unchanged, res.Pruned)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "delete the database and rebuild it from scratch")
	return cmd
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [root]",
		Short: "Report unbound names and syntax errors",
		Long:  "Resolves every Python file under root and prints one diagnostic per problem. Exits non-zero when any diagnostic is reported.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetDir, err := resolveTargetDir(args)
			if err != nil {
				return err
			}
			e, err := c.openEngine(targetDir, false)
			if err != nil {
				return c.outputError("check", err)
			}
			defer e.Close()

			ctx := cmd.Context()
			if err := e.LoadDirectory(ctx, targetDir); err != nil {
				return c.outputError("check", fmt.Errorf("loading: %w", err))
			}
			diags, err := e.Check(ctx)
			if err != nil {
				return c.outputError("check", err)
			}
			if err := c.outputResult(CLIResult{Command: "check", Results: toCLIDiagnostics(diags)}); err != nil {
				return err
			}
			if len(diags) > 0 {
				return errReported
			}
			return nil
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Re-check the workspace on every file change",
		Long:  "Checks every Python file under root, then follows edits and prints the diagnostics after each batch of changes. Only the analysis depending on edited files is redone. Stops on interrupt.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetDir, err := resolveTargetDir(args)
			if err != nil {
				return err
			}
			e, err := c.openEngine(targetDir, false)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if err := e.LoadDirectory(ctx, targetDir); err != nil {
				return fmt.Errorf("loading: %w", err)
			}
			diags, err := e.Check(ctx)
			if err != nil {
				return err
			}
			if err := c.outputResult(CLIResult{Command: "watch", Results: toCLIDiagnostics(diags)}); err != nil {
				return err
			}

			err = e.Watch(ctx, targetDir, debounce, func(ctx context.Context, res *arbor.WatchResult) error {
				fmt.Fprintf(c.stderr, "Rechecked after %d change(s), %d removal(s)\n", len(res.Changed), len(res.Removed))
				return c.outputResult(CLIResult{Command: "watch", Results: toCLIDiagnostics(res.Diagnostics)})
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", arbor.DefaultDebounce, "quiet period before a batch of edits is applied")
	return cmd
}

func (c *cli) typeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "type <file:line:col>",
		Short: "Print the inferred type of the expression at a position",
		Long:  "Loads the workspace containing file and prints the type of the innermost expression at the 1-based line and column.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[0])
			if err != nil {
				return c.outputError("type", err)
			}
			abs, err := filepath.Abs(pos.File)
			if err != nil {
				return c.outputError("type", err)
			}
			root := findRepoRoot(filepath.Dir(abs))
			rel, err := filepath.Rel(root, abs)
			if err != nil {
				return c.outputError("type", err)
			}

			e, err := c.openEngine(root, false)
			if err != nil {
				return c.outputError("type", err)
			}
			defer e.Close()

			ctx := cmd.Context()
			if err := e.LoadDirectory(ctx, root); err != nil {
				return c.outputError("type", fmt.Errorf("loading: %w", err))
			}
			f := arbor.File(filepath.ToSlash(rel))
			t, err := e.Model(f).TypeAtPosition(ctx, pos.Line, pos.Col)
			if err != nil {
				return c.outputError("type", err)
			}
			return c.outputResult(CLIResult{Command: "type", Results: CLIType{
				File: string(f), Line: pos.Line, Col: pos.Col, Type: t.String(),
			}})
		},
	}
}

// resolveTargetDir returns the absolute path of the workspace root to
// load. Module names are derived from paths relative to it.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for arbor.yaml or a .git
// directory. Returns startDir if neither is found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
			return dir
		}
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// dbPath returns the snapshot database path for root: the --db flag, else
// the configured one.
func (c *cli) dbPath(root string) (string, error) {
	p := c.db
	if p == "" {
		cfg, err := config.Load(root)
		if err != nil {
			return "", err
		}
		p = cfg.DB
	}
	if p == "" {
		return "", fmt.Errorf("no snapshot database configured (set db in %s or pass --db)", config.FileName)
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	return filepath.Join(root, p), nil
}
