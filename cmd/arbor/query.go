package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
)

func (c *cli) queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the snapshot database",
		Long:  "Read the facts written by the last 'arbor index'. Lines and columns are 1-based.",
	}
	cmd.AddCommand(c.definitionsCmd())
	cmd.AddCommand(c.referencesCmd())
	cmd.AddCommand(c.diagnosticsCmd())
	cmd.AddCommand(c.scopeCmd())
	cmd.AddCommand(c.filesCmd())
	return cmd
}

// --- Helpers ---

// openSnapshot opens an Engine over the existing snapshot database of the
// workspace containing the working directory.
func (c *cli) openSnapshot() (*arbor.Engine, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("getting cwd: %w", err)
	}
	root := findRepoRoot(cwd)
	dbPath, err := c.dbPath(root)
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return nil, "", fmt.Errorf("database not found: %s (run 'arbor index' first)", dbPath)
	}
	e, err := arbor.New(arbor.WithStore(dbPath), arbor.WithLogger(c.logger()))
	if err != nil {
		return nil, "", err
	}
	return e, root, nil
}

// relPath converts a file argument to the slash path the snapshot stores,
// relative to root.
func relPath(root, file string) (string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return filepath.ToSlash(rel), nil
}

// parsePosition splits "file:line:col". The file part may itself contain
// colons.
func parsePosition(arg string) (CLILocation, error) {
	i := strings.LastIndex(arg, ":")
	if i < 0 {
		return CLILocation{}, fmt.Errorf("invalid position %q: want file:line:col", arg)
	}
	j := strings.LastIndex(arg[:i], ":")
	if j < 0 {
		return CLILocation{}, fmt.Errorf("invalid position %q: want file:line:col", arg)
	}
	line, err := strconv.Atoi(arg[j+1 : i])
	if err != nil || line < 1 {
		return CLILocation{}, fmt.Errorf("invalid line in %q", arg)
	}
	col, err := strconv.Atoi(arg[i+1:])
	if err != nil || col < 1 {
		return CLILocation{}, fmt.Errorf("invalid column in %q", arg)
	}
	if arg[:j] == "" {
		return CLILocation{}, fmt.Errorf("invalid position %q: empty file", arg)
	}
	return CLILocation{File: arg[:j], Line: line, Col: col}, nil
}

// outputResult writes result in the selected format.
func (c *cli) outputResult(result CLIResult) error {
	if c.format == "text" {
		return outputResultText(c.stdout, result)
	}
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns
// errReported. In JSON mode the error goes to stdout as a CLIResult
// envelope. In text mode it goes to stderr.
func (c *cli) outputError(command string, err error) error {
	if c.format == "text" {
		fmt.Fprintf(c.stderr, "Error: %s\n", err)
		return errReported
	}
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return errReported
}

// --- Commands ---

func (c *cli) definitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "definitions <name>",
		Short: "List every binding of a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := c.openSnapshot()
			if err != nil {
				return c.outputError("definitions", err)
			}
			defer e.Close()

			defs, err := e.Query().DefinitionsOf(args[0])
			if err != nil {
				return c.outputError("definitions", err)
			}
			out := make([]CLIDefinition, len(defs))
			for i, d := range defs {
				out[i] = toCLIDefinition(d)
			}
			return c.outputResult(CLIResult{Command: "definitions", Results: out})
		},
	}
}

func (c *cli) referencesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "references <name>",
		Short: "List every use of a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := c.openSnapshot()
			if err != nil {
				return c.outputError("references", err)
			}
			defer e.Close()

			refs, err := e.Query().ReferencesTo(args[0])
			if err != nil {
				return c.outputError("references", err)
			}
			out := make([]CLIReference, len(refs))
			for i, r := range refs {
				out[i] = CLIReference{CLILocation: toCLILocation(r.Location), Name: r.Name, Reaching: r.Reaching}
			}
			return c.outputResult(CLIResult{Command: "references", Results: out})
		},
	}
}

func (c *cli) diagnosticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnostics <file>",
		Short: "List the stored diagnostics of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, root, err := c.openSnapshot()
			if err != nil {
				return c.outputError("diagnostics", err)
			}
			defer e.Close()

			rel, err := relPath(root, args[0])
			if err != nil {
				return c.outputError("diagnostics", err)
			}
			diags, err := e.Query().Diagnostics(rel)
			if err != nil {
				return c.outputError("diagnostics", err)
			}
			return c.outputResult(CLIResult{Command: "diagnostics", Results: toCLIDiagnostics(diags)})
		},
	}
}

func (c *cli) scopeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scope <file:line:col>",
		Short: "Show the innermost scope containing a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[0])
			if err != nil {
				return c.outputError("scope", err)
			}
			e, root, err := c.openSnapshot()
			if err != nil {
				return c.outputError("scope", err)
			}
			defer e.Close()

			rel, err := relPath(root, pos.File)
			if err != nil {
				return c.outputError("scope", err)
			}
			sc, err := e.Query().ScopeAt(rel, pos.Line, pos.Col)
			if err != nil {
				return c.outputError("scope", err)
			}
			if sc == nil {
				return c.outputResult(CLIResult{Command: "scope"})
			}
			return c.outputResult(CLIResult{Command: "scope", Results: CLIScope{
				Kind:  sc.Kind,
				Name:  sc.Name,
				Start: toCLILocation(sc.Start),
				End:   toCLILocation(sc.End),
			}})
		},
	}
}

func (c *cli) filesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List every file in the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := c.openSnapshot()
			if err != nil {
				return c.outputError("files", err)
			}
			defer e.Close()

			files, err := e.Query().Files()
			if err != nil {
				return c.outputError("files", err)
			}
			return c.outputResult(CLIResult{Command: "files", Results: files})
		},
	}
}
