package arbor

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
)

// skipDirs are never descended into, whatever the ignore files say.
var skipDirs = map[string]bool{
	"__pycache__":   true,
	"node_modules":  true,
	"venv":          true,
	".venv":         true,
	".tox":          true,
	".mypy_cache":   true,
	".pytest_cache": true,
}

// Discover returns the Python source files under root as slash-separated
// paths relative to root, sorted. Inside a git work tree the files are the
// ones git ls-files reports; otherwise root's .gitignore is honoured.
// Hidden entries, symlinks, skipDirs, and paths matching an exclude
// pattern are left out in both cases.
func (e *Engine) Discover(root string) ([]string, error) {
	tracked := gitListFiles(root)
	var gi *ignore.GitIgnore
	if tracked == nil {
		gi = loadGitignore(root)
	}

	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if strings.HasPrefix(name, ".") || skipDirs[name] || e.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if filepath.Ext(name) != ".py" || e.excluded(rel) {
			return nil
		}
		if tracked != nil {
			if !tracked[rel] {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("arbor: walk directory: %w", err)
	}
	slices.Sort(paths)
	e.logger.Debug("discovered files", "root", root, "files", len(paths), "git", tracked != nil)
	return paths, nil
}

// excluded reports whether rel, or any element of it, matches an exclude
// pattern.
func (e *Engine) excluded(rel string) bool {
	for _, pat := range e.exclude {
		if ok, _ := path.Match(pat, rel); ok {
			return true
		}
		for _, elem := range strings.Split(rel, "/") {
			if ok, _ := path.Match(pat, elem); ok {
				return true
			}
		}
	}
	return false
}

// gitListFiles returns the tracked and untracked-but-not-ignored files of
// the work tree rooted at root, or nil if root is not one.
func gitListFiles(root string) map[string]bool {
	if info, err := os.Stat(filepath.Join(root, ".git")); err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil
	}

	files := make(map[string]bool)
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files[line] = true
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
