package arbor

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

// benchPySource is a realistic Python module with classes, methods,
// imports, loops and comprehensions for exercising the full pipeline.
const benchPySource = `import os
import sys
from typing import Optional


class Config:
    name = "app"
    debug = False
    retries = 3

    def validate(self) -> bool:
        if not self.name:
            return False
        return self.retries >= 0

    def describe(self) -> str:
        return f"Config({self.name}, debug={self.debug})"


class Logger:
    def __init__(self, prefix: str = ""):
        self.prefix = prefix

    def log(self, msg: str) -> None:
        print(self.prefix, msg, file=sys.stderr)


class App:
    def __init__(self, cfg: Config, log: Optional[Logger] = None):
        self.cfg = cfg
        self.log = log or Logger()

    def run(self) -> int:
        if not self.cfg.validate():
            return 1
        for i in range(self.cfg.retries):
            self.log.log(f"attempt {i}")
        paths = [os.path.join("data", p) for p in ("a", "b", "c")]
        total = 0
        for p in paths:
            total += len(p)
        return total


def build_greeting(name: str) -> str:
    return "Hello, " + name + "!"


def count_words(s: str) -> int:
    return len(s.split())


cfg = Config()
app = App(cfg)
code = app.run()
greeting = build_greeting(cfg.name)
words = count_words(greeting)
`

func setupBenchEngine(b *testing.B, opts ...Option) *Engine {
	b.Helper()
	e, err := New(opts...)
	if err != nil {
		b.Fatal(err)
	}
	for i := range 10 {
		e.SetSource(File(fmt.Sprintf("bench/m%d.py", i)), []byte(benchPySource))
	}
	return e
}

// BenchmarkCheck_Cold measures a full check of ten modules on a fresh
// engine, parsing and inference included.
func BenchmarkCheck_Cold(b *testing.B) {
	ctx := context.Background()
	for b.Loop() {
		b.StopTimer()
		e := setupBenchEngine(b)
		b.StartTimer()

		if _, err := e.Check(ctx); err != nil {
			b.Fatal(err)
		}

		b.StopTimer()
		e.Close()
		b.StartTimer()
	}
}

// BenchmarkCheck_AfterEdit measures re-checking after a one-file edit that
// leaves every other module's memos valid.
func BenchmarkCheck_AfterEdit(b *testing.B) {
	e := setupBenchEngine(b)
	defer e.Close()
	ctx := context.Background()
	if _, err := e.Check(ctx); err != nil {
		b.Fatal(err)
	}

	i := 0
	for b.Loop() {
		i++
		e.SetSource("bench/m0.py", []byte(benchPySource+fmt.Sprintf("# edit %d\n", i)))
		if _, err := e.Check(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSync_Unchanged measures a Sync whose fingerprints all match the
// store.
func BenchmarkSync_Unchanged(b *testing.B) {
	e := setupBenchEngine(b, WithStore(filepath.Join(b.TempDir(), "bench.db")))
	defer e.Close()
	ctx := context.Background()
	if _, err := e.Sync(ctx); err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		if _, err := e.Sync(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkTypeAt measures a memoized type lookup.
func BenchmarkTypeAt(b *testing.B) {
	e := setupBenchEngine(b)
	defer e.Close()
	ctx := context.Background()
	m := e.Model("bench/m0.py")
	if _, err := m.TypeAtPosition(ctx, 55, 1); err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		if _, err := m.TypeAtPosition(ctx, 55, 1); err != nil {
			b.Fatal(err)
		}
	}
}
