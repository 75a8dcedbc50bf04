package query

import (
	"context"
	"sync"
)

// frame is the active query record carried in a context. It collects the
// dependencies read by the running query function and links to its caller
// for cycle detection.
type frame struct {
	parent *frame
	key    key
	runner *runner
	record bool

	mu   sync.Mutex
	deps []key
	seen map[key]struct{}
}

type frameCtxKey struct{}

func frameFrom(ctx context.Context) *frame {
	f, _ := ctx.Value(frameCtxKey{}).(*frame)
	return f
}

func withFrame(ctx context.Context, f *frame) context.Context {
	return context.WithValue(ctx, frameCtxKey{}, f)
}

// addDep records k as read by the frame. Query functions may fan out to
// goroutines sharing the same context, so appends are locked.
func (f *frame) addDep(k key) {
	if f == nil || !f.record {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[key]struct{})
	}
	if _, ok := f.seen[k]; ok {
		return
	}
	f.seen[k] = struct{}{}
	f.deps = append(f.deps, k)
}

func (f *frame) dependencies() []key {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]key(nil), f.deps...)
}

// onStack reports whether k is being computed by f or one of its callers.
func (f *frame) onStack(k key) bool {
	for cur := f; cur != nil; cur = cur.parent {
		if cur.key == k {
			return true
		}
	}
	return false
}

// path returns the keys from the outermost caller down to f.
func (f *frame) path() []key {
	var out []key
	for cur := f; cur != nil; cur = cur.parent {
		out = append(out, cur.key)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
