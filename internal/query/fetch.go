package query

import (
	"context"
)

// get is the shared entry point behind Input.Get and Query.Get.
func (db *Database) get(ctx context.Context, j *Jar, ing ingredient, input any) (any, error) {
	parent := frameFrom(ctx)
	if parent == nil {
		// Pin the revision for the whole top-level call chain.
		db.revMu.RLock()
		defer db.revMu.RUnlock()
	}

	k := key{jar: j.name, query: ing.name(), input: input}
	res, err := db.fetch(ctx, parent, j, ing, k)
	parent.addDep(k)
	if err != nil {
		return nil, err
	}
	return res.value, res.err
}

// fetch returns the memo for k verified at the current revision, computing
// or revalidating it as needed. The returned error is an infrastructure
// failure (cycle, missing input); a query's own error travels in result.err.
func (db *Database) fetch(ctx context.Context, parent *frame, j *Jar, ing ingredient, k key) (result, error) {
	if parent.onStack(k) {
		return result{}, db.cycle(ctx, parent, k)
	}

	r := db.newRunner()
	if parent != nil {
		r = parent.runner
	}

	db.mu.Lock()
	for {
		rev := db.revision
		m, ok := j.memos[k]
		if !ok {
			if ing.isInput() {
				// Remember the absence so dependents can verify against it.
				m = absent(k, rev)
				j.memos[k] = m
				db.mu.Unlock()
				return result{err: m.err, changed: m.changed}, nil
			}
			m = &memo{}
			m.start(r)
			j.memos[k] = m
			db.mu.Unlock()
			return db.execute(ctx, parent, r, j, ing, k, m, rev)
		}

		if m.running != nil {
			waited := false
			if m.owner != r {
				if db.blocks(m.owner, r) {
					db.mu.Unlock()
					return result{}, db.cycle(ctx, parent, k)
				}
				db.waits[r] = m.owner
				waited = true
			}
			ch := m.running
			db.mu.Unlock()

			db.emit(eventFor(EventWait, k, rev))
			<-ch

			db.mu.Lock()
			if waited {
				delete(db.waits, r)
			}
			continue
		}

		if m.input || m.verified == rev {
			res := result{value: m.value, err: m.err, changed: m.changed}
			db.mu.Unlock()
			db.emit(eventFor(EventHit, k, rev))
			recordEvent(ctx, EventHit, k)
			return res, nil
		}

		m.start(r)
		db.mu.Unlock()
		return db.revalidate(ctx, parent, r, j, ing, k, m, rev)
	}
}

// blocks reports whether owner is, directly or transitively, waiting on r.
// Caller holds db.mu.
func (db *Database) blocks(owner, r *runner) bool {
	steps := len(db.waits) + 1
	for cur := owner; cur != nil && steps > 0; cur, steps = db.waits[cur], steps-1 {
		if cur == r {
			return true
		}
	}
	return false
}

func (db *Database) cycle(ctx context.Context, parent *frame, k key) error {
	cerr := newCycleError(parent, k)
	db.emit(eventFor(EventCycle, k, db.Revision()))
	recordEvent(ctx, EventCycle, k)
	db.logger.Debug("query cycle", "cycle", cerr.Error())
	return cerr
}

// execute runs the query function for a memo owned by r and publishes the
// result. Values equal to the previous one keep their changed revision.
func (db *Database) execute(ctx context.Context, parent *frame, r *runner, j *Jar, ing ingredient, k key, m *memo, rev Revision) (result, error) {
	published := false
	defer func() {
		if !published {
			db.abandon(j, k, m)
		}
	}()

	db.emit(eventFor(EventExecute, k, rev))
	recordEvent(ctx, EventExecute, k)
	db.logger.Debug("query execute", "query", k.String(), "revision", uint64(rev))

	f := &frame{parent: parent, key: k, runner: r, record: true}
	value, verr := ing.execute(withFrame(ctx, f), k.input)
	deps := f.dependencies()

	db.mu.Lock()
	published = true
	if IsCycle(verr) {
		// Never memoize a cycle; the next request starts from scratch.
		if !m.hasValue {
			delete(j.memos, k)
		}
		m.finish()
		db.mu.Unlock()
		return result{}, verr
	}

	backdated := false
	if m.hasValue && sameError(m.err, verr) {
		backdated = verr != nil || ing.equal(m.value, value)
	}
	if !backdated {
		m.changed = rev
	}
	m.value = value
	m.err = verr
	m.deps = deps
	m.verified = rev
	m.hasValue = true
	res := result{value: value, err: verr, changed: m.changed}
	m.finish()
	db.mu.Unlock()

	if backdated {
		db.emit(eventFor(EventBackdate, k, rev))
		recordEvent(ctx, EventBackdate, k)
		db.logger.Debug("query backdate", "query", k.String(), "revision", uint64(rev))
	}
	return res, nil
}

// revalidate re-verifies the dependencies of a stale memo in order. If none
// changed after the memo was last verified, the memo is marked current
// without running its function; otherwise it is re-executed.
func (db *Database) revalidate(ctx context.Context, parent *frame, r *runner, j *Jar, ing ingredient, k key, m *memo, rev Revision) (result, error) {
	handedOff := false
	defer func() {
		if !handedOff {
			db.abandon(j, k, m)
		}
	}()

	db.mu.Lock()
	deps := m.deps
	verified := m.verified
	hasValue := m.hasValue
	db.mu.Unlock()

	changed := !hasValue
	vf := &frame{parent: parent, key: k, runner: r}
	vctx := withFrame(ctx, vf)
	for _, d := range deps {
		if changed {
			break
		}
		db.mu.Lock()
		dj := db.jars[d.jar]
		ding := db.ingredientFor(d)
		db.mu.Unlock()
		if dj == nil || ding == nil {
			changed = true
			break
		}
		dres, err := db.fetch(vctx, vf, dj, ding, d)
		if err != nil || dres.changed > verified {
			changed = true
		}
	}

	if changed {
		handedOff = true
		return db.execute(ctx, parent, r, j, ing, k, m, rev)
	}

	db.mu.Lock()
	m.verified = rev
	res := result{value: m.value, err: m.err, changed: m.changed}
	m.finish()
	handedOff = true
	db.mu.Unlock()

	db.emit(eventFor(EventValidate, k, rev))
	recordEvent(ctx, EventValidate, k)
	return res, nil
}

// abandon releases a memo whose owner panicked so waiters do not hang.
func (db *Database) abandon(j *Jar, k key, m *memo) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if m.running == nil {
		return
	}
	if !m.hasValue {
		delete(j.memos, k)
	}
	m.finish()
}
