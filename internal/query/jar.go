package query

import "sort"

// Jar is a named family of queries sharing one memo table. Jars let a
// compound system mount independent subsystems (inputs, index, types) and
// reset one of them without touching the others.
type Jar struct {
	db      *Database
	name    string
	queries []string

	// memos is guarded by db.mu.
	memos map[key]*memo
}

// Name returns the jar's name.
func (j *Jar) Name() string { return j.name }

// Database returns the database the jar is mounted in.
func (j *Jar) Database() *Database { return j.db }

// Queries returns the names of the queries registered in the jar, sorted.
func (j *Jar) Queries() []string {
	j.db.mu.Lock()
	defer j.db.mu.Unlock()
	out := append([]string(nil), j.queries...)
	sort.Strings(out)
	return out
}

// Len returns the number of memos currently held by the jar.
func (j *Jar) Len() int {
	j.db.mu.Lock()
	defer j.db.mu.Unlock()
	return len(j.memos)
}

// Reset discards every derived memo in the jar and bumps the revision so
// dependents in other jars re-verify. Inputs held by the jar are kept.
// Reset waits for in-flight top-level Gets to finish.
func (j *Jar) Reset() Revision {
	db := j.db
	db.revMu.Lock()
	defer db.revMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()

	for k, m := range j.memos {
		if !m.input {
			delete(j.memos, k)
		}
	}
	db.revision++
	db.emit(Event{Kind: EventReset, Jar: j.name, Revision: db.revision})
	return db.revision
}
