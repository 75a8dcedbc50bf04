package query

// EventKind classifies memo events.
type EventKind uint8

const (
	// EventExecute: a query function ran.
	EventExecute EventKind = iota + 1
	// EventBackdate: a query re-ran and produced a value equal to the old one.
	EventBackdate
	// EventValidate: a stale memo was confirmed current without re-running.
	EventValidate
	// EventHit: a memo verified at the current revision was returned.
	EventHit
	// EventWait: the caller blocked on another goroutine's computation.
	EventWait
	// EventCycle: a cycle was detected.
	EventCycle
	// EventSet: an input was set.
	EventSet
	// EventReset: a jar was reset.
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventExecute:
		return "execute"
	case EventBackdate:
		return "backdate"
	case EventValidate:
		return "validate"
	case EventHit:
		return "hit"
	case EventWait:
		return "wait"
	case EventCycle:
		return "cycle"
	case EventSet:
		return "set"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event describes something that happened to one memo.
type Event struct {
	Kind     EventKind
	Jar      string
	Query    string
	Input    any
	Revision Revision
}

func eventFor(kind EventKind, k key, rev Revision) Event {
	return Event{Kind: kind, Jar: k.jar, Query: k.query, Input: k.input, Revision: rev}
}
