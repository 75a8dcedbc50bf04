package runtime

import (
	"context"
	"log/slog"

	"github.com/risor-io/risor/object"

	"github.com/jward/arbor/internal/types"
)

// makeParseTypeFn creates the "parse_type" host function, which validates
// a descriptor and returns it in normal form.
//
// parse_type(descriptor) → string
func makeParseTypeFn() *object.Builtin {
	return object.NewBuiltin("parse_type", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse_type", 1, len(args))
		}
		s, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("parse_type: descriptor must be a string, got %s", args[0].Type())
		}
		t, err := ParseDescriptor(s.Value())
		if err != nil {
			return object.NewError(err)
		}
		return object.NewString(FormatDescriptor(t))
	})
}

// makeUnionFn creates the "union" host function. Arguments that are nil
// are skipped; no arguments give "unknown".
//
// union(descriptor, ...) → string
func makeUnionFn() *object.Builtin {
	return object.NewBuiltin("union", func(ctx context.Context, args ...object.Object) object.Object {
		members := make([]types.Type, 0, len(args))
		for i, a := range args {
			if a == object.Nil {
				continue
			}
			s, ok := a.(*object.String)
			if !ok {
				return object.Errorf("union: argument %d must be a string, got %s", i, a.Type())
			}
			t, err := ParseDescriptor(s.Value())
			if err != nil {
				return object.NewError(err)
			}
			members = append(members, t)
		}
		return object.NewString(FormatDescriptor(types.NewUnion(members...)))
	})
}

// stringOrNil converts s to a Risor string, or nil when empty.
func stringOrNil(s string) object.Object {
	if s == "" {
		return object.Nil
	}
	return object.NewString(s)
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "source", "script")
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "source", "script")
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "source", "script")
}
