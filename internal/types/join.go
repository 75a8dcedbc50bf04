package types

// JoinFunc combines the types of the candidate bindings reaching a use.
// Candidates arrive in binding source order and are never empty.
type JoinFunc func(candidates []Type) Type

// UnionJoin is the default policy: the union of all candidates.
func UnionJoin(candidates []Type) Type {
	return NewUnion(candidates...)
}

// LastJoin picks the candidate bound last in source order.
func LastJoin(candidates []Type) Type {
	return candidates[len(candidates)-1]
}

// KnownUnionJoin unions the candidates but drops Unknown members while at
// least one candidate is known.
func KnownUnionJoin(candidates []Type) Type {
	known := make([]Type, 0, len(candidates))
	for _, c := range candidates {
		if !IsUnknown(c) {
			known = append(known, c)
		}
	}
	if len(known) == 0 {
		return Unknown{}
	}
	return NewUnion(known...)
}
