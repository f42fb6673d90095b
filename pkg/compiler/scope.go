package compiler

// scopeStack tracks the names declared in each open block.
// Lookup is membership across the whole stack: an inner declaration does
// not shadow an outer one, it only makes the name usable.
type scopeStack struct {
	scopes []map[string]struct{}
}

// push opens a block and declares names in it.
func (s *scopeStack) push(names ...string) {
	scope := make(map[string]struct{}, len(names))
	for _, name := range names {
		scope[name] = struct{}{}
	}
	s.scopes = append(s.scopes, scope)
}

func (s *scopeStack) pop() {
	if len(s.scopes) > 0 {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

// declare records name in the innermost scope.
func (s *scopeStack) declare(name string) {
	if len(s.scopes) == 0 {
		s.push()
	}
	s.scopes[len(s.scopes)-1][name] = struct{}{}
}

// defined reports whether name is declared in any open scope.
func (s *scopeStack) defined(name string) bool {
	for _, scope := range s.scopes {
		if _, ok := scope[name]; ok {
			return true
		}
	}
	return false
}

func (s *scopeStack) depth() int { return len(s.scopes) }
