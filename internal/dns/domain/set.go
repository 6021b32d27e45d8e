package domain

import "sort"

// Set is a working set of unique canonical domain names.
type Set map[string]struct{}

// NewSet returns a Set holding names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name and reports whether it was not already present.
func (s Set) Add(name string) bool {
	if _, ok := s[name]; ok {
		return false
	}
	s[name] = struct{}{}
	return true
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of names.
func (s Set) Len() int { return len(s) }

// Merge adds every name of other and returns how many were new.
func (s Set) Merge(other Set) int {
	added := 0
	for n := range other {
		if s.Add(n) {
			added++
		}
	}
	return added
}

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
