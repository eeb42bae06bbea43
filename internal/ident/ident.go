// Package ident provides lightweight, comparable name wrappers for
// source and column identifiers, so that they can be used as map keys
// without accidental case- or whitespace-sensitivity bugs.
package ident

import "strings"

// Ident is a case-preserving but case-insensitively-compared name, such
// as a column or source name.
type Ident struct {
	raw string
}

// New wraps a raw string as an Ident.
func New(raw string) Ident { return Ident{raw: raw} }

// Raw returns the original, case-preserved string.
func (i Ident) Raw() string { return i.raw }

// String implements fmt.Stringer.
func (i Ident) String() string { return i.raw }

// key returns the case-folded form used for comparison/hashing.
func (i Ident) key() string { return strings.ToLower(i.raw) }

// Equal reports whether two Idents name the same column/source,
// ignoring case.
func (i Ident) Equal(o Ident) bool { return i.key() == o.key() }

// Map is a map keyed by the case-folded form of Ident, preserving the
// convenience of a plain map while normalizing lookups.
type Map[V any] struct {
	m map[string]entry[V]
}

type entry[V any] struct {
	key   Ident
	value V
}

// NewMap constructs an empty Map.
func NewMap[V any]() *Map[V] {
	return &Map[V]{m: make(map[string]entry[V])}
}

// Get retrieves the value associated with id.
func (m *Map[V]) Get(id Ident) (V, bool) {
	e, ok := m.m[id.key()]
	return e.value, ok
}

// Put stores a value under id.
func (m *Map[V]) Put(id Ident, v V) {
	m.m[id.key()] = entry[V]{key: id, value: v}
}

// Range calls fn for every entry; iteration order is unspecified.
func (m *Map[V]) Range(fn func(id Ident, v V) error) error {
	for _, e := range m.m {
		if err := fn(e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of entries.
func (m *Map[V]) Len() int { return len(m.m) }
