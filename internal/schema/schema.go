// Package schema holds per-source metadata: column lists, column data
// types, optional enum bindings, and the primary-key column name. It is
// immutable once loaded; the concrete YAML loader and CLI that populate
// it at process bootstrap are out of scope here (see spec §1, §6) —
// this package only defines the in-memory contract and its load-time
// validation.
package schema

import (
	"github.com/pkg/errors"

	"github.com/tycoworks/tycostream/internal/ident"
	"github.com/tycoworks/tycostream/internal/types"
)

// Column describes one column of a Source.
type Column struct {
	Name     ident.Ident
	Type     types.DataType
	Nullable bool
	// EnumRef, if non-empty, names an enum binding that the dialect
	// resolves to the column's decoded string values. Empty means the
	// column is not enum-bound.
	EnumRef string
}

// Source is an immutable descriptor of one configured upstream view.
type Source struct {
	Name       string
	PrimaryKey ident.Ident
	Columns    []Column
}

// Column looks up a column by name.
func (s *Source) Column(name ident.Ident) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name.Equal(name) {
			return c, true
		}
	}
	return Column{}, false
}

// Registry is the immutable-after-load Schema Registry (spec §4.1).
type Registry struct {
	sources map[string]*Source
	order   []string
}

// Builder accumulates sources prior to a single validating Load. The
// concrete YAML/CLI loader (out of scope) is expected to populate a
// Builder and call Load once at startup.
type Builder struct {
	sources []*Source
	enums   map[string]map[string]struct{} // enum name -> valid members
}

// NewBuilder constructs an empty Builder. enums declares the full set
// of valid members for each named enum binding a Column may reference.
func NewBuilder(enums map[string][]string) *Builder {
	b := &Builder{enums: make(map[string]map[string]struct{}, len(enums))}
	for name, members := range enums {
		set := make(map[string]struct{}, len(members))
		for _, m := range members {
			set[m] = struct{}{}
		}
		b.enums[name] = set
	}
	return b
}

// AddSource registers a source descriptor to be validated on Load.
func (b *Builder) AddSource(s *Source) {
	b.sources = append(b.sources, s)
}

// Load validates every added source and, if all are well-formed,
// returns an immutable Registry. Validation failures return the first
// *types.SchemaError encountered; this is fail-fast per spec §9's
// resolved Open Question, never a silently-empty registry.
func (b *Builder) Load() (*Registry, error) {
	reg := &Registry{sources: make(map[string]*Source, len(b.sources))}
	for _, s := range b.sources {
		if err := b.validate(s); err != nil {
			return nil, err
		}
		reg.sources[s.Name] = s
		reg.order = append(reg.order, s.Name)
	}
	return reg, nil
}

func (b *Builder) validate(s *Source) error {
	if len(s.Columns) == 0 {
		return errors.WithStack(&types.SchemaError{Source: s.Name, Reason: "source has no columns"})
	}

	var pkFound bool
	for _, c := range s.Columns {
		if c.Name.Equal(s.PrimaryKey) {
			pkFound = true
		}
		if c.Type == types.DataTypeUnknown {
			return errors.WithStack(&types.SchemaError{
				Source: s.Name, Column: c.Name.Raw(),
				Reason: "column type does not resolve to the fixed taxonomy",
			})
		}
		if c.EnumRef != "" {
			if _, ok := b.enums[c.EnumRef]; !ok {
				return errors.WithStack(&types.SchemaError{
					Source: s.Name, Column: c.Name.Raw(),
					Reason: "enum reference " + c.EnumRef + " does not resolve",
				})
			}
		}
	}
	if !pkFound {
		return errors.WithStack(&types.SchemaError{
			Source: s.Name,
			Reason: "primary key column " + s.PrimaryKey.Raw() + " not found among columns",
		})
	}
	return nil
}

// Lookup returns the Source descriptor for name, or a *types.SchemaError
// if it is unknown. Fail-fast: there is no "return empty" variant.
func (r *Registry) Lookup(name string) (*Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, errors.WithStack(&types.SchemaError{Source: name, Reason: "source not found"})
	}
	return s, nil
}

// All returns every registered source, in registration order.
func (r *Registry) All() []*Source {
	out := make([]*Source, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sources[name])
	}
	return out
}
