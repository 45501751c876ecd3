// Package registry holds the flat, insertion-ordered element table that
// backs every other subsystem: the schema loader populates it, the
// dispatcher and table engine consult it to know what a name names.
// Construction is idempotent: EnsureTable and EnsureTableChain may be
// called repeatedly for overlapping templates without disturbing what
// is already registered.
package registry

import (
	"strings"

	"github.com/stepherg/rbus-elements/internal/nametree"
	"github.com/stepherg/rbus-elements/internal/value"
)

const instanceToken = "{i}"

// Kind distinguishes the four element shapes the data model supports.
type Kind uint8

const (
	KindProperty Kind = iota
	KindTable
	KindEvent
	KindMethod
)

func (k Kind) String() string {
	switch k {
	case KindProperty:
		return "property"
	case KindTable:
		return "table"
	case KindEvent:
		return "event"
	case KindMethod:
		return "method"
	default:
		return "unknown"
	}
}

// Element is one named entry in the data model: a scalar property, a
// table template, an event, or an invokable method.
type Element struct {
	// Name is the template form: concrete for non-row elements, containing
	// "{i}" segments for anything beneath a table.
	Name string
	Kind Kind

	// Writable applies to KindProperty only.
	Writable bool
	// Default is the template default value materialized into each new
	// row (or returned directly for a non-row property). Zero value for
	// non-property kinds.
	Default value.Value

	// NumberOfEntriesName is set on a KindTable element: the sibling
	// synthetic counter property's full name
	// ("Device.Foo.NumberOfEntries" for the table "Device.Foo.{i}").
	NumberOfEntriesName string

	// GetHandler, bound only on select built-in read-only properties,
	// invokes a platform probe instead of returning Default directly.
	GetHandler func() (value.Value, error)

	// MethodHandler is bound on KindMethod elements.
	MethodHandler func(in map[string]value.Value) (map[string]value.Value, error)
}

// Registry is a hashmap-backed element store with insertion-order
// iteration.
type Registry struct {
	byName map[string]*Element
	order  []string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*Element)}
}

// Insert adds e, keyed by e.Name. Re-inserting the same name overwrites
// in place without disturbing its position in iteration order; this is
// what lets EnsureTableChain be idempotent.
func (r *Registry) Insert(e Element) {
	if _, exists := r.byName[e.Name]; !exists {
		r.order = append(r.order, e.Name)
	}
	ec := e
	r.byName[e.Name] = &ec
}

// Get looks up an element by its exact (template) name.
func (r *Registry) Get(name string) (Element, bool) {
	e, ok := r.byName[name]
	if !ok {
		return Element{}, false
	}
	return *e, true
}

// Iter returns every element in insertion order. The bootstrapper relies
// on this order to register elements with the bus and to prime defaults.
func (r *Registry) Iter() []Element {
	out := make([]Element, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.byName[name])
	}
	return out
}

// Len reports the number of distinct registered names.
func (r *Registry) Len() int { return len(r.order) }

// NumberOfEntriesName derives the synthetic counter name for the table
// element tableName (e.g. "Device.Foo.{i}" or "Device.A.{i}.B.{i}").
// The counter sits beside the table, not inside a row slot, so the
// trailing ".{i}" is stripped before appending: "Device.A.{i}.B.{i}"
// yields "Device.A.{i}.B.NumberOfEntries".
func NumberOfEntriesName(tableName string) string {
	return strings.TrimSuffix(tableName, "."+instanceToken) + ".NumberOfEntries"
}

// EnsureTable inserts a KindTable element for tableName (ending in the
// literal "{i}" token, e.g. "Device.Foo.{i}") plus its NumberOfEntries
// sibling property, if not already present. Idempotent.
func (r *Registry) EnsureTable(tableName string) {
	if _, exists := r.Get(tableName); exists {
		return
	}
	noeName := NumberOfEntriesName(tableName)
	r.Insert(Element{
		Name:                tableName,
		Kind:                KindTable,
		NumberOfEntriesName: noeName,
	})
	r.Insert(Element{
		Name:     noeName,
		Kind:     KindProperty,
		Writable: false,
		Default:  value.UInt32(0),
	})
}

// EnsureTableChain walks every table ancestor implied by template (each
// ".{i}." boundary) and ensures a KindTable element plus its
// NumberOfEntries sibling property for every ancestor not already
// present. It does not create a table for template itself: callers
// with a leaf template get that for free (the leaf's nearest ancestor
// boundary is the table that directly owns it); callers declaring a
// table name directly must also call EnsureTable(template) themselves.
// Safe to call repeatedly for overlapping templates.
func (r *Registry) EnsureTableChain(template string) error {
	if !nametree.IsTemplate(template) {
		return nil
	}
	cur := template
	for {
		parent, ok := nametree.ParentTemplate(cur)
		if !ok {
			break
		}
		tableName := parent[:len(parent)-1] // drop trailing "."
		r.EnsureTable(tableName)
		cur = parent
	}
	return nil
}
