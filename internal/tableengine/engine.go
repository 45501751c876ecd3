// Package tableengine holds the concrete rows that exist beneath each
// table: instance numbers, aliases, and the row-local property values
// materialized from the owning template's defaults. Rows are kept in a
// btree ordered by instance number alongside a creation-order list, so
// selector lookup stays sub-linear and listing stays deterministic.
package tableengine

import (
	"strconv"
	"strings"

	"github.com/google/btree"

	"github.com/stepherg/rbus-elements/internal/nametree"
	"github.com/stepherg/rbus-elements/internal/rbuserr"
	"github.com/stepherg/rbus-elements/internal/registry"
	"github.com/stepherg/rbus-elements/internal/value"
)

// Row is one concrete instance of a table.
type Row struct {
	Instance uint32
	Alias    string // empty if no alias was assigned
	// values holds only leaves that have been read or written at least
	// once, keyed by full leaf template name; anything absent still
	// resolves to the template default.
	values map[string]value.Value
}

func rowLess(a, b *Row) bool { return a.Instance < b.Instance }

// Table is the live row set beneath one concrete table prefix, e.g.
// "Device.Foo." or, nested one level down inside row 2 of an ancestor
// table, "Device.A.2.B.". Each distinct concrete ancestor path gets its
// own Table even though they all share one wildcard template.
type Table struct {
	Prefix       string // concrete, always ends in "."
	rows         *btree.BTreeG[*Row]
	byAlias      map[string]*Row
	order        []*Row // creation order, for deterministic listing
	nextInstance uint32
}

func newTable(prefix string) *Table {
	return &Table{
		Prefix:  prefix,
		rows:    btree.NewG(32, rowLess),
		byAlias: make(map[string]*Row),
	}
}

// Engine owns every concrete Table, keyed by its concrete prefix, plus a
// reference to the registry it uses to resolve row-leaf defaults and
// validate types.
type Engine struct {
	reg    *registry.Registry
	tables map[string]*Table
}

// New returns an Engine bound to reg. The engine does not copy or own
// the registry's lifetime; callers (the dispatcher) are responsible for
// serializing access per the single-exclusive-lock model.
func New(reg *registry.Registry) *Engine {
	return &Engine{reg: reg, tables: make(map[string]*Table)}
}

// TableElementName derives the Registry key for the Table element that
// owns the concrete table at prefix: ToTemplate collapses every ancestor
// instance segment, then the table's own still-unassigned row slot is
// appended as the literal "{i}" token, e.g. "Device.A.2.B." becomes
// "Device.A.{i}.B.{i}".
func TableElementName(prefix string) (string, error) {
	trimmed := strings.TrimSuffix(prefix, ".")
	tmpl, err := nametree.ToTemplate(trimmed)
	if err != nil {
		return "", err
	}
	return tmpl + ".{i}", nil
}

func (e *Engine) table(prefix string) *Table {
	t, ok := e.tables[prefix]
	if !ok {
		t = newTable(prefix)
		e.tables[prefix] = t
	}
	return t
}

// AddRow creates a new row under the concrete table prefix (e.g.
// "Device.Foo." or "Device.A.2.B.") with the next unused instance number
// (monotone, never reused even after RemoveRow) and, if alias is
// non-empty, registers it under that alias. Returns the assigned
// instance number.
func (e *Engine) AddRow(prefix, alias string) (uint32, error) {
	elName, err := TableElementName(prefix)
	if err != nil {
		return 0, rbuserr.Newf(rbuserr.InvalidName, "%v", err)
	}
	el, ok := e.reg.Get(elName)
	if !ok || el.Kind != registry.KindTable {
		return 0, rbuserr.Newf(rbuserr.NotFound, "no such table %q", prefix)
	}
	t := e.table(prefix)
	if alias != "" {
		if _, dup := t.byAlias[alias]; dup {
			return 0, rbuserr.Newf(rbuserr.DuplicateAlias, "alias %q already in use on %q", alias, prefix)
		}
	}
	t.nextInstance++
	row := &Row{Instance: t.nextInstance, Alias: alias}
	t.rows.ReplaceOrInsert(row)
	t.order = append(t.order, row)
	if alias != "" {
		t.byAlias[alias] = row
	}
	return row.Instance, nil
}

// SplitRowName breaks a row name of the form "<table>.<n>." or
// "<table>.[alias]." into its table prefix and selector. The trailing
// dot is required.
func SplitRowName(rowName string) (prefix, selector string, err error) {
	if !strings.HasSuffix(rowName, ".") {
		return "", "", rbuserr.Newf(rbuserr.InvalidName, "row name %q must end in a dot", rowName)
	}
	trimmed := strings.TrimSuffix(rowName, ".")
	idx := strings.LastIndex(trimmed, ".")
	if idx < 0 {
		return "", "", rbuserr.Newf(rbuserr.InvalidName, "malformed row name %q", rowName)
	}
	return trimmed[:idx+1], trimmed[idx+1:], nil
}

// resolveSelector accepts either a bare decimal instance number or a
// "[alias]" bracketed alias reference.
func resolveSelector(t *Table, selector string) (*Row, error) {
	if strings.HasPrefix(selector, "[") && strings.HasSuffix(selector, "]") {
		alias := selector[1 : len(selector)-1]
		row, ok := t.byAlias[alias]
		if !ok {
			return nil, rbuserr.Newf(rbuserr.NotFound, "no row with alias %q on %q", alias, t.Prefix)
		}
		return row, nil
	}
	n, err := strconv.ParseUint(selector, 10, 32)
	if err != nil {
		return nil, rbuserr.Newf(rbuserr.InvalidName, "malformed row selector %q", selector)
	}
	var found *Row
	probe := &Row{Instance: uint32(n)}
	t.rows.AscendGreaterOrEqual(probe, func(r *Row) bool {
		if r.Instance == probe.Instance {
			found = r
		}
		return false
	})
	if found == nil {
		return nil, rbuserr.Newf(rbuserr.NotFound, "no row %q on %q", selector, t.Prefix)
	}
	return found, nil
}

// RemoveRow deletes the row named by rowName ("<table>.<n>." or
// "<table>.[alias].").
func (e *Engine) RemoveRow(rowName string) error {
	prefix, selector, err := SplitRowName(rowName)
	if err != nil {
		return err
	}
	t, ok := e.tables[prefix]
	if !ok {
		return rbuserr.Newf(rbuserr.NotFound, "no such table %q", prefix)
	}
	row, err := resolveSelector(t, selector)
	if err != nil {
		return err
	}
	t.rows.Delete(row)
	if row.Alias != "" {
		delete(t.byAlias, row.Alias)
	}
	for i, r := range t.order {
		if r == row {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// NumberOfEntries returns the current live row count for the concrete
// table prefix.
func (e *Engine) NumberOfEntries(prefix string) uint32 {
	t, ok := e.tables[prefix]
	if !ok {
		return 0
	}
	return uint32(t.rows.Len())
}

// Instances returns every live instance number under prefix in creation
// order.
func (e *Engine) Instances(prefix string) []uint32 {
	t, ok := e.tables[prefix]
	if !ok {
		return nil
	}
	out := make([]uint32, 0, len(t.order))
	for _, r := range t.order {
		out = append(out, r.Instance)
	}
	return out
}

func (e *Engine) rowAt(prefix string, instance uint32) (*Row, error) {
	t, ok := e.tables[prefix]
	if !ok {
		return nil, rbuserr.Newf(rbuserr.NotFound, "no such table %q", prefix)
	}
	probe := &Row{Instance: instance}
	var found *Row
	t.rows.AscendGreaterOrEqual(probe, func(r *Row) bool {
		if r.Instance == instance {
			found = r
		}
		return false
	})
	if found == nil {
		return nil, rbuserr.Newf(rbuserr.NotFound, "no row %d on %q", instance, prefix)
	}
	return found, nil
}

// GetRowValue resolves the row-local leaf named by concreteName (e.g.
// "Device.Foo.2.Bar" or "Device.A.3.B.2.C"). If the leaf has never been
// read or written on this row, it is materialized from the registered
// template default before being returned, so a later SET mutates a
// concrete slot.
func (e *Engine) GetRowValue(concreteName string) (value.Value, error) {
	coord, ok, err := nametree.SplitRow(concreteName)
	if err != nil {
		return value.Value{}, rbuserr.Newf(rbuserr.InvalidName, "%v", err)
	}
	if !ok {
		return value.Value{}, rbuserr.Newf(rbuserr.InvalidName, "%q has no row coordinate", concreteName)
	}
	row, err := e.rowAt(coord.TablePrefix, coord.Instance)
	if err != nil {
		return value.Value{}, err
	}
	template, err := nametree.ToTemplate(concreteName)
	if err != nil {
		return value.Value{}, rbuserr.Newf(rbuserr.InvalidName, "%v", err)
	}
	el, ok := e.reg.Get(template)
	if !ok {
		return value.Value{}, rbuserr.Newf(rbuserr.NotFound, "no such property %q", template)
	}
	if row.values == nil {
		row.values = make(map[string]value.Value)
	}
	v, touched := row.values[template]
	if !touched {
		v = el.Default
		row.values[template] = v
	}
	return v, nil
}

// SetRowValue writes v to the row-local leaf named by concreteName. If
// the leaf has never been touched, the template default stands in as the
// current value for the Kind check; a write rejected on a Kind mismatch
// stores nothing in the row.
func (e *Engine) SetRowValue(concreteName string, v value.Value) error {
	coord, ok, err := nametree.SplitRow(concreteName)
	if err != nil {
		return rbuserr.Newf(rbuserr.InvalidName, "%v", err)
	}
	if !ok {
		return rbuserr.Newf(rbuserr.InvalidName, "%q has no row coordinate", concreteName)
	}
	row, err := e.rowAt(coord.TablePrefix, coord.Instance)
	if err != nil {
		return err
	}
	template, err := nametree.ToTemplate(concreteName)
	if err != nil {
		return rbuserr.Newf(rbuserr.InvalidName, "%v", err)
	}
	el, ok := e.reg.Get(template)
	if !ok {
		return rbuserr.Newf(rbuserr.NotFound, "no such property %q", template)
	}
	if !el.Writable {
		return rbuserr.Newf(rbuserr.InvalidName, "property %q is read-only", template)
	}
	if row.values == nil {
		row.values = make(map[string]value.Value)
	}
	current, touched := row.values[template]
	if !touched {
		current = el.Default
	}
	if !current.SameType(v) {
		return rbuserr.Newf(rbuserr.TypeMismatch, "property %q expects %v, got %v", template, current.Kind(), v.Kind())
	}
	row.values[template] = v
	return nil
}

// Alias returns the alias assigned to the row at (prefix, instance), if
// any.
func (e *Engine) Alias(prefix string, instance uint32) (string, bool) {
	row, err := e.rowAt(prefix, instance)
	if err != nil {
		return "", false
	}
	return row.Alias, row.Alias != ""
}
