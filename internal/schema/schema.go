// Package schema turns a neutral list of schema entries, as read from
// the JSON schema file, plus the fixed built-in element set into a
// populated Registry and the list of seeds the bootstrapper applies on
// startup.
package schema

import (
	"fmt"
	"math"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/stepherg/rbus-elements/internal/nametree"
	"github.com/stepherg/rbus-elements/internal/platform"
	"github.com/stepherg/rbus-elements/internal/registry"
	"github.com/stepherg/rbus-elements/internal/value"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ElementType mirrors the schema file's "elementType" field.
type ElementType string

const (
	ElementProperty ElementType = "property"
	ElementTable    ElementType = "table"
	ElementEvent    ElementType = "event"
	ElementMethod   ElementType = "method"
)

// Entry is one neutral schema record, decoded straight from the JSON
// schema file.
type Entry struct {
	Name        string      `json:"name"`
	ElementType ElementType `json:"elementType"`
	Type        *int        `json:"type"`
	Value       any         `json:"value"`
}

// LoadFile reads and decodes the JSON schema file at path into a list
// of Entry. A malformed file is a fatal load error; the caller aborts
// startup on the first hard failure.
func LoadFile(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "schema: read %s", path)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrapf(err, "schema: parse %s", path)
	}
	return entries, nil
}

// Seed is a schema-supplied initial value for a specific concrete
// row-local leaf.
type Seed struct {
	Name  string // full concrete leaf name, e.g. "Device.Foo.2.Bar"
	Value value.Value
}

// Loader builds a Registry and seed list from Entry records plus the
// built-in element set. Platform supplies the probes bound as
// get_handlers on built-in properties.
type Loader struct {
	Platform platform.Platform
}

// NewLoader returns a Loader bound to platform probes p.
func NewLoader(p platform.Platform) *Loader {
	return &Loader{Platform: p}
}

// Load processes entries in file order, then appends the built-in
// element set in its stable documented order (see builtins.go).
func (l *Loader) Load(entries []Entry) (*registry.Registry, []Seed, error) {
	reg := registry.New()
	var seeds []Seed

	for _, e := range entries {
		if err := l.loadEntry(reg, &seeds, e); err != nil {
			return nil, nil, err
		}
	}
	if err := l.appendBuiltins(reg); err != nil {
		return nil, nil, err
	}
	return reg, seeds, nil
}

func (l *Loader) loadEntry(reg *registry.Registry, seeds *[]Seed, e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("schema: entry with empty name")
	}
	kind := e.ElementType
	if kind == "" {
		kind = ElementProperty
	}

	switch kind {
	case ElementProperty:
		return l.loadProperty(reg, seeds, e)
	case ElementTable:
		// Table entries may carry the conventional trailing dot
		// ("Device.InterfaceTable."); the registry keys tables by their
		// wildcard form without it.
		template, err := nametree.ToTemplate(strings.TrimSuffix(e.Name, "."))
		if err != nil {
			return errors.Wrapf(err, "schema: %s", e.Name)
		}
		tableName := template + ".{i}"
		if err := reg.EnsureTableChain(tableName); err != nil {
			return err
		}
		reg.EnsureTable(tableName)
		return nil
	case ElementEvent:
		reg.Insert(registry.Element{Name: e.Name, Kind: registry.KindEvent})
		return nil
	case ElementMethod:
		// A schema-declared method has no handler of its own (only
		// built-ins bind one), but registering it lets the bus route
		// INVOKE to a no-handler response rather than an unknown-name
		// error.
		reg.Insert(registry.Element{Name: e.Name, Kind: registry.KindMethod})
		return nil
	default:
		return fmt.Errorf("schema: %s: unknown elementType %q", e.Name, kind)
	}
}

func (l *Loader) loadProperty(reg *registry.Registry, seeds *[]Seed, e Entry) error {
	if e.Type == nil {
		return fmt.Errorf("schema: property %s: missing required \"type\"", e.Name)
	}
	kind, err := kindFromType(*e.Type)
	if err != nil {
		return fmt.Errorf("schema: property %s: %w", e.Name, err)
	}

	_, isRow, err := nametree.SplitRow(e.Name)
	if err != nil {
		return fmt.Errorf("schema: property %s: %w", e.Name, err)
	}
	if isRow {
		template, err := nametree.ToTemplate(e.Name)
		if err != nil {
			return err
		}
		if err := reg.EnsureTableChain(template); err != nil {
			return err
		}
		if _, exists := reg.Get(template); !exists {
			reg.Insert(registry.Element{
				Name:     template,
				Kind:     registry.KindProperty,
				Writable: true,
				Default:  value.Zero(kind),
			})
		}
		if e.Value != nil {
			v, err := literalToValue(kind, e.Value)
			if err != nil {
				return fmt.Errorf("schema: property %s: %w", e.Name, err)
			}
			*seeds = append(*seeds, Seed{Name: e.Name, Value: v})
		}
		return nil
	}

	if nametree.IsTemplate(e.Name) {
		if err := reg.EnsureTableChain(e.Name); err != nil {
			return fmt.Errorf("schema: property %s: %w", e.Name, err)
		}
	}

	def := value.Zero(kind)
	if e.Value != nil {
		def, err = literalToValue(kind, e.Value)
		if err != nil {
			return fmt.Errorf("schema: property %s: %w", e.Name, err)
		}
	}
	reg.Insert(registry.Element{
		Name:     e.Name,
		Kind:     registry.KindProperty,
		Writable: true,
		Default:  def,
	})
	return nil
}

// kindFromType maps the schema's numeric type tag (0..10) onto
// value.Kind; the enumeration order is identical by construction.
func kindFromType(t int) (value.Kind, error) {
	if t < 0 || t > int(value.KindU8) {
		return 0, fmt.Errorf("type %d out of range 0..%d", t, value.KindU8)
	}
	return value.Kind(t), nil
}

// literalToValue converts a JSON literal (decoded as string/float64/bool
// by the standard-library-compatible jsoniter config) into a Value of
// the declared Kind, range-checking numerics against the target type.
func literalToValue(kind value.Kind, raw any) (value.Value, error) {
	switch kind {
	case value.KindString:
		s, ok := raw.(string)
		if !ok {
			return value.Value{}, fmt.Errorf("expected a string literal")
		}
		return value.String(s), nil
	case value.KindDateTime:
		s, ok := raw.(string)
		if !ok {
			return value.Value{}, fmt.Errorf("expected a string literal")
		}
		return value.DateTime(s), nil
	case value.KindBase64:
		s, ok := raw.(string)
		if !ok {
			return value.Value{}, fmt.Errorf("expected a string literal")
		}
		return value.Base64(s), nil
	case value.KindBool:
		b, ok := raw.(bool)
		if !ok {
			return value.Value{}, fmt.Errorf("expected a bool literal")
		}
		return value.Bool(b), nil
	case value.KindInt32:
		f, err := numberLiteral(raw)
		if err != nil {
			return value.Value{}, err
		}
		if f < math.MinInt32 || f > math.MaxInt32 {
			return value.Value{}, fmt.Errorf("%v out of range for int32", f)
		}
		return value.Int32(int32(f)), nil
	case value.KindUInt32:
		f, err := numberLiteral(raw)
		if err != nil {
			return value.Value{}, err
		}
		if f < 0 || f > math.MaxUint32 {
			return value.Value{}, fmt.Errorf("%v out of range for uint32", f)
		}
		return value.UInt32(uint32(f)), nil
	case value.KindInt64:
		f, err := numberLiteral(raw)
		if err != nil {
			return value.Value{}, err
		}
		if f < math.MinInt64 || f > math.MaxInt64 {
			return value.Value{}, fmt.Errorf("%v out of range for int64", f)
		}
		return value.Int64(int64(f)), nil
	case value.KindUInt64:
		f, err := numberLiteral(raw)
		if err != nil {
			return value.Value{}, err
		}
		if f < 0 || f > math.MaxUint64 {
			return value.Value{}, fmt.Errorf("%v out of range for uint64", f)
		}
		return value.UInt64(uint64(f)), nil
	case value.KindF32:
		f, err := numberLiteral(raw)
		if err != nil {
			return value.Value{}, err
		}
		return value.F32(float32(f)), nil
	case value.KindF64:
		f, err := numberLiteral(raw)
		if err != nil {
			return value.Value{}, err
		}
		return value.F64(f), nil
	case value.KindU8:
		f, err := numberLiteral(raw)
		if err != nil {
			return value.Value{}, err
		}
		if f < 0 || f > 255 {
			return value.Value{}, fmt.Errorf("%v out of range for byte", f)
		}
		return value.U8(byte(f)), nil
	default:
		return value.Value{}, fmt.Errorf("unhandled kind %v", kind)
	}
}

func numberLiteral(raw any) (float64, error) {
	f, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("expected a numeric literal")
	}
	return f, nil
}
