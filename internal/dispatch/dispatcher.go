// Package dispatch routes incoming bus callbacks (GET, SET, ADD_ROW,
// REMOVE_ROW, INVOKE, SUBSCRIBE) against the Registry and TableEngine,
// special-cases the synthetic NumberOfEntries counters, and publishes
// row-created/row-deleted events after a successful structural change.
package dispatch

import (
	"strconv"
	"strings"
	"sync"

	log "github.com/ledgerwatch/log/v3"

	"github.com/stepherg/rbus-elements/internal/metrics"
	"github.com/stepherg/rbus-elements/internal/nametree"
	"github.com/stepherg/rbus-elements/internal/rbuserr"
	"github.com/stepherg/rbus-elements/internal/registry"
	"github.com/stepherg/rbus-elements/internal/tableengine"
	"github.com/stepherg/rbus-elements/internal/value"
)

// EventKind names the two structural events TableEngine row changes
// raise. It is not a Property/Event element kind.
type EventKind string

const (
	EventObjectCreated EventKind = "ObjectCreated"
	EventObjectDeleted EventKind = "ObjectDeleted"
)

// EventPublisher is the slice of the bus facade the Dispatcher needs.
// Publish failures are logged and swallowed; the row state change has
// already succeeded locally.
type EventPublisher interface {
	PublishEvent(name string, kind EventKind, payload map[string]value.Value) error
}

type noopPublisher struct{}

func (noopPublisher) PublishEvent(string, EventKind, map[string]value.Value) error { return nil }

// Dispatcher is a thin stateless router holding shared references to
// the Registry and TableEngine; it keeps no per-subscriber state. The
// bus library may deliver callbacks from its own worker threads, so mu
// serializes every model access. A GET is a writer too, because it can
// materialize a row-local default into the row.
type Dispatcher struct {
	mu     sync.Mutex
	reg    *registry.Registry
	engine *tableengine.Engine
	pub    EventPublisher
	logger log.Logger
}

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithPublisher sets the event sink row creation/deletion publishes to.
func WithPublisher(p EventPublisher) Option {
	return func(d *Dispatcher) { d.pub = p }
}

// WithLogger overrides the default log.Root() logger.
func WithLogger(l log.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New returns a Dispatcher over reg and engine.
func New(reg *registry.Registry, engine *tableengine.Engine, opts ...Option) *Dispatcher {
	d := &Dispatcher{reg: reg, engine: engine, pub: noopPublisher{}, logger: log.Root()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// numberOfEntriesPrefix reports whether name is a synthetic
// NumberOfEntries counter registered by Registry.EnsureTableChain, and
// if so returns the concrete table prefix it counts.
func (d *Dispatcher) numberOfEntriesPrefix(name string) (prefix string, ok bool) {
	if !strings.HasSuffix(name, "NumberOfEntries") {
		return "", false
	}
	candidate := strings.TrimSuffix(name, "NumberOfEntries")
	if candidate == "" || !strings.HasSuffix(candidate, ".") {
		return "", false
	}
	template, err := nametree.ToTemplate(strings.TrimSuffix(candidate, "."))
	if err != nil {
		return "", false
	}
	tableName := template + ".{i}"
	el, ok := d.reg.Get(tableName)
	if !ok || el.Kind != registry.KindTable {
		return "", false
	}
	return candidate, true
}

// Get implements the on_get(name) callback.
func (d *Dispatcher) Get(name string) (value.Value, error) {
	v, err := d.get(name)
	metrics.GetsTotal.WithLabelValues(outcome(err)).Inc()
	return v, err
}

func (d *Dispatcher) get(name string) (value.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prefix, ok := d.numberOfEntriesPrefix(name); ok {
		return value.UInt32(d.engine.NumberOfEntries(prefix)), nil
	}
	if _, isRow, err := nametree.SplitRow(name); err != nil {
		return value.Value{}, rbuserr.Newf(rbuserr.InvalidName, "%v", err)
	} else if isRow {
		return d.engine.GetRowValue(name)
	}
	el, ok := d.reg.Get(name)
	if !ok || el.Kind != registry.KindProperty {
		return value.Value{}, rbuserr.Newf(rbuserr.NotFound, "no such property %q", name)
	}
	if el.GetHandler != nil {
		return el.GetHandler()
	}
	return el.Default, nil
}

// Set implements the on_set(name, value) callback.
func (d *Dispatcher) Set(name string, v value.Value) error {
	err := d.set(name, v)
	metrics.SetsTotal.WithLabelValues(outcome(err)).Inc()
	return err
}

func (d *Dispatcher) set(name string, v value.Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.numberOfEntriesPrefix(name); ok {
		return rbuserr.Newf(rbuserr.InvalidName, "%q is read-only", name)
	}
	if _, isRow, err := nametree.SplitRow(name); err != nil {
		return rbuserr.Newf(rbuserr.InvalidName, "%v", err)
	} else if isRow {
		return d.engine.SetRowValue(name, v)
	}
	el, ok := d.reg.Get(name)
	if !ok || el.Kind != registry.KindProperty {
		return rbuserr.Newf(rbuserr.NotFound, "no such property %q", name)
	}
	if !el.Writable {
		return rbuserr.Newf(rbuserr.InvalidName, "property %q is read-only", name)
	}
	if !el.Default.SameType(v) {
		return rbuserr.Newf(rbuserr.TypeMismatch, "property %q expects %v, got %v", name, el.Default.Kind(), v.Kind())
	}
	el.Default = v
	d.reg.Insert(el)
	return nil
}

// AddRow implements on_add_row(table, alias). The row is fully created
// before the ObjectCreated publish, so a subscriber reacting to the
// event can immediately GET the row's properties.
func (d *Dispatcher) AddRow(tablePrefix, alias string) (uint32, error) {
	d.mu.Lock()
	instance, err := d.engine.AddRow(tablePrefix, alias)
	if err == nil {
		metrics.LiveRows.WithLabelValues(tablePrefix).Set(float64(d.engine.NumberOfEntries(tablePrefix)))
	}
	d.mu.Unlock()
	metrics.RowsAddedTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return 0, err
	}
	rowName := tablePrefix + strconv.FormatUint(uint64(instance), 10) + "."
	d.publish(rowName, EventObjectCreated)
	return instance, nil
}

// RemoveRow implements on_remove_row(row_name).
func (d *Dispatcher) RemoveRow(rowName string) error {
	d.mu.Lock()
	err := d.engine.RemoveRow(rowName)
	if err == nil {
		if prefix, _, splitErr := tableengine.SplitRowName(rowName); splitErr == nil {
			metrics.LiveRows.WithLabelValues(prefix).Set(float64(d.engine.NumberOfEntries(prefix)))
		}
	}
	d.mu.Unlock()
	metrics.RowsRemovedTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return err
	}
	d.publish(rowName, EventObjectDeleted)
	return nil
}

// publish sends a structural event, logging and swallowing any failure;
// the row state change has already succeeded locally.
func (d *Dispatcher) publish(rowName string, kind EventKind) {
	if err := d.pub.PublishEvent(rowName, kind, nil); err != nil {
		d.logger.Warn("publish "+string(kind)+" failed", "row", rowName, "err", err)
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(kind)).Inc()
}

// Invoke implements on_invoke(method, in_params). The Dispatcher does
// not interpret parameter semantics; it only confirms the element is a
// Method and fans out to its bound handler.
func (d *Dispatcher) Invoke(methodName string, in map[string]value.Value) (map[string]value.Value, error) {
	out, err := d.invoke(methodName, in)
	metrics.InvokesTotal.WithLabelValues(outcome(err)).Inc()
	return out, err
}

func (d *Dispatcher) invoke(methodName string, in map[string]value.Value) (map[string]value.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.reg.Get(methodName)
	if !ok || el.Kind != registry.KindMethod {
		return nil, rbuserr.Newf(rbuserr.NotFound, "no such method %q", methodName)
	}
	if el.MethodHandler == nil {
		return nil, rbuserr.Newf(rbuserr.NotFound, "method %q has no bound handler", methodName)
	}
	return el.MethodHandler(in)
}

func outcome(err error) string {
	if err != nil {
		return metrics.OutcomeError
	}
	return metrics.OutcomeSuccess
}

// SubscribeAction distinguishes a subscribe request from an unsubscribe
// request.
type SubscribeAction int

const (
	ActionSubscribe SubscribeAction = iota
	ActionUnsubscribe
)

// Subscribe implements on_subscribe(event_or_property, action). The
// core keeps no per-subscriber state; it always accepts and asks the
// bus library to auto-publish value changes for properties and events
// (row-local leaves included); for any other name autoPublish is false.
func (d *Dispatcher) Subscribe(name string, action SubscribeAction) (autoPublish bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.reg.Get(name)
	if !ok {
		if _, isRow, splitErr := nametree.SplitRow(name); splitErr == nil && isRow {
			return true, nil
		}
		return false, nil
	}
	switch el.Kind {
	case registry.KindProperty, registry.KindEvent:
		return true, nil
	default:
		return false, nil
	}
}
