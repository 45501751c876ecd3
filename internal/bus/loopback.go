package bus

import (
	"fmt"
	"sync"

	"github.com/stepherg/rbus-elements/internal/dispatch"
	"github.com/stepherg/rbus-elements/internal/value"
)

// loopbackBus is a Provider with no network transport: register/
// unregister/publish/set operations are recorded in-process, and the
// same handler bound at Open serves as both ends of the bus. It is the
// default Provider for single-process deployments and for tests that
// exercise the bootstrap agent without a real bus daemon.
type loopbackBus struct {
	mu        sync.Mutex
	component string
	handler   CallbackHandler
	elements  map[string]ElementDescriptor
	published []PublishedEvent
	committed []CommittedValue
}

type PublishedEvent struct {
	Name    string
	Kind    dispatch.EventKind
	Payload map[string]value.Value
}

type CommittedValue struct {
	Name  string
	Value value.Value
}

// NewLoopback returns a Provider with no external transport.
func NewLoopback() Provider {
	return &loopbackBus{elements: make(map[string]ElementDescriptor)}
}

func (b *loopbackBus) Open(componentName string, handler CallbackHandler) error {
	if handler == nil {
		return fmt.Errorf("bus: Open requires a non-nil handler")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.component = componentName
	b.handler = handler
	return nil
}

func (b *loopbackBus) RegisterElements(elements []ElementDescriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range elements {
		b.elements[e.Name] = e
	}
	return nil
}

func (b *loopbackBus) UnregisterElements(names []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range names {
		delete(b.elements, n)
	}
	return nil
}

func (b *loopbackBus) PublishEvent(name string, kind dispatch.EventKind, payload map[string]value.Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, PublishedEvent{Name: name, Kind: kind, Payload: payload})
	return nil
}

// Set is the outward commit op: it announces a value the core has
// already computed so the bus can notify subscribers. It is not the
// validated on_set callback path (read-only properties and
// NumberOfEntries counters are primed this way too), so it never calls
// back into the bound handler; it only records the commit for test
// assertions.
func (b *loopbackBus) Set(name string, v value.Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handler == nil {
		return fmt.Errorf("bus: Set called before Open")
	}
	b.committed = append(b.committed, CommittedValue{Name: name, Value: v})
	return nil
}

func (b *loopbackBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = nil
	b.elements = make(map[string]ElementDescriptor)
	return nil
}

// Published returns every event PublishEvent has recorded, for test
// assertions.
func (b *loopbackBus) Published() []PublishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PublishedEvent, len(b.published))
	copy(out, b.published)
	return out
}

// Committed returns every value Set has recorded, for test assertions.
func (b *loopbackBus) Committed() []CommittedValue {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]CommittedValue, len(b.committed))
	copy(out, b.committed)
	return out
}
