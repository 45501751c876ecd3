// Package bus implements the provider's bus facade: the small set of
// operations the core calls outward on a device-management bus
// (open/register/unregister/publish/set/close) and the six callbacks a
// bus invokes inward on the core (on_get..on_subscribe). Two transports
// sit behind the same interface: grpcBus (grpc.go) for a real bus
// daemon and loopbackBus (loopback.go) for in-process use.
package bus

import (
	"github.com/stepherg/rbus-elements/internal/dispatch"
	"github.com/stepherg/rbus-elements/internal/registry"
	"github.com/stepherg/rbus-elements/internal/value"
)

// ElementDescriptor is what register_elements hands the bus: just
// enough identity for the bus library to build its own element table.
type ElementDescriptor struct {
	Name string
	Kind registry.Kind
}

// CallbackHandler is the slice of Dispatcher the bus invokes callbacks
// against. *dispatch.Dispatcher satisfies this structurally.
type CallbackHandler interface {
	Get(name string) (value.Value, error)
	Set(name string, v value.Value) error
	AddRow(tablePrefix, alias string) (uint32, error)
	RemoveRow(rowName string) error
	Invoke(methodName string, in map[string]value.Value) (map[string]value.Value, error)
	Subscribe(name string, action dispatch.SubscribeAction) (autoPublish bool, err error)
}

// Provider is the outward bus facade, with callbacks wired in at Open
// time rather than passed per-call.
type Provider interface {
	// Open establishes the bus connection under componentName and binds
	// handler as the target of every inbound callback.
	Open(componentName string, handler CallbackHandler) error
	RegisterElements(elements []ElementDescriptor) error
	UnregisterElements(names []string) error
	PublishEvent(name string, kind dispatch.EventKind, payload map[string]value.Value) error
	// Set issues a core-initiated SET with commit semantics, used by
	// the bootstrapper to prime subscribers with seed and default
	// values, not by inbound on_set callbacks.
	Set(name string, v value.Value) error
	Close() error
}

// Inspectable is satisfied by loopbackBus; tests in other packages that
// exercise the bootstrap agent against a loopback Provider use it to
// assert on what was published/committed without a type assertion to
// an unexported type.
type Inspectable interface {
	Published() []PublishedEvent
	Committed() []CommittedValue
}

// wireValue is the JSON-serializable rendering of value.Value used by
// the grpc transport's request/response payloads.
type wireValue struct {
	Kind uint8   `json:"kind"`
	S    string  `json:"s,omitempty"`
	I32  int32   `json:"i32,omitempty"`
	U32  uint32  `json:"u32,omitempty"`
	B    bool    `json:"b,omitempty"`
	I64  int64   `json:"i64,omitempty"`
	U64  uint64  `json:"u64,omitempty"`
	F32  float32 `json:"f32,omitempty"`
	F64  float64 `json:"f64,omitempty"`
	U8   byte    `json:"u8,omitempty"`
}

func toWire(v value.Value) wireValue {
	w := wireValue{Kind: uint8(v.Kind())}
	switch v.Kind() {
	case value.KindString, value.KindDateTime, value.KindBase64:
		w.S = v.AsString()
	case value.KindInt32:
		w.I32 = v.AsInt32()
	case value.KindUInt32:
		w.U32 = v.AsUInt32()
	case value.KindBool:
		w.B = v.AsBool()
	case value.KindInt64:
		w.I64 = v.AsInt64()
	case value.KindUInt64:
		w.U64 = v.AsUInt64()
	case value.KindF32:
		w.F32 = v.AsF32()
	case value.KindF64:
		w.F64 = v.AsF64()
	case value.KindU8:
		w.U8 = v.AsU8()
	}
	return w
}

func fromWire(w wireValue) value.Value {
	switch value.Kind(w.Kind) {
	case value.KindString:
		return value.String(w.S)
	case value.KindDateTime:
		return value.DateTime(w.S)
	case value.KindBase64:
		return value.Base64(w.S)
	case value.KindInt32:
		return value.Int32(w.I32)
	case value.KindUInt32:
		return value.UInt32(w.U32)
	case value.KindBool:
		return value.Bool(w.B)
	case value.KindInt64:
		return value.Int64(w.I64)
	case value.KindUInt64:
		return value.UInt64(w.U64)
	case value.KindF32:
		return value.F32(w.F32)
	case value.KindF64:
		return value.F64(w.F64)
	case value.KindU8:
		return value.U8(w.U8)
	default:
		return value.Value{}
	}
}

func toWireMap(m map[string]value.Value) map[string]wireValue {
	out := make(map[string]wireValue, len(m))
	for k, v := range m {
		out[k] = toWire(v)
	}
	return out
}

func fromWireMap(m map[string]wireValue) map[string]value.Value {
	out := make(map[string]value.Value, len(m))
	for k, w := range m {
		out[k] = fromWire(w)
	}
	return out
}
