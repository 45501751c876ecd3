// Package value implements the tagged scalar carried across the bus
// boundary: properties, row-local leaves, and method parameters are all
// represented as a Value.
package value

import (
	"fmt"
	"strconv"
)

// Kind tags which of the eleven scalar variants a Value holds.
type Kind uint8

const (
	KindString Kind = iota
	KindInt32
	KindUInt32
	KindBool
	KindDateTime
	KindBase64
	KindInt64
	KindUInt64
	KindF32
	KindF64
	KindU8
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt32:
		return "int32"
	case KindUInt32:
		return "uint32"
	case KindBool:
		return "bool"
	case KindDateTime:
		return "datetime"
	case KindBase64:
		return "base64"
	case KindInt64:
		return "int64"
	case KindUInt64:
		return "uint64"
	case KindF32:
		return "float32"
	case KindF64:
		return "float64"
	case KindU8:
		return "byte"
	default:
		return "unknown"
	}
}

// Value is a tagged scalar. DateTime and Base64 share the string payload
// with String but keep a distinct Kind so wire serialization can tell them
// apart.
type Value struct {
	kind Kind
	s    string
	i32  int32
	u32  uint32
	b    bool
	i64  int64
	u64  uint64
	f32  float32
	f64  float64
	u8   byte
}

func (v Value) Kind() Kind { return v.kind }

func String(s string) Value   { return Value{kind: KindString, s: s} }
func Int32(n int32) Value     { return Value{kind: KindInt32, i32: n} }
func UInt32(n uint32) Value   { return Value{kind: KindUInt32, u32: n} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func DateTime(s string) Value { return Value{kind: KindDateTime, s: s} }
func Base64(s string) Value   { return Value{kind: KindBase64, s: s} }
func Int64(n int64) Value     { return Value{kind: KindInt64, i64: n} }
func UInt64(n uint64) Value   { return Value{kind: KindUInt64, u64: n} }
func F32(f float32) Value     { return Value{kind: KindF32, f32: f} }
func F64(f float64) Value     { return Value{kind: KindF64, f64: f} }
func U8(b byte) Value         { return Value{kind: KindU8, u8: b} }

// Zero returns the default value for a Kind: empty string for the string
// family, zero for numerics, false for bool.
func Zero(k Kind) Value {
	switch k {
	case KindString:
		return String("")
	case KindInt32:
		return Int32(0)
	case KindUInt32:
		return UInt32(0)
	case KindBool:
		return Bool(false)
	case KindDateTime:
		return DateTime("")
	case KindBase64:
		return Base64("")
	case KindInt64:
		return Int64(0)
	case KindUInt64:
		return UInt64(0)
	case KindF32:
		return F32(0)
	case KindF64:
		return F64(0)
	case KindU8:
		return U8(0)
	default:
		return Value{}
	}
}

func (v Value) AsString() string {
	switch v.kind {
	case KindString, KindDateTime, KindBase64:
		return v.s
	default:
		return ""
	}
}

func (v Value) AsInt32() int32     { return v.i32 }
func (v Value) AsUInt32() uint32   { return v.u32 }
func (v Value) AsBool() bool       { return v.b }
func (v Value) AsInt64() int64     { return v.i64 }
func (v Value) AsUInt64() uint64   { return v.u64 }
func (v Value) AsF32() float32     { return v.f32 }
func (v Value) AsF64() float64     { return v.f64 }
func (v Value) AsU8() byte         { return v.u8 }

// SameType reports whether v and other carry the same Kind. A SET whose
// payload fails this check against the declared type is rejected with
// TypeMismatch.
func (v Value) SameType(other Value) bool { return v.kind == other.kind }

func (v Value) String() string {
	switch v.kind {
	case KindString, KindDateTime, KindBase64:
		return v.s
	case KindInt32:
		return strconv.FormatInt(int64(v.i32), 10)
	case KindUInt32:
		return strconv.FormatUint(uint64(v.u32), 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt64:
		return strconv.FormatInt(v.i64, 10)
	case KindUInt64:
		return strconv.FormatUint(v.u64, 10)
	case KindF32:
		return strconv.FormatFloat(float64(v.f32), 'g', -1, 32)
	case KindF64:
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case KindU8:
		return strconv.FormatUint(uint64(v.u8), 10)
	default:
		return fmt.Sprintf("<invalid value kind %d>", v.kind)
	}
}
