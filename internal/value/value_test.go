package value

import "testing"

func TestZeroMatchesConstructorDefaults(t *testing.T) {
	cases := []struct {
		k    Kind
		want Value
	}{
		{KindString, String("")},
		{KindInt32, Int32(0)},
		{KindUInt32, UInt32(0)},
		{KindBool, Bool(false)},
		{KindDateTime, DateTime("")},
		{KindBase64, Base64("")},
		{KindInt64, Int64(0)},
		{KindUInt64, UInt64(0)},
		{KindF32, F32(0)},
		{KindF64, F64(0)},
		{KindU8, U8(0)},
	}
	for _, c := range cases {
		if got := Zero(c.k); !got.SameType(c.want) {
			t.Errorf("Zero(%v) kind = %v, want %v", c.k, got.Kind(), c.want.Kind())
		}
	}
}

func TestSameTypeDistinguishesStringFromDateTimeAndBase64(t *testing.T) {
	s := String("x")
	dt := DateTime("x")
	b64 := Base64("x")
	if s.SameType(dt) {
		t.Error("String and DateTime should not report as the same type")
	}
	if s.SameType(b64) {
		t.Error("String and Base64 should not report as the same type")
	}
	if dt.SameType(b64) {
		t.Error("DateTime and Base64 should not report as the same type")
	}
}

func TestAsAccessorsRoundTrip(t *testing.T) {
	if String("hi").AsString() != "hi" {
		t.Error("String round trip failed")
	}
	if Int32(-7).AsInt32() != -7 {
		t.Error("Int32 round trip failed")
	}
	if UInt32(42).AsUInt32() != 42 {
		t.Error("UInt32 round trip failed")
	}
	if !Bool(true).AsBool() {
		t.Error("Bool round trip failed")
	}
	if Int64(-9000000000).AsInt64() != -9000000000 {
		t.Error("Int64 round trip failed")
	}
	if UInt64(9000000000).AsUInt64() != 9000000000 {
		t.Error("UInt64 round trip failed")
	}
	if U8(200).AsU8() != 200 {
		t.Error("U8 round trip failed")
	}
}

func TestStringFormatting(t *testing.T) {
	if Int32(42).String() != "42" {
		t.Errorf("Int32(42).String() = %q", Int32(42).String())
	}
	if Bool(true).String() != "true" {
		t.Errorf("Bool(true).String() = %q", Bool(true).String())
	}
}
