package bus

import (
	"testing"

	"github.com/stepherg/rbus-elements/internal/value"
)

func TestWireValueRoundTrip(t *testing.T) {
	cases := []value.Value{
		value.String("hello"),
		value.Int32(-5),
		value.UInt32(5),
		value.Bool(true),
		value.DateTime("2026-08-02T00:00:00Z"),
		value.Base64("aGk="),
		value.Int64(-123456789012),
		value.UInt64(123456789012),
		value.F32(1.5),
		value.F64(2.5),
		value.U8(200),
	}
	for _, v := range cases {
		got := fromWire(toWire(v))
		if got.Kind() != v.Kind() || got.String() != v.String() {
			t.Errorf("round trip mismatch for %v: got %v", v, got)
		}
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	req := &getRequest{Name: "Device.Foo"}
	data, err := jsonCodec{}.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := new(getRequest)
	if err := (jsonCodec{}).Unmarshal(data, got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Name != req.Name {
		t.Errorf("Name = %q, want %q", got.Name, req.Name)
	}
	if (jsonCodec{}).Name() != "json" {
		t.Errorf("codec Name() = %q", jsonCodec{}.Name())
	}
}
