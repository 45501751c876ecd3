package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stepherg/rbus-elements/internal/registry"
	"github.com/stepherg/rbus-elements/internal/value"
)

type fakePlatform struct{}

func (fakePlatform) SerialNumber() (string, error)              { return "SN-1", nil }
func (fakePlatform) MACAddress() (string, error)                { return "aa:bb:cc:dd:ee:ff", nil }
func (fakePlatform) ManufacturerOUI() (string, error)           { return "00:11:22", nil }
func (fakePlatform) UptimeSeconds() (uint32, error)             { return 42, nil }
func (fakePlatform) SystemTimeISO() (string, error)             { return "2026-08-02T00:00:00Z", nil }
func (fakePlatform) LocalTimeISO() (string, error)              { return "2026-08-02T00:00:00Z", nil }
func (fakePlatform) MemoryKiB() (uint32, uint32, uint32, error) { return 1024, 256, 768, nil }
func (fakePlatform) FirstNonLoopbackIP() (string, error)        { return "192.0.2.1", nil }

func intPtr(n int) *int { return &n }

func TestLoadFileParsesSchemaJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elements.json")
	body := `[{"name":"Device.Foo.2.Bar","type":1,"value":42}]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Device.Foo.2.Bar" {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].ElementType != "" || *entries[0].Type != 1 {
		t.Errorf("decoded entry fields = %+v", entries[0])
	}
}

func TestLoadFileMissingFileFails(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected an error for a missing schema file")
	}
}

func TestLoadRowSeedBuildsTemplateAndAncestors(t *testing.T) {
	loader := NewLoader(fakePlatform{})
	reg, seeds, err := loader.Load([]Entry{
		{Name: "Device.Foo.2.Bar", Type: intPtr(1), Value: float64(42)},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tmpl, ok := reg.Get("Device.Foo.{i}.Bar")
	if !ok || tmpl.Kind != registry.KindProperty {
		t.Fatalf("row template not registered: %+v ok=%v", tmpl, ok)
	}
	if tmpl.Default.Kind() != value.KindInt32 {
		t.Errorf("template default kind = %v, want int32", tmpl.Default.Kind())
	}
	if table, ok := reg.Get("Device.Foo.{i}"); !ok || table.Kind != registry.KindTable {
		t.Errorf("ancestor table not registered: %+v ok=%v", table, ok)
	}
	if noe, ok := reg.Get("Device.Foo.NumberOfEntries"); !ok || noe.Writable {
		t.Errorf("NumberOfEntries counter missing or writable: %+v ok=%v", noe, ok)
	}

	if len(seeds) != 1 {
		t.Fatalf("seeds = %+v, want one", seeds)
	}
	if seeds[0].Name != "Device.Foo.2.Bar" || seeds[0].Value.AsInt32() != 42 {
		t.Errorf("seed = %+v", seeds[0])
	}
}

func TestLoadNestedRowSeedBuildsFullChain(t *testing.T) {
	loader := NewLoader(fakePlatform{})
	reg, seeds, err := loader.Load([]Entry{
		{Name: "Device.A.3.B.2.C", Type: intPtr(0), Value: "hi"},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, name := range []string{"Device.A.{i}", "Device.A.{i}.B.{i}"} {
		if el, ok := reg.Get(name); !ok || el.Kind != registry.KindTable {
			t.Errorf("expected table %q: %+v ok=%v", name, el, ok)
		}
	}
	for _, name := range []string{"Device.A.NumberOfEntries", "Device.A.{i}.B.NumberOfEntries"} {
		if _, ok := reg.Get(name); !ok {
			t.Errorf("expected counter %q", name)
		}
	}
	if len(seeds) != 1 || seeds[0].Value.AsString() != "hi" {
		t.Errorf("seeds = %+v", seeds)
	}
}

func TestLoadTemplatePropertyWithoutSeed(t *testing.T) {
	loader := NewLoader(fakePlatform{})
	reg, seeds, err := loader.Load([]Entry{
		{Name: "Device.Foo.{i}.Bar", Type: intPtr(1)},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(seeds) != 0 {
		t.Errorf("template-only entry must not produce seeds: %+v", seeds)
	}
	if _, ok := reg.Get("Device.Foo.{i}"); !ok {
		t.Error("ancestor table chain not ensured for a pure template declaration")
	}
}

func TestLoadPlainPropertyKeepsDeclaredDefault(t *testing.T) {
	loader := NewLoader(fakePlatform{})
	reg, _, err := loader.Load([]Entry{
		{Name: "Device.Custom.Name", Type: intPtr(0), Value: "widget"},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	el, ok := reg.Get("Device.Custom.Name")
	if !ok || !el.Writable {
		t.Fatalf("plain property missing or read-only: %+v ok=%v", el, ok)
	}
	if el.Default.AsString() != "widget" {
		t.Errorf("default = %q, want %q", el.Default.AsString(), "widget")
	}
}

func TestLoadRejectsOutOfRangeValue(t *testing.T) {
	loader := NewLoader(fakePlatform{})
	_, _, err := loader.Load([]Entry{
		{Name: "Device.Small", Type: intPtr(10), Value: float64(300)},
	})
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("err = %v, want out-of-range failure", err)
	}
}

func TestLoadRejectsMissingTypeAndUnknownElementType(t *testing.T) {
	loader := NewLoader(fakePlatform{})
	if _, _, err := loader.Load([]Entry{{Name: "Device.NoType"}}); err == nil {
		t.Error("expected error for a property with no type tag")
	}
	if _, _, err := loader.Load([]Entry{{Name: "Device.X", ElementType: "gizmo", Type: intPtr(0)}}); err == nil {
		t.Error("expected error for an unknown elementType")
	}
}

func TestLoadRegistersEventAndMethodEntries(t *testing.T) {
	loader := NewLoader(fakePlatform{})
	reg, _, err := loader.Load([]Entry{
		{Name: "Device.Widget!", ElementType: ElementEvent},
		{Name: "Device.DoThing()", ElementType: ElementMethod},
		{Name: "Device.Widgets", ElementType: ElementTable},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if el, ok := reg.Get("Device.Widget!"); !ok || el.Kind != registry.KindEvent {
		t.Errorf("event entry: %+v ok=%v", el, ok)
	}
	if el, ok := reg.Get("Device.DoThing()"); !ok || el.Kind != registry.KindMethod {
		t.Errorf("method entry: %+v ok=%v", el, ok)
	}
	if el, ok := reg.Get("Device.Widgets.{i}"); !ok || el.Kind != registry.KindTable {
		t.Errorf("table entry: %+v ok=%v", el, ok)
	}
}

func TestBuiltinsAppendedAfterUserEntries(t *testing.T) {
	loader := NewLoader(fakePlatform{})
	reg, _, err := loader.Load([]Entry{
		{Name: "Device.Custom.First", Type: intPtr(0)},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	all := reg.Iter()
	if all[0].Name != "Device.Custom.First" {
		t.Errorf("user entries must precede builtins, got %q first", all[0].Name)
	}

	for _, name := range []string{
		"Device.DeviceInfo.SerialNumber",
		"Device.DeviceInfo.X_COMCAST-COM_CM_MAC",
		"Device.InterfaceTable.{i}",
		"Device.SystemStatusChanged!",
		"Device.Reboot()",
		"Device.GetSystemInfo()",
		"Device.X_RDK_Xmidt.SendData()",
		"Device.DeviceInfo.ManufacturerOUI",
	} {
		if _, ok := reg.Get(name); !ok {
			t.Errorf("builtin %q missing", name)
		}
	}

	serial, _ := reg.Get("Device.DeviceInfo.SerialNumber")
	if serial.GetHandler == nil {
		t.Fatal("SerialNumber builtin has no probe bound")
	}
	v, err := serial.GetHandler()
	if err != nil || v.AsString() != "SN-1" {
		t.Errorf("probe = %v err=%v, want SN-1", v, err)
	}
}

func TestBuiltinRebootRejectsNegativeDelay(t *testing.T) {
	loader := NewLoader(fakePlatform{})
	reg, _, err := loader.Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	reboot, _ := reg.Get("Device.Reboot()")

	if _, err := reboot.MethodHandler(map[string]value.Value{"Delay": value.Int32(-1)}); err == nil {
		t.Error("expected InvalidInput for a negative delay")
	}
	out, err := reboot.MethodHandler(map[string]value.Value{"Delay": value.Int32(5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["Status"].AsString() != "Reboot scheduled" {
		t.Errorf("Status = %q, want %q", out["Status"].AsString(), "Reboot scheduled")
	}
}
