package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stepherg/rbus-elements/internal/bus"
	"github.com/stepherg/rbus-elements/internal/schema"
)

type fakePlatform struct{}

func (fakePlatform) SerialNumber() (string, error)             { return "SN-1", nil }
func (fakePlatform) MACAddress() (string, error)               { return "aa:bb:cc:dd:ee:ff", nil }
func (fakePlatform) ManufacturerOUI() (string, error)           { return "00:11:22", nil }
func (fakePlatform) UptimeSeconds() (uint32, error)             { return 42, nil }
func (fakePlatform) SystemTimeISO() (string, error)             { return "2026-08-02T00:00:00Z", nil }
func (fakePlatform) LocalTimeISO() (string, error)              { return "2026-08-02T00:00:00Z", nil }
func (fakePlatform) MemoryKiB() (uint32, uint32, uint32, error) { return 1024, 256, 768, nil }
func (fakePlatform) FirstNonLoopbackIP() (string, error)        { return "192.0.2.1", nil }

func intPtr(n int) *int { return &n }

func TestRunMaterializesAncestorRowsAndSeeds(t *testing.T) {
	entries := []schema.Entry{
		{Name: "Device.A.{i}.B.{i}.C", ElementType: schema.ElementProperty, Type: intPtr(1)},
		{Name: "Device.A.3.B.2.C", ElementType: schema.ElementProperty, Type: intPtr(1), Value: float64(99)},
	}

	provider := bus.NewLoopback()
	agent := NewAgent("test-agent", provider, fakePlatform{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := agent.Run(ctx, entries); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := agent.disp.Get("Device.A.3.B.2.C")
	if err != nil {
		t.Fatalf("Get after seeding: %v", err)
	}
	if got.AsInt32() != 99 {
		t.Errorf("seeded value = %v, want 99", got)
	}

	noe, err := agent.disp.Get("Device.A.NumberOfEntries")
	if err != nil {
		t.Fatalf("Get NumberOfEntries: %v", err)
	}
	if noe.AsUInt32() != 3 {
		t.Errorf("Device.A.NumberOfEntries = %d, want 3 (rows allocated up to the seeded instance)", noe.AsUInt32())
	}

	nested, err := agent.disp.Get("Device.A.3.B.NumberOfEntries")
	if err != nil {
		t.Fatalf("Get nested NumberOfEntries: %v", err)
	}
	if nested.AsUInt32() != 2 {
		t.Errorf("Device.A.3.B.NumberOfEntries = %d, want 2", nested.AsUInt32())
	}
}

func TestRunPrimesSubscribersWithBuiltinDefaults(t *testing.T) {
	provider := bus.NewLoopback()
	agent := NewAgent("test-agent", provider, fakePlatform{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := agent.Run(ctx, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	inspectable, ok := provider.(bus.Inspectable)
	if !ok {
		t.Fatal("loopback provider should implement bus.Inspectable")
	}
	found := false
	for _, c := range inspectable.Committed() {
		if c.Name == "Device.DeviceInfo.SerialNumber" {
			found = true
			if got := c.Value.AsString(); got != "unknown" {
				t.Errorf("primed value = %q, want the declared default %q (probes must not run during priming)", got, "unknown")
			}
		}
	}
	if !found {
		t.Errorf("expected the built-in SerialNumber default to be committed to the bus")
	}
}
