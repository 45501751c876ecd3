package nametree

import "testing"

func TestSplitRowFindsRightmostInstance(t *testing.T) {
	row, ok, err := SplitRow("Device.A.3.B.2.C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if row.TablePrefix != "Device.A.3.B." {
		t.Errorf("TablePrefix = %q", row.TablePrefix)
	}
	if row.Instance != 2 {
		t.Errorf("Instance = %d, want 2", row.Instance)
	}
	if row.Leaf != "C" {
		t.Errorf("Leaf = %q", row.Leaf)
	}
}

func TestSplitRowRejectsFirstAndLastSegment(t *testing.T) {
	// "2" as the very first segment must not be treated as an instance.
	row, ok, err := SplitRow("2.Foo.Bar")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false, got row=%+v", row)
	}
	// "2" as the very last segment must not be treated as an instance.
	row, ok, err = SplitRow("Device.Foo.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false, got row=%+v", row)
	}
}

func TestSplitRowAcceptsLeadingZeros(t *testing.T) {
	row, ok, err := SplitRow("Device.Foo.007.Bar")
	if err != nil || !ok {
		t.Fatalf("err=%v ok=%v", err, ok)
	}
	if row.Instance != 7 {
		t.Errorf("Instance = %d, want 7", row.Instance)
	}
}

func TestSplitRowRejectsOverflow(t *testing.T) {
	row, ok, err := SplitRow("Device.Foo.99999999999999999999.Bar")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for overflowing segment, got %+v", row)
	}
}

func TestSplitRowNoInstance(t *testing.T) {
	_, ok, err := SplitRow("Device.Foo.Bar")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false, no instance segment present")
	}
}

func TestSplitRowRejectsEmptyAndMalformed(t *testing.T) {
	if _, _, err := SplitRow(""); err != ErrEmptyName {
		t.Errorf("err = %v, want ErrEmptyName", err)
	}
	if _, _, err := SplitRow("Device..Foo"); err != ErrMalformedName {
		t.Errorf("err = %v, want ErrMalformedName", err)
	}
}

func TestToTemplateCollapsesInstances(t *testing.T) {
	got, err := ToTemplate("Device.A.3.B.2.C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "Device.A.{i}.B.{i}.C"; got != want {
		t.Errorf("ToTemplate = %q, want %q", got, want)
	}
}

func TestToTemplatePreservesEdgeNumerics(t *testing.T) {
	// leading/trailing numeric-looking segments are not instances.
	got, err := ToTemplate("5.Device.3.Bar.9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "5.Device.{i}.Bar.9"; got != want {
		t.Errorf("ToTemplate = %q, want %q", got, want)
	}
}

func TestToTemplatePreservesTrailingDot(t *testing.T) {
	got, err := ToTemplate("Device.Foo.2.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "Device.Foo.{i}."; got != want {
		t.Errorf("ToTemplate = %q, want %q", got, want)
	}
}

func TestParentTemplateReturnsLongestPrefix(t *testing.T) {
	parent, ok := ParentTemplate("Device.A.{i}.B.{i}.C")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if want := "Device.A.{i}.B.{i}."; parent != want {
		t.Errorf("ParentTemplate = %q, want %q", parent, want)
	}
}

func TestParentTemplateWalksUpward(t *testing.T) {
	parent, ok := ParentTemplate("Device.A.{i}.B.{i}.")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if want := "Device.A.{i}."; parent != want {
		t.Errorf("ParentTemplate = %q, want %q", parent, want)
	}
	if _, ok := ParentTemplate(parent); ok {
		t.Error("expected ok=false once the outermost table is reached")
	}
}

func TestParentTemplateNoAncestor(t *testing.T) {
	_, ok := ParentTemplate("Device.A.B")
	if ok {
		t.Fatal("expected ok=false, no instance segment present")
	}
}

func TestCountInstances(t *testing.T) {
	if got := CountInstances("Device.A.3.B.2.C"); got != 2 {
		t.Errorf("CountInstances = %d, want 2", got)
	}
	if got := CountInstances("Device.Foo.Bar"); got != 0 {
		t.Errorf("CountInstances = %d, want 0", got)
	}
}

func TestIsTemplate(t *testing.T) {
	if !IsTemplate("Device.A.{i}.B") {
		t.Error("expected IsTemplate=true")
	}
	if IsTemplate("Device.A.3.B") {
		t.Error("expected IsTemplate=false")
	}
}
