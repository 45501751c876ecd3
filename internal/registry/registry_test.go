package registry

import "testing"

func TestInsertAndIterPreservesOrder(t *testing.T) {
	r := New()
	r.Insert(Element{Name: "Device.Foo", Kind: KindProperty})
	r.Insert(Element{Name: "Device.Bar", Kind: KindProperty})
	r.Insert(Element{Name: "Device.Baz", Kind: KindProperty})

	got := r.Iter()
	want := []string{"Device.Foo", "Device.Bar", "Device.Baz"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("position %d = %q, want %q", i, got[i].Name, name)
		}
	}
}

func TestInsertOverwriteKeepsPosition(t *testing.T) {
	r := New()
	r.Insert(Element{Name: "A", Kind: KindProperty})
	r.Insert(Element{Name: "B", Kind: KindProperty})
	r.Insert(Element{Name: "A", Kind: KindProperty, Writable: true})

	got := r.Iter()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (re-insert must not duplicate)", len(got))
	}
	if got[0].Name != "A" || !got[0].Writable {
		t.Errorf("got[0] = %+v, want overwritten A at position 0", got[0])
	}
	if got[1].Name != "B" {
		t.Errorf("got[1] = %+v, want B at position 1", got[1])
	}
}

func TestGetMissing(t *testing.T) {
	r := New()
	if _, ok := r.Get("nope"); ok {
		t.Error("expected ok=false for missing element")
	}
}

func TestEnsureTableChainCreatesAncestorsIdempotently(t *testing.T) {
	r := New()
	if err := r.EnsureTableChain("Device.A.{i}.B.{i}.C"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	aTable, ok := r.Get("Device.A.{i}")
	if !ok || aTable.Kind != KindTable {
		t.Fatalf("Device.A.{i} not registered as a table: %+v ok=%v", aTable, ok)
	}
	bTable, ok := r.Get("Device.A.{i}.B.{i}")
	if !ok || bTable.Kind != KindTable {
		t.Fatalf("Device.A.{i}.B.{i} not registered as a table: %+v ok=%v", bTable, ok)
	}
	if _, ok := r.Get("Device.A.NumberOfEntries"); !ok {
		t.Error("expected NumberOfEntries sibling for Device.A.{i} (no ancestor instance to carry)")
	}
	if _, ok := r.Get("Device.A.{i}.B.NumberOfEntries"); !ok {
		t.Error("expected NumberOfEntries sibling for Device.A.{i}.B.{i}")
	}

	before := r.Len()
	if err := r.EnsureTableChain("Device.A.{i}.B.{i}.D"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after := r.Len(); after != before {
		t.Errorf("second EnsureTableChain call changed element count: %d -> %d", before, after)
	}
}

func TestEnsureTableChainNoopOnPlainName(t *testing.T) {
	r := New()
	if err := r.EnsureTableChain("Device.Foo.Bar"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("expected no elements created for a non-row name, got %d", r.Len())
	}
}
