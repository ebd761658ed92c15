package pool

import "testing"

type thing struct{ prefab string }

func TestPool_ReusesReleasedHandles(t *testing.T) {
	p := New(func(prefab string) interface{} { return &thing{prefab: prefab} })

	a := p.Acquire("STRAIGHT").(*thing)
	b := p.Acquire("STRAIGHT").(*thing)
	if a == b {
		t.Fatalf("distinct acquires should return distinct handles")
	}

	p.Release("STRAIGHT", a)
	c := p.Acquire("STRAIGHT").(*thing)
	if c != a {
		t.Fatalf("expected released handle to be reused")
	}

	alloc, reused := p.Stats()
	if alloc != 2 || reused != 1 {
		t.Fatalf("stats: got alloc=%d reused=%d want 2,1", alloc, reused)
	}
}

func TestPool_PrefabsDoNotMix(t *testing.T) {
	p := New(func(prefab string) interface{} { return &thing{prefab: prefab} })

	a := p.Acquire("STRAIGHT").(*thing)
	p.Release("STRAIGHT", a)

	b := p.Acquire("BRIDGE").(*thing)
	if b == a {
		t.Fatalf("different prefab must not reuse another prefab's handle")
	}
	if b.prefab != "BRIDGE" {
		t.Fatalf("factory got prefab %q", b.prefab)
	}
}
