package pool

import "testing"

func TestAllocateReusesAvailableHandle(t *testing.T) {
	p := NewRefCounted(2, func() int { return 0 })

	h1 := p.Allocate()
	*h1.Value() = 1
	h1.Release()

	h2 := p.Allocate()
	if h2 != h1 {
		t.Fatal("Allocate should reuse the handle released above")
	}
	if *h2.Value() != 1 {
		t.Fatalf("reused handle should keep its value, got %d", *h2.Value())
	}
}

func TestAllocateGrowsPoolWhenExhausted(t *testing.T) {
	p := NewRefCounted(1, func() int { return 0 })

	h1 := p.Allocate() // takes the only slot, never released
	h2 := p.Allocate() // nothing free, pool must grow

	if h1 == h2 {
		t.Fatal("Allocate should not hand out the same handle twice while h1 is held")
	}

	count := 0
	p.ForEach(func(*Handle[int]) { count++ })
	if count != 2 {
		t.Fatalf("pool should have grown to 2 slots, has %d", count)
	}
}

func TestAllocateWithFallbackReturnsFallbackWhenExhausted(t *testing.T) {
	p := NewRefCounted(1, func() int { return 0 })
	p.Allocate() // occupy the only slot

	fallback := newHandle(-1)
	got := p.AllocateWithFallback(fallback)
	if got != fallback {
		t.Fatal("AllocateWithFallback should return the fallback when the pool is exhausted")
	}

	count := 0
	p.ForEach(func(*Handle[int]) { count++ })
	if count != 1 {
		t.Fatalf("AllocateWithFallback must not grow the pool, has %d slots", count)
	}
}
