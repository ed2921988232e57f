package funnel

import "testing"

func TestKeyForDistinguishesOrders(t *testing.T) {
	a := keyFor([]int{0, 1, 2, 3})
	b := keyFor([]int{0, 1, 3, 2})
	if a == b {
		t.Fatal("distinct orders share a key")
	}
	if a != keyFor([]int{0, 1, 2, 3}) {
		t.Fatal("same order produced different keys")
	}
}

func TestEvalCacheRoundTrip(t *testing.T) {
	c := newEvalCache()
	key := keyFor([]int{2, 0, 1})

	if _, ok := c.get(key); ok {
		t.Fatal("empty cache reported a hit")
	}
	c.put(key, 0.42)
	got, ok := c.get(key)
	if !ok || got != 0.42 {
		t.Fatalf("got %v,%v want 0.42,true", got, ok)
	}
	if _, ok := c.get(keyFor([]int{0, 1, 2})); ok {
		t.Fatal("unrelated order reported a hit")
	}
}
