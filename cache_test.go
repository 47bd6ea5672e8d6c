package formula

import (
	"testing"
)

func TestFormulaCacheLookup(t *testing.T) {
	cache := NewFormulaCache()
	a1 := mustAddr(t, "A1")
	ast := mustParse(t, "=1+2")

	if _, ok := cache.Lookup(a1, "=1+2"); ok {
		t.Error("empty cache should miss")
	}

	cache.Store(a1, "=1+2", ast)
	cached, ok := cache.Lookup(a1, "=1+2")
	if !ok {
		t.Fatal("stored formula should hit")
	}
	if cached != ast {
		t.Error("cache should return the stored AST")
	}

	// same cell, different source
	if _, ok := cache.Lookup(a1, "=1+3"); ok {
		t.Error("changed source should miss")
	}
	// same source, different cell
	if _, ok := cache.Lookup(mustAddr(t, "B1"), "=1+2"); ok {
		t.Error("entries are per cell")
	}
}

func TestFormulaCacheStoreReplaces(t *testing.T) {
	cache := NewFormulaCache()
	a1 := mustAddr(t, "A1")

	cache.Store(a1, "=1+2", mustParse(t, "=1+2"))
	replacement := mustParse(t, "=A2*2")
	cache.Store(a1, "=A2*2", replacement)

	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}
	if _, ok := cache.Lookup(a1, "=1+2"); ok {
		t.Error("replaced source should miss")
	}
	cached, ok := cache.Lookup(a1, "=A2*2")
	if !ok || cached != replacement {
		t.Error("replacement should hit")
	}
}

func TestFormulaCacheInvalidate(t *testing.T) {
	cache := NewFormulaCache()
	a1 := mustAddr(t, "A1")

	cache.Store(a1, "=1", mustParse(t, "=1"))
	cache.Invalidate(a1)
	if _, ok := cache.Lookup(a1, "=1"); ok {
		t.Error("invalidated entry should miss")
	}
	if cache.Len() != 0 {
		t.Errorf("Len = %d, want 0", cache.Len())
	}

	// invalidating a missing entry is a no-op
	cache.Invalidate(mustAddr(t, "Z9"))
}

func TestFormulaCacheStats(t *testing.T) {
	cache := NewFormulaCache()
	a1 := mustAddr(t, "A1")

	cache.Lookup(a1, "=1") // miss
	cache.Store(a1, "=1", mustParse(t, "=1"))
	cache.Lookup(a1, "=1") // hit
	cache.Lookup(a1, "=2") // miss

	hits, misses := cache.Stats()
	if hits != 1 || misses != 2 {
		t.Errorf("Stats = %d hits, %d misses, want 1 and 2", hits, misses)
	}

	// Clear drops entries but keeps the counters
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len = %d, want 0 after Clear", cache.Len())
	}
	hits, misses = cache.Stats()
	if hits != 1 || misses != 2 {
		t.Errorf("Stats after Clear = %d hits, %d misses, want 1 and 2", hits, misses)
	}
}
