package memory

import "testing"

func TestDefaultRealloc_GrowsAndPreservesContent(t *testing.T) {
	b := Default.Realloc(nil, 8)
	if cap(b) < 8 {
		t.Fatalf("expected capacity >= 8, got %d", cap(b))
	}
	copy(b, []byte("abcdefgh"))

	b = b[:8]
	grown := Default.Realloc(b, 16)
	if len(grown) != 16 {
		t.Fatalf("expected len 16, got %d", len(grown))
	}
	if string(grown[:8]) != "abcdefgh" {
		t.Errorf("content not preserved across growth: %q", grown[:8])
	}
}

func TestDefaultRealloc_ShrinkWithinCapacityReusesArray(t *testing.T) {
	b := Default.Realloc(nil, 64)
	b = b[:64]
	shrunk := Default.Realloc(b, 4)
	if len(shrunk) != 4 {
		t.Fatalf("expected len 4, got %d", len(shrunk))
	}
	if cap(shrunk) != cap(b) {
		t.Errorf("expected shrink to reuse the same backing array, cap changed %d -> %d", cap(b), cap(shrunk))
	}
}

func TestDefaultRealloc_FloorPreventsRegrowthOnEveryByte(t *testing.T) {
	b := Default.Realloc(nil, 1)
	if cap(b) < 64 {
		t.Errorf("expected a floor capacity of at least 64 for a fresh small allocation, got %d", cap(b))
	}
}

func TestDefaultFree_IsNoOp(t *testing.T) {
	b := Default.Realloc(nil, 16)
	Default.Free(b) // must not panic
}

func TestLimited_RefusesAfterFailAfter(t *testing.T) {
	lim := &Limited{Suite: Default, FailAfter: 2}

	if got := lim.Realloc(nil, 8); got == nil {
		t.Fatalf("call 1 should have succeeded")
	}
	if got := lim.Realloc(nil, 8); got == nil {
		t.Fatalf("call 2 should have succeeded")
	}
	if got := lim.Realloc(nil, 8); got != nil {
		t.Fatalf("call 3 should have been refused, got non-nil slice")
	}
	if got := lim.Realloc(nil, 8); got != nil {
		t.Fatalf("call 4 should still be refused")
	}
	if lim.Calls() != 4 {
		t.Errorf("expected 4 observed calls, got %d", lim.Calls())
	}
}

func TestLimited_FailAfterZeroRefusesImmediately(t *testing.T) {
	lim := &Limited{Suite: Default, FailAfter: 0}
	if got := lim.Realloc(nil, 8); got != nil {
		t.Fatalf("expected immediate refusal with FailAfter=0")
	}
	if lim.Calls() != 1 {
		t.Errorf("expected 1 observed call, got %d", lim.Calls())
	}
}

func TestLimited_FreeDelegates(t *testing.T) {
	var freed []byte
	spy := spySuite{free: func(b []byte) { freed = b }}
	lim := &Limited{Suite: spy, FailAfter: 10}

	b := []byte("hello")
	lim.Free(b)
	if string(freed) != "hello" {
		t.Errorf("expected Free to delegate to the wrapped suite, got %q", freed)
	}
}

type spySuite struct {
	free func([]byte)
}

func (s spySuite) Realloc(b []byte, n int) []byte { return Default.Realloc(b, n) }
func (s spySuite) Free(b []byte)                  { s.free(b) }
