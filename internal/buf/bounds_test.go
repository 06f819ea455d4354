package buf

import (
	"math"
	"testing"
)

func TestAddSaturating(t *testing.T) {
	if got := AddSaturating(10, 5); got != 15 {
		t.Fatalf("AddSaturating(10,5)=%d want 15", got)
	}
	if got := AddSaturating(math.MaxInt-3, 12); got != math.MaxInt {
		t.Fatalf("AddSaturating overflow=%d want MaxInt", got)
	}
}

func TestMulSaturating(t *testing.T) {
	if got := MulSaturating(6, 7); got != 42 {
		t.Fatalf("MulSaturating(6,7)=%d want 42", got)
	}
	if got := MulSaturating(math.MaxInt/2, 3); got != math.MaxInt {
		t.Fatalf("MulSaturating overflow=%d want MaxInt", got)
	}
	if got := MulSaturating(0, math.MaxInt); got != 0 {
		t.Fatalf("MulSaturating(0,MaxInt)=%d want 0", got)
	}
}

func TestSlice(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4}
	got, ok := Slice(data, 1, 3)
	if !ok || len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Slice returned unexpected result: %v, %v", got, ok)
	}
	if cap(got) != 3 {
		t.Fatalf("Slice capacity=%d want 3", cap(got))
	}
	if _, ok := Slice(data, 5, 0); !ok {
		t.Fatalf("Slice should allow an empty range at the end")
	}

	for _, tc := range []struct{ off, n int }{
		{4, 2}, {-1, 1}, {1, -1}, {6, 0}, {1, math.MaxInt},
	} {
		if _, ok := Slice(data, tc.off, tc.n); ok {
			t.Fatalf("Slice(%d,%d) should fail", tc.off, tc.n)
		}
	}
}
