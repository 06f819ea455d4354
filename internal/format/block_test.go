package format

import (
	"errors"
	"testing"
)

func TestBlocks(t *testing.T) {
	tests := []struct {
		size, blockSize, want int
	}{
		{0, 8, 1},
		{1, 8, 1},
		{4, 8, 1},
		{5, 8, 3},
		{12, 8, 3},
		{13, 8, 4},
		{20, 8, 4},
		{28, 8, 5},
		{12, 16, 1},
		{13, 16, 3},
		{44, 16, 4},
	}
	for _, tt := range tests {
		if got := Blocks(tt.size, tt.blockSize); got != tt.want {
			t.Errorf("Blocks(%d, %d) = %d, want %d", tt.size, tt.blockSize, got, tt.want)
		}
	}
}

func TestBlocksCoverRequest(t *testing.T) {
	for _, bs := range []int{8, 12, 16, 32} {
		for size := 1; size < 1024; size++ {
			n := Blocks(size, bs)
			if Capacity(n, bs) < size {
				t.Fatalf("Blocks(%d, %d) = %d holds only %d bytes", size, bs, n, Capacity(n, bs))
			}
		}
	}
}

func TestNewStoreLimits(t *testing.T) {
	if _, err := NewStore(make([]byte, 64), 6); !errors.Is(err, ErrBlockSize) {
		t.Fatalf("block size 6: got %v", err)
	}
	if _, err := NewStore(make([]byte, 64), 10); !errors.Is(err, ErrBlockSize) {
		t.Fatalf("block size 10: got %v", err)
	}
	if _, err := NewStore(make([]byte, 8), 8); !errors.Is(err, ErrTooFewBlocks) {
		t.Fatalf("one block: got %v", err)
	}
	if _, err := NewStore(make([]byte, (MaxBlocks+1)*8), 8); !errors.Is(err, ErrTooManyBlocks) {
		t.Fatalf("too many blocks: got %v", err)
	}
	s, err := NewStore(make([]byte, 130), 8)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if s.Count != 16 || len(s.Mem) != 128 {
		t.Fatalf("unexpected store: count=%d len=%d", s.Count, len(s.Mem))
	}
}

func TestStoreReset(t *testing.T) {
	s, err := NewStore(make([]byte, 128), 8)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.Reset()

	if s.Next(Sentinel) != FirstBlock || s.Prev(Sentinel) != FirstBlock {
		t.Fatalf("sentinel links: next=%d prev=%d", s.Next(Sentinel), s.Prev(Sentinel))
	}
	if s.IsFree(Sentinel) {
		t.Fatalf("sentinel must never be free")
	}
	if s.NextFree(Sentinel) != FirstBlock || s.PrevFree(Sentinel) != FirstBlock {
		t.Fatalf("sentinel free links: next=%d prev=%d", s.NextFree(Sentinel), s.PrevFree(Sentinel))
	}
	if !s.IsFree(FirstBlock) || s.Run(FirstBlock) != 15 {
		t.Fatalf("first run: free=%v run=%d", s.IsFree(FirstBlock), s.Run(FirstBlock))
	}
}

func TestLinkFlags(t *testing.T) {
	s, err := NewStore(make([]byte, 64), 8)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.SetNext(3, 5, true)
	if s.Next(3) != 5 || !s.IsFree(3) || s.NextRaw(3) != 5|FreeMask {
		t.Fatalf("next link: raw=%#x", s.NextRaw(3))
	}
	s.SetFree(3, false)
	if s.Next(3) != 5 || s.IsFree(3) {
		t.Fatalf("clearing free flag changed link: raw=%#x", s.NextRaw(3))
	}

	s.SetPrev(3, 2)
	s.SetTag(3, true)
	if s.Prev(3) != 2 || !s.Tagged(3) {
		t.Fatalf("tag: raw=%#x", s.PrevRaw(3))
	}
	s.SetTag(3, false)
	if s.Prev(3) != 2 || s.Tagged(3) {
		t.Fatalf("untag: raw=%#x", s.PrevRaw(3))
	}

	s.SetNextFree(3, 7)
	s.SetPrevFree(3, 1)
	if s.NextFree(3) != 7 || s.PrevFree(3) != 1 {
		t.Fatalf("free links: %d %d", s.NextFree(3), s.PrevFree(3))
	}
	if s.Next(3) != 5 || s.Prev(3) != 2 {
		t.Fatalf("free links clobbered header")
	}
}

func TestRunOfTerminalBlock(t *testing.T) {
	s, err := NewStore(make([]byte, 80), 8)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.SetNext(6, Sentinel, false)
	if s.RunEnd(6) != 10 || s.Run(6) != 4 {
		t.Fatalf("terminal run: end=%d run=%d", s.RunEnd(6), s.Run(6))
	}
}
