package format

import "testing"

func TestEncodingRoundTrip(t *testing.T) {
	b := make([]byte, 8)
	PutU16(b, 1, 0xBEEF)
	if b[1] != 0xEF || b[2] != 0xBE {
		t.Fatalf("PutU16 not little-endian: % x", b)
	}
	if ReadU16(b, 1) != 0xBEEF {
		t.Fatalf("ReadU16 = %#x", ReadU16(b, 1))
	}
	PutU32(b, 4, 0xDEADBEEF)
	if ReadU32(b, 4) != 0xDEADBEEF {
		t.Fatalf("ReadU32 = %#x", ReadU32(b, 4))
	}
}
