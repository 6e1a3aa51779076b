package wire

import "testing"

func TestPackUnpackRoundTrip(t *testing.T) {
	if got := UnpackLEUint32(PackLEUint32(0xdeadbeef)); got != 0xdeadbeef {
		t.Fatalf("got %x", got)
	}
	if got := UnpackLEUint64(PackLEUint64(0x0102030405060708)); got != 0x0102030405060708 {
		t.Fatalf("got %x", got)
	}
	if got := UnpackBEUint64(PackBEUint64(0x0102030405060708)); got != 0x0102030405060708 {
		t.Fatalf("got %x", got)
	}
}

func TestPackTxNumOrderingMatchesNumericOrdering(t *testing.T) {
	a := PackTxNum(100)
	b := PackTxNum(2000000)
	if len(a) != TxNumLen || len(b) != TxNumLen {
		t.Fatalf("expected %d-byte tx nums, got %d and %d", TxNumLen, len(a), len(b))
	}
	if bytesCompare(a, b) >= 0 {
		t.Fatal("expected packed tx_num 100 to sort before 2000000")
	}
	if got := UnpackTxNum(b); got != 2000000 {
		t.Fatalf("round trip mismatch: got %d", got)
	}
}

func TestPackTxOutIdxRoundTrip(t *testing.T) {
	packed := PackTxOutIdx(0xabcdef)
	if len(packed) != TxOutIdxLen {
		t.Fatalf("expected %d bytes, got %d", TxOutIdxLen, len(packed))
	}
	if got := UnpackTxOutIdx(packed); got != 0xabcdef {
		t.Fatalf("got %x", got)
	}
}

func bytesCompare(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
