package controller

import (
	"testing"

	"github.com/electrumx-go/electrumx/coin"
	"github.com/electrumx-go/electrumx/wire"
)

func TestMerkleBranchSingleLeaf(t *testing.T) {
	c := coin.Registry["BTC"]
	leaves := [][]byte{wire.DoubleSHA256([]byte("tx0"))}
	branch := merkleBranch(c, leaves, 0)
	if len(branch) != 0 {
		t.Fatalf("expected empty branch for a single-leaf tree, got %v", branch)
	}
}

func TestMerkleBranchVerifiesToRoot(t *testing.T) {
	c := coin.Registry["BTC"]
	hashFn := c.TxHashFn()
	leaves := make([][]byte, 3)
	for i := range leaves {
		leaves[i] = wire.DoubleSHA256([]byte{byte(i)})
	}

	// Reconstruct the expected root the same way CalculateHashMerkleRoot
	// does: pad odd levels by duplicating the last node.
	level := append([][]byte{}, leaves...)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][]byte, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = hashFn(append(append([]byte{}, level[i]...), level[i+1]...))
		}
		level = next
	}
	root := level[0]

	for pos := range leaves {
		branch := merkleBranch(c, leaves, pos)
		got := reconstructRoot(hashFn, leaves[pos], pos, branch)
		if !bytesEqual(got, root) {
			t.Fatalf("leaf %d: branch did not reconstruct the root", pos)
		}
	}
}

func reconstructRoot(hashFn wire.HashFn, leaf []byte, pos int, branch []string) []byte {
	cur := leaf
	for _, siblingHex := range branch {
		sibling := reverseHexDecode(siblingHex)
		if pos%2 == 0 {
			cur = hashFn(append(append([]byte{}, cur...), sibling...))
		} else {
			cur = hashFn(append(append([]byte{}, sibling...), cur...))
		}
		pos /= 2
	}
	return cur
}

func reverseHexDecode(s string) []byte {
	b := make([]byte, len(s)/2)
	for i := range b {
		hi := hexVal(s[len(s)-2-i*2])
		lo := hexVal(s[len(s)-1-i*2])
		b[i] = hi<<4 | lo
	}
	return b
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
