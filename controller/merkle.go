package controller

import "github.com/electrumx-go/electrumx/coin"

// merkleBranch builds the Bitcoin-style merkle authentication path for the
// leaf at pos: at each level, if a node has no sibling it is duplicated
// (classic CVE-2012-2459-shaped tree, which is also what every wallet
// speaking this protocol expects transaction.get_merkle to return),
// grounded on the pairwise hashMerkleBranches/nextPowerOfTwo construction
// the reference merkle builder uses.
func merkleBranch(c coin.Coin, leaves [][]byte, pos int) []string {
	level := make([][]byte, len(leaves))
	copy(level, leaves)

	var branch []string
	idx := pos
	hashFn := c.TxHashFn()

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		sibling := idx ^ 1
		branch = append(branch, hexReverse(level[sibling]))

		next := make([][]byte, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = hashFn(append(append([]byte{}, level[i]...), level[i+1]...))
		}
		level = next
		idx /= 2
	}
	return branch
}

func hexReverse(h []byte) string {
	const hextable = "0123456789abcdef"
	rev := make([]byte, len(h)*2)
	for i := 0; i < len(h); i++ {
		b := h[len(h)-1-i]
		rev[i*2] = hextable[b>>4]
		rev[i*2+1] = hextable[b&0x0f]
	}
	return string(rev)
}
