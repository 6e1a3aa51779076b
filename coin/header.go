package coin

import "github.com/electrumx-go/electrumx/wire"

// auxPowVersionBit, when set in a block header's version field (0x100),
// signals that an AuxPoW-merge-mined block carries a
// parent-chain coinbase transaction and merkle branches appended after
// the 80-byte base header. AuxPoW and Equihash are block-header concerns,
// not transaction-body ones, so they are handled as standalone header
// readers rather than additional Deserializer implementations (Go has no
// equivalent to stacking DeserializerAuxPowSegWit(DeserializerSegWit,
// DeserializerAuxPow) via multiple inheritance).
const auxPowVersionBit = 1 << 8

// BaseHeaderLen is the length of a standard 80-byte Bitcoin-family block
// header (version, prev hash, merkle root, time, bits, nonce).
const BaseHeaderLen = 80

// IsAuxPoW reports whether a serialized block header's version field marks
// it as merge-mined.
func IsAuxPoW(header []byte) bool {
	if len(header) < 4 {
		return false
	}
	version := wire.UnpackLEInt32(header[:4])
	return int(version)&auxPowVersionBit != 0
}

// ReadAuxPoWHeader consumes the AuxPoW auxiliary proof that follows the base
// header and returns the cursor position immediately after it, i.e. where
// the block's own transaction count begins.
func ReadAuxPoWHeader(buf []byte, start int, coinbaseDeser NewDeserializerFunc) (int, error) {
	c := wire.NewCursor(buf, start)

	cb := coinbaseDeser(buf, c.Pos)
	_, vsize, err := cb.ReadTxAndVsize()
	if err != nil {
		return 0, err
	}
	c.Pos += vsize

	if _, err := c.ReadNBytes(wire.HashLen); err != nil { // parent block hash
		return 0, err
	}

	branchLen, err := c.ReadVarInt()
	if err != nil {
		return 0, err
	}
	if _, err := c.ReadNBytes(int(branchLen) * wire.HashLen); err != nil {
		return 0, err
	}
	if _, err := c.ReadNBytes(4); err != nil { // coinbase branch index
		return 0, err
	}

	chainBranchLen, err := c.ReadVarInt()
	if err != nil {
		return 0, err
	}
	if _, err := c.ReadNBytes(int(chainBranchLen) * wire.HashLen); err != nil {
		return 0, err
	}
	if _, err := c.ReadNBytes(4); err != nil { // chain merkle index
		return 0, err
	}

	if _, err := c.ReadNBytes(BaseHeaderLen); err != nil { // parent block header
		return 0, err
	}

	return c.Pos, nil
}

// EquihashSolutionLen returns the length in bytes of an Equihash proof-of-work
// solution for the given (n, k) parameter pair, as carried at the tail of a
// Zcash-family block header.
func EquihashSolutionLen(n, k uint32) int {
	// Each solution has 2^k indices of (n/(k+1)+1) bits, packed to bytes,
	// length-prefixed by a compact-size varint.
	bitLen := (n/(k+1) + 1)
	indices := uint32(1) << k
	return int((indices*bitLen + 7) / 8)
}

// EquihashHeaderLen returns the length of the varint-prefixed Equihash
// solution that ends an Equihash block header. The fixed fields before the
// solution are not included in the result.
func EquihashHeaderLen(n, k uint32) int {
	solnLen := EquihashSolutionLen(n, k)
	return solnLen + wire.VarIntSerializeSize(uint64(solnLen))
}
