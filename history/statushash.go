package history

import "github.com/electrumx-go/electrumx/wire"

// ChainConfirmed extends a confirmed-chain status hash with one more
// touching transaction: S_{k+1} = SHA256(S_k || tx_hash || height_le_i32).
// prev is nil for the first entry in a hashX's history.
func ChainConfirmed(prev []byte, txHash []byte, height int32) []byte {
	buf := make([]byte, 0, len(prev)+wire.HashLen+4)
	buf = append(buf, prev...)
	buf = append(buf, txHash...)
	buf = append(buf, wire.PackLEInt32(height)...)
	return wire.SHA256(buf)
}

// ChainMempool extends a status hash with a mempool-resident transaction,
// whose height and fee are folded in since they are not yet fixed by block
// inclusion: S_{k+1} = SHA256(S_k || tx_hash || height_le_i32 || fee_le_u64).
func ChainMempool(prev []byte, txHash []byte, height int32, fee uint64) []byte {
	buf := make([]byte, 0, len(prev)+wire.HashLen+4+8)
	buf = append(buf, prev...)
	buf = append(buf, txHash...)
	buf = append(buf, wire.PackLEInt32(height)...)
	buf = append(buf, wire.PackLEUint64(fee)...)
	return wire.SHA256(buf)
}
