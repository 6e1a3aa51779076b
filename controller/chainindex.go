package controller

import (
	"github.com/electrumx-go/electrumx/storage"
	"github.com/electrumx-go/electrumx/wire"
)

// chainIndex holds the auxiliary mappings the history package's schema
// deliberately leaves out (it only knows about hashX-keyed touches): the
// txnum -> txhash/height reverse lookups a status-hash recompute needs, the
// per-height block metadata headers.subscribe serves, and the UTXO set
// balance/listunspent read from. It shares the same KV as history, under
// prefixes history never uses.
type chainIndex struct {
	kv storage.KV
}

func newChainIndex(kv storage.KV) *chainIndex {
	return &chainIndex{kv: kv}
}

const (
	prefixTxNumToHash   = 'T'
	prefixTxNumToHeight = 'N'
	prefixBlockMeta     = 'Z'
	prefixUTXO          = 'u'
	prefixUTXOReverse   = 'U'
)

var tipKey = []byte("\x00tip")

// putTip persists the height, display hash, and tx count of the last block
// fully applied to the index, so a restart resumes instead of replaying
// from genesis. txCount is the tx_num boundary this indexer's UTXO side has
// durably reached; history.Open uses it on the next startup to truncate any
// history entries that ran ahead of it after an unclean shutdown.
func (ci *chainIndex) putTip(height uint32, hash string, txCount uint64) error {
	b := make([]byte, 0, 4+8+len(hash))
	b = append(b, wire.PackLEUint32(height)...)
	b = append(b, wire.PackLEUint64(txCount)...)
	b = append(b, []byte(hash)...)
	return ci.kv.Put(tipKey, b)
}

func (ci *chainIndex) getTip() (height uint32, hash string, txCount uint64, ok bool, err error) {
	b, ok, err := ci.kv.Get(tipKey)
	if err != nil || !ok {
		return 0, "", 0, ok, err
	}
	return wire.UnpackLEUint32(b[:4]), string(b[12:]), wire.UnpackLEUint64(b[4:12]), true, nil
}

func txNumToHashKey(txNum uint64) []byte {
	return append([]byte{prefixTxNumToHash}, wire.PackTxNum(txNum)...)
}

func txNumToHeightKey(txNum uint64) []byte {
	return append([]byte{prefixTxNumToHeight}, wire.PackTxNum(txNum)...)
}

func blockMetaKey(height uint32) []byte {
	return append([]byte{prefixBlockMeta}, wire.PackLEUint32(height)...)
}

func utxoKey(hashX []byte, txNum uint64, outIdx uint32) []byte {
	k := make([]byte, 0, 1+len(hashX)+wire.TxNumLen+wire.TxOutIdxLen)
	k = append(k, prefixUTXO)
	k = append(k, hashX...)
	k = append(k, wire.PackTxNum(txNum)...)
	k = append(k, wire.PackTxOutIdx(outIdx)...)
	return k
}

func utxoPrefix(hashX []byte) []byte {
	return append([]byte{prefixUTXO}, hashX...)
}

func utxoReverseKey(txNum uint64, outIdx uint32) []byte {
	k := make([]byte, 0, 1+wire.TxNumLen+wire.TxOutIdxLen)
	k = append(k, prefixUTXOReverse)
	k = append(k, wire.PackTxNum(txNum)...)
	k = append(k, wire.PackTxOutIdx(outIdx)...)
	return k
}

// blockMeta is what a height needs to remember: the first tx_num it
// allocated (for reorg rollback) and the block's raw header bytes.
type blockMeta struct {
	FirstTxNum uint64
	Header     []byte
}

func encodeBlockMeta(m blockMeta) []byte {
	out := make([]byte, 0, wire.TxNumLen+len(m.Header))
	out = append(out, wire.PackTxNum(m.FirstTxNum)...)
	out = append(out, m.Header...)
	return out
}

func decodeBlockMeta(b []byte) blockMeta {
	return blockMeta{
		FirstTxNum: wire.UnpackTxNum(b[:wire.TxNumLen]),
		Header:     append([]byte{}, b[wire.TxNumLen:]...),
	}
}

func (ci *chainIndex) putTxLocation(txNum uint64, txHash []byte, height uint32) {
	_ = ci.kv.Put(txNumToHashKey(txNum), txHash)
	_ = ci.kv.Put(txNumToHeightKey(txNum), wire.PackLEUint32(height))
}

func (ci *chainIndex) txHash(txNum uint64) ([]byte, bool, error) {
	return ci.kv.Get(txNumToHashKey(txNum))
}

func (ci *chainIndex) txHeight(txNum uint64) (uint32, bool, error) {
	b, ok, err := ci.kv.Get(txNumToHeightKey(txNum))
	if err != nil || !ok {
		return 0, ok, err
	}
	return wire.UnpackLEUint32(b), true, nil
}

func (ci *chainIndex) putBlockMeta(height uint32, m blockMeta) error {
	return ci.kv.Put(blockMetaKey(height), encodeBlockMeta(m))
}

func (ci *chainIndex) blockMeta(height uint32) (blockMeta, bool, error) {
	b, ok, err := ci.kv.Get(blockMetaKey(height))
	if err != nil || !ok {
		return blockMeta{}, ok, err
	}
	return decodeBlockMeta(b), true, nil
}

// utxoEntry is one unspent output's value and owning hashX.
type utxoEntry struct {
	HashX []byte
	Value uint64
}

func encodeUTXOValue(hashX []byte, value uint64) []byte {
	out := make([]byte, 0, len(hashX)+8)
	out = append(out, hashX...)
	out = append(out, wire.PackLEUint64(value)...)
	return out
}

func decodeUTXOValue(b []byte, hashXLen int) utxoEntry {
	return utxoEntry{HashX: append([]byte{}, b[:hashXLen]...), Value: wire.UnpackLEUint64(b[hashXLen:])}
}

func (ci *chainIndex) addUTXO(hashX []byte, txNum uint64, outIdx uint32, value uint64) error {
	if err := ci.kv.Put(utxoKey(hashX, txNum, outIdx), wire.PackLEUint64(value)); err != nil {
		return err
	}
	return ci.kv.Put(utxoReverseKey(txNum, outIdx), encodeUTXOValue(hashX, value))
}

// spendUTXO removes the output at (txNum, outIdx) from the UTXO set and
// returns the hashX and value it belonged to, if this indexer created it.
// A prevout from before this indexer's start height is not found here;
// the caller then skips that input without recording a spend (see
// blockprocessor.go).
func (ci *chainIndex) spendUTXO(txNum uint64, outIdx uint32, hashXLen int) (utxoEntry, bool, error) {
	rk := utxoReverseKey(txNum, outIdx)
	b, ok, err := ci.kv.Get(rk)
	if err != nil || !ok {
		return utxoEntry{}, ok, err
	}
	entry := decodeUTXOValue(b, hashXLen)
	if err := ci.kv.Delete(rk); err != nil {
		return utxoEntry{}, false, err
	}
	if err := ci.kv.Delete(utxoKey(entry.HashX, txNum, outIdx)); err != nil {
		return utxoEntry{}, false, err
	}
	return entry, true, nil
}

func (ci *chainIndex) listUnspent(hashX []byte) ([]struct {
	TxNum  uint64
	OutIdx uint32
	Value  uint64
}, error) {
	it := ci.kv.Iterator(utxoPrefix(hashX), false)
	defer it.Close()

	var out []struct {
		TxNum  uint64
		OutIdx uint32
		Value  uint64
	}
	for it.Next() {
		rest := it.Key() // prefix already trimmed by Iterator
		txNum := wire.UnpackTxNum(rest[:wire.TxNumLen])
		outIdx := wire.UnpackTxOutIdx(rest[wire.TxNumLen:])
		out = append(out, struct {
			TxNum  uint64
			OutIdx uint32
			Value  uint64
		}{TxNum: txNum, OutIdx: outIdx, Value: wire.UnpackLEUint64(it.Value())})
	}
	return out, it.Err()
}
