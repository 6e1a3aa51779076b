// Package history stores, per hashX, the ordered list of transaction
// numbers that touched it, plus the auxiliary tables needed to resolve a
// txid to its tx_num, find the spender of a txo, and cache intermediate
// status hashes at reorg-safe depth.
package history

import (
	"encoding/binary"

	"github.com/electrumx-go/electrumx/wire"
)

// Key prefixes, one byte each, matching the ordered-KV schema: H for the
// hashX history index, t for the tx_hash -> tx_num map, s for the spend
// index, S for the cached intermediate status hash, and a reserved key for
// the flush state record.
const (
	prefixHistory       = 'H'
	prefixTxHashToTxNum = 't'
	prefixSpend         = 's'
	prefixStatusHash    = 'S'
)

var stateKey = []byte("\x00state")

// State is the durable flush bookkeeping record, serialized under stateKey.
type State struct {
	FlushCount uint32
	TxCount    uint64
}

func (s State) encode() []byte {
	b := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(b[:4], s.FlushCount)
	binary.LittleEndian.PutUint64(b[4:], s.TxCount)
	return b
}

func decodeState(b []byte) State {
	if len(b) < 12 {
		return State{}
	}
	return State{
		FlushCount: binary.LittleEndian.Uint32(b[:4]),
		TxCount:    binary.LittleEndian.Uint64(b[4:]),
	}
}

func historyKey(hashX []byte, txNum uint64) []byte {
	key := make([]byte, 0, 1+len(hashX)+wire.TxNumLen)
	key = append(key, prefixHistory)
	key = append(key, hashX...)
	key = append(key, wire.PackTxNum(txNum)...)
	return key
}

func historyPrefix(hashX []byte) []byte {
	return append([]byte{prefixHistory}, hashX...)
}

func txHashKey(txHash []byte) []byte {
	return append([]byte{prefixTxHashToTxNum}, txHash...)
}

func spendKey(txNum uint64, outIdx uint32) []byte {
	key := make([]byte, 0, 1+wire.TxNumLen+wire.TxOutIdxLen)
	key = append(key, prefixSpend)
	key = append(key, wire.PackTxNum(txNum)...)
	key = append(key, wire.PackTxOutIdx(outIdx)...)
	return key
}

func statusHashKey(hashX []byte, txNum uint64) []byte {
	key := make([]byte, 0, 1+len(hashX)+wire.TxNumLen)
	key = append(key, prefixStatusHash)
	key = append(key, hashX...)
	key = append(key, wire.PackTxNum(txNum)...)
	return key
}
