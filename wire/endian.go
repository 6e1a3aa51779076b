// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire implements the byte-level primitives shared by every
// transaction parser variant: little/big-endian packing, the Bitcoin
// varint encoding, and the hash functions the coins use for txids.
package wire

import "encoding/binary"

var (
	littleEndian = binary.LittleEndian
	bigEndian    = binary.BigEndian
)

// PackLEUint16 encodes v as little-endian bytes.
func PackLEUint16(v uint16) []byte {
	b := make([]byte, 2)
	littleEndian.PutUint16(b, v)
	return b
}

// PackLEUint32 encodes v as little-endian bytes.
func PackLEUint32(v uint32) []byte {
	b := make([]byte, 4)
	littleEndian.PutUint32(b, v)
	return b
}

// PackLEInt32 encodes v as little-endian bytes.
func PackLEInt32(v int32) []byte {
	return PackLEUint32(uint32(v))
}

// PackLEUint64 encodes v as little-endian bytes.
func PackLEUint64(v uint64) []byte {
	b := make([]byte, 8)
	littleEndian.PutUint64(b, v)
	return b
}

// PackLEInt64 encodes v as little-endian bytes.
func PackLEInt64(v int64) []byte {
	return PackLEUint64(uint64(v))
}

// PackBEUint64 encodes v as big-endian bytes.
func PackBEUint64(v uint64) []byte {
	b := make([]byte, 8)
	bigEndian.PutUint64(b, v)
	return b
}

// UnpackLEUint16 decodes a little-endian uint16 from the front of b.
func UnpackLEUint16(b []byte) uint16 { return littleEndian.Uint16(b) }

// UnpackLEUint32 decodes a little-endian uint32 from the front of b.
func UnpackLEUint32(b []byte) uint32 { return littleEndian.Uint32(b) }

// UnpackLEInt32 decodes a little-endian int32 from the front of b.
func UnpackLEInt32(b []byte) int32 { return int32(UnpackLEUint32(b)) }

// UnpackLEUint64 decodes a little-endian uint64 from the front of b.
func UnpackLEUint64(b []byte) uint64 { return littleEndian.Uint64(b) }

// UnpackLEInt64 decodes a little-endian int64 from the front of b.
func UnpackLEInt64(b []byte) int64 { return int64(UnpackLEUint64(b)) }

// UnpackBEUint64 decodes a big-endian uint64 from the front of b.
func UnpackBEUint64(b []byte) uint64 { return bigEndian.Uint64(b) }

const (
	// TxNumLen is the width in bytes of a packed tx_num (spec: 40 bits).
	TxNumLen = 5
	// TxOutIdxLen is the width in bytes of a packed tx_out_idx (24 bits).
	TxOutIdxLen = 3
)

// PackTxNum packs a tx_num as a 5-byte big-endian value so that
// lexicographic key ordering matches numeric ordering.
func PackTxNum(txNum uint64) []byte {
	b := PackBEUint64(txNum)
	return b[len(b)-TxNumLen:]
}

// UnpackTxNum reverses PackTxNum.
func UnpackTxNum(b []byte) uint64 {
	var padded [8]byte
	copy(padded[8-TxNumLen:], b)
	return UnpackBEUint64(padded[:])
}

// PackTxOutIdx packs a tx_out_idx as a 3-byte big-endian value.
func PackTxOutIdx(idx uint32) []byte {
	b := make([]byte, 4)
	bigEndian.PutUint32(b, idx)
	return b[4-TxOutIdxLen:]
}

// UnpackTxOutIdx reverses PackTxOutIdx.
func UnpackTxOutIdx(b []byte) uint32 {
	var padded [4]byte
	copy(padded[4-TxOutIdxLen:], b)
	return bigEndian.Uint32(padded[:])
}
