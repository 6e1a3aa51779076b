// Copyright (c) 2016-2018, Neil Booth
// Copyright (c) 2017, the ElectrumX authors
//
// See the file "LICENCE" for information about the copyright
// and warranty status of this software.

// Package coin implements the variant-aware transaction/block
// deserializer family: one cursor-based reader per chain family,
// producing a canonical txid/wtxid/vsize for every supported coin.
package coin

import "github.com/electrumx-go/electrumx/wire"

// Kind tags which coin-specific fields of Tx are meaningful, replacing the
// deep deserializer class hierarchy of the source implementation with a
// single tagged struct (see spec's redesign notes).
type Kind int

const (
	// KindPlain is a legacy, pre-SegWit transaction.
	KindPlain Kind = iota
	// KindSegWit is a BIP-144 witness transaction.
	KindSegWit
	// KindTime is a transaction carrying a leading unix timestamp field
	// (PIVX/TxTime family).
	KindTime
	// KindTimeSegWit is the witness variant of KindTime.
	KindTimeSegWit
	// KindDecred is a Decred transaction (distinct witness layout).
	KindDecred
	// KindDash is a DIP2 special transaction (tx_type + extra payload).
	KindDash
	// KindZcash is an Overwinter/Sapling-era Zcash transaction.
	KindZcash
	// KindBitcoinDiamond is a BitcoinDiamond transaction (pre-block-hash field).
	KindBitcoinDiamond
)

// ZERO32 is 32 zero bytes, the null previous-output hash of a coinbase input.
var ZERO32 = make([]byte, 32)

// MinusOne is the sentinel previous-output index of a coinbase input.
const MinusOne = 0xFFFFFFFF

// Tx is a deserialized transaction. The coin-specific extension fields are
// only populated when Kind names the matching variant; see the tagged-union
// note above.
type Tx struct {
	Kind     Kind
	Version  int32
	Inputs   []*TxInput
	Outputs  []*TxOutput
	LockTime uint32
	TxID     []byte
	WTxID    []byte

	// KindSegWit / KindTimeSegWit
	Marker  byte
	Flag    byte
	Witness [][][]byte

	// KindTime / KindTimeSegWit
	Time uint32

	// KindDecred
	Decred *DecredExtra
	// KindDash
	Dash *DashExtra
	// KindZcash
	Zcash *ZcashExtra
	// KindBitcoinDiamond
	BitcoinDiamond *BitcoinDiamondExtra
}

// TxInput is a transaction input.
type TxInput struct {
	PrevHash []byte
	PrevIdx  uint32
	Script   []byte
	Sequence uint32
}

// IsGeneration reports whether in is a coinbase/generation input.
func (in *TxInput) IsGeneration() bool {
	return in.PrevIdx == MinusOne && bytesEqual(in.PrevHash, ZERO32)
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

func (in *TxInput) serialize() []byte {
	out := make([]byte, 0, 32+4+len(in.Script)+8+4)
	out = append(out, in.PrevHash...)
	out = append(out, wire.PackLEUint32(in.PrevIdx)...)
	out = append(out, wire.PackVarBytes(in.Script)...)
	out = append(out, wire.PackLEUint32(in.Sequence)...)
	return out
}

// TxOutput is a transaction output.
type TxOutput struct {
	Value    int64
	PkScript []byte
}

func (out *TxOutput) serialize() []byte {
	b := make([]byte, 0, 8+len(out.PkScript)+4)
	b = append(b, wire.PackLEInt64(out.Value)...)
	b = append(b, wire.PackVarBytes(out.PkScript)...)
	return b
}

// Serialize re-encodes a non-witness (legacy) transaction to its canonical
// wire form. Witness/Decred/Zcash/Dash variants override this meaning in
// their own read paths; this covers KindPlain and KindTime.
func (t *Tx) Serialize() []byte {
	var out []byte
	if t.Kind == KindTime || t.Kind == KindTimeSegWit {
		out = append(out, wire.PackLEUint32(t.Time)...)
	}
	out = append(out, wire.PackLEInt32(t.Version)...)
	out = append(out, wire.PackVarInt(uint64(len(t.Inputs)))...)
	for _, in := range t.Inputs {
		out = append(out, in.serialize()...)
	}
	out = append(out, wire.PackVarInt(uint64(len(t.Outputs)))...)
	for _, o := range t.Outputs {
		out = append(out, o.serialize()...)
	}
	out = append(out, wire.PackLEUint32(t.LockTime)...)
	return out
}
