package coin

import (
	"bytes"
	"testing"

	"github.com/electrumx-go/electrumx/wire"
)

// buildLegacyTx assembles a single-input, single-output legacy transaction
// with a coinbase-shaped input, the simplest shape for ReadTxBlock to parse;
// the test then checks that TxInput.IsGeneration recognizes that input.
func buildLegacyTx() []byte {
	var buf bytes.Buffer
	buf.Write(wire.PackLEInt32(1)) // version
	buf.WriteByte(1)               // input count
	buf.Write(ZERO32)              // prev hash
	buf.Write(wire.PackLEUint32(MinusOne))
	buf.Write(wire.PackVarBytes([]byte{0x03, 0x01, 0x02, 0x03})) // coinbase script
	buf.Write(wire.PackLEUint32(0xffffffff))                     // sequence
	buf.WriteByte(1)                                             // output count
	buf.Write(wire.PackLEInt64(5000000000))
	buf.Write(wire.PackVarBytes([]byte{0x76, 0xa9, 0x14}))
	buf.Write(wire.PackLEUint32(0)) // locktime
	return buf.Bytes()
}

func TestBaseDeserializerReadTx(t *testing.T) {
	raw := buildLegacyTx()
	des := NewBaseDeserializer(wire.DoubleSHA256)(raw, 0)
	tx, err := des.ReadTx()
	if err != nil {
		t.Fatal(err)
	}
	if tx.Version != 1 {
		t.Fatalf("expected version 1, got %d", tx.Version)
	}
	if len(tx.Inputs) != 1 || len(tx.Outputs) != 1 {
		t.Fatalf("expected 1 input and 1 output, got %d/%d", len(tx.Inputs), len(tx.Outputs))
	}
	if !tx.Inputs[0].IsGeneration() {
		t.Fatal("expected a coinbase input")
	}
	if tx.Outputs[0].Value != 5000000000 {
		t.Fatalf("unexpected output value %d", tx.Outputs[0].Value)
	}
	if len(tx.TxID) != wire.HashLen {
		t.Fatalf("expected a %d-byte txid, got %d", wire.HashLen, len(tx.TxID))
	}
}

func TestBaseDeserializerReadTxBlock(t *testing.T) {
	raw := buildLegacyTx()
	var block bytes.Buffer
	block.WriteByte(1) // one tx in the block
	block.Write(raw)

	des := NewBaseDeserializer(wire.DoubleSHA256)(block.Bytes(), 0)
	txs, err := des.ReadTxBlock()
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 tx, got %d", len(txs))
	}
}
