package coin

import "github.com/electrumx-go/electrumx/wire"

// bitcoinDiamondMinVersion is the transaction version at which BitcoinDiamond
// started prefixing a block hash memo ahead of the input list.
const bitcoinDiamondMinVersion = 12

// BitcoinDiamondDeserializer reads BitcoinDiamond transactions, which insert
// a 32-byte "pre block hash" field between the version and the input list
// once the transaction version reaches 12.
type BitcoinDiamondDeserializer struct {
	BaseDeserializer
}

// NewBitcoinDiamondDeserializer returns a Deserializer for BitcoinDiamond.
func NewBitcoinDiamondDeserializer(hashFn wire.HashFn) NewDeserializerFunc {
	return func(buf []byte, start int) Deserializer {
		return &BitcoinDiamondDeserializer{BaseDeserializer{buf: buf, c: wire.NewCursor(buf, start), hashFn: hashFn}}
	}
}

// ReadTx implements Deserializer.
func (d *BitcoinDiamondDeserializer) ReadTx() (*Tx, error) {
	start := d.c.Pos
	version, err := d.c.ReadLEInt32()
	if err != nil {
		return nil, err
	}

	var extra *BitcoinDiamondExtra
	if version >= bitcoinDiamondMinVersion {
		hash, err := d.c.ReadNBytes(wire.HashLen)
		if err != nil {
			return nil, err
		}
		extra = &BitcoinDiamondExtra{PreBlockHash: hash}
	}

	inputs, err := d.readInputs()
	if err != nil {
		return nil, err
	}
	outputs, err := d.readOutputs()
	if err != nil {
		return nil, err
	}
	lockTime, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, err
	}

	raw := rawSpanBytes(d.buf, start, d.c.Pos)
	txid := d.hashFn(raw)
	return &Tx{
		Kind:           KindBitcoinDiamond,
		Version:        version,
		Inputs:         inputs,
		Outputs:        outputs,
		LockTime:       lockTime,
		TxID:           txid,
		WTxID:          txid,
		BitcoinDiamond: extra,
	}, nil
}

// ReadTxAndVsize implements Deserializer.
func (d *BitcoinDiamondDeserializer) ReadTxAndVsize() (*Tx, int, error) {
	start := d.c.Pos
	tx, err := d.ReadTx()
	if err != nil {
		return nil, 0, err
	}
	return tx, d.c.Pos - start, nil
}

// ReadTxBlock implements Deserializer.
func (d *BitcoinDiamondDeserializer) ReadTxBlock() ([]*Tx, error) {
	n, err := readTxCount(d.c)
	if err != nil {
		return nil, err
	}
	txs := make([]*Tx, n)
	for i := range txs {
		tx, err := d.ReadTx()
		if err != nil {
			return nil, err
		}
		txs[i] = tx
	}
	return txs, nil
}
