package coin

import "github.com/electrumx-go/electrumx/wire"

// DecredDeserializer reads Decred transactions: a prefix (version, inputs,
// outputs, locktime, expiry) followed by a separate witness section keyed
// by input index, hashed independently with BLAKE-256 rather than the
// double-SHA256 the Bitcoin family uses.
type DecredDeserializer struct {
	buf []byte
	c   *wire.Cursor
}

// NewDecredDeserializer returns a Deserializer for Decred.
func NewDecredDeserializer(buf []byte, start int) Deserializer {
	return &DecredDeserializer{buf: buf, c: wire.NewCursor(buf, start)}
}

func (d *DecredDeserializer) readInput() (*TxInput, error) {
	prevHash, err := d.c.ReadNBytes(wire.HashLen)
	if err != nil {
		return nil, err
	}
	prevIdx, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, err
	}
	if _, err := d.c.ReadByte(); err != nil { // tree
		return nil, err
	}
	seq, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, err
	}
	return &TxInput{PrevHash: prevHash, PrevIdx: prevIdx, Sequence: seq}, nil
}

func (d *DecredDeserializer) readOutput() (*TxOutput, uint16, error) {
	value, err := d.c.ReadLEInt64()
	if err != nil {
		return nil, 0, err
	}
	ver, err := d.c.ReadLEUint16()
	if err != nil {
		return nil, 0, err
	}
	pk, err := d.c.ReadVarBytes()
	if err != nil {
		return nil, 0, err
	}
	return &TxOutput{Value: value, PkScript: pk}, ver, nil
}

func (d *DecredDeserializer) readWitnessField() (DecredTxInputWitness, error) {
	valueIn, err := d.c.ReadLEInt64()
	if err != nil {
		return DecredTxInputWitness{}, err
	}
	blockHeight, err := d.c.ReadLEUint32()
	if err != nil {
		return DecredTxInputWitness{}, err
	}
	blockIndex, err := d.c.ReadLEUint32()
	if err != nil {
		return DecredTxInputWitness{}, err
	}
	script, err := d.c.ReadVarBytes()
	if err != nil {
		return DecredTxInputWitness{}, err
	}
	return DecredTxInputWitness{ValueIn: valueIn, BlockHeight: blockHeight, BlockIndex: blockIndex, SigScript: script}, nil
}

// ReadTx implements Deserializer.
func (d *DecredDeserializer) ReadTx() (*Tx, error) {
	tx, _, err := d.readTxParts(false)
	return tx, err
}

// ReadTxAndVsize implements Deserializer. Decred has no segregated-witness
// weight discount, so vsize is simply the serialized byte count.
func (d *DecredDeserializer) ReadTxAndVsize() (*Tx, int, error) {
	tx, vsize, err := d.readTxParts(true)
	return tx, vsize, err
}

func (d *DecredDeserializer) readTxParts(produceHash bool) (*Tx, int, error) {
	start := d.c.Pos
	version, err := d.c.ReadLEInt32()
	if err != nil {
		return nil, 0, err
	}
	nIn, err := readTxCount(d.c)
	if err != nil {
		return nil, 0, err
	}
	inputs := make([]*TxInput, nIn)
	for i := range inputs {
		in, err := d.readInput()
		if err != nil {
			return nil, 0, err
		}
		inputs[i] = in
	}
	nOut, err := readTxCount(d.c)
	if err != nil {
		return nil, 0, err
	}
	outputs := make([]*TxOutput, nOut)
	outVersions := make([]uint16, nOut)
	for i := range outputs {
		o, ver, err := d.readOutput()
		if err != nil {
			return nil, 0, err
		}
		outputs[i] = o
		outVersions[i] = ver
	}
	lockTime, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, 0, err
	}
	expiry, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, 0, err
	}
	endPrefix := d.c.Pos

	nWit, err := readTxCount(d.c)
	if err != nil {
		return nil, 0, err
	}
	witness := make([]DecredTxInputWitness, nWit)
	for i := range witness {
		w, err := d.readWitnessField()
		if err != nil {
			return nil, 0, err
		}
		witness[i] = w
	}

	var txid []byte
	if produceHash {
		prefixTx := rawSpanBytes(d.buf, start, endPrefix)
		txid = wire.Blake256(prefixTx)
	}

	return &Tx{
		Kind:     KindDecred,
		Version:  version,
		Inputs:   inputs,
		Outputs:  outputs,
		LockTime: lockTime,
		TxID:     txid,
		WTxID:    txid,
		Decred: &DecredExtra{
			Witness:       witness,
			Expiry:        expiry,
			OutputVersion: outVersions,
		},
	}, d.c.Pos - start, nil
}

// ReadTxBlock implements Deserializer. Decred keeps regular and stake
// transactions in two separate trees within the same block; indexing
// treats them uniformly so both trees are concatenated.
func (d *DecredDeserializer) ReadTxBlock() ([]*Tx, error) {
	tree1, err := d.readTxTree()
	if err != nil {
		return nil, err
	}
	tree2, err := d.readTxTree()
	if err != nil {
		return nil, err
	}
	return append(tree1, tree2...), nil
}

func (d *DecredDeserializer) readTxTree() ([]*Tx, error) {
	n, err := readTxCount(d.c)
	if err != nil {
		return nil, err
	}
	txs := make([]*Tx, n)
	for i := range txs {
		tx, _, err := d.readTxParts(true)
		if err != nil {
			return nil, err
		}
		txs[i] = tx
	}
	return txs, nil
}
