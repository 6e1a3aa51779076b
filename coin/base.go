package coin

import "github.com/electrumx-go/electrumx/wire"

// BaseDeserializer reads legacy, pre-SegWit transactions. SegWitDeserializer
// and the PIVX/Decred/Zcash/Dash readers embed it for the parts of the
// layout they share.
type BaseDeserializer struct {
	buf   []byte
	c     *wire.Cursor
	hashFn wire.HashFn
}

// NewBaseDeserializer returns a Deserializer for plain legacy transactions,
// hashing with hashFn (normally wire.DoubleSHA256).
func NewBaseDeserializer(hashFn wire.HashFn) NewDeserializerFunc {
	return func(buf []byte, start int) Deserializer {
		return &BaseDeserializer{buf: buf, c: wire.NewCursor(buf, start), hashFn: hashFn}
	}
}

func (d *BaseDeserializer) readInputs() ([]*TxInput, error) {
	n, err := readTxCount(d.c)
	if err != nil {
		return nil, err
	}
	ins := make([]*TxInput, n)
	for i := range ins {
		in, err := d.readInput()
		if err != nil {
			return nil, err
		}
		ins[i] = in
	}
	return ins, nil
}

func (d *BaseDeserializer) readInput() (*TxInput, error) {
	prevHash, err := d.c.ReadNBytes(wire.HashLen)
	if err != nil {
		return nil, err
	}
	prevIdx, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, err
	}
	script, err := d.c.ReadVarBytes()
	if err != nil {
		return nil, err
	}
	seq, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, err
	}
	return &TxInput{PrevHash: prevHash, PrevIdx: prevIdx, Script: script, Sequence: seq}, nil
}

func (d *BaseDeserializer) readOutputs() ([]*TxOutput, error) {
	n, err := readTxCount(d.c)
	if err != nil {
		return nil, err
	}
	outs := make([]*TxOutput, n)
	for i := range outs {
		o, err := d.readOutput()
		if err != nil {
			return nil, err
		}
		outs[i] = o
	}
	return outs, nil
}

func (d *BaseDeserializer) readOutput() (*TxOutput, error) {
	value, err := d.c.ReadLEInt64()
	if err != nil {
		return nil, err
	}
	pk, err := d.c.ReadVarBytes()
	if err != nil {
		return nil, err
	}
	return &TxOutput{Value: value, PkScript: pk}, nil
}

// ReadTx implements Deserializer.
func (d *BaseDeserializer) ReadTx() (*Tx, error) {
	tx, _, err := d.readTxRaw()
	return tx, err
}

func (d *BaseDeserializer) readTxRaw() (*Tx, []byte, error) {
	start := d.c.Pos
	version, err := d.c.ReadLEInt32()
	if err != nil {
		return nil, nil, err
	}
	inputs, err := d.readInputs()
	if err != nil {
		return nil, nil, err
	}
	outputs, err := d.readOutputs()
	if err != nil {
		return nil, nil, err
	}
	lockTime, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, nil, err
	}
	raw := rawSpanBytes(d.buf, start, d.c.Pos)
	txid := d.hashFn(raw)
	tx := &Tx{
		Kind:     KindPlain,
		Version:  version,
		Inputs:   inputs,
		Outputs:  outputs,
		LockTime: lockTime,
		TxID:     txid,
		WTxID:    txid,
	}
	return tx, raw, nil
}

// ReadTxAndVsize implements Deserializer. For non-witness coins vsize is
// just the serialized size.
func (d *BaseDeserializer) ReadTxAndVsize() (*Tx, int, error) {
	start := d.c.Pos
	tx, err := d.ReadTx()
	if err != nil {
		return nil, 0, err
	}
	return tx, d.c.Pos - start, nil
}

// ReadTxBlock implements Deserializer.
func (d *BaseDeserializer) ReadTxBlock() ([]*Tx, error) {
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
