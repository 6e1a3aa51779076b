package coin

import "github.com/electrumx-go/electrumx/wire"

// DashDeserializer reads DIP2 special transactions: an ordinary legacy body
// plus a type-tagged extra payload, present whenever the version field's
// high 16 bits carry a nonzero type. The payload itself is kept opaque;
// none of ProRegTx/ProUpServTx/ProUpRegTx/ProUpRevTx/CbTx/SubTx* fields
// affect address indexing.
type DashDeserializer struct {
	BaseDeserializer
}

// NewDashDeserializer returns a Deserializer for Dash.
func NewDashDeserializer(hashFn wire.HashFn) NewDeserializerFunc {
	return func(buf []byte, start int) Deserializer {
		return &DashDeserializer{BaseDeserializer{buf: buf, c: wire.NewCursor(buf, start), hashFn: hashFn}}
	}
}

// ReadTx implements Deserializer.
func (d *DashDeserializer) ReadTx() (*Tx, error) {
	start := d.c.Pos
	header, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, err
	}
	txType := uint16(header >> 16)
	version := int32(header & 0xffff)

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

	var extraPayload []byte
	if version >= 3 && txType != 0 {
		n, err := d.c.ReadVarInt()
		if err != nil {
			return nil, err
		}
		extraPayload, err = d.c.ReadNBytes(int(n))
		if err != nil {
			return nil, err
		}
	}

	raw := rawSpanBytes(d.buf, start, d.c.Pos)
	txid := d.hashFn(raw)
	return &Tx{
		Kind:     KindDash,
		Version:  version,
		Inputs:   inputs,
		Outputs:  outputs,
		LockTime: lockTime,
		TxID:     txid,
		WTxID:    txid,
		Dash:     &DashExtra{Type: txType, ExtraPayload: extraPayload},
	}, nil
}

// ReadTxAndVsize implements Deserializer.
func (d *DashDeserializer) ReadTxAndVsize() (*Tx, int, error) {
	start := d.c.Pos
	tx, err := d.ReadTx()
	if err != nil {
		return nil, 0, err
	}
	return tx, d.c.Pos - start, nil
}

// ReadTxBlock implements Deserializer.
func (d *DashDeserializer) ReadTxBlock() ([]*Tx, error) {
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
