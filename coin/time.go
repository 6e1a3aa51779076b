package coin

import "github.com/electrumx-go/electrumx/wire"

// TimeDeserializer reads PIVX/TxTime-family transactions, which prepend a
// 4-byte unix timestamp ahead of the version field.
type TimeDeserializer struct {
	BaseDeserializer
}

// NewTimeDeserializer returns a Deserializer for PIVX-style timestamped coins.
func NewTimeDeserializer(hashFn wire.HashFn) NewDeserializerFunc {
	return func(buf []byte, start int) Deserializer {
		return &TimeDeserializer{BaseDeserializer{buf: buf, c: wire.NewCursor(buf, start), hashFn: hashFn}}
	}
}

// ReadTx implements Deserializer.
func (d *TimeDeserializer) ReadTx() (*Tx, error) {
	tx, _, err := d.readTimeTxRaw()
	return tx, err
}

func (d *TimeDeserializer) readTimeTxRaw() (*Tx, []byte, error) {
	start := d.c.Pos
	t, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, nil, err
	}
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
		Kind:     KindTime,
		Version:  version,
		Time:     t,
		Inputs:   inputs,
		Outputs:  outputs,
		LockTime: lockTime,
		TxID:     txid,
		WTxID:    txid,
	}
	return tx, raw, nil
}

// ReadTxAndVsize implements Deserializer.
func (d *TimeDeserializer) ReadTxAndVsize() (*Tx, int, error) {
	start := d.c.Pos
	tx, err := d.ReadTx()
	if err != nil {
		return nil, 0, err
	}
	return tx, d.c.Pos - start, nil
}

// ReadTxBlock implements Deserializer.
func (d *TimeDeserializer) ReadTxBlock() ([]*Tx, error) {
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

// TimeSegWitDeserializer is the witness variant of TimeDeserializer, used by
// coins such as Vertcoin that combine a timestamp field with BIP-144
// witnesses.
type TimeSegWitDeserializer struct {
	SegWitDeserializer
}

// NewTimeSegWitDeserializer returns a Deserializer for timestamped SegWit coins.
func NewTimeSegWitDeserializer(hashFn wire.HashFn) NewDeserializerFunc {
	return func(buf []byte, start int) Deserializer {
		return &TimeSegWitDeserializer{SegWitDeserializer{BaseDeserializer{buf: buf, c: wire.NewCursor(buf, start), hashFn: hashFn}}}
	}
}

// ReadTx implements Deserializer, peeling off the leading timestamp before
// delegating to the ordinary SegWit body reader.
func (d *TimeSegWitDeserializer) ReadTx() (*Tx, error) {
	tx, _, err := d.readTimeSegWitTxParts()
	return tx, err
}

// ReadTxAndVsize implements Deserializer.
func (d *TimeSegWitDeserializer) ReadTxAndVsize() (*Tx, int, error) {
	return d.readTimeSegWitTxParts()
}

// readTimeSegWitTxParts peels off the leading timestamp, delegates to the
// embedded SegWit body reader for the weighted vsize, and adds the
// timestamp's own 4 bytes to it: a non-witness field contributes to vsize
// at full weight, the same as any other base-transaction byte.
func (d *TimeSegWitDeserializer) readTimeSegWitTxParts() (*Tx, int, error) {
	t, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, 0, err
	}
	tx, vsize, err := d.SegWitDeserializer.readTxParts()
	if err != nil {
		return nil, 0, err
	}
	tx.Kind = KindTimeSegWit
	tx.Time = t
	return tx, vsize + 4, nil
}
