package coin

import "github.com/electrumx-go/electrumx/wire"

// SegWitDeserializer reads BIP-144 witness transactions, falling back to the
// legacy layout when the post-version marker byte is nonzero (the standard
// heuristic: a legacy tx's input count is essentially never zero).
type SegWitDeserializer struct {
	BaseDeserializer
}

// NewSegWitDeserializer returns a Deserializer for BIP-144 coins.
func NewSegWitDeserializer(hashFn wire.HashFn) NewDeserializerFunc {
	return func(buf []byte, start int) Deserializer {
		return &SegWitDeserializer{BaseDeserializer{buf: buf, c: wire.NewCursor(buf, start), hashFn: hashFn}}
	}
}

func (d *SegWitDeserializer) readWitness(fields int) ([][][]byte, error) {
	w := make([][][]byte, fields)
	for i := range w {
		n, err := d.c.ReadVarInt()
		if err != nil {
			return nil, err
		}
		item := make([][]byte, n)
		for j := range item {
			b, err := d.c.ReadVarBytes()
			if err != nil {
				return nil, err
			}
			item[j] = b
		}
		w[i] = item
	}
	return w, nil
}

// readTxParts mirrors ElectrumX's _read_tx_parts: it returns the decoded
// transaction together with its vsize in virtual bytes.
func (d *SegWitDeserializer) readTxParts() (*Tx, int, error) {
	start := d.c.Pos
	marker, err := d.c.PeekByte(4)
	if err != nil {
		return nil, 0, err
	}
	if marker != 0 {
		tx, raw, err := d.readTxRaw()
		if err != nil {
			return nil, 0, err
		}
		return tx, len(raw), nil
	}

	version, err := d.c.ReadLEInt32()
	if err != nil {
		return nil, 0, err
	}
	origSer := append([]byte{}, rawSpanBytes(d.buf, start, d.c.Pos)...)

	segMarker, err := d.c.ReadByte()
	if err != nil {
		return nil, 0, err
	}
	flag, err := d.c.ReadByte()
	if err != nil {
		return nil, 0, err
	}

	bodyStart := d.c.Pos
	inputs, err := d.readInputs()
	if err != nil {
		return nil, 0, err
	}
	outputs, err := d.readOutputs()
	if err != nil {
		return nil, 0, err
	}
	origSer = append(origSer, rawSpanBytes(d.buf, bodyStart, d.c.Pos)...)

	witness, err := d.readWitness(len(inputs))
	if err != nil {
		return nil, 0, err
	}

	ltStart := d.c.Pos
	lockTime, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, 0, err
	}
	origSer = append(origSer, rawSpanBytes(d.buf, ltStart, d.c.Pos)...)

	baseSize := len(origSer)
	totalSize := d.c.Pos - start
	vsize := (3*baseSize + totalSize) / 4

	txid := d.hashFn(origSer)
	wtxidRaw := rawSpanBytes(d.buf, start, d.c.Pos)
	tx := &Tx{
		Kind:     KindSegWit,
		Version:  version,
		Inputs:   inputs,
		Outputs:  outputs,
		LockTime: lockTime,
		Marker:   segMarker,
		Flag:     flag,
		Witness:  witness,
		TxID:     txid,
		WTxID:    d.hashFn(wtxidRaw),
	}
	return tx, vsize, nil
}

// ReadTx implements Deserializer.
func (d *SegWitDeserializer) ReadTx() (*Tx, error) {
	tx, _, err := d.readTxParts()
	return tx, err
}

// ReadTxAndVsize implements Deserializer.
func (d *SegWitDeserializer) ReadTxAndVsize() (*Tx, int, error) {
	return d.readTxParts()
}

// ReadTxBlock implements Deserializer.
func (d *SegWitDeserializer) ReadTxBlock() ([]*Tx, error) {
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

// LitecoinDeserializer adds Litecoin's MWEB extension-block handling: a
// trailing MWEB flag byte after the tx body that, when set, requires the
// MWEB payload to be skipped rather than parsed (indexing never needs its
// contents).
type LitecoinDeserializer struct {
	SegWitDeserializer
}

// NewLitecoinDeserializer returns a Deserializer for Litecoin-family coins.
func NewLitecoinDeserializer(hashFn wire.HashFn) NewDeserializerFunc {
	return func(buf []byte, start int) Deserializer {
		return &LitecoinDeserializer{SegWitDeserializer{BaseDeserializer{buf: buf, c: wire.NewCursor(buf, start), hashFn: hashFn}}}
	}
}

// ReadTx implements Deserializer, skipping a trailing MWEB payload when the
// optional extension flag is present after an otherwise-ordinary SegWit tx.
func (d *LitecoinDeserializer) ReadTx() (*Tx, error) {
	tx, err := d.SegWitDeserializer.ReadTx()
	if err != nil {
		return nil, err
	}
	if tx.Kind == KindSegWit && tx.Flag&0x08 != 0 {
		if err := d.skipMWEBExtension(); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

// skipMWEBExtension consumes the MWEB HogEx-style extension payload without
// decoding it: a varint length followed by that many opaque bytes.
func (d *LitecoinDeserializer) skipMWEBExtension() error {
	if d.c.Remaining() == 0 {
		return nil
	}
	n, err := d.c.ReadVarInt()
	if err != nil {
		return err
	}
	_, err = d.c.ReadNBytes(int(n))
	return err
}
