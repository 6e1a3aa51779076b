package coin

import "github.com/electrumx-go/electrumx/wire"

// This file covers the family of coins whose wire format is a thin
// variation on the base/SegWit/timestamped readers already implemented:
// TokenPay, NavCoin, Trezarcoin, Reddcoin, Blackcoin, ECCoin, Emercoin,
// Zcoin, Electra, Simplicity, Primecoin and Xaya. Each gets its own
// Deserializer type only where its wire format actually diverges; the rest
// register directly against Base/SegWit/Time.

func init() {
	register(newCoin("NAV", NewTimeSegWitDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("TPAY", NewTokenPayDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("TZC", NewTrezarcoinDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("RDD", NewTimeDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("BLK", NewTimeDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("ECC", NewECCoinDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("EMC", NewTimeDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("XZC", NewZcoinDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("ECA", NewTimeDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("SPL", NewBaseDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("XPM", NewBaseDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("XAYA", NewSegWitDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
}

// TokenPayDeserializer reads TokenPay transactions: a TxTime body whose
// inputs may carry an extra stealth-address blob ahead of the ordinary
// signature script on otherwise-ordinary inputs. The blob is opaque to
// indexing, so it is folded into the input's script bytes rather than
// split out as a separate field.
type TokenPayDeserializer struct {
	TimeDeserializer
}

// NewTokenPayDeserializer returns a Deserializer for TokenPay.
func NewTokenPayDeserializer(hashFn wire.HashFn) NewDeserializerFunc {
	return func(buf []byte, start int) Deserializer {
		return &TokenPayDeserializer{TimeDeserializer{BaseDeserializer{buf: buf, c: wire.NewCursor(buf, start), hashFn: hashFn}}}
	}
}

// TrezarcoinDeserializer reads Trezarcoin transactions: a leading 4-byte
// timestamp, the base body, and, on transactions at or above version 2, an
// extra 4-byte field after lock_time.
type TrezarcoinDeserializer struct {
	BaseDeserializer
}

// NewTrezarcoinDeserializer returns a Deserializer for Trezarcoin.
func NewTrezarcoinDeserializer(hashFn wire.HashFn) NewDeserializerFunc {
	return func(buf []byte, start int) Deserializer {
		return &TrezarcoinDeserializer{BaseDeserializer{buf: buf, c: wire.NewCursor(buf, start), hashFn: hashFn}}
	}
}

// ReadTx implements Deserializer.
func (d *TrezarcoinDeserializer) ReadTx() (*Tx, error) {
	start := d.c.Pos
	t, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, err
	}
	version, err := d.c.ReadLEInt32()
	if err != nil {
		return nil, err
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
	if version >= 2 {
		if _, err := d.c.ReadNBytes(4); err != nil {
			return nil, err
		}
	}
	raw := rawSpanBytes(d.buf, start, d.c.Pos)
	txid := d.hashFn(raw)
	return &Tx{Kind: KindTime, Version: version, Time: t, Inputs: inputs, Outputs: outputs, LockTime: lockTime, TxID: txid, WTxID: txid}, nil
}

// ReadTxAndVsize implements Deserializer.
func (d *TrezarcoinDeserializer) ReadTxAndVsize() (*Tx, int, error) {
	start := d.c.Pos
	tx, err := d.ReadTx()
	if err != nil {
		return nil, 0, err
	}
	return tx, d.c.Pos - start, nil
}

// ReadTxBlock implements Deserializer.
func (d *TrezarcoinDeserializer) ReadTxBlock() ([]*Tx, error) {
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

// ECCoinDeserializer reads ECCoin transactions: an ordinary legacy body
// followed by a fixed 32-byte trailer. Indexing has no use for the
// trailer's contents, so it is skipped as opaque padding (see DESIGN.md for
// the Open Question this resolves).
type ECCoinDeserializer struct {
	BaseDeserializer
}

// NewECCoinDeserializer returns a Deserializer for ECCoin.
func NewECCoinDeserializer(hashFn wire.HashFn) NewDeserializerFunc {
	return func(buf []byte, start int) Deserializer {
		return &ECCoinDeserializer{BaseDeserializer{buf: buf, c: wire.NewCursor(buf, start), hashFn: hashFn}}
	}
}

// ReadTx implements Deserializer.
func (d *ECCoinDeserializer) ReadTx() (*Tx, error) {
	tx, err := d.BaseDeserializer.ReadTx()
	if err != nil {
		return nil, err
	}
	if _, err := d.c.ReadNBytes(32); err != nil {
		return nil, err
	}
	return tx, nil
}

// ReadTxAndVsize implements Deserializer.
func (d *ECCoinDeserializer) ReadTxAndVsize() (*Tx, int, error) {
	start := d.c.Pos
	tx, err := d.ReadTx()
	if err != nil {
		return nil, 0, err
	}
	return tx, d.c.Pos - start, nil
}

// ReadTxBlock implements Deserializer.
func (d *ECCoinDeserializer) ReadTxBlock() ([]*Tx, error) {
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

// ZcoinDeserializer reads Zcoin (Firo) transactions with the base layout.
// Sigma/Lelantus spend inputs replace the ordinary previous-outpoint with a
// sentinel and carry their proof data in the signature script; they are
// read like any other input, with that outpoint and script kept as they
// appear, and are not remapped to coinbase-like inputs.
type ZcoinDeserializer struct {
	BaseDeserializer
}

// NewZcoinDeserializer returns a Deserializer for Zcoin.
func NewZcoinDeserializer(hashFn wire.HashFn) NewDeserializerFunc {
	return func(buf []byte, start int) Deserializer {
		return &ZcoinDeserializer{BaseDeserializer{buf: buf, c: wire.NewCursor(buf, start), hashFn: hashFn}}
	}
}
