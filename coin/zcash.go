package coin

import "github.com/electrumx-go/electrumx/wire"

const (
	zcashShieldedSpendSize  = 384
	zcashShieldedOutputSize = 948
	zcashJoinSplitSizeV2    = 1802
	zcashJoinSplitSizeV3    = 1698
)

// ZcashDeserializer reads Overwinter/Sapling-era Zcash transactions, which
// extend the legacy layout with a version-group id, an expiry height,
// Sapling shielded spends/outputs, and (pre-Sapling) JoinSplits.
type ZcashDeserializer struct {
	BaseDeserializer
}

// NewZcashDeserializer returns a Deserializer for Zcash-family coins.
func NewZcashDeserializer(hashFn wire.HashFn) NewDeserializerFunc {
	return func(buf []byte, start int) Deserializer {
		return &ZcashDeserializer{BaseDeserializer{buf: buf, c: wire.NewCursor(buf, start), hashFn: hashFn}}
	}
}

// ReadTx implements Deserializer.
func (d *ZcashDeserializer) ReadTx() (*Tx, error) {
	start := d.c.Pos
	header, err := d.c.ReadLEUint32()
	if err != nil {
		return nil, err
	}
	overwintered := header>>31 == 1
	version := int32(header & 0x7fffffff)

	extra := &ZcashExtra{Overwintered: overwintered}
	if overwintered {
		vg, err := d.c.ReadLEUint32()
		if err != nil {
			return nil, err
		}
		extra.VersionGroupID = vg
	}

	isOverwinterV3 := version == 3
	isSaplingV4 := version == 4

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

	if isOverwinterV3 || isSaplingV4 {
		eh, err := d.c.ReadLEUint32()
		if err != nil {
			return nil, err
		}
		extra.ExpiryHeight = eh
	}

	var joinSplitCount uint64
	if isSaplingV4 {
		vb, err := d.c.ReadLEInt64()
		if err != nil {
			return nil, err
		}
		extra.ValueBalance = vb

		spendCount, err := d.c.ReadVarInt()
		if err != nil {
			return nil, err
		}
		spends, err := d.c.ReadNBytes(int(spendCount) * zcashShieldedSpendSize)
		if err != nil {
			return nil, err
		}
		extra.ShieldedSpends = spends

		outCount, err := d.c.ReadVarInt()
		if err != nil {
			return nil, err
		}
		souts, err := d.c.ReadNBytes(int(outCount) * zcashShieldedOutputSize)
		if err != nil {
			return nil, err
		}
		extra.ShieldedOutputs = souts
		extra.HasShieldedOrSplit = spendCount > 0 || outCount > 0
	}

	if version >= 2 {
		n, err := d.c.ReadVarInt()
		if err != nil {
			return nil, err
		}
		joinSplitCount = n
		if n > 0 {
			descLen := zcashJoinSplitSizeV2
			if isSaplingV4 {
				descLen = zcashJoinSplitSizeV3
			}
			js, err := d.c.ReadNBytes(int(n) * descLen)
			if err != nil {
				return nil, err
			}
			extra.JoinSplits = js
			pub, err := d.c.ReadNBytes(32)
			if err != nil {
				return nil, err
			}
			extra.JoinSplitPubKey = pub
			sig, err := d.c.ReadNBytes(64)
			if err != nil {
				return nil, err
			}
			extra.JoinSplitSig = sig
			extra.HasShieldedOrSplit = true
		}
	}

	if isSaplingV4 && (extra.HasShieldedOrSplit || joinSplitCount > 0) {
		bs, err := d.c.ReadNBytes(64)
		if err != nil {
			return nil, err
		}
		extra.BindingSig = bs
	}

	raw := rawSpanBytes(d.buf, start, d.c.Pos)
	txid := d.hashFn(raw)
	return &Tx{
		Kind:     KindZcash,
		Version:  version,
		Inputs:   inputs,
		Outputs:  outputs,
		LockTime: lockTime,
		TxID:     txid,
		WTxID:    txid,
		Zcash:    extra,
	}, nil
}

// ReadTxAndVsize implements Deserializer.
func (d *ZcashDeserializer) ReadTxAndVsize() (*Tx, int, error) {
	start := d.c.Pos
	tx, err := d.ReadTx()
	if err != nil {
		return nil, 0, err
	}
	return tx, d.c.Pos - start, nil
}

// ReadTxBlock implements Deserializer.
func (d *ZcashDeserializer) ReadTxBlock() ([]*Tx, error) {
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
