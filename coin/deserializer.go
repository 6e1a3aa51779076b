package coin

import "github.com/electrumx-go/electrumx/wire"

// Deserializer reads one or more transactions from a cursor positioned over
// raw block or transaction bytes. Each coin family supplies its own
// implementation; see base.go, segwit.go, zcash.go, decred.go, dash.go,
// time.go (PIVX and other timestamped layouts) and thinvariants.go for the
// concrete readers.
type Deserializer interface {
	// ReadTx reads a single transaction and advances the cursor past it.
	ReadTx() (*Tx, error)
	// ReadTxAndVsize reads a single transaction and also returns its
	// virtual size in bytes (the SegWit vsize for a witness transaction,
	// the serialized length for a transaction without witness data).
	ReadTxAndVsize() (*Tx, int, error)
	// ReadTxBlock reads every transaction in a serialized block body
	// (cursor positioned just past the block header).
	ReadTxBlock() ([]*Tx, error)
}

// NewDeserializerFunc constructs a Deserializer bound to buf starting at
// cursor position start. Coin.NewDeserializer returns one of these bound to
// the coin's variant.
type NewDeserializerFunc func(buf []byte, start int) Deserializer

func readTxCount(c *wire.Cursor) (int, error) {
	n, err := c.ReadVarInt()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// rawSpanBytes returns the bytes of buf consumed between two cursor
// positions, used by every ReadTx to compute the raw preimage for hashing.
func rawSpanBytes(buf []byte, start, end int) []byte {
	return buf[start:end]
}
