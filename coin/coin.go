package coin

import "github.com/electrumx-go/electrumx/wire"

// Coin binds a chain's wire format to the generic indexing pipeline: how to
// build a transaction reader over raw bytes, how to hash a script into a
// hashX, and which hash function txids use.
type Coin interface {
	// Name is the coin's short identifier, e.g. "BTC" or "LTC".
	Name() string
	// NewDeserializer returns a Deserializer bound to buf at position start.
	NewDeserializer(buf []byte, start int) Deserializer
	// HashXFromScript derives a script's hashX.
	HashXFromScript(script []byte) []byte
	// TxHashFn returns the hash function used for this coin's txids.
	TxHashFn() wire.HashFn
}

// genericCoin implements Coin from a NewDeserializerFunc plus a hash
// function, covering every variant that does not need coin-specific hashX
// policy.
type genericCoin struct {
	name    string
	newDes  NewDeserializerFunc
	hashFn  wire.HashFn
	hashX   func([]byte) []byte
}

func (c *genericCoin) Name() string { return c.name }

func (c *genericCoin) NewDeserializer(buf []byte, start int) Deserializer {
	return c.newDes(buf, start)
}

func (c *genericCoin) HashXFromScript(script []byte) []byte {
	return c.hashX(script)
}

func (c *genericCoin) TxHashFn() wire.HashFn { return c.hashFn }

func newCoin(name string, newDes NewDeserializerFunc, hashFn wire.HashFn) *genericCoin {
	return &genericCoin{name: name, newDes: newDes, hashFn: hashFn, hashX: HashXFromScript}
}

// Registry maps a coin's short name to its Coin implementation.
var Registry = map[string]Coin{}

func register(c Coin) {
	Registry[c.Name()] = c
}

func init() {
	register(newCoin("BTC", NewSegWitDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("LTC", NewLitecoinDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("BCH", NewBaseDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("DASH", NewDashDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("PIVX", NewTimeDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(&genericCoin{name: "DCR", newDes: func(buf []byte, start int) Deserializer {
		return NewDecredDeserializer(buf, start)
	}, hashFn: wire.Blake256, hashX: HashXFromScript})
	register(newCoin("ZEC", NewZcashDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
	register(newCoin("BCD", NewBitcoinDiamondDeserializer(wire.DoubleSHA256), wire.DoubleSHA256))
}
