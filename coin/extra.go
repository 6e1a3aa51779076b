package coin

// DecredExtra carries the fields of a Decred transaction that fall outside
// the common Tx shape: the separately serialized witness vector (one entry
// per input), the expiry height, and each output's script version.
type DecredExtra struct {
	Witness       []DecredTxInputWitness
	Expiry        uint32
	OutputVersion []uint16
}

// DecredTxInputWitness is one element of a Decred transaction's witness
// vector (ValueIn/BlockHeight/BlockIndex/SignatureScript).
type DecredTxInputWitness struct {
	ValueIn     int64
	BlockHeight uint32
	BlockIndex  uint32
	SigScript   []byte
}

// DashExtra carries the DIP2 special-transaction fields: a type discriminant
// and the type-specific extra payload, left undecoded (opaque bytes) since
// none of the payload fields affect indexing.
type DashExtra struct {
	Type         uint16
	ExtraPayload []byte
}

// ZcashExtra carries the Overwinter/Sapling-era fields that sit between
// lock_time and the end of a Zcash transaction.
type ZcashExtra struct {
	Overwintered       bool
	VersionGroupID     uint32
	ExpiryHeight       uint32
	ValueBalance       int64
	ShieldedSpends     []byte
	ShieldedOutputs    []byte
	JoinSplits         []byte
	JoinSplitPubKey    []byte
	JoinSplitSig       []byte
	BindingSig         []byte
	HasShieldedOrSplit bool
}

// BitcoinDiamondExtra carries BitcoinDiamond's extra pre-input block hash
// field, present on every transaction (coinbase included) whose version is
// at least bitcoinDiamondMinVersion.
type BitcoinDiamondExtra struct {
	PreBlockHash []byte
}
