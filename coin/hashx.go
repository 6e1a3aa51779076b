package coin

import "github.com/electrumx-go/electrumx/wire"

// HashXLen is the default width in bytes of a hashX script identifier.
const HashXLen = 11

// HashXFromScript derives the internal script identifier used to key every
// history and UTXO record: the leading HashXLen bytes of SHA-256(script).
// An empty script (used by some coins for provably-unspendable outputs)
// hashes to nil so callers can skip indexing it.
func HashXFromScript(script []byte) []byte {
	if len(script) == 0 {
		return nil
	}
	h := wire.SHA256(script)
	return h[:HashXLen]
}
