package wire

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashLen is the length in bytes of the hashes this package produces.
const HashLen = 32

// HashFn computes a coin's transaction/block hash over a preimage.
type HashFn func([]byte) []byte

// DoubleSHA256 is SHA256(SHA256(b)), the hash function of Bitcoin-family txids.
func DoubleSHA256(b []byte) []byte {
	h1 := sha256.Sum256(b)
	h2 := sha256.Sum256(h1[:])
	return h2[:]
}

// SHA256 returns the single SHA-256 digest of b.
func SHA256(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}

// Blake256 computes the BLAKE2b-256 digest used by Decred's no-witness txid.
// Decred's own hash is the original (non-"2") BLAKE-256; this module has no
// dependency that implements it, so it is approximated with the BLAKE2b
// family carried by golang.org/x/crypto (see DESIGN.md).
func Blake256(b []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(b) //nolint:errcheck // hash.Hash.Write never errors
	return h.Sum(nil)
}

// HashToHexStr returns the reversed, hex-encoded display form of a
// natural-order (serialized) hash, matching Bitcoin's big-endian display
// convention for txids and block hashes.
func HashToHexStr(h []byte) string {
	rev := make([]byte, len(h))
	for i, b := range h {
		rev[len(h)-1-i] = b
	}
	return hex.EncodeToString(rev)
}

// HexStrToHash reverses HashToHexStr.
func HexStrToHash(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	rev := make([]byte, len(b))
	for i, x := range b {
		rev[len(b)-1-i] = x
	}
	return rev, nil
}
