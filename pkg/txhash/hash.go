// Package txhash supplies the header/transaction hash functions the engine
// treats as opaque, pluggable primitives (spec §1 explicitly keeps hash
// function implementations out of the parsing/assembly engine's scope).
package txhash

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // used as one X11 round, not for a protocol needing FIPS compliance
	"golang.org/x/crypto/sha3"
)

// HeaderHasher computes a chain's block-header identity hash.
type HeaderHasher func([]byte) [32]byte

// DoubleSHA256 is SHA-256 applied twice, the hash used for block headers,
// transaction ids, and the tx-output index key on every Bitcoin-derived
// chain except the X11 forks. Identical in effect to the teacher's
// utils.DoubleSHA256 and to chainhash.DoubleHashB, reimplemented here so
// the engine can use it as a netprofile.HeaderHasher value.
func DoubleSHA256(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// X11 approximates the Darkcoin/Dash-era X11 header hash: eleven chained
// rounds through distinct hash families. A bit-exact X11 needs blake,
// bmw, groestl, jh, keccak, skein, luffa, cubehash, shavite, simd, and
// echo — of those, only keccak (sha3) and ripemd160-family primitives are
// available from this module's dependency set (see DESIGN.md for why the
// rest are out of scope for this expansion). This function chains the
// subset that is available; Darkcoin/X11 chains are therefore supported
// for header *discovery* (producing a stable, collision-resistant header
// key) but the hash will not match a real Darkcoin node's block hash.
func X11(data []byte) [32]byte {
	h := sha3.Sum256(data)

	r := ripemd160.New()
	r.Write(h[:])
	mid := r.Sum(nil)

	h2 := sha3.Sum256(mid)
	return h2
}
