// Package satisfy builds a concrete witness for a parsed Miniscript fragment
// given a source of signatures, preimages and chain-state commitments. It
// mirrors §4.5's Satisfaction model: every fragment either produces the
// lowest-cost witness an honest signer could construct (Satisfy) or, on
// request, one that also considers malleable alternatives (SatisfyMalleable).
package satisfy

import "github.com/tobin-crypto/rust-miniscript-doge/miniscript"

// Preimage32 is a 32-byte hash preimage, used for sha256/hash256/ripemd160/
// hash160 fragments (ripemd160 and hash160 preimages are also 32 bytes; only
// their digest is 20 bytes).
type Preimage32 [32]byte

// Signature is a parsed ECDSA signature together with the sighash flag byte
// it was produced under. Bytes returns the concatenated push exactly as it
// belongs on a witness stack (DER bytes followed by the single flag byte),
// matching stack.EvaluatePk's own split of that same push.
type Signature struct {
	DER         []byte
	SighashByte byte
}

// Bytes returns the signature in the wire form Script expects on the stack.
func (s Signature) Bytes() []byte {
	out := make([]byte, 0, len(s.DER)+1)
	out = append(out, s.DER...)
	return append(out, s.SighashByte)
}

// Satisfier answers the lookups a Miniscript fragment needs to build its own
// witness: does the caller hold a signature for this key, a preimage for
// this hash, and has the spending transaction already committed to this
// timelock. Any method may report "no" for data simply not known to this
// particular Satisfier (e.g. a watch-only wallet), which the satisfaction
// engine distinguishes from "provably impossible" (see Witness).
type Satisfier interface {
	// LookupSig returns a signature for pk, if this Satisfier holds one.
	LookupSig(pk miniscript.Key) (Signature, bool)

	// LookupPkhPk resolves a pubkey hash fragment's public key without a
	// signature, e.g. so its dissatisfaction can still push the real key.
	LookupPkhPk(pkh [20]byte) (miniscript.Key, bool)

	// LookupPkhSig resolves both the public key and a signature for it,
	// given only its hash.
	LookupPkhSig(pkh [20]byte) (miniscript.Key, Signature, bool)

	LookupSha256(h [32]byte) (Preimage32, bool)
	LookupHash256(h [32]byte) (Preimage32, bool)
	LookupRipemd160(h [20]byte) (Preimage32, bool)
	LookupHash160(h [20]byte) (Preimage32, bool)

	// CheckOlder reports whether the spending transaction's own relative
	// locktime commitment already satisfies a Miniscript older(n) fragment.
	CheckOlder(n uint32) bool

	// CheckAfter reports whether the spending transaction's own nLockTime
	// commitment already satisfies a Miniscript after(n) fragment.
	CheckAfter(n uint32) bool
}
