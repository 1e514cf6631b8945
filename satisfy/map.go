package satisfy

import "github.com/tobin-crypto/rust-miniscript-doge/miniscript"

// sequence/locktime flags, mirrored from BIP-68/BIP-65 (txscript carries the
// opcode side of these checks; CheckOlder/CheckAfter carry the data side).
const (
	sequenceLocktimeDisableFlag = 1 << 31
	sequenceLocktimeTypeFlag    = 1 << 22
	sequenceLocktimeMask        = 0x0000ffff
	locktimeThreshold           = 500000000
)

type pkhSigEntry struct {
	pk  miniscript.Key
	sig Signature
}

// MapSatisfier is the common-case Satisfier: a signer (or a wallet replaying
// a finished PSBT) that already has every signature, preimage and key in
// hand, keyed by the same hash/pubkey the fragment itself carries. Age and
// Height are the spending transaction's own committed nSequence and
// nLockTime values, in the same units the interpreter uses.
type MapSatisfier struct {
	Sigs       map[string]Signature
	PkhPubkeys map[[20]byte]miniscript.Key
	PkhSigs    map[[20]byte]pkhSigEntry
	Sha256     map[[32]byte]Preimage32
	Hash256    map[[32]byte]Preimage32
	Ripemd160  map[[20]byte]Preimage32
	Hash160    map[[20]byte]Preimage32

	Age, Height uint32
}

// NewMapSatisfier returns an empty MapSatisfier with its maps allocated,
// ready for its Add* helpers.
func NewMapSatisfier(age, height uint32) *MapSatisfier {
	return &MapSatisfier{
		Sigs:       make(map[string]Signature),
		PkhPubkeys: make(map[[20]byte]miniscript.Key),
		PkhSigs:    make(map[[20]byte]pkhSigEntry),
		Sha256:     make(map[[32]byte]Preimage32),
		Hash256:    make(map[[32]byte]Preimage32),
		Ripemd160:  make(map[[20]byte]Preimage32),
		Hash160:    make(map[[20]byte]Preimage32),
		Age:        age,
		Height:     height,
	}
}

// AddSig records a signature for pk, usable by pk() and multi() fragments;
// pkh() fragments read only what AddPkhSig records.
func (m *MapSatisfier) AddSig(pk miniscript.Key, sig Signature) {
	m.Sigs[string(pk.Bytes())] = sig
}

// AddPkhSig records both the preimage key and its signature for a pkh()
// fragment, keyed by the hash the fragment itself stores.
func (m *MapSatisfier) AddPkhSig(pkh [20]byte, pk miniscript.Key, sig Signature) {
	m.PkhPubkeys[pkh] = pk
	m.PkhSigs[pkh] = pkhSigEntry{pk: pk, sig: sig}
}

func (m *MapSatisfier) LookupSig(pk miniscript.Key) (Signature, bool) {
	sig, ok := m.Sigs[string(pk.Bytes())]
	return sig, ok
}

func (m *MapSatisfier) LookupPkhPk(pkh [20]byte) (miniscript.Key, bool) {
	pk, ok := m.PkhPubkeys[pkh]
	return pk, ok
}

func (m *MapSatisfier) LookupPkhSig(pkh [20]byte) (miniscript.Key, Signature, bool) {
	e, ok := m.PkhSigs[pkh]
	if !ok {
		return miniscript.Key{}, Signature{}, false
	}
	return e.pk, e.sig, true
}

func (m *MapSatisfier) LookupSha256(h [32]byte) (Preimage32, bool) {
	pre, ok := m.Sha256[h]
	return pre, ok
}

func (m *MapSatisfier) LookupHash256(h [32]byte) (Preimage32, bool) {
	pre, ok := m.Hash256[h]
	return pre, ok
}

func (m *MapSatisfier) LookupRipemd160(h [20]byte) (Preimage32, bool) {
	pre, ok := m.Ripemd160[h]
	return pre, ok
}

func (m *MapSatisfier) LookupHash160(h [20]byte) (Preimage32, bool) {
	pre, ok := m.Hash160[h]
	return pre, ok
}

// CheckOlder reports whether the required relative locktime n is already
// met by the committed sequence value m.Age, per BIP-68: a disabled
// sequence satisfies anything, and the type flag must match before the
// masked values are compared.
func (m *MapSatisfier) CheckOlder(n uint32) bool {
	if m.Age&sequenceLocktimeDisableFlag != 0 {
		return true
	}
	mask := uint32(sequenceLocktimeMask) | sequenceLocktimeTypeFlag
	maskedN := n & mask
	maskedAge := m.Age & mask
	if (maskedN < sequenceLocktimeTypeFlag) != (maskedAge < sequenceLocktimeTypeFlag) {
		return false
	}
	return maskedN <= maskedAge
}

// CheckAfter reports whether the required absolute locktime n is already
// met by the committed height/MTP value m.Height, per BIP-65: both values
// must be on the same side of the height/time threshold before comparison.
func (m *MapSatisfier) CheckAfter(n uint32) bool {
	if (n < locktimeThreshold) != (m.Height < locktimeThreshold) {
		return false
	}
	return n <= m.Height
}
