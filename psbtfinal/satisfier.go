// Package psbtfinal implements the BIP-174 Finalizer and Extractor roles on
// top of a parsed Miniscript fragment: it turns a PSBT input carrying partial
// signatures and preimages into a final scriptSig/witness, then lifts a
// fully-finalized Packet back into a broadcastable transaction.
package psbtfinal

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/tobin-crypto/rust-miniscript-doge/miniscript"
	"github.com/tobin-crypto/rust-miniscript-doge/satisfy"
)

// BIP-174 input key types with no dedicated struct field in every psbt
// library version; hash-preimage records are read back out of Unknowns by
// their raw key-type byte instead of relying on typed accessors that may not
// exist in the pinned psbt package version.
const (
	keyTypeRipemd160 byte = 0x0a
	keyTypeSha256    byte = 0x0b
	keyTypeHash160   byte = 0x0c
	keyTypeHash256   byte = 0x0d
)

// PsbtInputSatisfier answers satisfy.Satisfier lookups from one input of a
// PSBT packet: partial signatures, hash preimages stashed in Unknowns, and
// the spending transaction's own locktime/sequence commitments. Every method
// is read-only; building the packet's PartialSigs/preimage records is the
// Updater role's job, not the Finalizer's.
type PsbtInputSatisfier struct {
	Packet *psbt.Packet
	Index  int
}

// NewPsbtInputSatisfier returns a satisfier scoped to a single input.
func NewPsbtInputSatisfier(pkt *psbt.Packet, index int) *PsbtInputSatisfier {
	return &PsbtInputSatisfier{Packet: pkt, Index: index}
}

func (s *PsbtInputSatisfier) input() *psbt.PInput {
	return &s.Packet.Inputs[s.Index]
}

func (s *PsbtInputSatisfier) LookupSig(pk miniscript.Key) (satisfy.Signature, bool) {
	want := pk.Bytes()
	for _, ps := range s.input().PartialSigs {
		if bytes.Equal(ps.PubKey, want) {
			return splitSignature(ps.Signature), true
		}
	}
	return satisfy.Signature{}, false
}

func (s *PsbtInputSatisfier) LookupPkhPk(pkh [20]byte) (miniscript.Key, bool) {
	for _, ps := range s.input().PartialSigs {
		if key, ok := matchPkh(ps.PubKey, pkh); ok {
			return key, true
		}
	}
	return miniscript.Key{}, false
}

func (s *PsbtInputSatisfier) LookupPkhSig(pkh [20]byte) (miniscript.Key, satisfy.Signature, bool) {
	for _, ps := range s.input().PartialSigs {
		if key, ok := matchPkh(ps.PubKey, pkh); ok {
			return key, splitSignature(ps.Signature), true
		}
	}
	return miniscript.Key{}, satisfy.Signature{}, false
}

func matchPkh(pkBytes []byte, pkh [20]byte) (miniscript.Key, bool) {
	key, err := miniscript.ParseKey(pkBytes)
	if err != nil {
		return miniscript.Key{}, false
	}
	if !bytes.Equal(hash160(pkBytes), pkh[:]) {
		return miniscript.Key{}, false
	}
	return key, true
}

// splitSignature strips a BIP-174 partial_sig value (DER signature with the
// sighash type byte already appended) into its two parts, the same split
// stack.EvaluatePk performs on a witness push.
func splitSignature(raw []byte) satisfy.Signature {
	if len(raw) == 0 {
		return satisfy.Signature{}
	}
	return satisfy.Signature{DER: raw[:len(raw)-1], SighashByte: raw[len(raw)-1]}
}

func (s *PsbtInputSatisfier) lookupPreimage(typeByte byte, hash []byte) (satisfy.Preimage32, bool) {
	for _, u := range s.input().Unknowns {
		if len(u.Key) == 1+len(hash) && u.Key[0] == typeByte && bytes.Equal(u.Key[1:], hash) {
			var pre satisfy.Preimage32
			if len(u.Value) == 32 {
				copy(pre[:], u.Value)
				return pre, true
			}
			return pre, false
		}
	}
	return satisfy.Preimage32{}, false
}

func (s *PsbtInputSatisfier) LookupSha256(h [32]byte) (satisfy.Preimage32, bool) {
	return s.lookupPreimage(keyTypeSha256, h[:])
}

func (s *PsbtInputSatisfier) LookupHash256(h [32]byte) (satisfy.Preimage32, bool) {
	return s.lookupPreimage(keyTypeHash256, h[:])
}

func (s *PsbtInputSatisfier) LookupRipemd160(h [20]byte) (satisfy.Preimage32, bool) {
	return s.lookupPreimage(keyTypeRipemd160, h[:])
}

func (s *PsbtInputSatisfier) LookupHash160(h [20]byte) (satisfy.Preimage32, bool) {
	return s.lookupPreimage(keyTypeHash160, h[:])
}

// CheckAfter implements BIP-65's extra finalizer-time rule: an input whose
// sequence number is already finalized to 0xffffffff can never honor a CLTV
// clause, since nLockTime is only consulted by consensus when at least one
// input's sequence is below that value.
func (s *PsbtInputSatisfier) CheckAfter(n uint32) bool {
	seq := s.Packet.UnsignedTx.TxIn[s.Index].Sequence
	if seq == 0xffffffff {
		return false
	}
	locktime := s.Packet.UnsignedTx.LockTime
	return checkAfter(n, locktime)
}

// CheckOlder implements BIP-112: a pre-version-2 transaction, or one whose
// own sequence has the disable flag set, can never honor an OP_CHECKSEQUENCEVERIFY
// clause.
func (s *PsbtInputSatisfier) CheckOlder(n uint32) bool {
	if n&sequenceLocktimeDisableFlag != 0 {
		return true
	}
	seq := s.Packet.UnsignedTx.TxIn[s.Index].Sequence
	if s.Packet.UnsignedTx.Version < 2 || seq&sequenceLocktimeDisableFlag != 0 {
		return false
	}
	return checkOlder(n, seq)
}
