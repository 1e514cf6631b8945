package stack

import (
	"bytes"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/tobin-crypto/rust-miniscript-doge/miniscript"
	"golang.org/x/crypto/ripemd160"
)

// Verifier checks a DER-encoded signature (sighash byte already stripped)
// against a public key. Callers typically close over a precomputed sighash
// message per flag; see interpreter.PrecomputedVerifier.
type Verifier func(pk miniscript.Key, derSig []byte, sighashByte byte) bool

// isStandardSighash reports the only trailing signature bytes miniscript
// accepts: SIGHASH_ALL/NONE/SINGLE, each with or without ANYONECANPAY.
func isStandardSighash(b byte) bool {
	switch b {
	case 0x01, 0x02, 0x03, 0x81, 0x82, 0x83:
		return true
	default:
		return false
	}
}

// EvaluatePk implements §4.3 evaluate_pk: it pops the top element, expecting
// either a Dissatisfied tag or a signature push, and reports which.
func EvaluatePk(pk miniscript.Key, verify Verifier, s *Stack) (*Constraint, *Error) {
	top, err := s.Pop()
	if err != nil {
		return nil, err
	}
	switch top.Kind {
	case ElemDissatisfied:
		s.Push(Dissatisfied)
		return nil, nil
	case ElemSatisfied:
		return nil, &Error{Kind: ErrUnexpectedStackBoolean}
	}
	if len(top.Data) == 0 {
		return nil, &Error{Kind: ErrPkEvaluationError, Pk: pk}
	}
	sighashByte := top.Data[len(top.Data)-1]
	der := top.Data[:len(top.Data)-1]
	if !isStandardSighash(sighashByte) {
		return nil, &Error{Kind: ErrNonStandardSigHash, Sig: top.Data}
	}
	if _, err := ecdsa.ParseDERSignature(der); err != nil {
		return nil, &Error{Kind: ErrInvalidSignature, Pk: pk}
	}
	if !verify(pk, der, sighashByte) {
		return nil, &Error{Kind: ErrPkEvaluationError, Pk: pk}
	}
	s.Push(Satisfied)
	return &Constraint{Kind: ConstraintPublicKey, Pk: pk, Sig: der}, nil
}

// EvaluatePkh implements §4.3 evaluate_pkh: the top element must be the
// claimed public key itself (never a boolean tag — PkH's own dissatisfaction
// is expressed one level down, in the signature slot evaluate_pk inspects).
func EvaluatePkh(pkh [20]byte, verify Verifier, s *Stack) (*Constraint, *Error) {
	top, err := s.Pop()
	if err != nil {
		return nil, err
	}
	if top.Kind != ElemPush {
		return nil, &Error{Kind: ErrExpectedPush}
	}
	key, perr := miniscript.ParseKey(top.Data)
	if perr != nil {
		return nil, &Error{Kind: ErrPubkeyParseError}
	}
	if !bytes.Equal(btcutil.Hash160(top.Data), pkh[:]) {
		return nil, &Error{Kind: ErrPkHashVerifyFail, Hash: pkh}
	}
	sub, serr := EvaluatePk(key, verify, s)
	if serr != nil {
		return nil, serr
	}
	if sub == nil {
		return nil, nil
	}
	return &Constraint{
		Kind:    ConstraintPublicKeyHash,
		Pk:      key,
		Sig:     sub.Sig,
		KeyHash: pkh,
	}, nil
}

// EvaluateHash implements §4.3 evaluate_sha256/hash256/hash160/ripemd160.
func EvaluateHash(kind HashLockType, target []byte, s *Stack) (*Constraint, *Error) {
	top, err := s.Pop()
	if err != nil {
		return nil, err
	}
	if top.Kind != ElemPush {
		return nil, &Error{Kind: ErrExpectedPush}
	}
	if len(top.Data) != 32 {
		return nil, &Error{Kind: ErrHashPreimageLengthMismatch}
	}
	if !bytes.Equal(hashOf(kind, top.Data), target) {
		s.Push(Dissatisfied)
		return nil, nil
	}
	s.Push(Satisfied)
	return &Constraint{Kind: ConstraintHashLock, HashKind: kind, Preimage: top.Data}, nil
}

func hashOf(kind HashLockType, data []byte) []byte {
	switch kind {
	case HashSha256:
		h := sha256.Sum256(data)
		return h[:]
	case HashHash256:
		h1 := sha256.Sum256(data)
		h2 := sha256.Sum256(h1[:])
		return h2[:]
	case HashRipemd160:
		h := ripemd160.New()
		h.Write(data)
		return h.Sum(nil)
	case HashHash160:
		return btcutil.Hash160(data)
	}
	return nil
}

// EvaluateAfter implements §4.3 evaluate_after.
func EvaluateAfter(n, age uint32) (*Constraint, *Error) {
	if n > age {
		return nil, &Error{Kind: ErrAbsoluteLocktimeNotMet, N: n}
	}
	return &Constraint{Kind: ConstraintAbsoluteTimeLock, N: n}, nil
}

// EvaluateOlder implements §4.3 evaluate_older.
func EvaluateOlder(n, height uint32) (*Constraint, *Error) {
	if n > height {
		return nil, &Error{Kind: ErrRelativeLocktimeNotMet, N: n}
	}
	return &Constraint{Kind: ConstraintRelativeTimeLock, N: n}, nil
}

// EvaluateMultiStep tries the current top-of-stack signature against a
// single candidate key, per §4.4's "greedily matches the top stack push
// against the next key" rule. It only consumes the top element on a match;
// a miss leaves the stack untouched so the caller can retry against the
// next key down the list.
func EvaluateMultiStep(pk miniscript.Key, verify Verifier, s *Stack) (matched bool, sig []byte, kerr *Error) {
	top, err := s.Last()
	if err != nil {
		return false, nil, err
	}
	if top.Kind != ElemPush || len(top.Data) == 0 {
		return false, nil, nil
	}
	sighashByte := top.Data[len(top.Data)-1]
	der := top.Data[:len(top.Data)-1]
	if !isStandardSighash(sighashByte) {
		return false, nil, &Error{Kind: ErrNonStandardSigHash, Sig: top.Data}
	}
	if _, perr := ecdsa.ParseDERSignature(der); perr != nil {
		return false, nil, nil
	}
	if !verify(pk, der, sighashByte) {
		return false, nil, nil
	}
	s.Pop()
	return true, der, nil
}
