package stack

import "github.com/tobin-crypto/rust-miniscript-doge/miniscript"

// ConstraintKind identifies which primitive the interpreter just satisfied.
type ConstraintKind int

const (
	ConstraintPublicKey ConstraintKind = iota
	ConstraintPublicKeyHash
	ConstraintHashLock
	ConstraintRelativeTimeLock
	ConstraintAbsoluteTimeLock
)

// HashLockType records which hash primitive a HashLock constraint satisfied.
type HashLockType int

const (
	HashSha256 HashLockType = iota
	HashHash256
	HashRipemd160
	HashHash160
)

// Constraint is one item the interpreter yields per successfully satisfied
// primitive.
type Constraint struct {
	Kind ConstraintKind

	Pk       miniscript.Key // PublicKey, PublicKeyHash
	Sig      []byte         // PublicKey, PublicKeyHash (DER, sighash byte stripped)
	KeyHash  [20]byte       // PublicKeyHash
	HashKind HashLockType   // HashLock
	Preimage []byte         // HashLock
	N        uint32         // RelativeTimeLock, AbsoluteTimeLock
}
