package stack

import (
	"fmt"

	"github.com/tobin-crypto/rust-miniscript-doge/miniscript"
)

// ErrKind enumerates the closed interpreter error taxonomy. It is kept on
// the stack package (rather than the interpreter package) so that both the
// primitive evaluators and the interpreter, which detects the remaining
// conditions itself, can build the same Error type.
type ErrKind int

const (
	ErrExpectedPush ErrKind = iota
	ErrCouldNotEvaluate
	ErrHashPreimageLengthMismatch
	ErrIncorrectPubkeyHash
	ErrIncorrectScriptHash
	ErrIncorrectWPubkeyHash
	ErrIncorrectWScriptHash
	ErrInsufficientSignaturesMultiSig
	ErrInvalidSignature
	ErrNonStandardSigHash
	ErrMissingExtraZeroMultiSig
	ErrMultiSigEvaluationError
	ErrNonEmptyWitness
	ErrNonEmptyScriptSig
	ErrPkEvaluationError
	ErrPkHashVerifyFail
	ErrPubkeyParseError
	ErrRelativeLocktimeNotMet
	ErrAbsoluteLocktimeNotMet
	ErrScriptSatisfactionError
	ErrUncompressedPubkey
	ErrUnexpectedStackBoolean
	ErrUnexpectedStackEnd
	ErrUnexpectedStackElementPush
	ErrVerifyFailed
)

// Error is the single error type every evaluator and the interpreter return.
// Only the fields relevant to Kind are populated.
type Error struct {
	Kind ErrKind
	N    uint32
	Pk   miniscript.Key
	Hash [20]byte
	Sig  []byte
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrAbsoluteLocktimeNotMet:
		return fmt.Sprintf("required absolute locktime CLTV of %d blocks, not met", e.N)
	case ErrExpectedPush:
		return "expected push in script"
	case ErrCouldNotEvaluate:
		return "interpreter error: could not evaluate"
	case ErrHashPreimageLengthMismatch:
		return "hash preimage should be 32 bytes"
	case ErrIncorrectPubkeyHash:
		return "public key did not match scriptpubkey"
	case ErrIncorrectScriptHash:
		return "redeem script did not match scriptpubkey"
	case ErrIncorrectWPubkeyHash:
		return "public key did not match scriptpubkey (segwit v0)"
	case ErrIncorrectWScriptHash:
		return "witness script did not match scriptpubkey"
	case ErrInsufficientSignaturesMultiSig:
		return "insufficient signatures for CHECKMULTISIG"
	case ErrInvalidSignature:
		return fmt.Sprintf("bad signature with pk %x", e.Pk.Bytes())
	case ErrNonStandardSigHash:
		return fmt.Sprintf("non-standard sighash type for signature '%x'", e.Sig)
	case ErrNonEmptyWitness:
		return "legacy spend had non-empty witness"
	case ErrNonEmptyScriptSig:
		return "segwit spend had non-empty scriptSig"
	case ErrMissingExtraZeroMultiSig:
		return "CHECKMULTISIG missing extra zero"
	case ErrMultiSigEvaluationError:
		return "CHECKMULTISIG script aborted, incorrect satisfaction/dissatisfaction"
	case ErrPkEvaluationError:
		return fmt.Sprintf("incorrect signature for pk %x", e.Pk.Bytes())
	case ErrPkHashVerifyFail:
		return fmt.Sprintf("pubkey hash check failed %x", e.Hash)
	case ErrPubkeyParseError:
		return "could not parse pubkey"
	case ErrRelativeLocktimeNotMet:
		return fmt.Sprintf("required relative locktime CSV of %d blocks, not met", e.N)
	case ErrScriptSatisfactionError:
		return "top level script must be satisfied"
	case ErrUncompressedPubkey:
		return "uncompressed pubkey in non-legacy descriptor"
	case ErrUnexpectedStackBoolean:
		return "expected stack push operation, found stack bool"
	case ErrUnexpectedStackElementPush:
		// Mirrors the original implementation's own placeholder message: the
		// condition is well defined (a Push arrived where a stack boolean was
		// required) even though the exact wording is not meaningful.
		return "got stack push, expected stack boolean"
	case ErrUnexpectedStackEnd:
		return "unexpected end of stack"
	case ErrVerifyFailed:
		return "expected satisfied boolean at stack top for VERIFY"
	default:
		return "unknown interpreter error"
	}
}
