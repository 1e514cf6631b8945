// Package miniscript implements the typed Miniscript abstract syntax tree:
// lexing a scriptPubKey/scriptSig/witness script body into tokens, parsing
// those tokens into a Node tree, and re-encoding or stringifying that tree.
package miniscript

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// TokenKind names a single lexical unit recovered from a Bitcoin script.
// Unlike a raw opcode stream, the combined *VERIFY opcodes have already been
// expanded: EQUALVERIFY, CHECKSIGVERIFY and
// CHECKMULTISIGVERIFY are each split into two tokens (the base op followed by
// a TokVerify) so that parsing doesn't need to special-case them.
type TokenKind int

const (
	TokBool TokenKind = iota // OP_0 / OP_1, decoded as Num(0) or Num(1)
	TokNum
	TokHash20
	TokHash32
	TokPubkey
	TokDup
	TokEqual
	TokEqualVerify // never produced directly; EQUALVERIFY becomes {TokEqual, TokVerify}
	TokHash160
	TokHash256
	TokSha256
	TokRipemd160
	TokVerify
	TokCheckSig
	TokCheckSigVerify // never produced directly; split on lex
	TokCheckMultiSig
	TokCheckMultiSigVerify // never produced directly; split on lex
	TokCheckSequenceVerify
	TokCheckLockTimeVerify
	TokToAltStack
	TokFromAltStack
	TokSwap
	TokDrop
	TokSize
	TokNotIf
	TokIf
	TokIfDup
	TokElse
	TokEndIf
	TokZeroNotEqual
	TokAdd
	TokBoolAnd
	TokBoolOr
)

// Token is a lexed unit together with any payload (number or pushed bytes).
type Token struct {
	Kind TokenKind
	Num  int64
	Data []byte // Hash20, Hash32 or Pubkey payload
}

func (t Token) String() string {
	switch t.Kind {
	case TokNum:
		return fmt.Sprintf("Num(%d)", t.Num)
	case TokHash20, TokHash32, TokPubkey:
		return fmt.Sprintf("Push(%x)", t.Data)
	default:
		return fmt.Sprintf("Op(%d)", t.Kind)
	}
}

// Lex tokenizes a raw script into a forward-ordered slice of Tokens. It
// enforces minimal push encoding for all data pushes and numeric immediates,
// exactly as miniscript requires: any non-minimal push makes the script
// unparseable as Miniscript even though it may be valid, standard Bitcoin
// Script.
func Lex(script []byte) ([]Token, error) {
	var out []Token
	pos := 0
	var lastOp byte
	for pos < len(script) {
		op := script[pos]
		switch {
		case op == txscript.OP_0:
			out = append(out, Token{Kind: TokNum, Num: 0})
			pos++

		case op >= txscript.OP_1 && op <= txscript.OP_16:
			out = append(out, Token{Kind: TokNum, Num: int64(op-txscript.OP_1) + 1})
			pos++

		case op >= 1 && op <= 75:
			n := int(op)
			if pos+1+n > len(script) {
				return nil, fmt.Errorf("miniscript: truncated push at offset %d", pos)
			}
			data := script[pos+1 : pos+1+n]
			tok, err := pushToken(data)
			if err != nil {
				return nil, err
			}
			out = append(out, tok)
			pos += 1 + n

		case op == txscript.OP_PUSHDATA1, op == txscript.OP_PUSHDATA2, op == txscript.OP_PUSHDATA4:
			// Miniscript never needs pushdata1/2/4: every push it makes is at
			// most 65 bytes (an uncompressed pubkey). Any script
			// using one of these opcodes for such a short push is non-minimal,
			// and longer pushes are simply not representable in Miniscript.
			return nil, fmt.Errorf("miniscript: PUSHDATA1/2/4 at offset %d is never minimal", pos)

		case op == txscript.OP_DUP:
			out = append(out, Token{Kind: TokDup})
			pos++
		case op == txscript.OP_EQUAL:
			out = append(out, Token{Kind: TokEqual})
			pos++
		case op == txscript.OP_EQUALVERIFY:
			out = append(out, Token{Kind: TokEqual}, Token{Kind: TokVerify})
			pos++
		case op == txscript.OP_HASH160:
			out = append(out, Token{Kind: TokHash160})
			pos++
		case op == txscript.OP_HASH256:
			out = append(out, Token{Kind: TokHash256})
			pos++
		case op == txscript.OP_SHA256:
			out = append(out, Token{Kind: TokSha256})
			pos++
		case op == txscript.OP_RIPEMD160:
			out = append(out, Token{Kind: TokRipemd160})
			pos++
		case op == txscript.OP_VERIFY:
			// A standalone VERIFY directly after EQUAL, CHECKSIG or
			// CHECKMULTISIG is non-minimal: the combined *VERIFY opcode
			// exists and must be used instead.
			switch lastOp {
			case txscript.OP_EQUAL, txscript.OP_CHECKSIG, txscript.OP_CHECKMULTISIG:
				return nil, fmt.Errorf("miniscript: non-minimal VERIFY after opcode 0x%02x at offset %d", lastOp, pos)
			}
			out = append(out, Token{Kind: TokVerify})
			pos++
		case op == txscript.OP_CHECKSIG:
			out = append(out, Token{Kind: TokCheckSig})
			pos++
		case op == txscript.OP_CHECKSIGVERIFY:
			out = append(out, Token{Kind: TokCheckSig}, Token{Kind: TokVerify})
			pos++
		case op == txscript.OP_CHECKMULTISIG:
			out = append(out, Token{Kind: TokCheckMultiSig})
			pos++
		case op == txscript.OP_CHECKMULTISIGVERIFY:
			out = append(out, Token{Kind: TokCheckMultiSig}, Token{Kind: TokVerify})
			pos++
		case op == txscript.OP_CHECKSEQUENCEVERIFY:
			out = append(out, Token{Kind: TokCheckSequenceVerify})
			pos++
		case op == txscript.OP_CHECKLOCKTIMEVERIFY:
			out = append(out, Token{Kind: TokCheckLockTimeVerify})
			pos++
		case op == txscript.OP_TOALTSTACK:
			out = append(out, Token{Kind: TokToAltStack})
			pos++
		case op == txscript.OP_FROMALTSTACK:
			out = append(out, Token{Kind: TokFromAltStack})
			pos++
		case op == txscript.OP_SWAP:
			out = append(out, Token{Kind: TokSwap})
			pos++
		case op == txscript.OP_DROP:
			out = append(out, Token{Kind: TokDrop})
			pos++
		case op == txscript.OP_SIZE:
			out = append(out, Token{Kind: TokSize})
			pos++
		case op == txscript.OP_NOTIF:
			out = append(out, Token{Kind: TokNotIf})
			pos++
		case op == txscript.OP_IF:
			out = append(out, Token{Kind: TokIf})
			pos++
		case op == txscript.OP_IFDUP:
			out = append(out, Token{Kind: TokIfDup})
			pos++
		case op == txscript.OP_ELSE:
			out = append(out, Token{Kind: TokElse})
			pos++
		case op == txscript.OP_ENDIF:
			out = append(out, Token{Kind: TokEndIf})
			pos++
		case op == txscript.OP_0NOTEQUAL:
			out = append(out, Token{Kind: TokZeroNotEqual})
			pos++
		case op == txscript.OP_ADD:
			out = append(out, Token{Kind: TokAdd})
			pos++
		case op == txscript.OP_BOOLAND:
			out = append(out, Token{Kind: TokBoolAnd})
			pos++
		case op == txscript.OP_BOOLOR:
			out = append(out, Token{Kind: TokBoolOr})
			pos++
		default:
			return nil, fmt.Errorf("miniscript: opcode 0x%02x at offset %d is not a Miniscript opcode", op, pos)
		}
		lastOp = op
	}
	return out, nil
}

// pushToken classifies a push payload by size: 20 bytes is a hash/pubkeyhash,
// 32 bytes is a hash, 33 or 65 bytes is a public key, and any other length is
// a non-negative script number (a locktime, a threshold or the hashlock SIZE
// operand). It also re-derives the
// minimal encoding of the push and rejects the input if it doesn't match,
// mirroring Bitcoin Core's IsMinimalPush check restricted to what Miniscript
// can ever emit.
func pushToken(data []byte) (Token, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddData(data)
	minimal, err := builder.Script()
	if err != nil {
		return Token{}, fmt.Errorf("miniscript: rebuilding push: %w", err)
	}
	// minimal re-encodes data as <len> data..., i.e. the same single opcode
	// form we decoded here; AddData never chooses pushdata1/2/4 for pushes
	// this short, so any mismatch means our decode was already non-minimal.
	if !bytes.Equal(minimal[1:], data) {
		return Token{}, fmt.Errorf("miniscript: non-minimal push of %d bytes", len(data))
	}
	switch len(data) {
	case 20:
		cp := make([]byte, 20)
		copy(cp, data)
		return Token{Kind: TokHash20, Data: cp}, nil
	case 32:
		cp := make([]byte, 32)
		copy(cp, data)
		return Token{Kind: TokHash32, Data: cp}, nil
	case 33, 65:
		cp := make([]byte, len(data))
		copy(cp, data)
		return Token{Kind: TokPubkey, Data: cp}, nil
	default:
		// Any other push is a non-negative script number, which must be
		// encoded exactly as AddInt64 would encode it.
		if len(data) > 4 || data[len(data)-1]&0x80 != 0 {
			return Token{}, fmt.Errorf("miniscript: push of %d bytes is not a hash, a public key or a non-negative number", len(data))
		}
		var v int64
		for i, b := range data {
			v |= int64(b) << (8 * uint(i))
		}
		num, err := txscript.NewScriptBuilder().AddInt64(v).Script()
		if err != nil || !bytes.Equal(num[1:], data) {
			return Token{}, fmt.Errorf("miniscript: non-minimal number push of %d bytes", len(data))
		}
		return Token{Kind: TokNum, Num: v}, nil
	}
}

// TokenIter walks a token slice from the end towards the start. Miniscript's
// wrapper and combinator opcodes sit at the tail of the sub-scripts they
// close (OP_CHECKSIG, OP_ENDIF, ...), so parsing naturally proceeds back to
// front: Next pops the last remaining token first.
type TokenIter struct {
	toks []Token
}

// NewTokenIter takes ownership of toks (forward/script order) and iterates
// it back to front.
func NewTokenIter(toks []Token) *TokenIter {
	return &TokenIter{toks: toks}
}

// Next pops and returns the token closest to the end of the remaining slice,
// or false if none remain.
func (it *TokenIter) Next() (Token, bool) {
	if len(it.toks) == 0 {
		return Token{}, false
	}
	n := len(it.toks) - 1
	tok := it.toks[n]
	it.toks = it.toks[:n]
	return tok, true
}

// Peek returns the next token Next would return, without consuming it.
func (it *TokenIter) Peek() (Token, bool) {
	if len(it.toks) == 0 {
		return Token{}, false
	}
	return it.toks[len(it.toks)-1], true
}

// UnNext pushes tok back so that the next Next call returns it again.
func (it *TokenIter) UnNext(tok Token) {
	it.toks = append(it.toks, tok)
}

// Done reports whether every token has been consumed.
func (it *TokenIter) Done() bool {
	return len(it.toks) == 0
}

// Len reports how many tokens remain unconsumed.
func (it *TokenIter) Len() int {
	return len(it.toks)
}
