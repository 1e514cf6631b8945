// Package spend classifies a (scriptPubKey, scriptSig, witness) triple into
// one of the eight spending contexts Miniscript recognizes and recovers the
// executable script and initial evaluation stack for each.
package spend

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/tobin-crypto/rust-miniscript-doge/miniscript"
)

// Kind is one of the eight contexts in spec.md §4.2's table.
type Kind int

const (
	Pk Kind = iota
	Pkh
	Wpkh
	ShWpkh
	Bare
	Sh
	Wsh
	ShWsh
)

// Context is the recovered Spending Context: either a bare public key
// (Pk/Pkh/Wpkh/ShWpkh) or a parsed Miniscript AST (Bare/Sh/Wsh/ShWsh).
type Context struct {
	Kind Kind

	Key     miniscript.Key
	KeyHash [20]byte

	Node      *miniscript.Node
	ScriptCtx miniscript.ScriptContext

	// Stack is the initial witness evaluation stack: scriptSig pushes for
	// legacy contexts, witness minus any trailing witness/redeem script for
	// segwit contexts.
	Stack [][]byte

	// witnessScript is the witness script for Wsh/ShWsh.
	witnessScript []byte

	// scriptCode is the exact serialization a sighash must cover: the
	// scriptPubKey or redeemScript itself for legacy contexts, the witness
	// script for Wsh/ShWsh, and the expanded DUP HASH160...CHECKSIG form for
	// Wpkh/ShWpkh.
	scriptCode []byte
}

// IsKeyOnly reports whether this context has no AST to interpret: the
// interpreter's only remaining step is a single signature check against the
// recovered key (Pk) or key hash (Pkh, Wpkh, ShWpkh).
func (c *Context) IsKeyOnly() bool {
	switch c.Kind {
	case Pk, Pkh, Wpkh, ShWpkh:
		return true
	default:
		return false
	}
}

// IsSegwit reports whether the recovered spend commits to its inputs via
// BIP-143 sighashing (Wpkh, ShWpkh, Wsh, ShWsh) rather than the legacy
// sighash algorithm.
func (c *Context) IsSegwit() bool {
	switch c.Kind {
	case Wpkh, ShWpkh, Wsh, ShWsh:
		return true
	default:
		return false
	}
}

// ScriptCode returns the serialization a sighash must cover for this spend.
func (c *Context) ScriptCode() []byte {
	return c.scriptCode
}

func wpkhScriptCode(hash [20]byte) []byte {
	b := txscript.NewScriptBuilder()
	b.AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160)
	b.AddData(hash[:])
	b.AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG)
	script, _ := b.Script()
	return script
}

// extractPushes walks a script that is expected to contain nothing but data
// pushes (a standard scriptSig) and returns them in script order.
func extractPushes(script []byte) ([][]byte, error) {
	var out [][]byte
	pos := 0
	for pos < len(script) {
		op := script[pos]
		switch {
		case op == txscript.OP_0:
			out = append(out, nil)
			pos++
		case op >= txscript.OP_1 && op <= txscript.OP_16:
			out = append(out, []byte{op - txscript.OP_1 + 1})
			pos++
		case op >= 1 && op <= 75:
			n := int(op)
			if pos+1+n > len(script) {
				return nil, errf("truncated push in scriptSig")
			}
			out = append(out, script[pos+1:pos+1+n])
			pos += 1 + n
		case op == txscript.OP_PUSHDATA1:
			if pos+2 > len(script) {
				return nil, errf("truncated PUSHDATA1")
			}
			n := int(script[pos+1])
			if pos+2+n > len(script) {
				return nil, errf("truncated PUSHDATA1 payload")
			}
			out = append(out, script[pos+2:pos+2+n])
			pos += 2 + n
		default:
			return nil, errf("scriptSig opcode 0x%02x is not a data push", op)
		}
	}
	return out, nil
}

func errf(format string, args ...interface{}) error {
	return &RecoveryError{msg: fmt.Sprintf(format, args...)}
}

// RecoveryError reports a context-recovery failure (mismatched hash, wrong
// shape, unexpected witness/scriptSig content).
type RecoveryError struct{ msg string }

func (e *RecoveryError) Error() string { return e.msg }

func sha256Sum(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}

func isWpkhScript(script []byte) (hash [20]byte, ok bool) {
	if len(script) != 22 || script[0] != txscript.OP_0 || script[1] != 20 {
		return hash, false
	}
	copy(hash[:], script[2:])
	return hash, true
}

func isWshScript(script []byte) (hash [32]byte, ok bool) {
	if len(script) != 34 || script[0] != txscript.OP_0 || script[1] != 32 {
		return hash, false
	}
	copy(hash[:], script[2:])
	return hash, true
}

func isPkScript(script []byte) (key miniscript.Key, ok bool) {
	if len(script) != 35 || script[0] != 33 || script[34] != txscript.OP_CHECKSIG {
		return key, false
	}
	k, err := miniscript.ParseKey(script[1:34])
	if err != nil {
		return key, false
	}
	return k, true
}

func isPkhScript(script []byte) (hash [20]byte, ok bool) {
	if len(script) != 25 ||
		script[0] != txscript.OP_DUP || script[1] != txscript.OP_HASH160 ||
		script[2] != 20 || script[23] != txscript.OP_EQUALVERIFY || script[24] != txscript.OP_CHECKSIG {
		return hash, false
	}
	copy(hash[:], script[3:23])
	return hash, true
}

func isShScript(script []byte) (hash [20]byte, ok bool) {
	if len(script) != 23 || script[0] != txscript.OP_HASH160 || script[1] != 20 || script[22] != txscript.OP_EQUAL {
		return hash, false
	}
	copy(hash[:], script[2:22])
	return hash, true
}

// Recover classifies the spend and returns its recovered Context.
func Recover(spk, scriptSig []byte, witness [][]byte) (*Context, error) {
	if key, ok := isPkScript(spk); ok {
		if len(witness) != 0 {
			return nil, errf("legacy spend had non-empty witness")
		}
		stack, err := extractPushes(scriptSig)
		if err != nil {
			return nil, err
		}
		return &Context{Kind: Pk, Key: key, ScriptCtx: miniscript.Legacy, Stack: stack, scriptCode: spk}, nil
	}

	if hash, ok := isPkhScript(spk); ok {
		if len(witness) != 0 {
			return nil, errf("legacy spend had non-empty witness")
		}
		stack, err := extractPushes(scriptSig)
		if err != nil {
			return nil, err
		}
		return &Context{Kind: Pkh, KeyHash: hash, ScriptCtx: miniscript.Legacy, Stack: stack, scriptCode: spk}, nil
	}

	if hash, ok := isWpkhScript(spk); ok {
		if len(scriptSig) != 0 {
			return nil, errf("segwit spend had non-empty scriptSig")
		}
		if len(witness) != 2 {
			return nil, errf("p2wpkh witness must have exactly 2 elements")
		}
		key, err := miniscript.ParseKey(witness[1])
		if err != nil {
			return nil, errf("could not parse pubkey: %v", err)
		}
		if !bytes.Equal(btcutil.Hash160(witness[1]), hash[:]) {
			return nil, errf("public key did not match scriptpubkey (segwit v0)")
		}
		return &Context{Kind: Wpkh, Key: key, KeyHash: hash, ScriptCtx: miniscript.Segwitv0, Stack: witness, scriptCode: wpkhScriptCode(hash)}, nil
	}

	if hash, ok := isShScript(spk); ok {
		pushes, err := extractPushes(scriptSig)
		if err != nil {
			return nil, err
		}
		if len(pushes) == 0 {
			return nil, errf("p2sh scriptSig has no redeemScript push")
		}
		redeem := pushes[len(pushes)-1]
		if !bytes.Equal(btcutil.Hash160(redeem), hash[:]) {
			return nil, errf("redeem script did not match scriptpubkey")
		}

		if wh, ok := isWpkhScript(redeem); ok {
			if len(witness) != 2 {
				return nil, errf("p2sh-p2wpkh witness must have exactly 2 elements")
			}
			key, err := miniscript.ParseKey(witness[1])
			if err != nil {
				return nil, errf("could not parse pubkey: %v", err)
			}
			if !bytes.Equal(btcutil.Hash160(witness[1]), wh[:]) {
				return nil, errf("public key did not match scriptpubkey (segwit v0)")
			}
			return &Context{Kind: ShWpkh, Key: key, KeyHash: wh, ScriptCtx: miniscript.Segwitv0, Stack: witness, scriptCode: wpkhScriptCode(wh)}, nil
		}

		if wsHash, ok := isWshScript(redeem); ok {
			if len(pushes) != 1 {
				return nil, errf("p2sh-p2wsh scriptSig must contain only the redeemScript push")
			}
			if len(witness) == 0 {
				return nil, errf("p2sh-p2wsh spend must carry a witness script")
			}
			ws := witness[len(witness)-1]
			if sum := sha256Sum(ws); !bytes.Equal(sum, wsHash[:]) {
				return nil, errf("witness script did not match scriptpubkey")
			}
			node, err := miniscript.FromScript(ws)
			if err != nil {
				return nil, err
			}
			if err := node.CheckKeys(miniscript.Segwitv0); err != nil {
				return nil, err
			}
			return &Context{
				Kind: ShWsh, Node: node, ScriptCtx: miniscript.Segwitv0,
				Stack: witness[:len(witness)-1], witnessScript: ws, scriptCode: ws,
			}, nil
		}

		if len(witness) != 0 {
			return nil, errf("legacy spend had non-empty witness")
		}
		node, err := miniscript.FromScript(redeem)
		if err != nil {
			return nil, err
		}
		return &Context{Kind: Sh, Node: node, ScriptCtx: miniscript.Legacy, Stack: pushes[:len(pushes)-1], scriptCode: redeem}, nil
	}

	if wsHash, ok := isWshScript(spk); ok {
		if len(scriptSig) != 0 {
			return nil, errf("segwit spend had non-empty scriptSig")
		}
		if len(witness) == 0 {
			return nil, errf("p2wsh spend must carry a witness script")
		}
		ws := witness[len(witness)-1]
		if sum := sha256Sum(ws); !bytes.Equal(sum, wsHash[:]) {
			return nil, errf("witness script did not match scriptpubkey")
		}
		node, err := miniscript.FromScript(ws)
		if err != nil {
			return nil, err
		}
		if err := node.CheckKeys(miniscript.Segwitv0); err != nil {
			return nil, err
		}
		return &Context{
			Kind: Wsh, Node: node, ScriptCtx: miniscript.Segwitv0,
			Stack: witness[:len(witness)-1], witnessScript: ws, scriptCode: ws,
		}, nil
	}

	// Bare: spk itself is the miniscript.
	if len(witness) != 0 {
		return nil, errf("legacy spend had non-empty witness")
	}
	node, err := miniscript.FromScript(spk)
	if err != nil {
		return nil, err
	}
	stack, err := extractPushes(scriptSig)
	if err != nil {
		return nil, err
	}
	return &Context{Kind: Bare, Node: node, ScriptCtx: miniscript.Legacy, Stack: stack, scriptCode: spk}, nil
}

// RecoverFromTx is Recover's transaction-aware sibling: given the output
// being spent and the spending transaction's input index, it pulls the
// scriptPubKey/scriptSig/witness triple straight off the wire types instead
// of making the caller unpack them first.
func RecoverFromTx(prevOut *wire.TxOut, tx *wire.MsgTx, index int) (*Context, error) {
	if index < 0 || index >= len(tx.TxIn) {
		return nil, errf("input index %d out of range", index)
	}
	in := tx.TxIn[index]
	return Recover(prevOut.PkScript, in.SignatureScript, in.Witness)
}
