package psbtfinal

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/tobin-crypto/rust-miniscript-doge/interpreter"
	"github.com/tobin-crypto/rust-miniscript-doge/miniscript"
	"github.com/tobin-crypto/rust-miniscript-doge/satisfy"
	"github.com/tobin-crypto/rust-miniscript-doge/spend"
)

// FinalizeError reports why input index could not be finalized.
type FinalizeError struct {
	Index int
	Msg   string
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("psbtfinal: input %d: %s", e.Index, e.Msg)
}

func finalizeErr(index int, format string, args ...interface{}) error {
	return &FinalizeError{Index: index, Msg: fmt.Sprintf(format, args...)}
}

// inputScriptPubKey resolves the scriptPubKey being spent, from whichever
// UTXO field the Updater populated.
func inputScriptPubKey(pkt *psbt.Packet, index int) ([]byte, error) {
	in := &pkt.Inputs[index]
	if in.WitnessUtxo != nil {
		return in.WitnessUtxo.PkScript, nil
	}
	if in.NonWitnessUtxo != nil {
		prevOut := pkt.UnsignedTx.TxIn[index].PreviousOutPoint
		if int(prevOut.Index) >= len(in.NonWitnessUtxo.TxOut) {
			return nil, finalizeErr(index, "previous outpoint index out of range")
		}
		return in.NonWitnessUtxo.TxOut[prevOut.Index].PkScript, nil
	}
	return nil, finalizeErr(index, "missing both witness and non-witness UTXO")
}

// classified describes everything Finalize needs to build a witness/scriptSig
// for one input, recovered from the scriptPubKey and whatever redeem/witness
// script the Updater already attached to the PSBT input.
type classified struct {
	kind          spend.Kind
	node          *miniscript.Node
	key           miniscript.Key
	keyHash       [20]byte
	redeemScript  []byte // pushed in scriptSig for Sh/ShWpkh/ShWsh
	witnessScript []byte // pushed as the last witness item for Wsh/ShWsh
}

func classify(index int, spk, redeemScript, witnessScript []byte) (*classified, error) {
	if len(spk) == 22 && spk[0] == txscript.OP_0 && spk[1] == 20 {
		var h [20]byte
		copy(h[:], spk[2:])
		return &classified{kind: spend.Wpkh, keyHash: h}, nil
	}
	if len(spk) == 34 && spk[0] == txscript.OP_0 && spk[1] == 32 {
		if witnessScript == nil {
			return nil, finalizeErr(index, "p2wsh input missing witness script")
		}
		h := sha256.Sum256(witnessScript)
		if !bytes.Equal(h[:], spk[2:]) {
			return nil, finalizeErr(index, "witness script does not match scriptPubKey")
		}
		node, err := miniscript.FromScript(witnessScript)
		if err != nil {
			return nil, err
		}
		if err := node.CheckKeys(miniscript.Segwitv0); err != nil {
			return nil, err
		}
		return &classified{kind: spend.Wsh, node: node, witnessScript: witnessScript}, nil
	}
	if len(spk) == 23 && spk[0] == txscript.OP_HASH160 && spk[1] == 20 && spk[22] == txscript.OP_EQUAL {
		if redeemScript == nil {
			return nil, finalizeErr(index, "p2sh input missing redeem script")
		}
		rh := hash160(redeemScript)
		if !bytes.Equal(rh, spk[2:22]) {
			return nil, finalizeErr(index, "redeem script does not match scriptPubKey")
		}
		if len(redeemScript) == 22 && redeemScript[0] == txscript.OP_0 && redeemScript[1] == 20 {
			var h [20]byte
			copy(h[:], redeemScript[2:])
			return &classified{kind: spend.ShWpkh, keyHash: h, redeemScript: redeemScript}, nil
		}
		if len(redeemScript) == 34 && redeemScript[0] == txscript.OP_0 && redeemScript[1] == 32 {
			if witnessScript == nil {
				return nil, finalizeErr(index, "p2sh-p2wsh input missing witness script")
			}
			wh := sha256.Sum256(witnessScript)
			if !bytes.Equal(wh[:], redeemScript[2:]) {
				return nil, finalizeErr(index, "witness script does not match redeem script")
			}
			node, err := miniscript.FromScript(witnessScript)
			if err != nil {
				return nil, err
			}
			if err := node.CheckKeys(miniscript.Segwitv0); err != nil {
				return nil, err
			}
			return &classified{kind: spend.ShWsh, node: node, redeemScript: redeemScript, witnessScript: witnessScript}, nil
		}
		node, err := miniscript.FromScript(redeemScript)
		if err != nil {
			return nil, err
		}
		return &classified{kind: spend.Sh, node: node, redeemScript: redeemScript}, nil
	}
	if len(spk) == 35 && spk[0] == 33 && spk[34] == txscript.OP_CHECKSIG {
		key, err := miniscript.ParseKey(spk[1:34])
		if err != nil {
			return nil, err
		}
		return &classified{kind: spend.Pk, key: key}, nil
	}
	if len(spk) == 25 && spk[0] == txscript.OP_DUP && spk[1] == txscript.OP_HASH160 &&
		spk[23] == txscript.OP_EQUALVERIFY && spk[24] == txscript.OP_CHECKSIG {
		var h [20]byte
		copy(h[:], spk[3:23])
		return &classified{kind: spend.Pkh, keyHash: h}, nil
	}
	node, err := miniscript.FromScript(spk)
	if err != nil {
		return nil, err
	}
	return &classified{kind: spend.Bare, node: node}, nil
}

// Finalize builds input index's final scriptSig/witness from whatever
// signatures and preimages the input's PartialSigs/Unknowns already carry,
// then strips every field BIP-174 requires a finalizer to remove. It leaves
// the input untouched and returns an error if the available data can't yet
// satisfy the script.
func Finalize(pkt *psbt.Packet, index int) error {
	if index < 0 || index >= len(pkt.Inputs) {
		return finalizeErr(index, "index out of range")
	}
	in := &pkt.Inputs[index]

	spk, err := inputScriptPubKey(pkt, index)
	if err != nil {
		return err
	}
	c, err := classify(index, spk, in.RedeemScript, in.WitnessScript)
	if err != nil {
		return err
	}
	stfr := NewPsbtInputSatisfier(pkt, index)

	var scriptSig []byte
	var witness [][]byte

	switch c.kind {
	case spend.Pk:
		sig, ok := stfr.LookupSig(c.key)
		if !ok {
			return finalizeErr(index, "missing signature for pk()")
		}
		scriptSig = pushBytes(sig.Bytes())
	case spend.Pkh:
		key, sig, ok := stfr.LookupPkhSig(c.keyHash)
		if !ok {
			return finalizeErr(index, "missing signature for pkh()")
		}
		scriptSig = pushAll([][]byte{sig.Bytes(), key.Bytes()})
	case spend.Wpkh, spend.ShWpkh:
		key, sig, ok := stfr.LookupPkhSig(c.keyHash)
		if !ok {
			return finalizeErr(index, "missing signature for wpkh()")
		}
		witness = [][]byte{sig.Bytes(), key.Bytes()}
		if c.kind == spend.ShWpkh {
			scriptSig = pushBytes(c.redeemScript)
		}
	case spend.Bare, spend.Sh:
		sat := satisfy.Satisfy(c.node, stfr)
		if sat.Stack.Kind != satisfy.WitnessAvailable {
			return finalizeErr(index, "not enough signatures/preimages to satisfy the script")
		}
		items := sat.Stack.Stack
		if c.kind == spend.Sh {
			items = append(append([][]byte{}, items...), c.redeemScript)
		}
		scriptSig = pushAll(items)
	case spend.Wsh, spend.ShWsh:
		sat := satisfy.Satisfy(c.node, stfr)
		if sat.Stack.Kind != satisfy.WitnessAvailable {
			return finalizeErr(index, "not enough signatures/preimages to satisfy the script")
		}
		witness = append(append([][]byte{}, sat.Stack.Stack...), c.witnessScript)
		if c.kind == spend.ShWsh {
			scriptSig = pushBytes(c.redeemScript)
		}
	default:
		return finalizeErr(index, "unrecognized script type")
	}

	if err := sanityCheckFinal(pkt, index, spk, scriptSig, witness); err != nil {
		return err
	}

	in.FinalScriptSig = scriptSig
	if witness != nil {
		var buf bytes.Buffer
		if err := psbt.WriteTxWitness(&buf, witness); err != nil {
			return finalizeErr(index, "serializing final witness: %v", err)
		}
		in.FinalScriptWitness = buf.Bytes()
	}
	clearNonFinalFields(in)
	log.Infof("finalized input %d (%v)", index, c.kind)
	return nil
}

// sanityCheckFinal replays the just-built scriptSig/witness through the
// interpreter before committing to it, so Finalize never writes out a
// witness that doesn't actually satisfy the script it was built for.
func sanityCheckFinal(pkt *psbt.Packet, index int, spk, scriptSig []byte, witness [][]byte) error {
	ctx, err := spend.Recover(spk, scriptSig, witness)
	if err != nil {
		return finalizeErr(index, "built witness failed recovery: %v", err)
	}
	seq := pkt.UnsignedTx.TxIn[index].Sequence
	ip, err := interpreter.New(ctx, alwaysValidSignatures, pkt.UnsignedTx.LockTime, seq)
	if err != nil {
		return finalizeErr(index, "building interpreter: %v", err)
	}
	if _, err := ip.SatisfiedConstraints(); err != nil {
		return finalizeErr(index, "built witness does not satisfy the script: %v", err)
	}
	return nil
}

// alwaysValidSignatures skips ECDSA verification during the finalize-time
// sanity check: the signatures were already verified against the sighash
// when they were added as PartialSigs, and the interpreter here has no
// access to the actual transaction digest to re-verify against.
func alwaysValidSignatures(miniscript.Key, []byte, byte) bool { return true }

func pushBytes(b []byte) []byte {
	script, _ := txscript.NewScriptBuilder().AddData(b).Script()
	return script
}

func pushAll(items [][]byte) []byte {
	b := txscript.NewScriptBuilder()
	for _, item := range items {
		b.AddData(item)
	}
	script, _ := b.Script()
	return script
}

// clearNonFinalFields implements BIP-174's finalizer contract: once an input
// carries final fields, every other per-input field must be dropped.
func clearNonFinalFields(in *psbt.PInput) {
	in.PartialSigs = nil
	in.SighashType = 0
	in.RedeemScript = nil
	in.WitnessScript = nil
	in.Bip32Derivation = nil
	in.Unknowns = nil
}
