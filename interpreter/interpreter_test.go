package interpreter

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/tobin-crypto/rust-miniscript-doge/miniscript"
	"github.com/tobin-crypto/rust-miniscript-doge/spend"
	"github.com/tobin-crypto/rust-miniscript-doge/stack"
)

func testKeyPair(t *testing.T, seed byte) (*btcec.PrivateKey, miniscript.Key) {
	t.Helper()
	var b [32]byte
	for i := range b {
		b[i] = seed
	}
	priv := btcec.PrivKeyFromBytes(b[:])
	return priv, miniscript.Key{PubKey: priv.PubKey(), Compressed: true}
}

func sigWitness(t *testing.T, priv *btcec.PrivateKey, sighashByte byte) []byte {
	t.Helper()
	msg := sha256.Sum256([]byte("interpreter test message"))
	sig := ecdsa.Sign(priv, msg[:])
	return append(sig.Serialize(), sighashByte)
}

// acceptAll always reports the signature as valid; tests instead control
// satisfaction/dissatisfaction through the witness stack's canonical
// boolean tags.
func acceptAll(miniscript.Key, []byte, byte) bool { return true }

func rejectAll(miniscript.Key, []byte, byte) bool { return false }

func TestInterpreterKeyOnlyPk(t *testing.T) {
	priv, key := testKeyPair(t, 1)

	ctx := &spend.Context{
		Kind:  spend.Pk,
		Key:   key,
		Stack: [][]byte{sigWitness(t, priv, 0x01)},
	}

	ip, err := New(ctx, acceptAll, 0, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cs, err := ip.SatisfiedConstraints()
	if err != nil {
		t.Fatalf("SatisfiedConstraints: %v", err)
	}
	if len(cs) != 1 || cs[0].Kind != stack.ConstraintPublicKey {
		t.Fatalf("expected a single PublicKey constraint, got %+v", cs)
	}
}

func TestInterpreterKeyOnlyPkRejectsBadSignature(t *testing.T) {
	priv, key := testKeyPair(t, 2)

	ctx := &spend.Context{
		Kind:  spend.Pk,
		Key:   key,
		Stack: [][]byte{sigWitness(t, priv, 0x01)},
	}

	ip, err := New(ctx, rejectAll, 0, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := ip.SatisfiedConstraints(); err == nil {
		t.Fatalf("expected an evaluation error, got none")
	}
}

// buildMultiContext constructs a Wsh 2-of-3 multisig spend with two
// signatures present alongside the CHECKMULTISIG null dummy.
func buildMultiContext(t *testing.T) (*spend.Context, []*btcec.PrivateKey) {
	t.Helper()
	var privs []*btcec.PrivateKey
	var keys []miniscript.Key
	for i := byte(1); i <= 3; i++ {
		priv, key := testKeyPair(t, i)
		privs = append(privs, priv)
		keys = append(keys, key)
	}
	b := txscript.NewScriptBuilder().AddOp(txscript.OP_2)
	for _, k := range keys {
		b.AddData(k.Bytes())
	}
	b.AddOp(txscript.OP_3).AddOp(txscript.OP_CHECKMULTISIG)
	script, err := b.Script()
	if err != nil {
		t.Fatalf("build multisig script: %v", err)
	}
	if _, err := miniscript.FromScript(script); err != nil {
		t.Fatalf("sanity parse of multisig script: %v", err)
	}
	witnessScriptHash := sha256.Sum256(script)
	spk := append([]byte{0x00, 0x20}, witnessScriptHash[:]...)

	witness := [][]byte{
		nil, // CMS null dummy
		sigWitness(t, privs[2], 0x01),
		sigWitness(t, privs[0], 0x01),
		script,
	}

	ctx, err := spend.Recover(spk, nil, witness)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	return ctx, privs
}

func TestInterpreterMultisig(t *testing.T) {
	ctx, _ := buildMultiContext(t)

	ip, err := New(ctx, acceptAll, 0, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cs, err := ip.SatisfiedConstraints()
	if err != nil {
		t.Fatalf("SatisfiedConstraints: %v", err)
	}
	if len(cs) != 2 {
		t.Fatalf("expected 2 PublicKey constraints, got %d", len(cs))
	}
}

func TestInterpreterMultisigInsufficientSigs(t *testing.T) {
	ctx, _ := buildMultiContext(t)
	// Drop one signature so only 1 of the 2 required sigs remains, keeping
	// the CMS null dummy (bottom element) in place.
	ctx.Stack = [][]byte{ctx.Stack[0], ctx.Stack[len(ctx.Stack)-1]}

	ip, err := New(ctx, acceptAll, 0, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := ip.SatisfiedConstraints(); err == nil {
		t.Fatalf("expected insufficient-signatures error, got none")
	}
}
