package spend

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/tobin-crypto/rust-miniscript-doge/miniscript"
)

func testKey(seed byte) miniscript.Key {
	var b [32]byte
	for i := range b {
		b[i] = seed
	}
	priv := btcec.PrivKeyFromBytes(b[:])
	return miniscript.Key{PubKey: priv.PubKey(), Compressed: true}
}

func TestRecoverFromTxWpkh(t *testing.T) {
	key := testKey(9)
	h := btcutil.Hash160(key.Bytes())
	spk, err := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(h).Script()
	if err != nil {
		t.Fatalf("build scriptPubKey: %v", err)
	}
	prevOut := &wire.TxOut{Value: 50000, PkScript: spk}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0},
		Witness:          wire.TxWitness{[]byte("sig"), key.Bytes()},
	})

	ctx, err := RecoverFromTx(prevOut, tx, 0)
	if err != nil {
		t.Fatalf("RecoverFromTx: %v", err)
	}
	if ctx.Kind != Wpkh {
		t.Fatalf("expected Wpkh, got %v", ctx.Kind)
	}
	if string(ctx.KeyHash[:]) != string(h) {
		t.Fatalf("keyhash mismatch")
	}
}

func TestRecoverFromTxIndexOutOfRange(t *testing.T) {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0}})

	if _, err := RecoverFromTx(&wire.TxOut{}, tx, 5); err == nil {
		t.Fatalf("expected an out-of-range error, got none")
	}
}
