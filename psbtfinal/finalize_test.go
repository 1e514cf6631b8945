package psbtfinal

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/tobin-crypto/rust-miniscript-doge/miniscript"
)

func testKey(seed byte) (*btcec.PrivateKey, miniscript.Key) {
	var b [32]byte
	for i := range b {
		b[i] = seed
	}
	priv := btcec.PrivKeyFromBytes(b[:])
	return priv, miniscript.Key{PubKey: priv.PubKey(), Compressed: true}
}

// buildPacket assembles a one-input, one-output packet spending a p2wsh
// output via witnessScript, with no signatures attached yet.
func buildPacket(t *testing.T, witnessScript []byte, value int64) *psbt.Packet {
	t.Helper()
	h := sha256.Sum256(witnessScript)
	spk, err := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(h[:]).Script()
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: 0},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	outSpk, err := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(make([]byte, 20)).Script()
	require.NoError(t, err)
	tx.AddTxOut(&wire.TxOut{Value: value - 1000, PkScript: outSpk})

	return &psbt.Packet{
		UnsignedTx: tx,
		Inputs: []psbt.PInput{{
			WitnessUtxo:   &wire.TxOut{Value: value, PkScript: spk},
			WitnessScript: witnessScript,
		}},
	}
}

func TestFinalizeWshSingleSig(t *testing.T) {
	priv, key := testKey(7)
	script, err := txscript.NewScriptBuilder().AddData(key.Bytes()).AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)

	pkt := buildPacket(t, script, 100000)

	sigHash := sha256.Sum256([]byte("placeholder sighash"))
	sig := ecdsa.Sign(priv, sigHash[:])
	rawSig := append(append([]byte{}, sig.Serialize()...), byte(txscript.SigHashAll))
	pkt.Inputs[0].PartialSigs = []psbt.PartialSig{{
		PubKey:    key.Bytes(),
		Signature: rawSig,
	}}

	err = Finalize(pkt, 0)
	require.NoError(t, err)
	require.Nil(t, pkt.Inputs[0].PartialSigs)
	require.Nil(t, pkt.Inputs[0].WitnessScript)
	require.NotEmpty(t, pkt.Inputs[0].FinalScriptWitness)

	tx, err := Extract(pkt)
	require.NoError(t, err)
	require.Len(t, tx.TxIn[0].Witness, 2)
	require.Equal(t, rawSig, tx.TxIn[0].Witness[0])
	require.Equal(t, script, tx.TxIn[0].Witness[1])
}

func TestFinalizeMissingSignatureErrors(t *testing.T) {
	_, key := testKey(7)
	script, err := txscript.NewScriptBuilder().AddData(key.Bytes()).AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)

	pkt := buildPacket(t, script, 100000)

	err = Finalize(pkt, 0)
	require.Error(t, err)
}
