package satisfy

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
	"github.com/tobin-crypto/rust-miniscript-doge/miniscript"
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

func testSig(t *testing.T, priv *btcec.PrivateKey, msg byte) Signature {
	t.Helper()
	hash := sha256.Sum256([]byte{msg})
	sig := ecdsa.Sign(priv, hash[:])
	return Signature{DER: sig.Serialize(), SighashByte: 0x01}
}

func parseFragment(t *testing.T, script []byte) *miniscript.Node {
	t.Helper()
	n, err := miniscript.FromScript(script)
	require.NoError(t, err)
	return n
}

func TestSatisfyPk(t *testing.T) {
	priv, key := testKeyPair(t, 1)
	script, err := txscript.NewScriptBuilder().AddData(key.Bytes()).AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)
	node := parseFragment(t, script)

	stfr := NewMapSatisfier(0, 0)
	sig := testSig(t, priv, 0xaa)
	stfr.AddSig(key, sig)

	sat := Satisfy(node, stfr)
	require.Equal(t, WitnessAvailable, sat.Stack.Kind)
	require.True(t, sat.HasSig)
	require.Equal(t, [][]byte{sig.Bytes()}, sat.Stack.Stack)
}

func TestSatisfyPkMissingSigIsImpossible(t *testing.T) {
	_, key := testKeyPair(t, 1)
	script, err := txscript.NewScriptBuilder().AddData(key.Bytes()).AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)
	node := parseFragment(t, script)

	sat := Satisfy(node, NewMapSatisfier(0, 0))
	require.Equal(t, WitnessImpossible, sat.Stack.Kind)
}

func TestSatisfyPkhDissatisfyKnowsPubkeyOnly(t *testing.T) {
	_, key := testKeyPair(t, 2)
	pkh := btcutil.Hash160(key.Bytes())
	var h20 [20]byte
	copy(h20[:], pkh)

	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).AddData(pkh).
		AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)
	node := parseFragment(t, script)

	stfr := NewMapSatisfier(0, 0)
	stfr.PkhPubkeys[h20] = key

	dsat := (&planner{satisfier: stfr}).dissatisfy(node)
	require.Equal(t, WitnessAvailable, dsat.Stack.Kind)
	require.Equal(t, [][]byte{{}, key.Bytes()}, dsat.Stack.Stack)

	sat := Satisfy(node, stfr)
	require.Equal(t, WitnessImpossible, sat.Stack.Kind)
}

func buildThreshScript(t *testing.T, keys []miniscript.Key) []byte {
	t.Helper()
	b := txscript.NewScriptBuilder()
	for i, k := range keys {
		b.AddData(k.Bytes()).AddOp(txscript.OP_CHECKSIG)
		if i > 0 {
			b.AddOp(txscript.OP_ADD)
		}
	}
	b.AddOp(txscript.OP_2).AddOp(txscript.OP_EQUAL)
	script, err := b.Script()
	require.NoError(t, err)
	return script
}

func TestSatisfyThreshPicksCheapestTwoOfThree(t *testing.T) {
	var privs []*btcec.PrivateKey
	var keys []miniscript.Key
	for i := byte(1); i <= 3; i++ {
		priv, key := testKeyPair(t, i)
		privs = append(privs, priv)
		keys = append(keys, key)
	}
	node := parseFragment(t, buildThreshScript(t, keys))

	stfr := NewMapSatisfier(0, 0)
	for i, priv := range privs {
		stfr.AddSig(keys[i], testSig(t, priv, byte(i)))
	}

	sat := Satisfy(node, stfr)
	require.Equal(t, WitnessAvailable, sat.Stack.Kind)
	require.True(t, sat.HasSig)

	satisfiedCount := 0
	for _, item := range sat.Stack.Stack {
		if len(item) > 0 {
			satisfiedCount++
		}
	}
	require.Equal(t, 2, satisfiedCount)
}

func buildMultiScript(t *testing.T, keys []miniscript.Key) []byte {
	t.Helper()
	b := txscript.NewScriptBuilder().AddOp(txscript.OP_2)
	for _, k := range keys {
		b.AddData(k.Bytes())
	}
	b.AddOp(txscript.OP_3).AddOp(txscript.OP_CHECKMULTISIG)
	script, err := b.Script()
	require.NoError(t, err)
	return script
}

func TestSatisfyMultiCheapestK(t *testing.T) {
	var privs []*btcec.PrivateKey
	var keys []miniscript.Key
	for i := byte(1); i <= 3; i++ {
		priv, key := testKeyPair(t, i)
		privs = append(privs, priv)
		keys = append(keys, key)
	}
	node := parseFragment(t, buildMultiScript(t, keys))

	stfr := NewMapSatisfier(0, 0)
	for i, priv := range privs {
		stfr.AddSig(keys[i], testSig(t, priv, byte(10+i)))
	}

	sat := Satisfy(node, stfr)
	require.Equal(t, WitnessAvailable, sat.Stack.Kind)
	// null dummy + exactly k=2 signatures, never all 3.
	require.Len(t, sat.Stack.Stack, 3)
	require.Equal(t, []byte{}, sat.Stack.Stack[0])
}

func TestSatisfyMultiImpossibleWhenTooFewSigs(t *testing.T) {
	_, key1 := testKeyPair(t, 1)
	priv2, key2 := testKeyPair(t, 2)
	_, key3 := testKeyPair(t, 3)
	keys := []miniscript.Key{key1, key2, key3}
	node := parseFragment(t, buildMultiScript(t, keys))

	stfr := NewMapSatisfier(0, 0)
	stfr.AddSig(key2, testSig(t, priv2, 1))

	sat := Satisfy(node, stfr)
	require.Equal(t, WitnessImpossible, sat.Stack.Kind)
}

func TestCheckOlderAndAfter(t *testing.T) {
	stfr := NewMapSatisfier(150, 600000)
	require.True(t, stfr.CheckOlder(100))
	require.False(t, stfr.CheckOlder(200))
	require.True(t, stfr.CheckAfter(500000))
	require.False(t, stfr.CheckAfter(700000))
}
