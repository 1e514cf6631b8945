package miniscript

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, seed byte) Key {
	t.Helper()
	priv := btcec.PrivKeyFromBytes(append([]byte{seed}, make([]byte, 31)...))
	return Key{PubKey: priv.PubKey(), Compressed: true}
}

func roundTrip(t *testing.T, n *Node) *Node {
	t.Helper()
	script, err := n.ToScript()
	require.NoError(t, err)
	got, err := FromScript(script)
	require.NoError(t, err)
	require.Equal(t, n.String(), got.String())
	return got
}

func TestRoundTripLeaves(t *testing.T) {
	k := testKey(t, 1)
	roundTrip(t, newTrue())
	roundTrip(t, newFalse())
	roundTrip(t, newPkK(k))
	var h20 [20]byte
	h20[0] = 0xaa
	roundTrip(t, newPkH(h20))
	roundTrip(t, newOlder(144))
	roundTrip(t, newAfter(500000))
	var h32 [32]byte
	h32[0] = 0xbb
	roundTrip(t, newSha256(h32))
	roundTrip(t, newHash256(h32))
	roundTrip(t, newRipemd160(h20))
	roundTrip(t, newHash160(h20))
}

func TestRoundTripWrappers(t *testing.T) {
	k := testKey(t, 2)
	c := newCheck(newPkK(k))
	roundTrip(t, c)
	roundTrip(t, newSwap(c))
	roundTrip(t, newAlt(c))
	roundTrip(t, newVerify(c))
	roundTrip(t, newNonZero(c))
	roundTrip(t, newZeroNotEqual(c))
	roundTrip(t, newDupIf(c))
}

func TestRoundTripCombinators(t *testing.T) {
	k1, k2, k3 := testKey(t, 3), testKey(t, 4), testKey(t, 5)
	a := newCheck(newPkK(k1))
	b := newCheck(newPkK(k2))
	c := newCheck(newPkK(k3))

	roundTrip(t, newAndV(newVerify(a), b))
	roundTrip(t, newAndB(a, newAlt(b)))
	roundTrip(t, newOrB(a, newAlt(b)))
	roundTrip(t, newOrC(a, newVerify(b)))
	roundTrip(t, newOrD(a, b))
	roundTrip(t, newOrI(a, b))
	roundTrip(t, newAndOr(a, b, c))
	roundTrip(t, newThresh(2, []*Node{a, b, c}))
	roundTrip(t, newMulti(2, []Key{k1, k2, k3}))
}

func TestParseRejectsNonMinimalPush(t *testing.T) {
	// A direct OP_PUSHDATA1 of a 20-byte hash is never minimal.
	script := []byte{0x4c, 0x14}
	script = append(script, make([]byte, 20)...)
	_, err := Lex(script)
	require.Error(t, err)
}

func TestParseRejectsTrailingTokens(t *testing.T) {
	k := testKey(t, 6)
	script, err := newCheck(newPkK(k)).ToScript()
	require.NoError(t, err)
	script = append(script, 0x51) // stray OP_1
	_, err = FromScript(script)
	require.Error(t, err)
}

func TestLexRejectsNonMinimalVerify(t *testing.T) {
	// OP_EQUAL followed by a standalone OP_VERIFY must be rejected: the
	// combined OP_EQUALVERIFY opcode exists and is the only minimal encoding.
	_, err := Lex([]byte{txscript.OP_EQUAL, txscript.OP_VERIFY})
	require.Error(t, err)

	_, err = Lex([]byte{txscript.OP_CHECKSIG, txscript.OP_VERIFY})
	require.Error(t, err)

	_, err = Lex([]byte{txscript.OP_CHECKMULTISIG, txscript.OP_VERIFY})
	require.Error(t, err)

	// The combined opcode itself is fine.
	_, err = Lex([]byte{txscript.OP_EQUALVERIFY})
	require.NoError(t, err)
}
