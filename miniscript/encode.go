package miniscript

import (
	"github.com/btcsuite/btcd/txscript"
)

// ToScript re-encodes a Node tree back into its canonical Bitcoin Script
// form. Parsing and encoding are inverses: FromScript(n.ToScript()) always
// reproduces a tree equal to n, since every fragment has exactly one
// encoding.
func (n *Node) ToScript() ([]byte, error) {
	b := txscript.NewScriptBuilder()
	if err := n.encode(b); err != nil {
		return nil, err
	}
	return b.Script()
}

func (n *Node) encode(b *txscript.ScriptBuilder) error {
	switch n.Kind {
	case KindTrue:
		b.AddOp(txscript.OP_1)
	case KindFalse:
		b.AddOp(txscript.OP_0)
	case KindPkK:
		b.AddData(n.Pk.Bytes())
	case KindPkH:
		b.AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160)
		b.AddData(n.PkHash[:])
		b.AddOp(txscript.OP_EQUALVERIFY)
	case KindAfter:
		b.AddInt64(int64(n.Locktime))
		b.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	case KindOlder:
		b.AddInt64(int64(n.Locktime))
		b.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	case KindSha256:
		encodeHashlock(b, txscript.OP_SHA256, n.Hash32[:])
	case KindHash256:
		encodeHashlock(b, txscript.OP_HASH256, n.Hash32[:])
	case KindRipemd160:
		encodeHashlock(b, txscript.OP_RIPEMD160, n.Hash20[:])
	case KindHash160:
		encodeHashlock(b, txscript.OP_HASH160, n.Hash20[:])
	case KindAlt:
		b.AddOp(txscript.OP_TOALTSTACK)
		if err := n.Sub.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_FROMALTSTACK)
	case KindSwap:
		b.AddOp(txscript.OP_SWAP)
		if err := n.Sub.encode(b); err != nil {
			return err
		}
	case KindCheck:
		if err := n.Sub.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_CHECKSIG)
	case KindDupIf:
		b.AddOp(txscript.OP_DUP).AddOp(txscript.OP_IF)
		if err := n.Sub.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)
	case KindVerify:
		if err := n.Sub.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_VERIFY)
	case KindNonZero:
		b.AddOp(txscript.OP_SIZE).AddOp(txscript.OP_0NOTEQUAL).AddOp(txscript.OP_IF)
		if err := n.Sub.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)
	case KindZeroNotEqual:
		if err := n.Sub.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_0NOTEQUAL)
	case KindAndV:
		if err := n.L.encode(b); err != nil {
			return err
		}
		if err := n.R.encode(b); err != nil {
			return err
		}
	case KindAndB:
		if err := n.L.encode(b); err != nil {
			return err
		}
		if err := n.R.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_BOOLAND)
	case KindOrB:
		if err := n.L.encode(b); err != nil {
			return err
		}
		if err := n.R.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_BOOLOR)
	case KindOrC:
		if err := n.L.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_NOTIF)
		if err := n.R.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)
	case KindOrD:
		if err := n.L.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_IFDUP).AddOp(txscript.OP_NOTIF)
		if err := n.R.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)
	case KindOrI:
		b.AddOp(txscript.OP_IF)
		if err := n.L.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ELSE)
		if err := n.R.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)
	case KindAndOr:
		if err := n.A.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_NOTIF)
		if err := n.C.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ELSE)
		if err := n.B.encode(b); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)
	case KindThresh:
		for i, sub := range n.Subs {
			if err := sub.encode(b); err != nil {
				return err
			}
			if i > 0 {
				b.AddOp(txscript.OP_ADD)
			}
		}
		b.AddInt64(int64(n.K))
		b.AddOp(txscript.OP_EQUAL)
	case KindMulti:
		b.AddInt64(int64(n.K))
		for _, k := range n.Keys {
			b.AddData(k.Bytes())
		}
		b.AddInt64(int64(len(n.Keys)))
		b.AddOp(txscript.OP_CHECKMULTISIG)
	}
	return nil
}

func encodeHashlock(b *txscript.ScriptBuilder, op byte, hash []byte) {
	b.AddOp(txscript.OP_SIZE).AddInt64(32).AddOp(txscript.OP_EQUALVERIFY)
	b.AddOp(op)
	b.AddData(hash)
	b.AddOp(txscript.OP_EQUAL)
}
