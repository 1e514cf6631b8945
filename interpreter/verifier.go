package interpreter

import (
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/tobin-crypto/rust-miniscript-doge/miniscript"
	"github.com/tobin-crypto/rust-miniscript-doge/spend"
)

// standardSighashTypes are the only trailing signature bytes a miniscript
// witness element is ever allowed to carry.
var standardSighashTypes = []txscript.SigHashType{
	txscript.SigHashAll,
	txscript.SigHashNone,
	txscript.SigHashSingle,
	txscript.SigHashAll | txscript.SigHashAnyOneCanPay,
	txscript.SigHashNone | txscript.SigHashAnyOneCanPay,
	txscript.SigHashSingle | txscript.SigHashAnyOneCanPay,
}

// PrecomputedVerifier builds a Verifier that precomputes the sighash message
// for every standard sighash flag once and dispatches to the matching one by
// trailing byte on each call, so a multi-signature or threshold script's
// repeated signature checks against the same transaction only hash it once
// per flag.
func PrecomputedVerifier(ctx *spend.Context, tx *wire.MsgTx, idx int, amount int64) (Verifier, error) {
	msgs := make(map[byte][]byte, len(standardSighashTypes))

	scriptCode := ctx.ScriptCode()
	segwit := ctx.IsSegwit()

	var hashCache *txscript.TxSigHashes
	if segwit {
		hashCache = txscript.NewTxSigHashes(tx)
	}

	for _, ht := range standardSighashTypes {
		var (
			msg []byte
			err error
		)
		if segwit {
			msg, err = txscript.CalcWitnessSigHash(scriptCode, hashCache, ht, tx, idx, amount)
		} else {
			msg, err = txscript.CalcSignatureHash(scriptCode, ht, tx, idx)
		}
		if err != nil {
			return nil, err
		}
		msgs[byte(ht)] = msg
	}

	return func(pk miniscript.Key, derSig []byte, sighashByte byte) bool {
		msg, ok := msgs[sighashByte]
		if !ok {
			return false
		}
		sig, err := ecdsa.ParseDERSignature(derSig)
		if err != nil {
			return false
		}
		return sig.Verify(msg, pk.PubKey)
	}, nil
}
