package interpreter

import (
	"encoding/hex"
	"fmt"

	"github.com/tobin-crypto/rust-miniscript-doge/miniscript"
	"github.com/tobin-crypto/rust-miniscript-doge/spend"
)

// InferredDescriptorString reconstructs the output descriptor the recovered
// context corresponds to. For the four key-only contexts the signing public
// key is read back out of the witness/scriptSig where possible; legacy
// Pkh without a full witness falls back to printing the key hash.
func InferredDescriptorString(ctx *spend.Context) string {
	switch ctx.Kind {
	case spend.Pk:
		return fmt.Sprintf("pk(%s)", hex.EncodeToString(ctx.Key.Bytes()))
	case spend.Pkh:
		if key, ok := recoverPkhKey(ctx); ok {
			return fmt.Sprintf("pkh(%s)", hex.EncodeToString(key.Bytes()))
		}
		return fmt.Sprintf("pkh(%s)", hex.EncodeToString(ctx.KeyHash[:]))
	case spend.Wpkh:
		return fmt.Sprintf("wpkh(%s)", hex.EncodeToString(ctx.Key.Bytes()))
	case spend.ShWpkh:
		return fmt.Sprintf("sh(wpkh(%s))", hex.EncodeToString(ctx.Key.Bytes()))
	case spend.Bare:
		return ctx.Node.String()
	case spend.Sh:
		return fmt.Sprintf("sh(%s)", ctx.Node.String())
	case spend.Wsh:
		return fmt.Sprintf("wsh(%s)", ctx.Node.String())
	case spend.ShWsh:
		return fmt.Sprintf("sh(wsh(%s))", ctx.Node.String())
	default:
		return ""
	}
}

func recoverPkhKey(ctx *spend.Context) (miniscript.Key, bool) {
	if len(ctx.Stack) < 2 {
		return miniscript.Key{}, false
	}
	key, err := miniscript.ParseKey(ctx.Stack[len(ctx.Stack)-1])
	if err != nil {
		return miniscript.Key{}, false
	}
	return key, true
}
