package miniscript

// ScriptContext distinguishes the two script dialects Miniscript targets.
// The AST itself is context-agnostic; the context only affects which keys
// are acceptable and what descriptor top-level wrapping is legal.
type ScriptContext int

const (
	// Legacy covers bare, P2PKH and P2SH spends: both compressed and
	// uncompressed public keys are acceptable.
	Legacy ScriptContext = iota
	// Segwitv0 covers P2WPKH, P2WSH and their P2SH-wrapped forms:
	// uncompressed public keys are non-standard and rejected.
	Segwitv0
)

// CheckKeys walks the tree and rejects uncompressed public keys when ctx
// forbids them.
func (n *Node) CheckKeys(ctx ScriptContext) error {
	if ctx != Segwitv0 {
		return nil
	}
	return n.checkCompressed()
}

func (n *Node) checkCompressed() error {
	if n == nil {
		return nil
	}
	if n.Kind == KindPkK && !n.Pk.Compressed {
		return errf("uncompressed public key in a segwit v0 context")
	}
	if n.Kind == KindMulti {
		for _, k := range n.Keys {
			if !k.Compressed {
				return errf("uncompressed public key in a segwit v0 context")
			}
		}
	}
	for _, c := range []*Node{n.Sub, n.L, n.R, n.A, n.B, n.C} {
		if err := c.checkCompressed(); err != nil {
			return err
		}
	}
	for _, c := range n.Subs {
		if err := c.checkCompressed(); err != nil {
			return err
		}
	}
	return nil
}
