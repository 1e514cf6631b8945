package miniscript

// Kind identifies which Miniscript fragment a Node represents.
type Kind int

const (
	KindTrue Kind = iota
	KindFalse
	KindPkK
	KindPkH
	KindAfter
	KindOlder
	KindSha256
	KindHash256
	KindRipemd160
	KindHash160
	KindAlt
	KindSwap
	KindCheck
	KindDupIf
	KindVerify
	KindNonZero
	KindZeroNotEqual
	KindAndV
	KindAndB
	KindOrB
	KindOrC
	KindOrD
	KindOrI
	KindAndOr
	KindThresh
	KindMulti
)

// BaseType is the correctness base type of a fragment: B (base, produces a
// boolean), V (verify, aborts rather than returning false), K (produces a
// key-derived value for a following CHECKSIG) or W (wrapped base type,
// expects one extra stack item beneath it).
type BaseType int

const (
	TypeB BaseType = iota
	TypeV
	TypeK
	TypeW
)

// Node is one fragment of a Miniscript abstract syntax tree. Children are
// plain pointers: Go's garbage collector lets the same subtree be referenced
// from more than one parent (as AndOr's first child is walked twice, once
// for its own satisfaction and once to decide the live branch) without any
// explicit reference counting.
type Node struct {
	Kind Kind
	Base BaseType

	// Wrapper / unary children (Alt, Swap, Check, DupIf, Verify, NonZero,
	// ZeroNotEqual).
	Sub *Node

	// Binary children (AndV, AndB, OrB, OrC, OrD, OrI).
	L, R *Node

	// AndOr children: if A then B else C.
	A, B, C *Node

	// Thresh children and threshold.
	Subs []*Node
	K    int

	// Multi threshold and keys, in script order (as CHECKMULTISIG expects
	// them: pk_0 pushed first).
	Keys []Key

	Pk       Key
	PkHash   [20]byte
	Locktime uint32
	Hash32   [32]byte
	Hash20   [20]byte
}

func leaf(kind Kind, base BaseType) *Node {
	return &Node{Kind: kind, Base: base}
}

func newTrue() *Node  { return leaf(KindTrue, TypeB) }
func newFalse() *Node { return leaf(KindFalse, TypeB) }

func newPkK(k Key) *Node { return &Node{Kind: KindPkK, Base: TypeK, Pk: k} }

func newPkH(h [20]byte) *Node { return &Node{Kind: KindPkH, Base: TypeK, PkHash: h} }

func newAfter(n uint32) *Node  { return &Node{Kind: KindAfter, Base: TypeB, Locktime: n} }
func newOlder(n uint32) *Node  { return &Node{Kind: KindOlder, Base: TypeB, Locktime: n} }
func newSha256(h [32]byte) *Node  { return &Node{Kind: KindSha256, Base: TypeB, Hash32: h} }
func newHash256(h [32]byte) *Node { return &Node{Kind: KindHash256, Base: TypeB, Hash32: h} }
func newRipemd160(h [20]byte) *Node { return &Node{Kind: KindRipemd160, Base: TypeB, Hash20: h} }
func newHash160(h [20]byte) *Node { return &Node{Kind: KindHash160, Base: TypeB, Hash20: h} }

func newAlt(sub *Node) *Node  { return &Node{Kind: KindAlt, Base: TypeW, Sub: sub} }
func newSwap(sub *Node) *Node { return &Node{Kind: KindSwap, Base: TypeW, Sub: sub} }
func newCheck(sub *Node) *Node {
	return &Node{Kind: KindCheck, Base: TypeB, Sub: sub}
}
func newDupIf(sub *Node) *Node { return &Node{Kind: KindDupIf, Base: TypeB, Sub: sub} }
func newVerify(sub *Node) *Node {
	return &Node{Kind: KindVerify, Base: TypeV, Sub: sub}
}
func newNonZero(sub *Node) *Node { return &Node{Kind: KindNonZero, Base: TypeB, Sub: sub} }
func newZeroNotEqual(sub *Node) *Node {
	return &Node{Kind: KindZeroNotEqual, Base: TypeB, Sub: sub}
}

func newAndV(l, r *Node) *Node { return &Node{Kind: KindAndV, Base: r.Base, L: l, R: r} }
func newAndB(l, r *Node) *Node { return &Node{Kind: KindAndB, Base: TypeB, L: l, R: r} }
func newOrB(l, r *Node) *Node  { return &Node{Kind: KindOrB, Base: TypeB, L: l, R: r} }
func newOrC(l, r *Node) *Node  { return &Node{Kind: KindOrC, Base: TypeV, L: l, R: r} }
func newOrD(l, r *Node) *Node  { return &Node{Kind: KindOrD, Base: TypeB, L: l, R: r} }
func newOrI(l, r *Node) *Node  { return &Node{Kind: KindOrI, Base: l.Base, L: l, R: r} }

func newAndOr(a, b, c *Node) *Node {
	return &Node{Kind: KindAndOr, Base: b.Base, A: a, B: b, C: c}
}

func newThresh(k int, subs []*Node) *Node {
	return &Node{Kind: KindThresh, Base: TypeB, K: k, Subs: subs}
}

func newMulti(k int, keys []Key) *Node {
	return &Node{Kind: KindMulti, Base: TypeB, K: k, Keys: keys}
}

// IsTimelock reports whether the node is a raw after()/older() fragment.
func (n *Node) IsTimelock() bool {
	return n.Kind == KindAfter || n.Kind == KindOlder
}
