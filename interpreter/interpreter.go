// Package interpreter walks a recovered spending context's Miniscript AST
// against a witness stack, yielding the sequence of primitives ("public key
// signature checked", "hashlock opened", "timelock matured"...) that the
// script's execution actually depended on.
package interpreter

import (
	"github.com/tobin-crypto/rust-miniscript-doge/miniscript"
	"github.com/tobin-crypto/rust-miniscript-doge/spend"
	"github.com/tobin-crypto/rust-miniscript-doge/stack"
)

// Verifier is re-exported so callers never need to import the stack package
// directly just to build one.
type Verifier = stack.Verifier

// Error is re-exported; it is the single error type both the stack primitive
// evaluators and the interpreter's own checks return.
type Error = stack.Error

// Constraint is re-exported; see stack.Constraint for field meanings.
type Constraint = stack.Constraint

// evalFrame is one entry of the interpreter's explicit evaluation stack: the
// node currently being visited, plus how many of its children have already
// been evaluated (n_evaluated) and how many of those evaluated satisfied
// (n_satisfied). A node that needs to inspect its children's results pushes
// itself back with an updated frame before pushing the child it needs next,
// so the same node is revisited once per child instead of via a Go call
// frame. This is what lets evaluation proceed without recursing: an AST of
// any depth is driven by this slice, never by the Go stack.
type evalFrame struct {
	node       *miniscript.Node
	nEvaluated int
	nSatisfied int
}

// Interpreter drives one evaluation of a recovered spending Context against
// its witness. Build with New, then drain SatisfiedConstraints (or call Next
// to step through it one constraint at a time).
type Interpreter struct {
	ctx    *spend.Context
	verify Verifier
	age    uint32
	height uint32

	st     stack.Stack
	frames []evalFrame

	started  bool
	finished bool
	keyDone  bool
}

// New prepares an interpreter for ctx. age is the committed absolute-locktime
// value (nLockTime) that after() fragments are compared against, and height
// the committed relative-locktime value (nSequence) that older() fragments
// are compared against.
func New(ctx *spend.Context, verify Verifier, age, height uint32) (*Interpreter, error) {
	return &Interpreter{ctx: ctx, verify: verify, age: age, height: height}, nil
}

// IsLegacy reports whether the recovered context is a pre-segwit spend
// (Pk, Pkh, Bare, Sh). Segwit contexts (Wpkh, ShWpkh, Wsh, ShWsh) return false.
func (ip *Interpreter) IsLegacy() bool {
	switch ip.ctx.Kind {
	case spend.Pk, spend.Pkh, spend.Bare, spend.Sh:
		return true
	default:
		return false
	}
}

func (ip *Interpreter) start() {
	ip.st = stack.New(ip.ctx.Stack)
	if !ip.ctx.IsKeyOnly() {
		ip.frames = []evalFrame{{node: ip.ctx.Node}}
	}
}

func (ip *Interpreter) pushFrame(n *miniscript.Node, nEvaluated, nSatisfied int) {
	ip.frames = append(ip.frames, evalFrame{node: n, nEvaluated: nEvaluated, nSatisfied: nSatisfied})
}

// Next advances evaluation by one step and returns the next satisfied
// primitive, or ok=false once the script has finished (successfully or with
// an error). Evaluation only starts on the first call and is driven entirely
// by the explicit frame stack in step: nothing here recurses, so Next can be
// interrupted and resumed indefinitely without ever growing the Go stack,
// regardless of how deep the AST is.
func (ip *Interpreter) Next() (Constraint, bool, error) {
	if ip.finished {
		return Constraint{}, false, nil
	}
	if !ip.started {
		ip.started = true
		ip.start()
	}

	if ip.ctx.IsKeyOnly() {
		return ip.nextKeyOnly()
	}

	for len(ip.frames) > 0 {
		n := len(ip.frames) - 1
		f := ip.frames[n]
		ip.frames = ip.frames[:n]

		c, err := ip.step(f)
		if err != nil {
			ip.finished = true
			return Constraint{}, false, err
		}
		if c != nil {
			return *c, true, nil
		}
	}

	ip.finished = true
	if ip.ctx.Node.Base == miniscript.TypeV {
		return Constraint{}, false, nil
	}
	top, serr := ip.st.Pop()
	if serr != nil || top.Kind != stack.ElemSatisfied || ip.st.Len() != 0 {
		return Constraint{}, false, &Error{Kind: stack.ErrScriptSatisfactionError}
	}
	return Constraint{}, false, nil
}

// nextKeyOnly handles the four bare-key contexts (Pk, Pkh, Wpkh, ShWpkh),
// which have no AST to walk: the interpreter's only remaining step is a
// single evaluate_pk against the recovered key (for Pk) or an evaluate_pkh
// against the recovered key hash (for Pkh, Wpkh and ShWpkh, whose stack
// still holds the public key above the signature). Either way the yielded
// constraint is a PublicKey one.
func (ip *Interpreter) nextKeyOnly() (Constraint, bool, error) {
	if ip.keyDone {
		ip.finished = true
		return Constraint{}, false, nil
	}
	ip.keyDone = true
	ip.finished = true
	var c *Constraint
	var err *Error
	if ip.ctx.Kind == spend.Pk {
		c, err = stack.EvaluatePk(ip.ctx.Key, ip.verify, &ip.st)
	} else {
		c, err = stack.EvaluatePkh(ip.ctx.KeyHash, ip.verify, &ip.st)
		if c != nil {
			c.Kind = stack.ConstraintPublicKey
		}
	}
	if err != nil {
		return Constraint{}, false, err
	}
	if c == nil {
		return Constraint{}, false, nil
	}
	return *c, true, nil
}

// SatisfiedConstraints drains Next until the script finishes and returns
// every primitive it yielded, in evaluation order.
func (ip *Interpreter) SatisfiedConstraints() ([]Constraint, error) {
	var out []Constraint
	for {
		c, ok, err := ip.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, c)
	}
}

// step executes a single node visit: leaves consume/produce stack elements
// via the stack package's primitive evaluators; wrappers push their child
// unchanged; combinators either push children in sequence or inspect a
// popped child result to decide what to push next. A node with more than
// one child pushes itself back with an advanced frame before pushing the
// next child, so it gets revisited exactly once per child.
func (ip *Interpreter) step(f evalFrame) (*Constraint, *Error) {
	n := f.node
	log.Tracef("evaluating node kind=%v", n.Kind)
	switch n.Kind {
	case miniscript.KindTrue:
		ip.st.Push(stack.Satisfied)
		return nil, nil
	case miniscript.KindFalse:
		ip.st.Push(stack.Dissatisfied)
		return nil, nil

	case miniscript.KindPkK:
		return stack.EvaluatePk(n.Pk, ip.verify, &ip.st)
	case miniscript.KindPkH:
		return stack.EvaluatePkh(n.PkHash, ip.verify, &ip.st)
	case miniscript.KindSha256:
		return stack.EvaluateHash(stack.HashSha256, n.Hash32[:], &ip.st)
	case miniscript.KindHash256:
		return stack.EvaluateHash(stack.HashHash256, n.Hash32[:], &ip.st)
	case miniscript.KindRipemd160:
		return stack.EvaluateHash(stack.HashRipemd160, n.Hash20[:], &ip.st)
	case miniscript.KindHash160:
		return stack.EvaluateHash(stack.HashHash160, n.Hash20[:], &ip.st)

	case miniscript.KindAfter:
		c, err := stack.EvaluateAfter(n.Locktime, ip.age)
		if err != nil {
			return nil, err
		}
		ip.st.Push(stack.Satisfied)
		return c, nil
	case miniscript.KindOlder:
		c, err := stack.EvaluateOlder(n.Locktime, ip.height)
		if err != nil {
			return nil, err
		}
		ip.st.Push(stack.Satisfied)
		return c, nil

	case miniscript.KindAlt, miniscript.KindSwap, miniscript.KindCheck:
		ip.pushFrame(n.Sub, 0, 0)
		return nil, nil

	case miniscript.KindDupIf:
		return ip.stepDupIf(n, f)
	case miniscript.KindZeroNotEqual:
		return ip.stepZeroNotEqual(n, f)
	case miniscript.KindVerify:
		return ip.stepVerify(n, f)
	case miniscript.KindNonZero:
		return ip.stepNonZero(n)

	case miniscript.KindAndV:
		ip.pushFrame(n.R, 0, 0)
		ip.pushFrame(n.L, 0, 0)
		return nil, nil

	case miniscript.KindAndB:
		return ip.stepAndB(n, f)
	case miniscript.KindOrB:
		return ip.stepOrB(n, f)
	case miniscript.KindOrC:
		return ip.stepOrC(n, f)
	case miniscript.KindOrD:
		return ip.stepOrD(n, f)
	case miniscript.KindOrI:
		return ip.stepOrI(n)
	case miniscript.KindAndOr:
		return ip.stepAndOr(n, f)

	case miniscript.KindThresh:
		return ip.stepThresh(n, f)
	case miniscript.KindMulti:
		return ip.stepMulti(n, f)
	}

	return nil, &Error{Kind: stack.ErrCouldNotEvaluate}
}

func (ip *Interpreter) stepDupIf(n *miniscript.Node, f evalFrame) (*Constraint, *Error) {
	if f.nEvaluated == 0 {
		top, err := ip.st.Pop()
		if err != nil {
			return nil, err
		}
		switch top.Kind {
		case stack.ElemDissatisfied:
			ip.st.Push(stack.Dissatisfied)
		case stack.ElemSatisfied:
			ip.pushFrame(n, 1, 1)
			ip.pushFrame(n.Sub, 0, 0)
		default:
			return nil, &Error{Kind: stack.ErrUnexpectedStackElementPush}
		}
		return nil, nil
	}
	ip.st.Push(stack.Satisfied)
	return nil, nil
}

func (ip *Interpreter) stepZeroNotEqual(n *miniscript.Node, f evalFrame) (*Constraint, *Error) {
	if f.nEvaluated == 0 {
		ip.pushFrame(n, 1, 0)
		ip.pushFrame(n.Sub, 0, 0)
		return nil, nil
	}
	top, err := ip.st.Pop()
	if err != nil {
		return nil, err
	}
	if top.Kind == stack.ElemDissatisfied {
		ip.st.Push(stack.Dissatisfied)
	} else {
		ip.st.Push(stack.Satisfied)
	}
	return nil, nil
}

func (ip *Interpreter) stepVerify(n *miniscript.Node, f evalFrame) (*Constraint, *Error) {
	if f.nEvaluated == 0 {
		ip.pushFrame(n, 1, 0)
		ip.pushFrame(n.Sub, 0, 0)
		return nil, nil
	}
	top, err := ip.st.Pop()
	if err != nil {
		return nil, err
	}
	if top.Kind != stack.ElemSatisfied {
		return nil, &Error{Kind: stack.ErrVerifyFailed}
	}
	return nil, nil
}

// stepNonZero only peeks at the top element: a dissatisfied top is left in
// place unconsumed (it is the fragment's own result), otherwise the child is
// evaluated and will itself pop it when it needs to.
func (ip *Interpreter) stepNonZero(n *miniscript.Node) (*Constraint, *Error) {
	top, err := ip.st.Last()
	if err != nil {
		return nil, err
	}
	if top.Kind != stack.ElemDissatisfied {
		ip.pushFrame(n.Sub, 0, 0)
	}
	return nil, nil
}

func (ip *Interpreter) stepAndB(n *miniscript.Node, f evalFrame) (*Constraint, *Error) {
	switch f.nEvaluated {
	case 0:
		ip.pushFrame(n, 1, 0)
		ip.pushFrame(n.L, 0, 0)
		return nil, nil
	case 1:
		top, err := ip.st.Pop()
		if err != nil {
			return nil, err
		}
		switch top.Kind {
		case stack.ElemDissatisfied:
			ip.pushFrame(n, 2, 0)
		case stack.ElemSatisfied:
			ip.pushFrame(n, 2, 1)
		default:
			return nil, &Error{Kind: stack.ErrUnexpectedStackElementPush}
		}
		ip.pushFrame(n.R, 0, 0)
		return nil, nil
	default:
		top, err := ip.st.Pop()
		if err != nil {
			return nil, err
		}
		if top.Kind == stack.ElemSatisfied && f.nSatisfied == 1 {
			ip.st.Push(stack.Satisfied)
		} else {
			ip.st.Push(stack.Dissatisfied)
		}
		return nil, nil
	}
}

func (ip *Interpreter) stepOrB(n *miniscript.Node, f evalFrame) (*Constraint, *Error) {
	switch f.nEvaluated {
	case 0:
		ip.pushFrame(n, 1, 0)
		ip.pushFrame(n.L, 0, 0)
		return nil, nil
	case 1:
		top, err := ip.st.Pop()
		if err != nil {
			return nil, err
		}
		switch top.Kind {
		case stack.ElemDissatisfied:
			ip.pushFrame(n, 2, 0)
		case stack.ElemSatisfied:
			ip.pushFrame(n, 2, 1)
		default:
			return nil, &Error{Kind: stack.ErrUnexpectedStackElementPush}
		}
		ip.pushFrame(n.R, 0, 0)
		return nil, nil
	default:
		top, err := ip.st.Pop()
		if err != nil {
			return nil, err
		}
		if top.Kind == stack.ElemDissatisfied && f.nSatisfied == 0 {
			ip.st.Push(stack.Dissatisfied)
		} else {
			ip.st.Push(stack.Satisfied)
		}
		return nil, nil
	}
}

func (ip *Interpreter) stepOrC(n *miniscript.Node, f evalFrame) (*Constraint, *Error) {
	if f.nEvaluated == 0 {
		ip.pushFrame(n, 1, 0)
		ip.pushFrame(n.L, 0, 0)
		return nil, nil
	}
	top, err := ip.st.Pop()
	if err != nil {
		return nil, err
	}
	switch top.Kind {
	case stack.ElemSatisfied:
		// The left branch's own push already stands as or_c's result.
	case stack.ElemDissatisfied:
		ip.pushFrame(n.R, 0, 0)
	default:
		return nil, &Error{Kind: stack.ErrUnexpectedStackElementPush}
	}
	return nil, nil
}

func (ip *Interpreter) stepOrD(n *miniscript.Node, f evalFrame) (*Constraint, *Error) {
	if f.nEvaluated == 0 {
		ip.pushFrame(n, 1, 0)
		ip.pushFrame(n.L, 0, 0)
		return nil, nil
	}
	top, err := ip.st.Pop()
	if err != nil {
		return nil, err
	}
	switch top.Kind {
	case stack.ElemSatisfied:
		ip.st.Push(stack.Satisfied)
	case stack.ElemDissatisfied:
		ip.pushFrame(n.R, 0, 0)
	default:
		return nil, &Error{Kind: stack.ErrUnexpectedStackElementPush}
	}
	return nil, nil
}

func (ip *Interpreter) stepOrI(n *miniscript.Node) (*Constraint, *Error) {
	top, err := ip.st.Pop()
	if err != nil {
		return nil, err
	}
	switch top.Kind {
	case stack.ElemSatisfied:
		ip.pushFrame(n.L, 0, 0)
	case stack.ElemDissatisfied:
		ip.pushFrame(n.R, 0, 0)
	default:
		return nil, &Error{Kind: stack.ErrUnexpectedStackElementPush}
	}
	return nil, nil
}

func (ip *Interpreter) stepAndOr(n *miniscript.Node, f evalFrame) (*Constraint, *Error) {
	if f.nEvaluated == 0 {
		ip.pushFrame(n, 1, 0)
		ip.pushFrame(n.A, 0, 0)
		return nil, nil
	}
	top, err := ip.st.Pop()
	if err != nil {
		return nil, err
	}
	switch top.Kind {
	case stack.ElemSatisfied:
		ip.pushFrame(n.B, 0, 0)
	case stack.ElemDissatisfied:
		ip.pushFrame(n.C, 0, 0)
	default:
		return nil, &Error{Kind: stack.ErrUnexpectedStackElementPush}
	}
	return nil, nil
}

func (ip *Interpreter) stepThresh(n *miniscript.Node, f evalFrame) (*Constraint, *Error) {
	subs := n.Subs
	if f.nEvaluated == 0 {
		ip.pushFrame(n, 1, 0)
		ip.pushFrame(subs[0], 0, 0)
		return nil, nil
	}
	if f.nEvaluated == len(subs) {
		top, err := ip.st.Pop()
		if err != nil {
			return nil, err
		}
		switch {
		case top.Kind == stack.ElemDissatisfied && f.nSatisfied == n.K:
			ip.st.Push(stack.Satisfied)
		case top.Kind == stack.ElemSatisfied && f.nSatisfied == n.K-1:
			ip.st.Push(stack.Satisfied)
		case top.Kind == stack.ElemSatisfied || top.Kind == stack.ElemDissatisfied:
			ip.st.Push(stack.Dissatisfied)
		default:
			return nil, &Error{Kind: stack.ErrUnexpectedStackElementPush}
		}
		return nil, nil
	}
	top, err := ip.st.Pop()
	if err != nil {
		return nil, err
	}
	switch top.Kind {
	case stack.ElemDissatisfied:
		ip.pushFrame(n, f.nEvaluated+1, f.nSatisfied)
	case stack.ElemSatisfied:
		ip.pushFrame(n, f.nEvaluated+1, f.nSatisfied+1)
	default:
		return nil, &Error{Kind: stack.ErrUnexpectedStackElementPush}
	}
	ip.pushFrame(subs[f.nEvaluated], 0, 0)
	return nil, nil
}

// stepMulti implements the CHECKMULTISIG "extra zero" rule: the null dummy
// sits at the bottom of the witness segment (k+1 elements total: the dummy
// plus up to k signatures), never the top. On the first visit it peeks the
// segment's top: if every one of the k+1 elements is the dissatisfied tag,
// the whole fragment dissatisfies cleanly; otherwise it greedily matches
// real signatures against keys from the last key backwards, one per visit,
// and only pops/checks the dummy once k signatures have matched.
func (ip *Interpreter) stepMulti(n *miniscript.Node, f evalFrame) (*Constraint, *Error) {
	if f.nEvaluated == 0 {
		if ip.st.Len() < n.K+1 {
			return nil, &Error{Kind: stack.ErrInsufficientSignaturesMultiSig}
		}
		top, err := ip.st.Last()
		if err != nil {
			return nil, err
		}
		if top.Kind == stack.ElemDissatisfied {
			segment, err := ip.st.SplitOff(n.K + 1)
			if err != nil {
				return nil, err
			}
			allDissatisfied := 0
			for _, e := range segment {
				if e.Kind == stack.ElemDissatisfied {
					allDissatisfied++
				}
			}
			if allDissatisfied != n.K+1 {
				return nil, &Error{Kind: stack.ErrMissingExtraZeroMultiSig}
			}
			ip.st.Push(stack.Dissatisfied)
			return nil, nil
		}

		matched, sig, kerr := stack.EvaluateMultiStep(n.Keys[len(n.Keys)-1], ip.verify, &ip.st)
		if kerr != nil {
			return nil, kerr
		}
		if matched {
			ip.pushFrame(n, 1, 1)
			return &Constraint{Kind: stack.ConstraintPublicKey, Pk: n.Keys[len(n.Keys)-1], Sig: sig}, nil
		}
		ip.pushFrame(n, 1, 0)
		return nil, nil
	}

	if f.nSatisfied == n.K {
		dummy, err := ip.st.Pop()
		if err != nil {
			return nil, err
		}
		if dummy.Kind != stack.ElemDissatisfied {
			return nil, &Error{Kind: stack.ErrMissingExtraZeroMultiSig}
		}
		ip.st.Push(stack.Satisfied)
		return nil, nil
	}
	if f.nEvaluated == len(n.Keys) {
		return nil, &Error{Kind: stack.ErrMultiSigEvaluationError}
	}

	keyIdx := len(n.Keys) - f.nEvaluated - 1
	matched, sig, kerr := stack.EvaluateMultiStep(n.Keys[keyIdx], ip.verify, &ip.st)
	if kerr != nil {
		return nil, kerr
	}
	if matched {
		ip.pushFrame(n, f.nEvaluated+1, f.nSatisfied+1)
		return &Constraint{Kind: stack.ConstraintPublicKey, Pk: n.Keys[keyIdx], Sig: sig}, nil
	}
	ip.pushFrame(n, f.nEvaluated+1, f.nSatisfied)
	return nil, nil
}
