package satisfy

import "github.com/tobin-crypto/rust-miniscript-doge/miniscript"

// Satisfaction is a candidate witness for a fragment together with whether
// building it needed a signature. HasSig matters because a fragment with no
// signature in its witness can be rewritten by anyone observing it on the
// network (there's nothing authenticating the chosen branch) — the
// non-malleable policy uses it to tell which choices a third party could
// also make, and so which results it must not return.
type Satisfaction struct {
	Stack  Witness
	HasSig bool
}

// minimum picks between two satisfactions for an OR-like combinator under
// the non-malleable policy: an Impossible side is never chosen. Between two
// possible sides, if exactly one is signatureless that one is chosen (a
// third party could always produce it, so the signer must pick it too); if
// both are signatureless the result is Unavailable, since a third party
// could swap one for the other; if both carry a signature the cheaper wins.
func minimum(sat1, sat2 Satisfaction) Satisfaction {
	if sat1.Stack.Kind == WitnessImpossible {
		return sat2
	}
	if sat2.Stack.Kind == WitnessImpossible {
		return sat1
	}
	switch {
	case !sat1.HasSig && !sat2.HasSig:
		return Satisfaction{Stack: witnessUnavailable}
	case !sat1.HasSig:
		return Satisfaction{Stack: sat1.Stack}
	case !sat2.HasSig:
		return Satisfaction{Stack: sat2.Stack}
	default:
		return Satisfaction{Stack: minWitness(sat1.Stack, sat2.Stack), HasSig: true}
	}
}

// minimumMall is minimum's malleable counterpart: it only cares about cost,
// picking whichever side is cheaper regardless of who can rewrite it later.
func minimumMall(sat1, sat2 Satisfaction) Satisfaction {
	if sat1.Stack.Kind == WitnessImpossible || sat1.Stack.Kind == WitnessUnavailable {
		return sat2
	}
	if sat2.Stack.Kind == WitnessImpossible || sat2.Stack.Kind == WitnessUnavailable {
		return sat1
	}
	return Satisfaction{Stack: minWitness(sat1.Stack, sat2.Stack), HasSig: sat1.HasSig && sat2.HasSig}
}

// planner threads a single Satisfier, the malleability policy and a
// precomputed "does this whole fragment ever need a signature" flag through
// a recursive descent of the Miniscript tree. rootHasSig gates a bare
// timelock's satisfaction when the lock is not met: if nothing in the
// fragment ever signs,
// failing to meet the timelock yet is merely Unavailable (a later spend
// might meet it); if a sibling branch does sign, the same failure is
// Impossible, since a signed transaction can't retroactively change its own
// locktime.
type planner struct {
	satisfier  Satisfier
	rootHasSig bool
	malleable  bool
}

func containsSignature(n *miniscript.Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case miniscript.KindPkK, miniscript.KindPkH, miniscript.KindMulti:
		return true
	}
	for _, c := range [...]*miniscript.Node{n.Sub, n.L, n.R, n.A, n.B, n.C} {
		if containsSignature(c) {
			return true
		}
	}
	for _, c := range n.Subs {
		if containsSignature(c) {
			return true
		}
	}
	return false
}

// Satisfy builds the smallest non-malleable witness for n: wherever a third
// party who can't sign could swap in a different valid branch, the result is
// Unavailable rather than a malleable witness.
func Satisfy(n *miniscript.Node, stfr Satisfier) Satisfaction {
	p := &planner{satisfier: stfr, rootHasSig: containsSignature(n)}
	return p.satisfy(n)
}

// SatisfyMalleable builds the smallest witness for n regardless of whether
// the result could later be replaced by an equally valid, differently
// shaped witness from a third party. It can be smaller than Satisfy's
// result but must never be used to build a transaction that will be
// broadcast before it confirms.
func SatisfyMalleable(n *miniscript.Node, stfr Satisfier) Satisfaction {
	p := &planner{satisfier: stfr, rootHasSig: containsSignature(n), malleable: true}
	return p.satisfy(n)
}

func (p *planner) minimum(a, b Satisfaction) Satisfaction {
	if p.malleable {
		return minimumMall(a, b)
	}
	return minimum(a, b)
}

func (p *planner) thresh(k int, subs []*miniscript.Node) Satisfaction {
	if p.malleable {
		return p.threshMalleable(k, subs)
	}
	return p.threshNonMalleable(k, subs)
}

func (p *planner) timelock(met bool) Satisfaction {
	if met {
		return Satisfaction{Stack: emptyWitness()}
	}
	if p.rootHasSig {
		return Satisfaction{Stack: witnessImpossible}
	}
	log.Debugf("timelock not yet met, falling back to unavailable")
	return Satisfaction{Stack: witnessUnavailable}
}

func (p *planner) satisfy(n *miniscript.Node) Satisfaction {
	switch n.Kind {
	case miniscript.KindTrue:
		return Satisfaction{Stack: emptyWitness()}
	case miniscript.KindFalse:
		return Satisfaction{Stack: witnessImpossible}
	case miniscript.KindPkK:
		return Satisfaction{Stack: signatureWitness(p.satisfier, n.Pk), HasSig: true}
	case miniscript.KindPkH:
		return Satisfaction{Stack: pkhSignatureWitness(p.satisfier, n.PkHash), HasSig: true}
	case miniscript.KindAfter:
		return p.timelock(p.satisfier.CheckAfter(n.Locktime))
	case miniscript.KindOlder:
		return p.timelock(p.satisfier.CheckOlder(n.Locktime))
	case miniscript.KindSha256:
		return Satisfaction{Stack: sha256PreimageWitness(p.satisfier, n.Hash32)}
	case miniscript.KindHash256:
		return Satisfaction{Stack: hash256PreimageWitness(p.satisfier, n.Hash32)}
	case miniscript.KindRipemd160:
		return Satisfaction{Stack: ripemd160PreimageWitness(p.satisfier, n.Hash20)}
	case miniscript.KindHash160:
		return Satisfaction{Stack: hash160PreimageWitness(p.satisfier, n.Hash20)}

	case miniscript.KindAlt, miniscript.KindSwap, miniscript.KindCheck,
		miniscript.KindVerify, miniscript.KindNonZero, miniscript.KindZeroNotEqual:
		return p.satisfy(n.Sub)

	case miniscript.KindDupIf:
		sat := p.satisfy(n.Sub)
		return Satisfaction{Stack: combineWitness(sat.Stack, push1Witness()), HasSig: sat.HasSig}

	case miniscript.KindAndV, miniscript.KindAndB:
		l := p.satisfy(n.L)
		r := p.satisfy(n.R)
		return Satisfaction{Stack: combineWitness(r.Stack, l.Stack), HasSig: l.HasSig || r.HasSig}

	case miniscript.KindOrB:
		l := p.satisfy(n.L)
		r := p.satisfy(n.R)
		lNsat := p.dissatisfy(n.L)
		rNsat := p.dissatisfy(n.R)
		return p.minimum(
			Satisfaction{Stack: combineWitness(r.Stack, lNsat.Stack), HasSig: r.HasSig},
			Satisfaction{Stack: combineWitness(rNsat.Stack, l.Stack), HasSig: l.HasSig},
		)

	case miniscript.KindOrC, miniscript.KindOrD:
		l := p.satisfy(n.L)
		r := p.satisfy(n.R)
		lNsat := p.dissatisfy(n.L)
		return p.minimum(
			l,
			Satisfaction{Stack: combineWitness(r.Stack, lNsat.Stack), HasSig: r.HasSig},
		)

	case miniscript.KindOrI:
		l := p.satisfy(n.L)
		r := p.satisfy(n.R)
		return p.minimum(
			Satisfaction{Stack: combineWitness(l.Stack, push1Witness()), HasSig: l.HasSig},
			Satisfaction{Stack: combineWitness(r.Stack, push0Witness()), HasSig: r.HasSig},
		)

	case miniscript.KindAndOr:
		aSat := p.satisfy(n.A)
		aNsat := p.dissatisfy(n.A)
		bSat := p.satisfy(n.B)
		cSat := p.satisfy(n.C)
		return p.minimum(
			Satisfaction{Stack: combineWitness(bSat.Stack, aSat.Stack), HasSig: aSat.HasSig || bSat.HasSig},
			Satisfaction{Stack: combineWitness(cSat.Stack, aNsat.Stack), HasSig: aNsat.HasSig || cSat.HasSig},
		)

	case miniscript.KindThresh:
		return p.thresh(n.K, n.Subs)
	case miniscript.KindMulti:
		return p.multi(n.K, n.Keys)
	}
	return Satisfaction{Stack: witnessImpossible}
}

func (p *planner) dissatisfy(n *miniscript.Node) Satisfaction {
	switch n.Kind {
	case miniscript.KindFalse:
		return Satisfaction{Stack: emptyWitness()}
	case miniscript.KindPkK:
		return Satisfaction{Stack: push0Witness()}
	case miniscript.KindPkH:
		return Satisfaction{Stack: combineWitness(push0Witness(), pkhPublicKeyWitness(p.satisfier, n.PkHash))}
	case miniscript.KindTrue, miniscript.KindOlder, miniscript.KindAfter, miniscript.KindVerify:
		return Satisfaction{Stack: witnessImpossible}
	case miniscript.KindSha256, miniscript.KindHash256, miniscript.KindRipemd160, miniscript.KindHash160:
		return Satisfaction{Stack: hashDissatisfactionWitness()}

	case miniscript.KindAlt, miniscript.KindSwap, miniscript.KindCheck, miniscript.KindZeroNotEqual:
		return p.dissatisfy(n.Sub)
	case miniscript.KindDupIf, miniscript.KindNonZero:
		return Satisfaction{Stack: push0Witness()}

	case miniscript.KindAndV:
		vSat := p.satisfy(n.L)
		oDissat := p.dissatisfy(n.R)
		return Satisfaction{Stack: combineWitness(oDissat.Stack, vSat.Stack), HasSig: vSat.HasSig || oDissat.HasSig}

	case miniscript.KindAndB, miniscript.KindOrB, miniscript.KindOrD:
		lNsat := p.dissatisfy(n.L)
		rNsat := p.dissatisfy(n.R)
		return Satisfaction{Stack: combineWitness(rNsat.Stack, lNsat.Stack), HasSig: rNsat.HasSig || lNsat.HasSig}

	case miniscript.KindAndOr:
		lNsat := p.dissatisfy(n.A)
		rNsat := p.dissatisfy(n.C)
		return Satisfaction{Stack: combineWitness(rNsat.Stack, lNsat.Stack), HasSig: rNsat.HasSig || lNsat.HasSig}

	case miniscript.KindOrC:
		return Satisfaction{Stack: witnessImpossible}

	case miniscript.KindOrI:
		lNsat := p.dissatisfy(n.L)
		rNsat := p.dissatisfy(n.R)
		return p.minimum(
			Satisfaction{Stack: combineWitness(lNsat.Stack, push1Witness()), HasSig: lNsat.HasSig},
			Satisfaction{Stack: combineWitness(rNsat.Stack, push0Witness()), HasSig: rNsat.HasSig},
		)

	case miniscript.KindThresh:
		stack := emptyWitness()
		for _, sub := range n.Subs {
			nsat := p.dissatisfy(sub)
			stack = combineWitness(nsat.Stack, stack)
		}
		return Satisfaction{Stack: stack}

	case miniscript.KindMulti:
		pushes := make([][]byte, n.K+1)
		for i := range pushes {
			pushes[i] = []byte{}
		}
		return Satisfaction{Stack: Witness{Kind: WitnessAvailable, Stack: pushes}}
	}
	return Satisfaction{Stack: witnessImpossible}
}

// multi implements the cheapest-k CHECKMULTISIG rule: collect every key's
// signature this Satisfier can produce, and if that covers at least k of
// them, keep only the k cheapest (shortest DER) and omit the rest from the
// witness entirely — an omitted candidate contributes no stack item at all,
// it doesn't become an empty push, since CHECKMULTISIG only ever looks at
// exactly k signature pushes.
func (p *planner) multi(k int, keys []miniscript.Key) Satisfaction {
	var sigs [][]byte
	for _, pk := range keys {
		w := signatureWitness(p.satisfier, pk)
		if w.Kind == WitnessAvailable {
			sigs = append(sigs, w.Stack[0])
		}
	}
	if len(sigs) < k {
		log.Debugf("multi: have %d of %d required signatures, unsatisfiable", len(sigs), k)
		return Satisfaction{Stack: witnessImpossible}
	}
	drop := len(sigs) - k
	included := make([]bool, len(sigs))
	for i := range included {
		included[i] = true
	}
	for i := 0; i < drop; i++ {
		maxIdx := -1
		maxLen := -1
		for j, sig := range sigs {
			if included[j] && len(sig) >= maxLen {
				maxLen = len(sig)
				maxIdx = j
			}
		}
		included[maxIdx] = false
	}
	stack := [][]byte{{}} // the CHECKMULTISIG null dummy
	for i, sig := range sigs {
		if included[i] {
			stack = append(stack, sig)
		}
	}
	return Satisfaction{Stack: Witness{Kind: WitnessAvailable, Stack: stack}, HasSig: true}
}
