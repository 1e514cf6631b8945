package satisfy

import (
	"sort"

	"github.com/tobin-crypto/rust-miniscript-doge/miniscript"
)

// threshNonMalleable picks which k of n sub-fragments to satisfy so the
// overall witness is both minimal and non-malleable. Candidates are ranked
// ascending by (isImpossible, hasSig, extraCost): fragments that can never
// be satisfied sort last; among the rest, every signatureless fragment ranks
// ahead of every signed one, and cost only orders fragments within those two
// groups. If the k-th candidate chosen is impossible the whole threshold is
// Impossible; if the (k+1)-th candidate is satisfiable without a signature,
// a third party could swap it in, so the result is Unavailable.
func (p *planner) threshNonMalleable(k int, subs []*miniscript.Node) Satisfaction {
	n := len(subs)
	sats := make([]Satisfaction, n)
	dsats := make([]Satisfaction, n)
	for i, s := range subs {
		sats[i] = p.satisfy(s)
		dsats[i] = p.dissatisfy(s)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		impA := sats[ia].Stack.Kind == WitnessImpossible
		impB := sats[ib].Stack.Kind == WitnessImpossible
		if impA != impB {
			return impB
		}
		if sats[ia].HasSig != sats[ib].HasSig {
			return sats[ib].HasSig
		}
		return stackWeight(sats[ia].Stack, dsats[ia].Stack) < stackWeight(sats[ib].Stack, dsats[ib].Stack)
	})

	ret := make([]Satisfaction, n)
	copy(ret, dsats)
	for i := 0; i < k; i++ {
		ret[idx[i]], sats[idx[i]] = sats[idx[i]], ret[idx[i]]
	}

	if ret[idx[k-1]].Stack.Kind == WitnessImpossible {
		return Satisfaction{Stack: witnessImpossible}
	}
	if k < n && !sats[idx[k]].HasSig && sats[idx[k]].Stack.Kind != WitnessImpossible {
		return Satisfaction{Stack: witnessUnavailable}
	}

	return foldThresh(ret)
}

// threshMalleable drops the non-malleability guard entirely and just picks
// the k cheapest candidates.
func (p *planner) threshMalleable(k int, subs []*miniscript.Node) Satisfaction {
	n := len(subs)
	sats := make([]Satisfaction, n)
	dsats := make([]Satisfaction, n)
	for i, s := range subs {
		sats[i] = p.satisfy(s)
		dsats[i] = p.dissatisfy(s)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		return stackWeight(sats[ia].Stack, dsats[ia].Stack) < stackWeight(sats[ib].Stack, dsats[ib].Stack)
	})

	ret := make([]Satisfaction, n)
	copy(ret, dsats)
	for i := 0; i < k; i++ {
		ret[idx[i]], sats[idx[i]] = sats[idx[i]], ret[idx[i]]
	}

	return foldThresh(ret)
}

// foldThresh concatenates each sub-fragment's chosen (dis)satisfaction in
// reverse index order, matching how a Thresh script consumes the witness
// segment it was given: the last sub-fragment pushed is the first it pops.
func foldThresh(ret []Satisfaction) Satisfaction {
	stack := emptyWitness()
	hasSig := false
	for i := range ret {
		stack = combineWitness(ret[i].Stack, stack)
		if ret[i].HasSig {
			hasSig = true
		}
	}
	return Satisfaction{Stack: stack, HasSig: hasSig}
}
