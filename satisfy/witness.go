package satisfy

// WitnessKind is the tri-state outcome of attempting to build a witness
// segment for a single Miniscript fragment.
type WitnessKind int

const (
	// WitnessAvailable means Stack holds the actual items to push.
	WitnessAvailable WitnessKind = iota
	// WitnessUnavailable means some other signer could produce a witness
	// for this fragment (e.g. they hold the private key or preimage) but
	// this Satisfier does not; a higher combinator may still work around
	// it by picking a sibling branch.
	WitnessUnavailable
	// WitnessImpossible means no witness can ever satisfy the fragment,
	// e.g. a timelock the transaction does not and never will meet.
	WitnessImpossible
)

// Witness is the result of satisfying or dissatisfying one fragment: either
// the stack items to push, or a reason none exist yet (Unavailable) or ever
// will (Impossible).
type Witness struct {
	Kind  WitnessKind
	Stack [][]byte
}

var (
	witnessImpossible  = Witness{Kind: WitnessImpossible}
	witnessUnavailable = Witness{Kind: WitnessUnavailable}
)

func emptyWitness() Witness { return Witness{Kind: WitnessAvailable} }

func push1Witness() Witness { return Witness{Kind: WitnessAvailable, Stack: [][]byte{{0x01}}} }

func push0Witness() Witness { return Witness{Kind: WitnessAvailable, Stack: [][]byte{{}}} }

// hashDissatisfactionWitness pushes a 32-byte value guaranteed not to hash to
// any real target, used to dissatisfy a hash-lock fragment.
func hashDissatisfactionWitness() Witness {
	return Witness{Kind: WitnessAvailable, Stack: [][]byte{make([]byte, 32)}}
}

// combineWitness concatenates two available witnesses (one's items first,
// then two's), propagating Impossible over Unavailable over anything
// available: a combinator can't produce a stack if either half can't.
func combineWitness(one, two Witness) Witness {
	if one.Kind == WitnessImpossible || two.Kind == WitnessImpossible {
		return witnessImpossible
	}
	if one.Kind == WitnessUnavailable || two.Kind == WitnessUnavailable {
		return witnessUnavailable
	}
	out := make([][]byte, 0, len(one.Stack)+len(two.Stack))
	out = append(out, one.Stack...)
	out = append(out, two.Stack...)
	return Witness{Kind: WitnessAvailable, Stack: out}
}

// compactSizeLen returns the length of a Bitcoin CompactSize encoding of n.
func compactSizeLen(n int) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// witnessSize is the serialized byte cost of a witness stack: one CompactSize
// length prefix plus the payload, per item. It is the unit the threshold
// ranking rule and the Stack-vs-Stack Witness comparison both minimize.
func witnessSize(stack [][]byte) int {
	total := 0
	for _, item := range stack {
		total += compactSizeLen(len(item)) + len(item)
	}
	return total
}

// compareWitness orders two witnesses the way the satisfier's cost model
// requires: any real stack beats any non-stack outcome, smaller stacks beat
// larger ones, and between the two failure kinds Impossible is "cheaper"
// (it never becomes available, so ranking prefers to notice that early).
func compareWitness(a, b Witness) int {
	switch {
	case a.Kind == WitnessAvailable && b.Kind == WitnessAvailable:
		wa, wb := witnessSize(a.Stack), witnessSize(b.Stack)
		switch {
		case wa < wb:
			return -1
		case wa > wb:
			return 1
		default:
			return 0
		}
	case a.Kind == WitnessAvailable:
		return -1
	case b.Kind == WitnessAvailable:
		return 1
	case a.Kind == WitnessImpossible && b.Kind == WitnessUnavailable:
		return -1
	case a.Kind == WitnessUnavailable && b.Kind == WitnessImpossible:
		return 1
	default:
		return 0
	}
}

func minWitness(a, b Witness) Witness {
	if compareWitness(a, b) <= 0 {
		return a
	}
	return b
}

// stackWeight is the threshold ranking rule's per-candidate cost: how much
// more expensive satisfying this fragment is than dissatisfying it. A
// fragment this Satisfier can't satisfy at all sorts last; one it can't even
// dissatisfy sorts first, since including it costs nothing extra.
func stackWeight(sat, dsat Witness) int64 {
	switch {
	case sat.Kind != WitnessAvailable:
		return 1<<62 - 1
	case dsat.Kind != WitnessAvailable:
		return -(1<<62 - 1)
	default:
		return int64(witnessSize(sat.Stack)) - int64(witnessSize(dsat.Stack))
	}
}
