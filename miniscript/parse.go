package miniscript

// FromScript lexes and parses a complete script body into a Miniscript AST.
// The script must contain exactly one fragment with nothing left over.
func FromScript(script []byte) (*Node, error) {
	toks, err := Lex(script)
	if err != nil {
		return nil, err
	}
	it := NewTokenIter(toks)
	node, err := parseExpr(it)
	if err != nil {
		return nil, err
	}
	if !it.Done() {
		return nil, errf("%d trailing token(s) after parsing a complete fragment", it.Len())
	}
	return node, nil
}

// isAndVTerminator reports tokens that can never start a new AndV left-hand
// operand: they belong to whatever bracket or combinator is enclosing the
// expression currently being parsed, and parseExpr must return control to
// that caller instead of trying to consume them.
func isAndVTerminator(k TokenKind) bool {
	switch k {
	case TokBoolAnd, TokBoolOr, TokNotIf, TokIf, TokIfDup, TokElse, TokAdd, TokToAltStack:
		return true
	default:
		return false
	}
}

// parseExpr parses one complete, boundary-delimited Miniscript fragment,
// folding and_v's implicit concatenation: since and_v(X, Y) has no opcode of
// its own (its script is simply [X][Y]), the parser keeps prepending
// left-hand fragments to what it already has for as long as the fragment in
// front parses as a V-type one (the only kind and_v accepts on its left).
func parseExpr(it *TokenIter) (*Node, error) {
	node, err := parseSingle(it)
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := it.Peek()
		if !ok {
			break
		}
		if tok.Kind == TokSwap {
			it.Next()
			node = newSwap(node)
			continue
		}
		if isAndVTerminator(tok.Kind) {
			break
		}
		// and_v's left operand is always a V fragment; anything else in
		// front belongs to an enclosing combinator, so put it back.
		saved := it.toks
		left, err := parseSingle(it)
		if err != nil {
			return nil, err
		}
		if left.Base != TypeV {
			it.toks = saved
			break
		}
		node = newAndV(left, node)
	}
	return node, nil
}

func expectKind(it *TokenIter, kind TokenKind, what string) (Token, error) {
	tok, ok := it.Next()
	if !ok || tok.Kind != kind {
		return Token{}, errf("expected %s", what)
	}
	return tok, nil
}

// tryPkH attempts to consume the fixed five-token pk_h tail
// (DUP HASH160 <hash20> EQUALVERIFY, read back to front as
// VERIFY EQUAL <hash20> HASH160 DUP) starting at the current position. It
// restores every token it speculatively consumed if the shape doesn't match,
// since the leading VERIFY token is ambiguous with a generic v: wrapper.
func tryPkH(it *TokenIter) (*Node, bool) {
	var consumed []Token
	restore := func() {
		for i := len(consumed) - 1; i >= 0; i-- {
			it.UnNext(consumed[i])
		}
	}
	next := func(want TokenKind) (Token, bool) {
		tok, ok := it.Next()
		if !ok || tok.Kind != want {
			if ok {
				it.UnNext(tok)
			}
			restore()
			return Token{}, false
		}
		consumed = append(consumed, tok)
		return tok, true
	}

	if _, ok := next(TokVerify); !ok {
		return nil, false
	}
	if _, ok := next(TokEqual); !ok {
		return nil, false
	}
	hashTok, ok := next(TokHash20)
	if !ok {
		return nil, false
	}
	if _, ok := next(TokHash160); !ok {
		return nil, false
	}
	if _, ok := next(TokDup); !ok {
		return nil, false
	}
	var h [20]byte
	copy(h[:], hashTok.Data)
	return newPkH(h), true
}

// parseSingle parses exactly one fragment that is not part of an and_v
// concatenation: a leaf, a single-opcode wrapper, a bracketed wrapper, or a
// combinator together with its children.
func parseSingle(it *TokenIter) (*Node, error) {
	tok, ok := it.Peek()
	if !ok {
		return nil, errf("unexpected end of script")
	}

	switch tok.Kind {
	case TokNum:
		it.Next()
		switch tok.Num {
		case 0:
			return newFalse(), nil
		case 1:
			return newTrue(), nil
		default:
			return nil, errf("bare numeric push %d is not a Miniscript terminal", tok.Num)
		}

	case TokPubkey:
		it.Next()
		key, err := ParseKey(tok.Data)
		if err != nil {
			return nil, err
		}
		return newPkK(key), nil

	case TokVerify:
		if node, ok := tryPkH(it); ok {
			return node, nil
		}
		it.Next()
		sub, err := parseExpr(it)
		if err != nil {
			return nil, err
		}
		return newVerify(sub), nil

	case TokCheckSig:
		it.Next()
		sub, err := parseSingle(it)
		if err != nil {
			return nil, err
		}
		if sub.Base != TypeK {
			return nil, errf("CHECKSIG operand must be pk_k or pk_h")
		}
		return newCheck(sub), nil

	case TokZeroNotEqual:
		it.Next()
		sub, err := parseExpr(it)
		if err != nil {
			return nil, err
		}
		return newZeroNotEqual(sub), nil

	case TokFromAltStack:
		it.Next()
		sub, err := parseExpr(it)
		if err != nil {
			return nil, err
		}
		if _, err := expectKind(it, TokToAltStack, "TOALTSTACK closing a:"); err != nil {
			return nil, err
		}
		return newAlt(sub), nil

	case TokCheckSequenceVerify:
		it.Next()
		n, err := expectKind(it, TokNum, "relative locktime value before CSV")
		if err != nil {
			return nil, err
		}
		return newOlder(uint32(n.Num)), nil

	case TokCheckLockTimeVerify:
		it.Next()
		n, err := expectKind(it, TokNum, "absolute locktime value before CLTV")
		if err != nil {
			return nil, err
		}
		return newAfter(uint32(n.Num)), nil

	case TokCheckMultiSig:
		return parseMulti(it)

	case TokBoolAnd:
		it.Next()
		y, err := parseExpr(it)
		if err != nil {
			return nil, err
		}
		x, err := parseExpr(it)
		if err != nil {
			return nil, err
		}
		return newAndB(x, y), nil

	case TokBoolOr:
		it.Next()
		z, err := parseExpr(it)
		if err != nil {
			return nil, err
		}
		x, err := parseExpr(it)
		if err != nil {
			return nil, err
		}
		return newOrB(x, z), nil

	case TokEqual:
		return parseEqualGroup(it)

	case TokEndIf:
		return parseEndIfGroup(it)

	default:
		return nil, errf("token %s cannot start a Miniscript fragment", tok)
	}
}

// parseEqualGroup resolves the ambiguity between the four hashlocks
// (...<hash> OP_EQUAL) and thresh's closing (...<k> OP_EQUAL): both read
// back to front as OP_EQUAL followed directly by a push, distinguished only
// by whether that push is a hash (20 or 32 bytes) or a bare number.
func parseEqualGroup(it *TokenIter) (*Node, error) {
	it.Next() // consume EQUAL

	next, ok := it.Peek()
	if !ok {
		return nil, errf("unexpected end of script after EQUAL")
	}

	switch next.Kind {
	case TokHash32, TokHash20:
		it.Next()
		hashOp, ok := it.Next()
		if !ok {
			return nil, errf("expected a hash opcode after the hash push")
		}
		if _, err := expectKind(it, TokVerify, "EQUALVERIFY closing SIZE check"); err != nil {
			return nil, err
		}
		if _, err := expectKind(it, TokEqual, "EQUALVERIFY closing SIZE check"); err != nil {
			return nil, err
		}
		sizeTok, err := expectKind(it, TokNum, "32 in the SIZE check")
		if err != nil {
			return nil, err
		}
		if sizeTok.Num != 32 {
			return nil, errf("hashlock SIZE check compares to %d, not 32", sizeTok.Num)
		}
		if _, err := expectKind(it, TokSize, "SIZE opening the hashlock"); err != nil {
			return nil, err
		}
		return buildHashlock(hashOp.Kind, next)

	case TokNum:
		it.Next()
		k := int(next.Num)
		subs, err := parseThreshChildren(it)
		if err != nil {
			return nil, err
		}
		return newThresh(k, subs), nil

	default:
		return nil, errf("EQUAL is not part of a recognized hashlock or thresh fragment")
	}
}

func buildHashlock(opKind TokenKind, hashTok Token) (*Node, error) {
	switch opKind {
	case TokSha256:
		var h [32]byte
		copy(h[:], hashTok.Data)
		return newSha256(h), nil
	case TokHash256:
		var h [32]byte
		copy(h[:], hashTok.Data)
		return newHash256(h), nil
	case TokRipemd160:
		var h [20]byte
		copy(h[:], hashTok.Data)
		return newRipemd160(h), nil
	case TokHash160:
		var h [20]byte
		copy(h[:], hashTok.Data)
		return newHash160(h), nil
	default:
		return nil, errf("expected a hash opcode after the hash push, got %v", opKind)
	}
}

func parseThreshChildren(it *TokenIter) ([]*Node, error) {
	var rev []*Node
	for {
		tok, ok := it.Peek()
		if ok && tok.Kind == TokAdd {
			it.Next()
			child, err := parseExpr(it)
			if err != nil {
				return nil, err
			}
			rev = append(rev, child)
			continue
		}
		child, err := parseExpr(it)
		if err != nil {
			return nil, err
		}
		rev = append(rev, child)
		break
	}
	subs := make([]*Node, len(rev))
	for i, n := range rev {
		subs[len(rev)-1-i] = n
	}
	return subs, nil
}

func parseMulti(it *TokenIter) (*Node, error) {
	it.Next() // consume CHECKMULTISIG
	nTok, err := expectKind(it, TokNum, "pubkey count before CHECKMULTISIG")
	if err != nil {
		return nil, err
	}
	n := int(nTok.Num)
	keysRev := make([]Key, 0, n)
	for i := 0; i < n; i++ {
		pkTok, err := expectKind(it, TokPubkey, "public key in multi()")
		if err != nil {
			return nil, err
		}
		key, err := ParseKey(pkTok.Data)
		if err != nil {
			return nil, err
		}
		keysRev = append(keysRev, key)
	}
	kTok, err := expectKind(it, TokNum, "threshold before the public keys in multi()")
	if err != nil {
		return nil, err
	}
	keys := make([]Key, n)
	for i, k := range keysRev {
		keys[n-1-i] = k
	}
	return newMulti(int(kTok.Num), keys), nil
}

// parseEndIfGroup resolves the six fragments that all close with OP_ENDIF
// read first in reverse: d:, j:, or_c, or_d, or_i and andor. The shape of
// what follows the first child distinguishes them.
func parseEndIfGroup(it *TokenIter) (*Node, error) {
	it.Next() // consume ENDIF

	child1, err := parseExpr(it)
	if err != nil {
		return nil, err
	}

	marker, ok := it.Peek()
	if !ok {
		return nil, errf("unexpected end of script inside an IF/NOTIF/ENDIF construct")
	}

	switch marker.Kind {
	case TokIf:
		it.Next()
		next2, ok := it.Peek()
		if !ok {
			return nil, errf("unexpected end of script after IF")
		}
		switch next2.Kind {
		case TokDup:
			it.Next()
			return newDupIf(child1), nil
		case TokZeroNotEqual:
			it.Next()
			if _, err := expectKind(it, TokSize, "SIZE opening j:"); err != nil {
				return nil, err
			}
			return newNonZero(child1), nil
		default:
			return nil, errf("DUP IF ENDIF or SIZE 0NOTEQUAL IF ENDIF expected, got neither")
		}

	case TokNotIf:
		it.Next()
		next2, ok := it.Peek()
		if ok && next2.Kind == TokIfDup {
			it.Next()
			x, err := parseExpr(it)
			if err != nil {
				return nil, err
			}
			return newOrD(x, child1), nil
		}
		x, err := parseExpr(it)
		if err != nil {
			return nil, err
		}
		return newOrC(x, child1), nil

	case TokElse:
		it.Next()
		child2, err := parseExpr(it)
		if err != nil {
			return nil, err
		}
		next2, ok := it.Peek()
		if !ok {
			return nil, errf("unexpected end of script after ELSE branch")
		}
		switch next2.Kind {
		case TokIf:
			it.Next()
			return newOrI(child2, child1), nil
		case TokNotIf:
			it.Next()
			x, err := parseExpr(it)
			if err != nil {
				return nil, err
			}
			return newAndOr(x, child1, child2), nil
		default:
			return nil, errf("IF...ELSE...ENDIF or NOTIF...ELSE...ENDIF expected")
		}

	default:
		return nil, errf("ENDIF body followed by an unrecognized opcode")
	}
}
