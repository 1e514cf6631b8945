package miniscript

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// String renders the inferred descriptor fragment notation for the tree,
// e.g. "andor(pk_h(<hash>),older(144),pk_k(<key>))". It is meant for logging
// and diagnostics, not for round-tripping through a descriptor parser.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	switch n.Kind {
	case KindTrue:
		sb.WriteString("1")
	case KindFalse:
		sb.WriteString("0")
	case KindPkK:
		fmt.Fprintf(sb, "pk_k(%x)", n.Pk.Bytes())
	case KindPkH:
		fmt.Fprintf(sb, "pk_h(%s)", hex.EncodeToString(n.PkHash[:]))
	case KindAfter:
		fmt.Fprintf(sb, "after(%d)", n.Locktime)
	case KindOlder:
		fmt.Fprintf(sb, "older(%d)", n.Locktime)
	case KindSha256:
		fmt.Fprintf(sb, "sha256(%s)", hex.EncodeToString(n.Hash32[:]))
	case KindHash256:
		fmt.Fprintf(sb, "hash256(%s)", hex.EncodeToString(n.Hash32[:]))
	case KindRipemd160:
		fmt.Fprintf(sb, "ripemd160(%s)", hex.EncodeToString(n.Hash20[:]))
	case KindHash160:
		fmt.Fprintf(sb, "hash160(%s)", hex.EncodeToString(n.Hash20[:]))
	case KindAlt:
		writeWrapped(sb, "a", n.Sub)
	case KindSwap:
		writeWrapped(sb, "s", n.Sub)
	case KindCheck:
		writeWrapped(sb, "c", n.Sub)
	case KindDupIf:
		writeWrapped(sb, "d", n.Sub)
	case KindVerify:
		writeWrapped(sb, "v", n.Sub)
	case KindNonZero:
		writeWrapped(sb, "j", n.Sub)
	case KindZeroNotEqual:
		writeWrapped(sb, "n", n.Sub)
	case KindAndV:
		writeFunc(sb, "and_v", n.L, n.R)
	case KindAndB:
		writeFunc(sb, "and_b", n.L, n.R)
	case KindOrB:
		writeFunc(sb, "or_b", n.L, n.R)
	case KindOrC:
		writeFunc(sb, "or_c", n.L, n.R)
	case KindOrD:
		writeFunc(sb, "or_d", n.L, n.R)
	case KindOrI:
		writeFunc(sb, "or_i", n.L, n.R)
	case KindAndOr:
		writeFunc(sb, "andor", n.A, n.B, n.C)
	case KindThresh:
		sb.WriteString("thresh(")
		fmt.Fprintf(sb, "%d", n.K)
		for _, s := range n.Subs {
			sb.WriteString(",")
			s.write(sb)
		}
		sb.WriteString(")")
	case KindMulti:
		sb.WriteString("multi(")
		fmt.Fprintf(sb, "%d", n.K)
		for _, k := range n.Keys {
			fmt.Fprintf(sb, ",%x", k.Bytes())
		}
		sb.WriteString(")")
	}
}

// writeWrapped renders a single-letter wrapper prefix, merging it with an
// inner wrapper prefix chain when present (e.g. "sc:" rather than "s:c:").
func writeWrapped(sb *strings.Builder, letter string, sub *Node) {
	var inner strings.Builder
	sub.write(&inner)
	s := inner.String()
	if idx := strings.IndexByte(s, ':'); idx >= 0 && isWrapperPrefix(s[:idx]) {
		sb.WriteString(letter)
		sb.WriteString(s)
		return
	}
	sb.WriteString(letter)
	sb.WriteString(":")
	sb.WriteString(s)
}

func isWrapperPrefix(s string) bool {
	for _, c := range s {
		switch c {
		case 'a', 's', 'c', 'd', 'v', 'j', 'n':
		default:
			return false
		}
	}
	return len(s) > 0
}

func writeFunc(sb *strings.Builder, name string, args ...*Node) {
	sb.WriteString(name)
	sb.WriteString("(")
	for i, a := range args {
		if i > 0 {
			sb.WriteString(",")
		}
		a.write(sb)
	}
	sb.WriteString(")")
}
