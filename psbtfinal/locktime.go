package psbtfinal

import "github.com/btcsuite/btcd/btcutil"

const (
	sequenceLocktimeDisableFlag = 1 << 31
	sequenceLocktimeTypeFlag    = 1 << 22
	sequenceLocktimeMask        = 0x0000ffff
	locktimeThreshold           = 500000000
)

func hash160(b []byte) []byte {
	return btcutil.Hash160(b)
}

// checkOlder is BIP-68's masked relative-locktime comparison, shared between
// PsbtInputSatisfier.CheckOlder and any caller that already has the committed sequence
// value in hand.
func checkOlder(n, committedSequence uint32) bool {
	mask := uint32(sequenceLocktimeMask) | sequenceLocktimeTypeFlag
	maskedN := n & mask
	maskedSeq := committedSequence & mask
	if (maskedN < sequenceLocktimeTypeFlag) != (maskedSeq < sequenceLocktimeTypeFlag) {
		return false
	}
	return maskedN <= maskedSeq
}

// checkAfter is BIP-65's height/time-domain-aware absolute locktime
// comparison.
func checkAfter(n, committedLocktime uint32) bool {
	if (n < locktimeThreshold) != (committedLocktime < locktimeThreshold) {
		return false
	}
	return n <= committedLocktime
}
