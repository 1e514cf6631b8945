package satisfy

import "github.com/tobin-crypto/rust-miniscript-doge/miniscript"

// signatureWitness builds the one-item witness segment evaluate_pk expects,
// or reports that signing is impossible (this Satisfier never holds a
// private key it wasn't given a signature for up front).
func signatureWitness(stfr Satisfier, pk miniscript.Key) Witness {
	sig, ok := stfr.LookupSig(pk)
	if !ok {
		return witnessImpossible
	}
	return Witness{Kind: WitnessAvailable, Stack: [][]byte{sig.Bytes()}}
}

// pkhPublicKeyWitness resolves a pubkey-hash fragment's key without a
// signature, used only to dissatisfy it (the real key must still be pushed
// so the script can re-derive the hash and fail the CHECKSIG cleanly).
func pkhPublicKeyWitness(stfr Satisfier, pkh [20]byte) Witness {
	pk, ok := stfr.LookupPkhPk(pkh)
	if !ok {
		return witnessUnavailable
	}
	return Witness{Kind: WitnessAvailable, Stack: [][]byte{pk.Bytes()}}
}

// pkhSignatureWitness builds the two-item [sig, pubkey] segment evaluate_pkh
// expects.
func pkhSignatureWitness(stfr Satisfier, pkh [20]byte) Witness {
	pk, sig, ok := stfr.LookupPkhSig(pkh)
	if !ok {
		return witnessImpossible
	}
	return Witness{Kind: WitnessAvailable, Stack: [][]byte{sig.Bytes(), pk.Bytes()}}
}

func sha256PreimageWitness(stfr Satisfier, h [32]byte) Witness {
	pre, ok := stfr.LookupSha256(h)
	if !ok {
		return witnessUnavailable
	}
	return Witness{Kind: WitnessAvailable, Stack: [][]byte{pre[:]}}
}

func hash256PreimageWitness(stfr Satisfier, h [32]byte) Witness {
	pre, ok := stfr.LookupHash256(h)
	if !ok {
		return witnessUnavailable
	}
	return Witness{Kind: WitnessAvailable, Stack: [][]byte{pre[:]}}
}

func ripemd160PreimageWitness(stfr Satisfier, h [20]byte) Witness {
	pre, ok := stfr.LookupRipemd160(h)
	if !ok {
		return witnessUnavailable
	}
	return Witness{Kind: WitnessAvailable, Stack: [][]byte{pre[:]}}
}

func hash160PreimageWitness(stfr Satisfier, h [20]byte) Witness {
	pre, ok := stfr.LookupHash160(h)
	if !ok {
		return witnessUnavailable
	}
	return Witness{Kind: WitnessAvailable, Stack: [][]byte{pre[:]}}
}
