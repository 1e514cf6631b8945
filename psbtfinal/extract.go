package psbtfinal

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// sanityCheck mirrors BIP-174's extractor precondition: the unsigned
// transaction and the input map must carry the same number of inputs.
func sanityCheck(pkt *psbt.Packet) error {
	if len(pkt.UnsignedTx.TxIn) != len(pkt.Inputs) {
		return finalizeErr(-1, "wrong input count: tx has %d, psbt has %d",
			len(pkt.UnsignedTx.TxIn), len(pkt.Inputs))
	}
	return nil
}

// Extract implements the BIP-174 Extractor role: given a packet whose every
// input already carries a FinalScriptSig or FinalScriptWitness, it lifts
// those fields into a standalone broadcastable transaction. It does not
// re-run Finalize; call that first for any input still missing its final
// fields.
func Extract(pkt *psbt.Packet) (*wire.MsgTx, error) {
	if err := sanityCheck(pkt); err != nil {
		return nil, err
	}

	tx := pkt.UnsignedTx.Copy()
	for i, in := range pkt.Inputs {
		if in.FinalScriptSig == nil && in.FinalScriptWitness == nil {
			return nil, finalizeErr(i, "missing final scriptSig and final witness")
		}
		if in.FinalScriptSig != nil {
			tx.TxIn[i].SignatureScript = in.FinalScriptSig
		}
		if in.FinalScriptWitness != nil {
			witness, err := readTxWitness(in.FinalScriptWitness)
			if err != nil {
				return nil, finalizeErr(i, "decoding final witness: %v", err)
			}
			tx.TxIn[i].Witness = witness
		}
	}
	return tx, nil
}

// readTxWitness decodes a BIP-174 final_scriptwitness value, the wire
// serialization of a witness stack (CompactSize count, each item CompactSize
// length-prefixed), back into its individual pushes.
func readTxWitness(raw []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(raw)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	witness := make(wire.TxWitness, count)
	for i := range witness {
		item, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "witness item")
		if err != nil {
			return nil, err
		}
		witness[i] = item
	}
	return witness, nil
}
