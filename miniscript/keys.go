package miniscript

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Key wraps a parsed secp256k1 public key together with the serialization
// form (compressed or uncompressed) it was read from, so re-encoding a
// parsed Node reproduces the exact original bytes.
type Key struct {
	PubKey     *btcec.PublicKey
	Compressed bool
}

// ParseKey parses a 33-byte compressed or 65-byte uncompressed public key.
func ParseKey(data []byte) (Key, error) {
	pk, err := btcec.ParsePubKey(data)
	if err != nil {
		return Key{}, err
	}
	return Key{PubKey: pk, Compressed: len(data) == 33}, nil
}

// Bytes returns the key in the same serialization it was parsed from.
func (k Key) Bytes() []byte {
	if k.Compressed {
		return k.PubKey.SerializeCompressed()
	}
	return k.PubKey.SerializeUncompressed()
}

// Equal reports whether two keys serialize identically.
func (k Key) Equal(o Key) bool {
	return bytes.Equal(k.Bytes(), o.Bytes())
}
