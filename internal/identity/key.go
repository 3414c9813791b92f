// Package identity derives the fixed-width account keys that address every
// ledger record. Derivation is a pure function of (namespace, identifier),
// so no index table maps identifiers to records.
package identity

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

// KeyHRP is the human-readable part of a bech32-rendered key.
const KeyHRP = "ml"

// KeySize is the width of a derived key in bytes.
const KeySize = 32

// Key is a derived account, mint, or record key.
type Key [KeySize]byte

// Namespace separates derivations so the same identifier yields unrelated
// keys for different record kinds.
type Namespace string

const (
	NamespaceUser         Namespace = "user"
	NamespacePersonalMint Namespace = "personal_mint"
	NamespaceConnection   Namespace = "connection"
	NamespaceRewardMint   Namespace = "reward_mint"
	NamespaceEscrow       Namespace = "escrow"
	NamespaceAuthority    Namespace = "authority"
)

// Valid reports whether ns is one the ledger derives keys under.
func (ns Namespace) Valid() bool {
	switch ns {
	case NamespaceUser, NamespacePersonalMint, NamespaceConnection,
		NamespaceRewardMint, NamespaceEscrow, NamespaceAuthority:
		return true
	}
	return false
}

// DeriveRaw hashes material under ns: BLAKE2b-256 keyed by the namespace
// tag over BLAKE2b-256(material). It performs no length validation.
func DeriveRaw(ns Namespace, material []byte) Key {
	inner := blake2b.Sum256(material)
	h, err := blake2b.New256([]byte(ns))
	if err != nil {
		// only possible for namespaces longer than 64 bytes
		panic(fmt.Sprintf("identity: invalid namespace %q: %v", ns, err))
	}
	h.Write(inner[:])
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool {
	return k == Key{}
}

// Bytes returns a copy of the key bytes.
func (k Key) Bytes() []byte {
	b := make([]byte, KeySize)
	copy(b, k[:])
	return b
}

// Hex renders the key as lowercase hex.
func (k Key) Hex() string {
	return hex.EncodeToString(k[:])
}

// String renders the key as bech32 with the "ml" prefix.
func (k Key) String() string {
	words, err := bech32.ConvertBits(k[:], 8, 5, true)
	if err != nil {
		return k.Hex()
	}
	s, err := bech32.Encode(KeyHRP, words)
	if err != nil {
		return k.Hex()
	}
	return s
}

// MarshalText renders the key in its bech32 form.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a bech32-rendered key.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey decodes a bech32-rendered key.
func ParseKey(s string) (Key, error) {
	hrp, words, err := bech32.Decode(s)
	if err != nil {
		return Key{}, fmt.Errorf("decode key: %w", err)
	}
	if hrp != KeyHRP {
		return Key{}, fmt.Errorf("decode key: unexpected prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(words, 5, 8, false)
	if err != nil {
		return Key{}, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != KeySize {
		return Key{}, fmt.Errorf("decode key: expected %d bytes, got %d", KeySize, len(raw))
	}
	var k Key
	copy(k[:], raw)
	return k, nil
}

// KeyFromBytes copies a 32-byte slice into a Key.
func KeyFromBytes(b []byte) (Key, error) {
	if len(b) != KeySize {
		return Key{}, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(b))
	}
	var k Key
	copy(k[:], b)
	return k, nil
}
