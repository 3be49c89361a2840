package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the bech32 human-readable part of an address.
type AddressPrefix string

const (
	// BZRPrefix tags addresses holding the native settlement coin.
	BZRPrefix AddressPrefix = "bzr"
	// LBZPrefix tags reward-asset denominated addresses.
	LBZPrefix AddressPrefix = "lbz"
)

const addressLength = 20

// Address is a 20-byte account identity rendered bech32 with its prefix.
type Address struct {
	prefix AddressPrefix
	raw    [addressLength]byte
}

// NewAddress wraps raw bytes into an Address. The byte slice must be exactly
// 20 bytes; anything else is a programming error.
func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != addressLength {
		panic(fmt.Sprintf("address must be %d bytes, got %d", addressLength, len(b)))
	}
	addr := Address{prefix: prefix}
	copy(addr.raw[:], b)
	return addr
}

// DecodeAddress parses a bech32-rendered address string.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, words, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	raw, err := bech32.ConvertBits(words, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(raw) != addressLength {
		return Address{}, fmt.Errorf("address payload must be %d bytes, got %d", addressLength, len(raw))
	}
	return NewAddress(AddressPrefix(prefix), raw), nil
}

// String renders the address bech32.
func (a Address) String() string {
	words, err := bech32.ConvertBits(a.raw[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), words)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a copy of the raw 20-byte payload.
func (a Address) Bytes() []byte {
	out := make([]byte, addressLength)
	copy(out, a.raw[:])
	return out
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix { return a.prefix }

// PrivateKey is a secp256k1 signing key.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

// PublicKey is the verification half of a PrivateKey.
type PublicKey struct {
	*ecdsa.PublicKey
}

// GeneratePrivateKey creates a fresh secp256k1 key from the system entropy
// source.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromBytes rebuilds a key from its raw 32-byte form.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the raw 32-byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

// PubKey returns the public half of the key.
func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Address derives the account address for the key, rendered with the native
// coin prefix.
func (k *PublicKey) Address() Address {
	return NewAddress(BZRPrefix, crypto.PubkeyToAddress(*k.PublicKey).Bytes())
}
