package gcrypto

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Secp256k1PubKeySize is the length of a compressed secp256k1 point.
const Secp256k1PubKeySize = 33

// Secp256k1SignatureSize is the length of a recoverable signature, [R || S || V].
const Secp256k1SignatureSize = 65

// Secp256k1PubKey is a secp256k1 public key in its compressed encoding:
// a 0x02 or 0x03 prefix followed by the 32-byte X coordinate.
//
// The zero value is not a valid key; use [NewSecp256k1PubKey]
// or call [Secp256k1PubKey.Validate] on keys built by conversion.
type Secp256k1PubKey [Secp256k1PubKeySize]byte

// NewSecp256k1PubKey parses a compressed key,
// confirming that it encodes a point on the curve.
func NewSecp256k1PubKey(b []byte) (Secp256k1PubKey, error) {
	var k Secp256k1PubKey
	if len(b) != Secp256k1PubKeySize {
		return k, fmt.Errorf("secp256k1 public key must be %d bytes, got %d", Secp256k1PubKeySize, len(b))
	}
	copy(k[:], b)
	if err := k.Validate(); err != nil {
		return Secp256k1PubKey{}, err
	}
	return k, nil
}

// ParseSecp256k1PubKeyHex is [NewSecp256k1PubKey] over a hex string.
func ParseSecp256k1PubKeyHex(s string) (Secp256k1PubKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Secp256k1PubKey{}, fmt.Errorf("invalid public key hex: %w", err)
	}
	return NewSecp256k1PubKey(b)
}

// HasCompressedPrefix reports whether the first byte is a valid compressed-point prefix.
// It does not check that the point is on the curve.
func (k Secp256k1PubKey) HasCompressedPrefix() bool {
	return k[0] == 0x02 || k[0] == 0x03
}

// Validate reports an error if k is not a point on the curve.
func (k Secp256k1PubKey) Validate() error {
	if !k.HasCompressedPrefix() {
		return fmt.Errorf("secp256k1 public key has invalid prefix 0x%02x", k[0])
	}
	if _, err := crypto.DecompressPubkey(k[:]); err != nil {
		return fmt.Errorf("secp256k1 public key is not on the curve: %w", err)
	}
	return nil
}

func (k Secp256k1PubKey) String() string {
	return hex.EncodeToString(k[:])
}

func (k Secp256k1PubKey) PubKeyBytes() []byte {
	return bytes.Clone(k[:])
}

// Address returns the 20-byte Ethereum-style address of the key,
// or nil if the key does not decompress.
func (k Secp256k1PubKey) Address() []byte {
	pub, err := crypto.DecompressPubkey(k[:])
	if err != nil {
		return nil
	}
	return crypto.PubkeyToAddress(*pub).Bytes()
}

// Verify checks a signature produced by [Secp256k1Signer.Sign] over msg.
// Both 64-byte [R || S] and 65-byte recoverable signatures are accepted.
func (k Secp256k1PubKey) Verify(msg, sig []byte) bool {
	switch len(sig) {
	case Secp256k1SignatureSize:
		sig = sig[:Secp256k1SignatureSize-1]
	case Secp256k1SignatureSize - 1:
		// Already [R || S].
	default:
		return false
	}
	return crypto.VerifySignature(k[:], crypto.Keccak256(msg), sig)
}

func (k Secp256k1PubKey) Equal(other PubKey) bool {
	o, ok := other.(Secp256k1PubKey)
	if !ok {
		return false
	}

	return k == o
}

type Secp256k1Signer struct {
	priv *ecdsa.PrivateKey
	pub  Secp256k1PubKey
}

func NewSecp256k1Signer(priv *ecdsa.PrivateKey) Secp256k1Signer {
	var pub Secp256k1PubKey
	copy(pub[:], crypto.CompressPubkey(&priv.PublicKey))
	return Secp256k1Signer{
		priv: priv,
		pub:  pub,
	}
}

func (s Secp256k1Signer) PubKey() PubKey {
	return s.pub
}

// CompressedPubKey is PubKey without the interface conversion.
func (s Secp256k1Signer) CompressedPubKey() Secp256k1PubKey {
	return s.pub
}

func (s Secp256k1Signer) Sign(_ context.Context, input []byte) ([]byte, error) {
	return crypto.Sign(crypto.Keccak256(input), s.priv)
}
