package gcrypto

import "context"

type PubKey interface {
	Address() []byte

	PubKeyBytes() []byte

	Equal(other PubKey) bool

	Verify(msg, sig []byte) bool
}

// Signer produces signatures that verify against its PubKey.
type Signer interface {
	PubKey() PubKey

	Sign(ctx context.Context, input []byte) ([]byte, error)
}
