package gcryptotest

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gordian-engine/gcircle/gcrypto"
)

// DeterministicSecp256k1Signers returns n signers whose private keys
// are derived from a fixed seed and the signer's index,
// so that tests observe the same keys across runs.
func DeterministicSecp256k1Signers(n int) []gcrypto.Secp256k1Signer {
	out := make([]gcrypto.Secp256k1Signer, n)
	for i := range out {
		var seed [8 + len("gcircle-secp256k1")]byte
		copy(seed[:], "gcircle-secp256k1")
		binary.LittleEndian.PutUint64(seed[len("gcircle-secp256k1"):], uint64(i))
		d := sha256.Sum256(seed[:])

		priv, err := crypto.ToECDSA(d[:])
		if err != nil {
			panic(fmt.Errorf("failed to derive deterministic key %d: %w", i, err))
		}
		out[i] = gcrypto.NewSecp256k1Signer(priv)
	}
	return out
}
